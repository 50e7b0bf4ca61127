package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quartierlabs/prospector/internal/catalog"
)

var testCombo = catalog.Combo{
	Trade: catalog.Trade{Key: "plombier", Query: "plombier", Label: "Plombier"},
	City:  catalog.City{Name: "Nice", Department: "06", PostalCode: "06000"},
}

func TestMapStrategy_DirectionsAnchor(t *testing.T) {
	t.Parallel()

	html := `<div>04 93 12 34 56</div>` +
		`<span>4,5 étoiles 120 avis</span>` +
		`<a aria-label="Obtenir un itinéraire vers Plomberie Azur"></a>` +
		`<a aria-label="Visiter le site Web de Plomberie Azur" href="https://plomberie-azur.fr"></a>`

	listings := MapStrategy{}.Extract(html, testCombo)
	require.Len(t, listings, 1)

	l := listings[0]
	require.Equal(t, "Plomberie Azur", l.Name)
	require.Equal(t, "0493123456", l.Phone)
	require.InDelta(t, 4.5, l.Rating, 1e-9)
	require.Equal(t, 120, l.ReviewCount)
	require.Equal(t, "https://plomberie-azur.fr", l.Website)
	require.Equal(t, "plombier", l.Trade)
	require.Equal(t, "06", l.Department)
	require.Equal(t, "Nice", l.City)
	require.True(t, strings.HasPrefix(l.ID, "gm-"))
}

func TestMapStrategy_BusinessAnchorAndChrome(t *testing.T) {
	t.Parallel()

	html := `<a class="xx hfpxzc yy" aria-label="Résultats pour plombier"></a>` +
		`<a class="hfpxzc" aria-label="Artisan Dupont"></a>` +
		`<div>06 11 22 33 44</div>`

	listings := MapStrategy{}.Extract(html, testCombo)
	require.Len(t, listings, 1)
	require.Equal(t, "Artisan Dupont", listings[0].Name)
	require.Equal(t, "0611223344", listings[0].Phone)
}

func TestMapStrategy_DedupAcrossAnchors(t *testing.T) {
	t.Parallel()

	html := `<a aria-label="Obtenir un itinéraire vers Artisan Dupont"></a>` +
		`<a class="hfpxzc" aria-label="artisan dupont"></a>`

	listings := MapStrategy{}.Extract(html, testCombo)
	require.Len(t, listings, 1)
}

func TestMapStrategy_RejectsScreenedMobilePrefix(t *testing.T) {
	t.Parallel()

	html := `<div>09 51 22 33 44</div>` +
		`<a aria-label="Obtenir un itinéraire vers Artisan Test"></a>`

	listings := MapStrategy{}.Extract(html, testCombo)
	require.Len(t, listings, 1)
	require.Empty(t, listings[0].Phone)
}

func TestSearchStrategy(t *testing.T) {
	t.Parallel()

	html := `<span class="OSrXXb">Chauffage Riviera</span>` +
		`<div>4,8 étoiles</div><span>(37)</span>` +
		`<a href="https://www.google.fr/maps"></a>` +
		`<a href="https://chauffage-riviera.fr"></a>` +
		`<div>04 97 00 11 22</div>`

	listings := SearchStrategy{}.Extract(html, testCombo)
	require.Len(t, listings, 1)

	l := listings[0]
	require.Equal(t, "Chauffage Riviera", l.Name)
	require.Equal(t, "0497001122", l.Phone)
	require.InDelta(t, 4.8, l.Rating, 1e-9)
	require.Equal(t, 37, l.ReviewCount)
	require.Equal(t, "https://chauffage-riviera.fr", l.Website)
}

func TestSearchStrategy_ChromeFilter(t *testing.T) {
	t.Parallel()

	html := `<span class="OSrXXb">Résultats de recherche</span>` +
		`<span class="OSrXXb">Voir plus</span>`

	require.Empty(t, SearchStrategy{}.Extract(html, testCombo))
}

func TestListingID_StableAcrossRuns(t *testing.T) {
	t.Parallel()

	a := listingID("plombier", "06", "Plomberie Azur")
	b := listingID("plombier", "06", " plomberie azur ")
	require.Equal(t, a, b)

	c := listingID("plombier", "06", "Autre Nom")
	require.NotEqual(t, a, c)
}

func TestDecodeMarkup(t *testing.T) {
	t.Parallel()

	require.Equal(t, `l'Atelier & "Co" <x>`, decodeMarkup(`l&#39;Atelier &amp; &quot;Co&quot; &lt;x&gt;`))
	require.Equal(t, "é", decodeMarkup(`\u00e9`))
	require.Equal(t, "a b", decodeMarkup("a&nbsp;b"))
}
