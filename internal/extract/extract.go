// Package extract recovers business listings from raw source markup.
//
// Extraction is positional: each strategy scans for business-name
// anchors and then searches a bounded window of surrounding characters
// for a phone number, a rating fragment, and a website link. The markup
// is minified and frequently malformed, so the strategies work on the
// raw text rather than a parsed DOM.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quartierlabs/prospector/internal/catalog"
	"github.com/quartierlabs/prospector/internal/normalize"
)

// Listing is a candidate business record extracted from one fetch.
// Listings are never persisted verbatim; only normalized, matched
// fields are written downstream.
type Listing struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"reviewCount,omitempty"`
	Website     string  `json:"website,omitempty"`
	Trade       string  `json:"trade"`
	Department  string  `json:"department"`
	City        string  `json:"city"`
}

// Strategy extracts listings from one markup document.
type Strategy interface {
	Extract(html string, combo catalog.Combo) []Listing
}

var (
	directionsAnchor = regexp.MustCompile(`aria-label="Obtenir un itin.raire vers ([^"]{2,80})"`)
	businessAnchor   = regexp.MustCompile(`class="[^"]*hfpxzc[^"]*"[^>]*aria-label="([^"]{3,80})"`)
	resultAnchor     = regexp.MustCompile(`class="[^"]*OSrXXb[^"]*"[^>]*>([^<]{3,80})<`)

	mapChrome    = regexp.MustCompile(`(?i)^(résultats|filtres|réduire|plan|en savoir|obtenir|visiter)`)
	searchChrome = regexp.MustCompile(`(?i)^(entreprises?|résultats|recherche|plus de|voir|afficher)`)

	phonePattern = regexp.MustCompile(`(0[1-9][\s.]?\d{2}[\s.]?\d{2}[\s.]?\d{2}[\s.]?\d{2})`)
	mobileScreen = regexp.MustCompile(`^09[59]`)

	mapRating    = regexp.MustCompile(`(\d[,.]?\d?)\s*.toiles?\s+(\d[\d\s]*)\s*avis`)
	searchRating = regexp.MustCompile(`(\d[,.]\d)\s*(?:étoiles?|stars?|<)`)
	reviewParens = regexp.MustCompile(`\((\d[\d\s.,]*)\)`)
	digitsOnly   = regexp.MustCompile(`^\d+$`)

	httpsLink = regexp.MustCompile(`href="(https?://[^"]{5,200})"`)

	nbspRuns      = regexp.MustCompile(`&nbsp;|\x{00a0}`)
	unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

	entityReplacer = strings.NewReplacer(
		"&#39;", "'", "&amp;", "&", "&quot;", `"`,
		"&#x27;", "'", "&lt;", "<", "&gt;", ">",
	)
)

// decodeMarkup resolves the entity and \uXXXX escapes the source embeds
// in attribute text.
func decodeMarkup(s string) string {
	s = entityReplacer.Replace(s)
	s = nbspRuns.ReplaceAllString(s, " ")
	return unicodeEscape.ReplaceAllStringFunc(s, func(esc string) string {
		code, err := strconv.ParseUint(esc[2:], 16, 32)
		if err != nil {
			return esc
		}
		return string(rune(code))
	})
}

// listingID derives a stable identifier from trade, department and
// name, so the same business extracted twice maps to the same key.
// The 32-bit string hash matches the ids of previously collected runs.
func listingID(trade, dept, name string) string {
	var h int32
	for _, r := range trade + "-" + dept + "-" + strings.ToLower(strings.TrimSpace(name)) {
		h = h*31 + int32(r)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return "gm-" + strconv.FormatInt(abs, 36)
}

func parseMapRating(window string) (float64, int, bool) {
	matches := mapRating.FindAllStringSubmatch(nbspRuns.ReplaceAllString(window, " "), -1)
	if len(matches) == 0 {
		return 0, 0, false
	}
	last := matches[len(matches)-1]
	rating, err := strconv.ParseFloat(strings.ReplaceAll(last[1], ",", "."), 64)
	if err != nil {
		return 0, 0, false
	}
	count, _ := strconv.Atoi(strings.ReplaceAll(last[2], " ", ""))
	return rating, count, true
}

// websiteNear looks for a "visit website" link whose aria-label carries
// the business name, in either attribute order.
func websiteNear(window, name string) string {
	prefix := name
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}
	escaped := regexp.QuoteMeta(prefix)
	labelFirst, err := regexp.Compile(`(?i)aria-label="Visiter le site Web de[^"]*` + escaped + `[^"]*"[^>]*href="([^"]+)"`)
	if err != nil {
		return ""
	}
	hrefFirst, err := regexp.Compile(`(?i)href="(https?://[^"]+)"[^>]*aria-label="Visiter le site Web de[^"]*` + escaped)
	if err != nil {
		return ""
	}
	m := labelFirst.FindStringSubmatch(window)
	if m == nil {
		m = hrefFirst.FindStringSubmatch(window)
	}
	if m == nil {
		return ""
	}
	site, ok := normalize.Website(m[1])
	if !ok {
		return ""
	}
	return site
}

// MapStrategy extracts listings from map-style result blocks.
type MapStrategy struct{}

// Extract scans directions anchors (context precedes the anchor) and
// business-link anchors (context follows it).
func (MapStrategy) Extract(html string, combo catalog.Combo) []Listing {
	var listings []Listing
	seen := make(map[string]struct{})
	trade, dept, city := combo.Trade.Key, combo.City.Department, combo.City.Name

	for _, loc := range directionsAnchor.FindAllStringSubmatchIndex(html, -1) {
		name := strings.TrimSpace(decodeMarkup(html[loc[2]:loc[3]]))
		if len(name) < 2 {
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		start := loc[0] - 3000
		if start < 0 {
			start = 0
		}
		before := html[start:loc[0]]

		l := Listing{
			ID: listingID(trade, dept, name), Name: name,
			Trade: trade, Department: dept, City: city,
		}
		if phones := phonePattern.FindAllStringSubmatch(before, -1); len(phones) > 0 {
			if p, ok := normalize.Phone(phones[len(phones)-1][1]); ok && !mobileScreen.MatchString(p) {
				l.Phone = p
			}
		}
		if rating, count, ok := parseMapRating(before); ok {
			l.Rating, l.ReviewCount = rating, count
		}
		end := loc[0] + 2000
		if end > len(html) {
			end = len(html)
		}
		l.Website = websiteNear(html[start:end], name)

		seen[lower] = struct{}{}
		listings = append(listings, l)
	}

	for _, loc := range businessAnchor.FindAllStringSubmatchIndex(html, -1) {
		name := strings.TrimSpace(decodeMarkup(html[loc[2]:loc[3]]))
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		if mapChrome.MatchString(name) {
			continue
		}
		end := loc[0] + 3000
		if end > len(html) {
			end = len(html)
		}
		after := html[loc[0]:end]

		l := Listing{
			ID: listingID(trade, dept, name), Name: name,
			Trade: trade, Department: dept, City: city,
		}
		if m := phonePattern.FindStringSubmatch(after); m != nil {
			if p, ok := normalize.Phone(m[1]); ok && !mobileScreen.MatchString(p) {
				l.Phone = p
			}
		}
		if rating, count, ok := parseMapRating(after); ok {
			l.Rating, l.ReviewCount = rating, count
		}
		l.Website = websiteNear(after, name)

		seen[lower] = struct{}{}
		listings = append(listings, l)
	}

	return listings
}

// SearchStrategy extracts listings from search-result blocks of the
// secondary source.
type SearchStrategy struct{}

// Extract scans result-title anchors with a trailing context window.
func (SearchStrategy) Extract(html string, combo catalog.Combo) []Listing {
	var listings []Listing
	seen := make(map[string]struct{})
	trade, dept, city := combo.Trade.Key, combo.City.Department, combo.City.Name

	for _, loc := range resultAnchor.FindAllStringSubmatchIndex(html, -1) {
		name := decodeMarkup(strings.TrimSpace(html[loc[2]:loc[3]]))
		if len(name) < 2 {
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		if searchChrome.MatchString(name) {
			continue
		}
		end := loc[0] + 1500
		if end > len(html) {
			end = len(html)
		}
		window := html[loc[0]:end]

		l := Listing{
			ID: listingID(trade, dept, name), Name: name,
			Trade: trade, Department: dept, City: city,
		}
		if m := phonePattern.FindStringSubmatch(window); m != nil {
			if p, ok := normalize.Phone(m[1]); ok {
				l.Phone = p
			}
		}
		if m := searchRating.FindStringSubmatch(window); m != nil {
			if rating, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
				l.Rating = rating
			}
		}
		if m := reviewParens.FindStringSubmatch(window); m != nil {
			c := strings.NewReplacer(" ", "", ".", "", ",", "").Replace(m[1])
			if digitsOnly.MatchString(c) {
				l.ReviewCount, _ = strconv.Atoi(c)
			}
		}
		for _, link := range httpsLink.FindAllStringSubmatch(window, -1) {
			if strings.HasPrefix(link[1], "https://www.google") || strings.HasPrefix(link[1], "http://www.google") {
				continue
			}
			if site, ok := normalize.Website(link[1]); ok {
				l.Website = site
			}
			break
		}

		seen[lower] = struct{}{}
		listings = append(listings, l)
	}

	return listings
}
