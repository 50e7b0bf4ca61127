package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhone_LocalFormats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"06 12 34 56 78", "0612345678", true},
		{"06.12.34.56.78", "0612345678", true},
		{"+33612345678", "0612345678", true},
		{"0033612345678", "0612345678", true},
		{"0112345678", "0112345678", true},
		{"0012345678", "", false},   // leading 00 is not a valid local prefix
		{"061234567", "", false},    // too short
		{"06123456789", "", false},  // too long
		{"0891234567", "", false},   // premium rate
		{"0361234567", "", false},   // non-geographic
		{"not a phone", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := Phone(tc.raw)
		require.Equal(t, tc.ok, ok, "Phone(%q)", tc.raw)
		require.Equal(t, tc.want, got, "Phone(%q)", tc.raw)
	}
}

func TestPhone_Idempotent(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"06 12 34 56 78", "+33 1 23 45 67 89", "0487654321"} {
		once, ok := Phone(raw)
		require.True(t, ok)
		twice, ok := Phone(once)
		require.True(t, ok)
		require.Equal(t, once, twice)
	}
}

func TestName_StripsLegalFormsAndDiacritics(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dupont plomberie", Name("DUPONT PLOMBERIE SARL"))
	require.Equal(t, "electricite generale", Name("Électricité Générale SAS"))
	require.Equal(t, "durand", Name("Monsieur DURAND (menuiserie)"))
	require.Equal(t, "martin co", Name("Martin & Co."))
	require.Equal(t, "", Name("SARL"))
}

func TestName_CollapsesWhitespace(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", Name("  a   b\tc "))
}

func TestAlias(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Chez Marcel", Alias("SARL MARTIN (Chez Marcel)"))
	require.Equal(t, "B", Alias("X (A) Y (B)"))
	require.Equal(t, "", Alias("No parens here"))
}

func TestWebsite(t *testing.T) {
	t.Parallel()

	got, ok := Website("example.fr/contact")
	require.True(t, ok)
	require.Equal(t, "https://example.fr/contact", got)

	got, ok = Website("http://plomberie-dupont.fr")
	require.True(t, ok)
	require.Equal(t, "http://plomberie-dupont.fr", got)

	for _, raw := range []string{
		"https://www.facebook.com/somebiz",
		"https://google.fr/maps/foo",
		"pagesjaunes.fr/pros/123",
		"",
		"https://",
	} {
		_, ok := Website(raw)
		require.False(t, ok, "Website(%q) should be rejected", raw)
	}
}
