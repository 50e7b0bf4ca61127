package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimilarity_IdenticalNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, Similarity("dupont plomberie", "dupont plomberie"))
	require.Equal(t, 1.0, Similarity("plomberie dupont", "dupont plomberie"))
}

func TestSimilarity_Disjoint(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, Similarity("dupont", "martin"))
	require.Equal(t, 0.0, Similarity("", "martin"))
}

func TestSimilarity_FuzzyPairing(t *testing.T) {
	t.Parallel()

	// One edit apart, short tokens: 0.8 / union of 2.
	require.InDelta(t, 0.4, Similarity("dupond", "dupont"), 1e-9)

	// Long tokens allow distance 2.
	require.InDelta(t, 0.4, Similarity("martinez", "martines"), 1e-9)
	require.InDelta(t, 0.4, Similarity("martinezz", "martiness"), 1e-9)

	// Distance 2 on short tokens does not pair.
	require.Equal(t, 0.0, Similarity("abcde", "abxdy"))
}

func TestSimilarity_SubstringFallback(t *testing.T) {
	t.Parallel()

	// No exact or fuzzy overlap, but containment between long tokens.
	score := Similarity("batimat", "batimatpro")
	require.InDelta(t, 0.25, score, 1e-9)
}

// boundaryPair builds a listing/candidate name pair whose score is
// exactly 7/20 = 0.35: seven shared tokens, six resp. seven unique
// tokens with nothing fuzzy or containing between them.
func boundaryPair() (string, string) {
	shared := "al be ce de ef gh ij"
	listing := shared + " qqqq wwww qqww wwqq qwqw wqwq"
	candidate := shared + " zzzz xxxx zzxx xxzz zxzx xzxz zxxz"
	return listing, candidate
}

func TestSimilarity_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	listing, candidate := boundaryPair()
	require.Equal(t, 0.35, Similarity(listing, candidate))
}

func TestBest_AcceptsExactlyAtThreshold(t *testing.T) {
	t.Parallel()

	listing, candidateName := boundaryPair()
	got := Best(listing, []Candidate{NewCandidate("c1", candidateName, "", 0, 0)})
	require.NotNil(t, got)
	require.Equal(t, "c1", got.ID)
}

func TestBest_RejectsBelowThreshold(t *testing.T) {
	t.Parallel()

	listing, candidateName := boundaryPair()
	// Demote one shared token to unique: 6/21 ≈ 0.29 < threshold.
	candidateName = strings.Replace(candidateName, " ij ", " kl ", 1)
	got := Best(listing, []Candidate{NewCandidate("c1", candidateName, "", 0, 0)})
	require.Nil(t, got)
}

func TestBest_LegalSuffixStripping(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		NewCandidate("other", "MARTIN COUVERTURE SAS", "", 0, 0),
		NewCandidate("dupont", "DUPONT PLOMBERIE SARL", "", 0, 0),
	}
	got := Best("Plomberie Dupont", candidates)
	require.NotNil(t, got)
	require.Equal(t, "dupont", got.ID)
}

func TestBest_UsesAlias(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		NewCandidate("c1", "SARL BTRX HOLDING (Chez Marcel)", "", 0, 0),
	}
	got := Best("Chez Marcel", candidates)
	require.NotNil(t, got)
	require.Equal(t, "c1", got.ID)
}

func TestBest_TieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		NewCandidate("first", "Dupont Toiture", "", 0, 0),
		NewCandidate("second", "Dupont Toiture", "", 0, 0),
	}
	got := Best("Dupont Toiture", candidates)
	require.NotNil(t, got)
	require.Equal(t, "first", got.ID)
}

func TestBest_GenericOnlyNameHasNoTerms(t *testing.T) {
	t.Parallel()

	// "plomberie generale" is all generic vocabulary; the only probe
	// term is the joined head, which this candidate does not contain.
	got := Best("Plomberie Générale", []Candidate{
		NewCandidate("c1", "Martin Dubois", "", 0, 0),
	})
	require.Nil(t, got)
}

func TestNewCandidate_Annotations(t *testing.T) {
	t.Parallel()

	c := NewCandidate("id1", "SARL MARTIN (Chez Marcel)", "0612345678", 4.2, 10)
	require.Equal(t, "martin", c.NormFull)
	require.Equal(t, "chez marcel", c.NormAlias)
	require.Equal(t, "0612345678", c.Phone)
}
