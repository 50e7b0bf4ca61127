// Package match scores extracted listings against registry candidates.
//
// The similarity formula and its constants are a contract shared with
// earlier collection runs; changing them would re-match listings that
// previous runs already reconciled.
package match

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/quartierlabs/prospector/internal/normalize"
)

// Threshold is the minimum similarity score for an accepted match.
const Threshold = 0.35

// genericVocabulary lists trade and business words too common to
// distinguish one candidate from another.
var genericVocabulary = map[string]struct{}{
	"plomberie": {}, "plombier": {}, "chauffage": {}, "chauffagiste": {},
	"electricite": {}, "electricien": {}, "peinture": {}, "peintre": {},
	"menuiserie": {}, "menuisier": {}, "maconnerie": {}, "macon": {},
	"carrelage": {}, "carreleur": {}, "couverture": {}, "couvreur": {},
	"serrurerie": {}, "serrurier": {}, "isolation": {}, "platrier": {},
	"platrerie": {}, "renovation": {}, "batiment": {}, "travaux": {},
	"construction": {}, "entreprise": {}, "artisan": {}, "services": {},
	"service": {}, "general": {}, "generale": {}, "multi": {}, "pro": {},
	"plus": {}, "france": {}, "sud": {}, "nord": {}, "est": {}, "ouest": {},
	"climatisation": {}, "terrassement": {}, "demolition": {},
	"assainissement": {}, "domotique": {}, "ramonage": {}, "etancheite": {},
	"depannage": {}, "paysagiste": {}, "vitrier": {}, "charpentier": {},
	"charpente": {}, "toiture": {}, "facade": {}, "ravalement": {},
	"enduit": {}, "cloture": {}, "amenagement": {}, "interieur": {},
	"exterieur": {}, "habitat": {}, "logement": {}, "maison": {},
	"techni": {}, "technique": {}, "professionnel": {}, "groupe": {},
	"agence": {}, "cabinet": {}, "atelier": {}, "bureau": {},
	"facades": {}, "facadier": {}, "terrassier": {}, "plaquiste": {},
}

// Candidate is a registry entity annotated with its normalized
// comparison names.
type Candidate struct {
	ID          string
	Name        string
	NormFull    string
	NormAlias   string
	Phone       string
	Rating      float64
	ReviewCount int
}

// NewCandidate annotates a raw registry row for matching.
func NewCandidate(id, name, phone string, rating float64, reviews int) Candidate {
	alias := ""
	if a := normalize.Alias(name); a != "" {
		alias = normalize.Name(a)
	}
	return Candidate{
		ID:          id,
		Name:        name,
		NormFull:    normalize.Name(name),
		NormAlias:   alias,
		Phone:       phone,
		Rating:      rating,
		ReviewCount: reviews,
	}
}

// Similarity computes the token-set overlap score of two normalized
// names. Exact token matches count 1, close fuzzy pairs 0.8, and when
// nothing else overlaps, substring containment between long tokens
// counts 0.5 per pair. The result is overlap divided by the size of the
// union of both token sets.
func Similarity(a, b string) float64 {
	tokensA := significantTokens(a)
	tokensB := significantTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var overlap float64
	matched := make(map[string]struct{})
	inB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		inB[t] = struct{}{}
	}

	for _, t := range tokensA {
		if _, ok := inB[t]; ok {
			if _, done := matched[t]; !done {
				overlap++
				matched[t] = struct{}{}
			}
		}
	}

	var unmatchedA []string
	for _, t := range tokensA {
		if _, ok := inB[t]; !ok {
			unmatchedA = append(unmatchedA, t)
		}
	}
	var unmatchedB []string
	for _, t := range tokensB {
		if _, done := matched[t]; !done {
			unmatchedB = append(unmatchedB, t)
		}
	}

	for _, wa := range unmatchedA {
		best, bestIdx := 0.0, -1
		for i, wb := range unmatchedB {
			if _, done := matched[wb]; done {
				continue
			}
			score := fuzzyTokenScore(wa, wb)
			if score > best {
				best, bestIdx = score, i
			}
		}
		if best > 0 && bestIdx >= 0 {
			overlap += best
			matched[unmatchedB[bestIdx]] = struct{}{}
		}
	}

	if overlap == 0 {
		for _, ta := range tokensA {
			for _, tb := range tokensB {
				if ta != tb && len(ta) >= 4 && len(tb) >= 4 &&
					(strings.Contains(tb, ta) || strings.Contains(ta, tb)) {
					overlap += 0.5
				}
			}
		}
	}

	union := make(map[string]struct{}, len(tokensA)+len(tokensB))
	for _, t := range tokensA {
		union[t] = struct{}{}
	}
	for _, t := range tokensB {
		union[t] = struct{}{}
	}
	return overlap / float64(len(union))
}

func significantTokens(s string) []string {
	var out []string
	for _, t := range strings.Fields(s) {
		if len(t) > 1 {
			out = append(out, t)
		}
	}
	return out
}

func fuzzyTokenScore(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) < 3 || len(b) < 3 {
		return 0
	}
	limit := 1
	if max(len(a), len(b)) >= 7 {
		limit = 2
	}
	if levenshtein.ComputeDistance(a, b) <= limit {
		return 0.8
	}
	return 0
}

// Best returns the candidate scoring highest against the listing name,
// or nil when no candidate reaches the threshold. Candidates must
// contain at least one comparison term in their normalized full name or
// alias to be scored at all. Ties keep the first candidate seen.
func Best(listingName string, candidates []Candidate) *Candidate {
	norm := normalize.Name(listingName)
	if len(norm) < 2 {
		return nil
	}

	terms := comparisonTerms(norm)
	var best *Candidate
	var bestScore float64

	for _, term := range terms {
		for i := range candidates {
			c := &candidates[i]
			if !strings.Contains(c.NormFull, term) &&
				(c.NormAlias == "" || !strings.Contains(c.NormAlias, term)) {
				continue
			}
			score := Similarity(norm, c.NormFull)
			if c.NormAlias != "" {
				if aliasScore := Similarity(norm, c.NormAlias); aliasScore > score {
					score = aliasScore
				}
			}
			if score >= Threshold && (best == nil || score > bestScore) {
				best, bestScore = c, score
			}
		}
	}
	return best
}

// comparisonTerms builds the probe terms for a normalized listing name:
// the first two tokens joined, plus every distinctive token of length
// three or more.
func comparisonTerms(norm string) []string {
	tokens := strings.Fields(norm)

	var head []string
	for _, t := range tokens {
		if len(t) >= 2 {
			head = append(head, t)
			if len(head) == 2 {
				break
			}
		}
	}

	var terms []string
	if joined := strings.Join(head, " "); len(joined) >= 2 {
		terms = append(terms, joined)
	}
	for _, t := range tokens {
		if len(t) < 3 {
			continue
		}
		if _, generic := genericVocabulary[t]; generic {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}
