// Package normalize converts raw extracted text into canonical phone
// numbers, comparison names, and website URLs. All functions are total:
// unusable input yields an empty result, never an error.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonPhoneRunes = regexp.MustCompile(`[^\d+]`)
	localPhone    = regexp.MustCompile(`^0[1-9]\d{8}$`)

	// Company forms, honorifics and filler tokens stripped before
	// name comparison. Whole-word only.
	legalTokens = regexp.MustCompile(`(?i)\b(sarl|sas|sa|eurl|sasu|eirl|ei|sci|snc|scop|scp|selarl|auto[- ]?entrepreneur|micro[- ]?entreprise|ets|etablissements?|entreprise|societe|ste|monsieur|madame|m\.|mme|mr|dr)\b`)

	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	nonNameRunes  = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRuns     = regexp.MustCompile(`\s+`)

	lastParenGroup = regexp.MustCompile(`\(([^)]+)\)`)

	// Hosts that are never a business's own site: the source itself,
	// social platforms, and competing directories.
	excludedHosts = []string{
		"google.com", "google.fr", "facebook.com", "instagram.com",
		"twitter.com", "linkedin.com", "x.com", "pagesjaunes.fr",
	}

	diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Phone canonicalizes a French phone number to its 10-digit local form.
// International prefixes (+33, 0033) are rewritten to the leading-zero
// form. Premium-rate and non-geographic prefixes are rejected.
func Phone(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	c := nonPhoneRunes.ReplaceAllString(raw, "")
	if strings.HasPrefix(c, "+33") {
		c = "0" + c[3:]
	}
	if strings.HasPrefix(c, "0033") {
		c = "0" + c[4:]
	}
	if !localPhone.MatchString(c) {
		return "", false
	}
	if strings.HasPrefix(c, "089") || strings.HasPrefix(c, "036") {
		return "", false
	}
	return c, true
}

// Name builds the canonical comparison form of a business name:
// lowercased, diacritics stripped, legal-entity and honorific tokens
// removed, parentheticals and punctuation dropped, whitespace collapsed.
// Never used for display.
func Name(raw string) string {
	s := strings.ToLower(raw)
	if out, _, err := transform.String(diacriticStripper, s); err == nil {
		s = out
	}
	s = legalTokens.ReplaceAllString(s, "")
	s = parenthetical.ReplaceAllString(s, "")
	s = nonNameRunes.ReplaceAllString(s, " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Alias returns the content of the last parenthetical group in a raw
// name, or "". Registry records encode a trading-as name that way.
func Alias(raw string) string {
	groups := lastParenGroup.FindAllStringSubmatch(raw, -1)
	if len(groups) == 0 {
		return ""
	}
	return strings.TrimSpace(groups[len(groups)-1][1])
}

// Website canonicalizes a website URL, prepending https:// when the
// scheme is missing and rejecting platform/social hosts.
func Website(raw string) (string, bool) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", false
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Hostname() == "" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, excluded := range excludedHosts {
		if strings.Contains(host, excluded) {
			return "", false
		}
	}
	return parsed.String(), true
}
