package pipeline

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quartierlabs/prospector/internal/catalog"
	"github.com/quartierlabs/prospector/internal/extract"
	"github.com/quartierlabs/prospector/internal/match"
	"github.com/quartierlabs/prospector/internal/metrics"
	"github.com/quartierlabs/prospector/internal/registry"
)

// Fetcher fetches one URL through the proxy, optionally rendered.
type Fetcher interface {
	Fetch(ctx context.Context, target string, render bool) (string, bool)
}

// AuditSink records retained listings. *audit.Log implements it.
type AuditSink interface {
	Append(listings []extract.Listing) error
}

// Writer applies staged enrichment updates. registry.Store satisfies it.
type Writer interface {
	ApplyUpdate(ctx context.Context, upd registry.Update) error
}

// Result summarizes one processed combo.
type Result struct {
	Listings int
	Phones   int
	Ratings  int
	Websites int
}

// Processor handles one (trade, city) combo end to end: fetch both
// sources, extract, merge, dedup, audit, then reconcile each listing
// against the department's candidate pool.
type Processor struct {
	fetcher   Fetcher
	mapSrc    extract.Strategy
	searchSrc extract.Strategy
	cache     *registry.Cache
	writer    Writer
	auditLog  AuditSink
	state     *RunState
	logger    *zap.Logger

	// interFetchDelay spreads the two fetches of a combo.
	interFetchDelay time.Duration
	sleep           func(time.Duration)
}

// NewProcessor wires a Processor.
func NewProcessor(
	fetcher Fetcher,
	cache *registry.Cache,
	writer Writer,
	auditLog AuditSink,
	state *RunState,
	interFetchDelay time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		fetcher:         fetcher,
		mapSrc:          extract.MapStrategy{},
		searchSrc:       extract.SearchStrategy{},
		cache:           cache,
		writer:          writer,
		auditLog:        auditLog,
		state:           state,
		logger:          logger,
		interFetchDelay: interFetchDelay,
		sleep:           time.Sleep,
	}
}

func mapsURL(c catalog.Combo) string {
	return "https://www.google.com/maps/search/" +
		url.PathEscape(c.Trade.Query+" "+c.City.Name) + "/"
}

func searchURL(c catalog.Combo) string {
	q := url.Values{}
	q.Set("q", c.Trade.Query+" "+c.City.Name+" téléphone")
	q.Set("hl", "fr")
	q.Set("gl", "fr")
	q.Set("num", "20")
	return "https://www.google.fr/search?" + q.Encode()
}

// Process runs one combo. The returned error covers unexpected
// failures (candidate pool load); fetch failures and write failures
// degrade locally and never surface here.
func (p *Processor) Process(ctx context.Context, combo catalog.Combo) (Result, error) {
	var all []extract.Listing

	if html, ok := p.fetcher.Fetch(ctx, mapsURL(combo), true); ok && html != "" {
		all = append(all, p.mapSrc.Extract(html, combo)...)
	}

	p.sleep(p.interFetchDelay)

	if html, ok := p.fetcher.Fetch(ctx, searchURL(combo), false); ok && html != "" {
		seen := make(map[string]struct{}, len(all))
		for _, l := range all {
			seen[strings.ToLower(l.Name)] = struct{}{}
		}
		for _, l := range p.searchSrc.Extract(html, combo) {
			if _, dup := seen[strings.ToLower(l.Name)]; dup {
				continue
			}
			all = append(all, l)
		}
	}

	// Dedup by phone within the combo; first occurrence wins, listings
	// without a phone always survive.
	seenPhones := make(map[string]struct{})
	unique := all[:0]
	for _, l := range all {
		if l.Phone != "" {
			if _, dup := seenPhones[l.Phone]; dup {
				continue
			}
			seenPhones[l.Phone] = struct{}{}
		}
		unique = append(unique, l)
	}

	result := Result{Listings: len(unique)}
	p.state.AddListings(len(unique))
	metrics.ObserveListings(len(unique))

	if err := p.auditLog.Append(unique); err != nil {
		p.logger.Warn("audit append failed", zap.String("combo", combo.Key()), zap.Error(err))
		p.state.AddError()
	}

	candidates, err := p.cache.Get(ctx, combo.City.Department)
	if err != nil {
		return result, err
	}

	updates := p.reconcile(unique, candidates, &result)
	for _, upd := range updates {
		if err := p.writer.ApplyUpdate(ctx, upd); err != nil {
			p.logger.Warn("registry update failed",
				zap.String("provider_id", upd.ProviderID), zap.Error(err))
			p.state.AddError()
		}
	}

	return result, nil
}

// plausibleRating bounds ratings to the source's 1-5 scale.
func plausibleRating(r float64) bool {
	return r >= 1 && r <= 5
}

// reconcile walks the listings and stages at most one update per
// provider, maintaining the run-wide dedup sets.
func (p *Processor) reconcile(
	listings []extract.Listing,
	candidates []match.Candidate,
	result *Result,
) []registry.Update {
	var updates []registry.Update

	for _, listing := range listings {
		if listing.Phone != "" && p.state.KnownPhone(listing.Phone) {
			// Known business: top up rating/website on the provider
			// holding exactly this phone, if any remains unassigned.
			p.state.AddDuplicateSkipped()
			if upd, ok := p.knownPhoneTopUp(listing, candidates); ok {
				updates = append(updates, upd)
				p.countStaged(upd, result)
			}
			continue
		}

		switch {
		case listing.Phone != "":
			pool := make([]match.Candidate, 0, len(candidates))
			for _, c := range candidates {
				if c.Phone == "" && !p.state.Assigned(c.ID) {
					pool = append(pool, c)
				}
			}
			if best := match.Best(listing.Name, pool); best != nil && p.state.TryAssign(best.ID) {
				upd := registry.Update{ProviderID: best.ID, Phone: listing.Phone}
				if plausibleRating(listing.Rating) {
					upd.Rating = listing.Rating
					upd.ReviewCount = listing.ReviewCount
				}
				upd.Website = listing.Website
				updates = append(updates, upd)
				p.state.AddPhone(listing.Phone)
				p.countStaged(upd, result)
			}

		case listing.Rating > 0 || listing.Website != "":
			pool := make([]match.Candidate, 0, len(candidates))
			for _, c := range candidates {
				if !p.state.Assigned(c.ID) {
					pool = append(pool, c)
				}
			}
			if best := match.Best(listing.Name, pool); best != nil {
				upd := registry.Update{ProviderID: best.ID}
				if plausibleRating(listing.Rating) && best.Rating == 0 {
					upd.Rating = listing.Rating
					upd.ReviewCount = listing.ReviewCount
				}
				upd.Website = listing.Website
				if !upd.IsZero() && p.state.TryAssign(best.ID) {
					updates = append(updates, upd)
					p.countStaged(upd, result)
				}
			}
		}

		// Every phone seen enters the known set, matched or not, so
		// later combos never reprocess it.
		p.state.AddPhone(listing.Phone)
	}

	return updates
}

// knownPhoneTopUp stages a rating/website-only update for the provider
// whose phone matches the listing's. Rating only lands when the
// provider has none on file.
func (p *Processor) knownPhoneTopUp(listing extract.Listing, candidates []match.Candidate) (registry.Update, bool) {
	usable := (plausibleRating(listing.Rating) && listing.ReviewCount > 0) || listing.Website != ""
	if !usable {
		return registry.Update{}, false
	}

	for _, c := range candidates {
		if c.Phone != listing.Phone || p.state.Assigned(c.ID) {
			continue
		}
		upd := registry.Update{ProviderID: c.ID}
		if plausibleRating(listing.Rating) && c.Rating == 0 {
			upd.Rating = listing.Rating
			upd.ReviewCount = listing.ReviewCount
		}
		upd.Website = listing.Website
		if upd.IsZero() || !p.state.TryAssign(c.ID) {
			return registry.Update{}, false
		}
		return upd, true
	}
	return registry.Update{}, false
}

// countStaged bumps result and run counters for one staged update.
func (p *Processor) countStaged(upd registry.Update, result *Result) {
	if upd.Phone != "" {
		result.Phones++
		p.state.AddPhoneEnriched()
		metrics.ObserveUpdate("phone")
	}
	if upd.Rating > 0 {
		result.Ratings++
		p.state.AddRatingEnriched()
		metrics.ObserveUpdate("rating")
	}
	if upd.Website != "" {
		result.Websites++
		p.state.AddWebsiteEnriched()
		metrics.ObserveUpdate("website")
	}
}
