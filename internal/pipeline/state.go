// Package pipeline orchestrates combo processing: shared run state, the
// per-combo processor, and the progressively scaled worker pool.
package pipeline

import (
	"sync"
	"time"

	"github.com/quartierlabs/prospector/internal/checkpoint"
	"github.com/quartierlabs/prospector/internal/metrics"
)

// RunState is the single shared mutable state of a run: aggregate
// counters, the two dedup sets, and the completed-combo set. All
// methods are safe for concurrent use. Durable state lives only in the
// registry and the checkpoint; RunState is discarded at exit.
type RunState struct {
	mu sync.Mutex

	counters  checkpoint.Counters
	completed map[string]struct{}

	// knownPhones holds every normalized phone already in the registry
	// or assigned during this run; a phone enters at most once.
	knownPhones map[string]struct{}
	// assignedProviders holds provider ids enriched during this run;
	// an id enters at most once.
	assignedProviders map[string]struct{}

	activeWorkers int
	startedAt     time.Time
}

// NewRunState builds an empty RunState.
func NewRunState() *RunState {
	return &RunState{
		completed:         make(map[string]struct{}),
		knownPhones:       make(map[string]struct{}),
		assignedProviders: make(map[string]struct{}),
		startedAt:         time.Now(),
	}
}

// Restore merges checkpointed counters and completed keys into the
// state before the queue is built.
func (s *RunState) Restore(cp checkpoint.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = cp.Counters
	for _, key := range cp.CompletedKeys {
		s.completed[key] = struct{}{}
	}
}

// SeedPhones preloads the known-phone set from the registry.
func (s *RunState) SeedPhones(phones []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range phones {
		s.knownPhones[p] = struct{}{}
	}
}

// KnownPhone reports whether the phone is already known to the run.
func (s *RunState) KnownPhone(phone string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.knownPhones[phone]
	return ok
}

// AddPhone records a phone as known. Idempotent.
func (s *RunState) AddPhone(phone string) {
	if phone == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownPhones[phone] = struct{}{}
}

// TryAssign marks a provider as enriched for this run. It returns false
// when the provider was already assigned, enforcing the at-most-once
// invariant.
func (s *RunState) TryAssign(providerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.assignedProviders[providerID]; taken {
		return false
	}
	s.assignedProviders[providerID] = struct{}{}
	return true
}

// Assigned reports whether the provider was already enriched this run.
func (s *RunState) Assigned(providerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.assignedProviders[providerID]
	return ok
}

// MarkCompleted records a combo key as done.
func (s *RunState) MarkCompleted(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[key] = struct{}{}
	s.counters.CombosProcessed++
}

// CompletedKeys returns a copy of the completed-combo set.
func (s *RunState) CompletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.completed))
	for key := range s.completed {
		keys = append(keys, key)
	}
	return keys
}

// CompletedSet returns the completed keys as a set for queue building.
func (s *RunState) CompletedSet() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(s.completed))
	for key := range s.completed {
		set[key] = struct{}{}
	}
	return set
}

// AddCredits implements fetch.Meter.
func (s *RunState) AddCredits(n int) {
	s.mu.Lock()
	s.counters.CreditsUsed += n
	s.mu.Unlock()
	metrics.AddCredits(n)
}

// AddFetchError implements fetch.Meter.
func (s *RunState) AddFetchError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Errors++
}

// AddError counts a non-fetch failure (update write, combo panic).
func (s *RunState) AddError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Errors++
}

// AddListings counts extracted, retained listings.
func (s *RunState) AddListings(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.ListingsFound += n
}

// AddPhoneEnriched counts one staged phone update.
func (s *RunState) AddPhoneEnriched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.PhonesAdded++
}

// AddRatingEnriched counts one staged rating update.
func (s *RunState) AddRatingEnriched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.RatingsAdded++
}

// AddWebsiteEnriched counts one staged website update.
func (s *RunState) AddWebsiteEnriched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.WebsitesAdded++
}

// AddDuplicateSkipped counts a listing whose phone was already known.
func (s *RunState) AddDuplicateSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.DuplicatesSkipped++
}

// SetActiveWorkers records the current worker population.
func (s *RunState) SetActiveWorkers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeWorkers = n
}

// ErrorRateExceeds reports whether errors exceed ratio of processed
// combos. With nothing processed yet the rate is zero.
func (s *RunState) ErrorRateExceeds(ratio float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.counters.Errors) > float64(s.counters.CombosProcessed)*ratio
}

// Snapshot captures the current counters plus liveness fields.
type Snapshot struct {
	Counters      checkpoint.Counters `json:"counters"`
	CompletedKeys int                 `json:"completedCombos"`
	ActiveWorkers int                 `json:"activeWorkers"`
	Elapsed       string              `json:"elapsed"`
}

// Snapshot returns a consistent copy of the run's observable state.
func (s *RunState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Counters:      s.counters,
		CompletedKeys: len(s.completed),
		ActiveWorkers: s.activeWorkers,
		Elapsed:       time.Since(s.startedAt).Round(time.Second).String(),
	}
}

// Counters returns a copy of the aggregate counters.
func (s *RunState) Counters() checkpoint.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}
