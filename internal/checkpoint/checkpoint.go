// Package checkpoint persists the completed-combo set and aggregate
// counters so an interrupted run resumes where it stopped.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Counters are the aggregate totals of a run. They travel with the
// checkpoint so a resumed run keeps its history.
type Counters struct {
	CombosProcessed   int `json:"combosProcessed"`
	ListingsFound     int `json:"listingsFound"`
	PhonesAdded       int `json:"phonesAdded"`
	RatingsAdded      int `json:"ratingsAdded"`
	WebsitesAdded     int `json:"websitesAdded"`
	DuplicatesSkipped int `json:"duplicatesSkipped"`
	Errors            int `json:"errors"`
	CreditsUsed       int `json:"creditsUsed"`
}

// Checkpoint is the durable snapshot written to disk: the set of
// completed combo keys plus counters. A key present here is never
// re-enqueued.
type Checkpoint struct {
	CompletedKeys []string `json:"completedKeys"`
	Counters      Counters `json:"counters"`
}

// CompletedSet converts the key list into a set.
func (c Checkpoint) CompletedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.CompletedKeys))
	for _, key := range c.CompletedKeys {
		set[key] = struct{}{}
	}
	return set
}

// Store reads and rewrites the checkpoint file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore builds a Store at path, creating the parent directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the checkpoint. A missing file yields an empty checkpoint,
// not an error.
func (s *Store) Load() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, nil
}

// Save rewrites the whole checkpoint atomically: write to a temp file
// in the same directory, then rename over the target.
func (s *Store) Save(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
