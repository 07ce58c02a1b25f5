// Package favorites persists the user's shortlist of named stations as one
// JSON-encoded, most-recent-first list in a single storage slot.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/internal/models"
	"github.com/bbernstein/gotgas/backend-go/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// MaxWriteAttempts bounds the load-modify-save retries after a write conflict
const MaxWriteAttempts = 5

// Blob is the persisted slot. Read returns nil data and an empty version when
// nothing was stored yet. Write replaces the slot only while it is still at
// version and returns an error wrapping storage.ErrConflict otherwise.
type Blob interface {
	Read(ctx context.Context) (data []byte, version string, err error)
	Write(ctx context.Context, data []byte, version string) error
}

// Store serializes its own mutations with mu. Writers in other processes are
// detected through the blob version, and the losing mutation is replayed on
// the fresh list.
type Store struct {
	blob    Blob
	clock   clockwork.Clock
	metrics *metrics.Metrics
	mu      sync.Mutex
}

var _ models.FavoriteIndex = (*Store)(nil)

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func NewStore(blob Blob, opts ...Option) *Store {
	s := &Store{
		blob:  blob,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored favorites. Missing, unreadable or malformed data
// yields an empty list.
func (s *Store) Load(ctx context.Context) []models.FavoriteStation {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs, _, err := s.load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Reading favorites failed, using empty list")
		return []models.FavoriteStation{}
	}
	return favs
}

// Save overwrites the slot with favs in one write
func (s *Store) Save(ctx context.Context, favs []models.FavoriteStation) error {
	_, err := s.update(ctx, "save", func([]models.FavoriteStation) ([]models.FavoriteStation, string, error) {
		return favs, "", nil
	})
	return err
}

// Add prepends a new favorite. An ID that is already saved leaves the list
// untouched: no duplicate, no reorder, no timestamp refresh.
func (s *Store) Add(ctx context.Context, candidate models.FavoriteCandidate) ([]models.FavoriteStation, error) {
	return s.update(ctx, "add", func(favs []models.FavoriteStation) ([]models.FavoriteStation, string, error) {
		for _, f := range favs {
			if f.ID == candidate.ID {
				return favs, "unchanged", nil
			}
		}

		if candidate.ID == "" {
			return favs, "", ErrMissingID
		}
		// over-long station names are shortened rather than refused
		name := truncateName(NormalizeName(candidate.Name))
		if err := ValidateName(name); err != nil {
			return favs, "", err
		}

		updated := make([]models.FavoriteStation, 0, len(favs)+1)
		updated = append(updated, models.FavoriteStation{
			ID:        candidate.ID,
			Name:      name,
			Address:   candidate.Address,
			CreatedAt: s.clock.Now().UnixMilli(),
		})
		return append(updated, favs...), "", nil
	})
}

// Remove drops the favorite with the given ID. Unknown IDs still re-save the
// unchanged list.
func (s *Store) Remove(ctx context.Context, id string) ([]models.FavoriteStation, error) {
	return s.update(ctx, "remove", func(favs []models.FavoriteStation) ([]models.FavoriteStation, string, error) {
		updated := make([]models.FavoriteStation, 0, len(favs))
		for _, f := range favs {
			if f.ID != id {
				updated = append(updated, f)
			}
		}
		return updated, "", nil
	})
}

// Rename replaces only the name of the matching favorite. An invalid name
// returns the list unchanged without saying why; callers run ValidateName to
// surface the reason.
func (s *Store) Rename(ctx context.Context, id, rawName string) ([]models.FavoriteStation, error) {
	name := NormalizeName(rawName)
	return s.update(ctx, "rename", func(favs []models.FavoriteStation) ([]models.FavoriteStation, string, error) {
		if !IsValidName(name) {
			return favs, "rejected", nil
		}

		updated := make([]models.FavoriteStation, len(favs))
		copy(updated, favs)
		for i := range updated {
			if updated[i].ID == id {
				updated[i].Name = name
			}
		}
		return updated, "", nil
	})
}

// IDs returns a point-in-time set of saved station IDs
func (s *Store) IDs(ctx context.Context) map[string]struct{} {
	favs := s.Load(ctx)
	ids := make(map[string]struct{}, len(favs))
	for _, f := range favs {
		ids[f.ID] = struct{}{}
	}
	return ids
}

// mutation computes the next list from the current one. A non-empty skip
// outcome returns the list without writing it.
type mutation func(favs []models.FavoriteStation) (updated []models.FavoriteStation, skip string, err error)

// update runs one load-modify-save cycle, replaying it on a fresh read when
// the slot changed underneath. A failed read never leads to a write.
func (s *Store) update(ctx context.Context, op string, change mutation) ([]models.FavoriteStation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		favs, version, err := s.load(ctx)
		if err != nil {
			s.observe(op, "error")
			return nil, err
		}

		updated, skip, err := change(favs)
		if err != nil {
			s.observe(op, "rejected")
			return favs, err
		}
		if skip != "" {
			s.observe(op, skip)
			return updated, nil
		}

		err = s.save(ctx, updated, version)
		switch {
		case err == nil:
			s.observe(op, "success")
			if updated == nil {
				updated = []models.FavoriteStation{}
			}
			return updated, nil
		case errors.Is(err, storage.ErrConflict) && attempt < MaxWriteAttempts:
			log.Debug().Str("op", op).Int("attempt", attempt).Msg("Favorites changed concurrently, retrying")
		case errors.Is(err, storage.ErrConflict):
			s.observe(op, "conflict")
			return favs, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		default:
			s.observe(op, "error")
			return favs, err
		}
	}
}

// load reads the slot. Absent or malformed data is an empty list; a failed
// read is returned so that nothing gets written over data that was never seen.
func (s *Store) load(ctx context.Context) ([]models.FavoriteStation, string, error) {
	data, version, err := s.blob.Read(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("reading favorites: %w", err)
	}
	if len(data) == 0 {
		return []models.FavoriteStation{}, version, nil
	}

	var raw []models.FavoriteStation
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Msg("Malformed favorites data, using empty list")
		return []models.FavoriteStation{}, version, nil
	}

	favs := make([]models.FavoriteStation, 0, len(raw))
	for _, f := range raw {
		f.Name = truncateName(NormalizeName(f.Name))
		if err := f.Validate(); err != nil {
			log.Debug().Err(err).Str("id", f.ID).Msg("Skipping invalid favorite")
			continue
		}
		favs = append(favs, f)
	}
	return favs, version, nil
}

func (s *Store) save(ctx context.Context, favs []models.FavoriteStation, version string) error {
	if favs == nil {
		favs = []models.FavoriteStation{}
	}
	data, err := json.Marshal(favs)
	if err != nil {
		return fmt.Errorf("encoding favorites: %w", err)
	}
	if err := s.blob.Write(ctx, data, version); err != nil {
		return fmt.Errorf("writing favorites: %w", err)
	}
	return nil
}

func (s *Store) observe(op, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.FavoritesMutations.WithLabelValues(op, outcome).Inc()
}
