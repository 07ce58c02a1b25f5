package favorites

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/internal/models"
	"github.com/bbernstein/gotgas/backend-go/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBlob counts writes, versions each write and can fail on demand
type mockBlob struct {
	readFunc    func(ctx context.Context) ([]byte, error)
	writeFunc   func(ctx context.Context, data []byte) error
	beforeWrite func()
	data        []byte
	version     int
	writes      int
}

func (m *mockBlob) Read(ctx context.Context) ([]byte, string, error) {
	if m.readFunc != nil {
		data, err := m.readFunc(ctx)
		return data, m.currentVersion(), err
	}
	return m.data, m.currentVersion(), nil
}

func (m *mockBlob) Write(ctx context.Context, data []byte, version string) error {
	m.writes++
	if hook := m.beforeWrite; hook != nil {
		m.beforeWrite = nil
		hook()
	}
	if m.writeFunc != nil {
		return m.writeFunc(ctx, data)
	}
	if version != m.currentVersion() {
		return storage.ErrConflict
	}
	m.data = data
	m.version++
	return nil
}

func (m *mockBlob) currentVersion() string {
	if m.version == 0 {
		return ""
	}
	return strconv.Itoa(m.version)
}

// gatedBlob holds the first n reads until all of them have happened, so n
// writers start from the same snapshot
type gatedBlob struct {
	Blob
	reads atomic.Int32
	n     int32
	gate  sync.WaitGroup
}

func newGatedBlob(inner Blob, n int) *gatedBlob {
	g := &gatedBlob{Blob: inner, n: int32(n)}
	g.gate.Add(n)
	return g
}

func (g *gatedBlob) Read(ctx context.Context) ([]byte, string, error) {
	data, version, err := g.Blob.Read(ctx)
	if g.reads.Add(1) <= g.n {
		g.gate.Done()
		g.gate.Wait()
	}
	return data, version, err
}

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestStore(blob Blob) (*Store, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(testTime)
	return NewStore(blob, WithClock(clock)), clock
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		blob     *mockBlob
		expected []models.FavoriteStation
	}{
		{
			name:     "absent slot",
			blob:     &mockBlob{},
			expected: []models.FavoriteStation{},
		},
		{
			name:     "unreadable slot",
			blob:     &mockBlob{readFunc: func(context.Context) ([]byte, error) { return nil, errors.New("disk on fire") }},
			expected: []models.FavoriteStation{},
		},
		{
			name:     "malformed json",
			blob:     &mockBlob{data: []byte(`{"not":"a list"`)},
			expected: []models.FavoriteStation{},
		},
		{
			name:     "json object instead of list",
			blob:     &mockBlob{data: []byte(`{"id":"osm-node-1"}`)},
			expected: []models.FavoriteStation{},
		},
		{
			name:     "json null",
			blob:     &mockBlob{data: []byte(`null`)},
			expected: []models.FavoriteStation{},
		},
		{
			name: "valid list keeps order",
			blob: &mockBlob{data: []byte(`[{"id":"b","name":"Second","createdAt":2},{"id":"a","name":"First","address":"1 Main St, Charlotte","createdAt":1}]`)},
			expected: []models.FavoriteStation{
				{ID: "b", Name: "Second", CreatedAt: 2},
				{ID: "a", Name: "First", Address: "1 Main St, Charlotte", CreatedAt: 1},
			},
		},
		{
			name: "stored names are normalized",
			blob: &mockBlob{data: []byte(`[{"id":"a","name":"  Padded  ","createdAt":1},{"id":"b","name":"` + strings.Repeat("n", 50) + `","createdAt":2},{"id":"c","name":"   ","createdAt":3}]`)},
			expected: []models.FavoriteStation{
				{ID: "a", Name: "Padded", CreatedAt: 1},
				{ID: "b", Name: strings.Repeat("n", MaxNameLength), CreatedAt: 2},
			},
		},
		{
			name: "entries without id are skipped",
			blob: &mockBlob{data: []byte(`[{"name":"Orphan","createdAt":2},{"id":"a","name":"Kept","createdAt":1}]`)},
			expected: []models.FavoriteStation{
				{ID: "a", Name: "Kept", CreatedAt: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(tt.blob)
			assert.Equal(t, tt.expected, store.Load(context.Background()))
		})
	}
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	blob := &mockBlob{}
	store, clock := newTestStore(blob)

	favs, err := store.Add(ctx, models.FavoriteCandidate{ID: "s1", Name: "  Shell on Tryon  ", Address: "123 Tryon St, Charlotte, NC"})
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, models.FavoriteStation{
		ID:        "s1",
		Name:      "Shell on Tryon",
		Address:   "123 Tryon St, Charlotte, NC",
		CreatedAt: testTime.UnixMilli(),
	}, favs[0])

	clock.Advance(time.Minute)
	favs, err = store.Add(ctx, models.FavoriteCandidate{ID: "s2", Name: "Costco"})
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "s2", favs[0].ID, "newest favorite comes first")
	assert.Equal(t, testTime.Add(time.Minute).UnixMilli(), favs[0].CreatedAt)
	assert.Equal(t, "s1", favs[1].ID)

	assert.Equal(t, favs, store.Load(ctx), "list is persisted")
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	blob := &mockBlob{}
	store, clock := newTestStore(blob)

	first, err := store.Add(ctx, models.FavoriteCandidate{ID: "s1", Name: "Original"})
	require.NoError(t, err)
	_, err = store.Add(ctx, models.FavoriteCandidate{ID: "s2", Name: "Other"})
	require.NoError(t, err)
	writes := blob.writes

	clock.Advance(time.Hour)
	again, err := store.Add(ctx, models.FavoriteCandidate{ID: "s1", Name: "Renamed by accident"})
	require.NoError(t, err)

	require.Len(t, again, 2)
	assert.Equal(t, "s2", again[0].ID, "no reorder")
	assert.Equal(t, "Original", again[1].Name, "first-seen name kept")
	assert.Equal(t, first[0].CreatedAt, again[1].CreatedAt, "timestamp not refreshed")
	assert.Equal(t, writes, blob.writes, "nothing written")
}

func TestAddNameHandling(t *testing.T) {
	ctx := context.Background()

	t.Run("blank name is refused", func(t *testing.T) {
		store, _ := newTestStore(&mockBlob{})
		favs, err := store.Add(ctx, models.FavoriteCandidate{ID: "s1", Name: "   "})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyName)
		assert.Empty(t, favs)
	})

	t.Run("long name is shortened", func(t *testing.T) {
		store, _ := newTestStore(&mockBlob{})
		favs, err := store.Add(ctx, models.FavoriteCandidate{ID: "s1", Name: strings.Repeat("x", 55)})
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("x", MaxNameLength), favs[0].Name)
	})

	t.Run("missing id is refused", func(t *testing.T) {
		store, _ := newTestStore(&mockBlob{})
		_, err := store.Add(ctx, models.FavoriteCandidate{Name: "Nowhere"})
		assert.ErrorIs(t, err, ErrMissingID)
	})
}

func TestAddWriteFailureKeepsPriorList(t *testing.T) {
	blob := &mockBlob{
		data:      []byte(`[{"id":"a","name":"Kept","createdAt":1}]`),
		writeFunc: func(context.Context, []byte) error { return errors.New("quota exceeded") },
	}
	store, _ := newTestStore(blob)

	favs, err := store.Add(context.Background(), models.FavoriteCandidate{ID: "b", Name: "New"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing favorites")
	assert.Equal(t, []models.FavoriteStation{{ID: "a", Name: "Kept", CreatedAt: 1}}, favs)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	blob := &mockBlob{data: []byte(`[{"id":"a","name":"A","createdAt":1},{"id":"b","name":"B","createdAt":2}]`)}
	store, _ := newTestStore(blob)

	favs, err := store.Remove(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []models.FavoriteStation{{ID: "b", Name: "B", CreatedAt: 2}}, favs)

	writes := blob.writes
	favs, err = store.Remove(ctx, "missing")
	require.NoError(t, err)
	assert.Len(t, favs, 1)
	assert.Equal(t, writes+1, blob.writes, "unknown id still re-saves")

	favs, err = store.Remove(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, favs)
	assert.JSONEq(t, `[]`, string(blob.data))
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	seed := `[{"id":"a","name":"Old","address":"1 Main St, Charlotte","createdAt":11},{"id":"b","name":"B","createdAt":22}]`

	tests := []struct {
		name         string
		rawName      string
		expectedName string
		expectWrite  bool
	}{
		{name: "trims and saves", rawName: "  Work  ", expectedName: "Work", expectWrite: true},
		{name: "exactly 40 characters", rawName: strings.Repeat("a", 40), expectedName: strings.Repeat("a", 40), expectWrite: true},
		{name: "40 multibyte characters", rawName: strings.Repeat("é", 40), expectedName: strings.Repeat("é", 40), expectWrite: true},
		{name: "41 characters refused", rawName: strings.Repeat("a", 41), expectedName: "Old"},
		{name: "empty refused", rawName: "", expectedName: "Old"},
		{name: "whitespace refused", rawName: " \t\n ", expectedName: "Old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := &mockBlob{data: []byte(seed)}
			store, _ := newTestStore(blob)

			favs, err := store.Rename(ctx, "a", tt.rawName)
			require.NoError(t, err)
			require.Len(t, favs, 2)
			assert.Equal(t, tt.expectedName, favs[0].Name)
			assert.Equal(t, "1 Main St, Charlotte", favs[0].Address)
			assert.Equal(t, int64(11), favs[0].CreatedAt)
			assert.Equal(t, "B", favs[1].Name)

			if tt.expectWrite {
				assert.Equal(t, 1, blob.writes)
			} else {
				assert.Equal(t, 0, blob.writes)
			}
			assert.Equal(t, tt.expectedName, store.Load(ctx)[0].Name)
		})
	}
}

func TestIDs(t *testing.T) {
	store, _ := newTestStore(&mockBlob{data: []byte(`[{"id":"a","name":"A","createdAt":1},{"id":"b","name":"B","createdAt":2}]`)})

	ids := store.IDs(context.Background())
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "b")
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryBlob(nil))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Add(ctx, models.FavoriteCandidate{ID: string(rune('a' + i)), Name: "Station"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Load(ctx), 25, "no lost updates")
}

func TestStoreRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetricsForTesting()
	store := NewStore(storage.NewMemoryBlob(nil), WithMetrics(m))

	_, _ = store.Add(ctx, models.FavoriteCandidate{ID: "a", Name: "A"})
	_, _ = store.Add(ctx, models.FavoriteCandidate{ID: "a", Name: "A"})
	_, _ = store.Rename(ctx, "a", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesMutations.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesMutations.WithLabelValues("add", "unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesMutations.WithLabelValues("rename", "rejected")))
}

func TestMutationsNeverWriteAfterFailedRead(t *testing.T) {
	ctx := context.Background()
	seed := []byte(`[{"id":"a","name":"A","createdAt":1},{"id":"b","name":"B","createdAt":2}]`)

	tests := []struct {
		name   string
		mutate func(*Store) ([]models.FavoriteStation, error)
	}{
		{name: "add", mutate: func(s *Store) ([]models.FavoriteStation, error) {
			return s.Add(ctx, models.FavoriteCandidate{ID: "c", Name: "C"})
		}},
		{name: "remove", mutate: func(s *Store) ([]models.FavoriteStation, error) {
			return s.Remove(ctx, "a")
		}},
		{name: "rename", mutate: func(s *Store) ([]models.FavoriteStation, error) {
			return s.Rename(ctx, "a", "Home")
		}},
		{name: "save", mutate: func(s *Store) ([]models.FavoriteStation, error) {
			return nil, s.Save(ctx, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := 1
			blob := &mockBlob{data: seed}
			blob.readFunc = func(context.Context) ([]byte, error) {
				if failures > 0 {
					failures--
					return nil, errors.New("s3: 503 SlowDown")
				}
				return blob.data, nil
			}
			store, _ := newTestStore(blob)

			_, err := tt.mutate(store)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "reading favorites")
			assert.Equal(t, 0, blob.writes)
			assert.Len(t, store.Load(ctx), 2, "stored list survives")
		})
	}
}

func TestAddReplaysAfterConflictingWrite(t *testing.T) {
	ctx := context.Background()
	blob := &mockBlob{data: []byte(`[{"id":"a","name":"A","createdAt":1}]`)}
	first, clock := newTestStore(blob)
	second := NewStore(blob, WithClock(clock))

	// another process saves between this store's read and write
	blob.beforeWrite = func() {
		_, err := second.Add(ctx, models.FavoriteCandidate{ID: "c", Name: "Other device"})
		require.NoError(t, err)
	}

	favs, err := first.Add(ctx, models.FavoriteCandidate{ID: "b", Name: "This device"})
	require.NoError(t, err)

	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, favs, second.Load(ctx), "both adds persisted")
}

func TestAddGivesUpAfterRepeatedConflicts(t *testing.T) {
	m := metrics.NewMetricsForTesting()
	blob := &mockBlob{
		writeFunc: func(context.Context, []byte) error { return storage.ErrConflict },
	}
	store := NewStore(blob, WithMetrics(m))

	favs, err := store.Add(context.Background(), models.FavoriteCandidate{ID: "a", Name: "A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Empty(t, favs)
	assert.Equal(t, MaxWriteAttempts, blob.writes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FavoritesMutations.WithLabelValues("add", "conflict")))
}

func TestStoresSharingOneSlotKeepEveryAdd(t *testing.T) {
	ctx := context.Background()
	blob := newGatedBlob(storage.NewMemoryBlob(nil), 2)
	stores := []*Store{NewStore(blob), NewStore(blob)}

	var wg sync.WaitGroup
	for i, store := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Add(ctx, models.FavoriteCandidate{ID: "osm-node-" + strconv.Itoa(i+1), Name: "Station"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids := stores[0].IDs(ctx)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "osm-node-1")
	assert.Contains(t, ids, "osm-node-2")
}
