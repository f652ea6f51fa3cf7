package timesync

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memClock struct {
	now  time.Time
	sets []time.Time
}

func (c *memClock) Now() time.Time { return c.now }
func (c *memClock) Set(t time.Time) {
	c.now = t
	c.sets = append(c.sets, t)
}

type memBlob struct {
	data     []byte
	writeErr error
	writes   int
}

func (b *memBlob) Read() ([]byte, error) {
	if b.data == nil {
		return nil, errors.New("no record")
	}
	return b.data, nil
}

func (b *memBlob) Write(p []byte) error {
	b.writes++
	if b.writeErr != nil {
		return b.writeErr
	}
	b.data = append([]byte(nil), p...)
	return nil
}

func TestValidateWindow(t *testing.T) {
	store := &Store{Clock: &memClock{}}
	testCases := []struct {
		name   string
		in     time.Time
		expect bool
	}{
		{"lower bound", sanityFloor, true},
		{"mid window", time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC), true},
		{"just below floor", sanityFloor.Add(-time.Second), false},
		{"upper bound", sanityCeil, false},
		{"zero", time.Time{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, store.Validate(tc.in))
		})
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	blob := &memBlob{}
	store := &Store{Clock: &memClock{}, Blob: blob}
	at := time.Date(2026, time.August, 24, 7, 28, 0, 0, time.UTC)

	store.Persist(at)
	require.Equal(t, 1, blob.writes)
	require.Len(t, blob.data, recordSize)

	got, ok := store.LoadAtBoot()
	require.True(t, ok)
	require.True(t, got.Equal(at), "got %s, expect %s", got, at)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastsync")
	store := &Store{Clock: &memClock{}, Blob: &FileStore{Path: path}}
	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	store.Persist(at)
	got, ok := store.LoadAtBoot()
	require.True(t, ok)
	require.True(t, got.Equal(at))
}

func TestPersistFailureIsAbsorbed(t *testing.T) {
	blob := &memBlob{writeErr: errors.New("flash write failed")}
	clock := &memClock{}
	store := &Store{Clock: clock, Blob: blob}
	at := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)

	store.Apply(at)
	store.Persist(at)

	// The clock is correct in memory even though durability failed.
	require.Equal(t, []time.Time{at}, clock.sets)
	_, ok := store.LoadAtBoot()
	require.False(t, ok)
}

func TestLoadAtBootMissingOrShort(t *testing.T) {
	store := &Store{Clock: &memClock{}, Blob: &memBlob{}}
	_, ok := store.LoadAtBoot()
	require.False(t, ok)

	store.Blob = &memBlob{data: []byte{1, 2, 3}}
	_, ok = store.LoadAtBoot()
	require.False(t, ok)
}

func TestWarmStart(t *testing.T) {
	recorded := time.Date(2026, time.May, 5, 5, 5, 5, 0, time.UTC)

	t.Run("seeds implausible clock", func(t *testing.T) {
		blob := &memBlob{}
		clock := &memClock{now: time.Date(1970, time.January, 1, 0, 0, 42, 0, time.UTC)}
		store := &Store{Clock: clock, Blob: blob}
		store.Persist(recorded)
		require.True(t, store.WarmStart())
		require.True(t, clock.Now().Equal(recorded))
	})

	t.Run("keeps plausible clock", func(t *testing.T) {
		blob := &memBlob{}
		clock := &memClock{now: time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)}
		store := &Store{Clock: clock, Blob: blob}
		store.Persist(recorded)
		require.False(t, store.WarmStart())
		require.Empty(t, clock.sets)
	})

	t.Run("ignores implausible record", func(t *testing.T) {
		clock := &memClock{}
		store := &Store{Clock: clock, Blob: &memBlob{data: make([]byte, recordSize)}}
		require.False(t, store.WarmStart())
		require.Empty(t, clock.sets)
	})
}
