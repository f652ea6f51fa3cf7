package timesync

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/golang/glog"
)

// BlobStore is the durable storage for the single time record
// (external collaborator; the device exposes a small filesystem-like
// store).
type BlobStore interface {
	Read() ([]byte, error)
	Write([]byte) error
}

// FileStore implements BlobStore on a device-local file.
type FileStore struct {
	Path string
}

// Read implements BlobStore.
func (s *FileStore) Read() ([]byte, error) {
	return os.ReadFile(s.Path)
}

// Write implements BlobStore.
func (s *FileStore) Write(b []byte) error {
	return os.WriteFile(s.Path, b, 0644)
}

// recordSize is the fixed size of the persisted record: one signed
// 64-bit seconds-since-epoch value, big-endian.
const recordSize = 8

// Store validates a fetched candidate time, applies it to the
// process-wide clock and persists it for warm-start recovery. It is
// the only writer of both the clock and the durable record.
type Store struct {
	Clock Clock
	Blob  BlobStore
}

// Validate range-checks a candidate against the sanity window.
func (s *Store) Validate(t time.Time) bool {
	return Plausible(t)
}

// Apply sets the process-wide clock. The candidate is treated as UTC;
// display timezone conversion happens at the rendering layer.
func (s *Store) Apply(t time.Time) {
	s.Clock.Set(t.UTC())
	glog.Infof("clock set to %s", t.UTC().Format(time.RFC3339))
}

// Persist overwrites the durable record. Persistence is best-effort
// durability for warm restart only: a failure is logged and does not
// fail the sync cycle.
func (s *Store) Persist(t time.Time) {
	if s.Blob == nil {
		return
	}
	var rec [recordSize]byte
	binary.BigEndian.PutUint64(rec[:], uint64(t.Unix()))
	if err := s.Blob.Write(rec[:]); err != nil {
		glog.Warningf("persist time record: %v", err)
	}
}

// LoadAtBoot reads the durable record. The caller decides plausibility
// and whether to seed the live clock before any network activity.
func (s *Store) LoadAtBoot() (time.Time, bool) {
	if s.Blob == nil {
		return time.Time{}, false
	}
	rec, err := s.Blob.Read()
	if err != nil || len(rec) < recordSize {
		return time.Time{}, false
	}
	secs := int64(binary.BigEndian.Uint64(rec[:recordSize]))
	return time.Unix(secs, 0).UTC(), true
}

// WarmStart seeds the live clock from the durable record when the
// record is plausible and the live clock is not. It reports whether
// the clock was seeded.
func (s *Store) WarmStart() bool {
	if Plausible(s.Clock.Now()) {
		return false
	}
	t, ok := s.LoadAtBoot()
	if !ok || !Plausible(t) {
		return false
	}
	s.Apply(t)
	return true
}
