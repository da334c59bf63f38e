package storage

import (
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var timerBucket = []byte("room_timers")

// BoltStore persists room timer instants in a single-file bbolt database.
// One bucket, key = room ID, value = big-endian Unix milliseconds.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(timerBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create timer bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Load returns the stored start instant for a room, or ok=false when the key
// is absent.
func (s *BoltStore) Load(_ context.Context, roomID string) (int64, bool, error) {
	var (
		startedAt int64
		found     bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(timerBucket).Get([]byte(roomID))
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("corrupt timer value for room %s: %d bytes", roomID, len(v))
		}
		startedAt = int64(binary.BigEndian.Uint64(v))
		found = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return startedAt, found, nil
}

// Save durably writes the start instant for a room. The write has been
// fsynced by the time Save returns.
func (s *BoltStore) Save(_ context.Context, roomID string, startedAt int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(startedAt))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(timerBucket).Put([]byte(roomID), buf[:])
	})
	if err != nil {
		return fmt.Errorf("save timer for room %s: %w", roomID, err)
	}
	return nil
}

// Delete removes a room's start instant. Deleting an absent key is not an
// error.
func (s *BoltStore) Delete(_ context.Context, roomID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(timerBucket).Delete([]byte(roomID))
	})
	if err != nil {
		return fmt.Errorf("delete timer for room %s: %w", roomID, err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
