// Package boltstore implements repository.Store on an embedded BoltDB file.
//
// All data lives in a single file and no external database process is
// required, which makes the engine suitable for single-node deployments and
// for tests.  Bolt allows one writer at a time, so every Update transaction
// is already serialized; the ledger version check in PutRoomLedger is kept
// anyway so both engines honour the same contract.
//
// Records are stored as JSON under big-endian uint64 keys so cursor order
// equals id order.  Ids come from each bucket's NextSequence.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/iliyamo/hotel-reservation/internal/repository"
)

var (
	bucketRooms         = []byte("rooms")
	bucketReservations  = []byte("reservations")
	bucketCancellations = []byte("cancellations")
	bucketUsers         = []byte("users")
	bucketUserEmails    = []byte("user_emails")
)

// Store wraps a BoltDB database.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open opens (or creates) a BoltDB database at path and ensures every
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRooms, bucketReservations, bucketCancellations, bucketUsers, bucketUserEmails} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a read-write transaction and commits when fn returns
// nil.
func (s *Store) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&boltTx{tx: tx, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &repository.CommitError{Err: err}
	}
	committed = true
	return nil
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx, now: s.now})
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func get(b *bolt.Bucket, id uint64, v interface{}) error {
	data := b.Get(itob(id))
	if data == nil {
		return repository.ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func put(b *bolt.Bucket, id uint64, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(itob(id), data)
}
