// Package history records how every download session ended.
package history

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	bolt "go.etcd.io/bbolt"
)

var bucket = []byte("sessions")

type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Save(rec internal.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(rec.Id), data)
	})
}

func (s *Store) Get(id string) (*internal.SessionRecord, error) {
	var rec internal.SessionRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("session %s not found", id)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// List returns every record, most recent first.
func (s *Store) List() ([]internal.SessionRecord, error) {
	result := []internal.SessionRecord{}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.ForEach(func(k, v []byte) error {
			var rec internal.SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			result = append(result, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b internal.SessionRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return result, nil
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucket)
		return err
	})
}
