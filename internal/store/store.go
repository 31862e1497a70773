// Package store is the local bbolt cache: raw records per account for
// offline test runs, cleaned records for inspection, and the last known
// holding value used to compute holdings deltas.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/cleanab-dev/cleanab/internal/model"
)

const (
	rawBucket      = "raw"
	cleanedBucket  = "cleaned"
	holdingsBucket = "holdings"
)

// Store wraps the bbolt database. Keys are IBANs.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{rawBucket, cleanedBucket, holdingsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRaw caches the raw records fetched for an account.
func (s *Store) PutRaw(iban string, records []model.RawTransaction) error {
	return s.put(rawBucket, iban, records)
}

// GetRaw returns the cached raw records for an account. ok is false
// when nothing has been cached yet.
func (s *Store) GetRaw(iban string) (records []model.RawTransaction, ok bool, err error) {
	ok, err = s.get(rawBucket, iban, &records)
	return records, ok, err
}

// PutCleaned caches the cleaned records produced for an account.
func (s *Store) PutCleaned(iban string, records []model.CleanedTransaction) error {
	return s.put(cleanedBucket, iban, records)
}

// LastHoldingValue returns the holding total recorded by the previous
// run, if any.
func (s *Store) LastHoldingValue(iban string) (value decimal.Decimal, ok bool, err error) {
	ok, err = s.get(holdingsBucket, iban, &value)
	return value, ok, err
}

// PutHoldingValue records the holding total for the next run's delta.
func (s *Store) PutHoldingValue(iban string, value decimal.Decimal) error {
	return s.put(holdingsBucket, iban, value)
}

func (s *Store) put(bucket, key string, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s/%s: %w", bucket, key, err)
		}
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

func (s *Store) get(bucket, key string, v any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	if err != nil {
		return false, fmt.Errorf("reading %s/%s: %w", bucket, key, err)
	}
	return found, nil
}
