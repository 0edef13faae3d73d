// Package store persists analysis reports in a Pebble database.
package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-control-tree/pkg/structural"
)

// ErrNotFound is returned when no report is stored under a key.
var ErrNotFound = errors.New("report not found")

// Key prefixes split Pebble's flat key space.
//
//	report/<function>       -> msgpack Report
//	fingerprint/<sha256>    -> function name
var (
	prefixReport      = []byte("report/")
	prefixFingerprint = []byte("fingerprint/")
)

// Options configures Open.
type Options struct {
	ReadOnly  bool
	CacheSize int64
}

// Store is a report database. It is safe for concurrent use.
type Store struct {
	db *pebble.DB
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 8 << 20
	}
	if opts.ReadOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("report store does not exist: %s", path)
		}
	}

	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	db, err := pebble.Open(path, &pebble.Options{Cache: cache, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open report store %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func reportKey(function string) []byte {
	return append(append([]byte(nil), prefixReport...), function...)
}

func fingerprintKey(fp string) []byte {
	return append(append([]byte(nil), prefixFingerprint...), fp...)
}

// Put stores r under its function name and indexes it by fingerprint,
// replacing any earlier report for the same function.
func (s *Store) Put(r *structural.Report) error {
	if r.FunctionName == "" {
		return fmt.Errorf("report has no function name")
	}
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report %q: %w", r.FunctionName, err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	old, err := s.Get(r.FunctionName)
	switch {
	case err == nil && old.Fingerprint != r.Fingerprint && s.owns(old.Fingerprint, r.FunctionName):
		if err := b.Delete(fingerprintKey(old.Fingerprint), nil); err != nil {
			return err
		}
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}

	if err := b.Set(reportKey(r.FunctionName), data, nil); err != nil {
		return err
	}
	if r.Fingerprint != "" {
		if err := b.Set(fingerprintKey(r.Fingerprint), []byte(r.FunctionName), nil); err != nil {
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to store report %q: %w", r.FunctionName, err)
	}
	return nil
}

// Get returns the report stored for function.
func (s *Store) Get(function string) (*structural.Report, error) {
	data, closer, err := s.db.Get(reportKey(function))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, function)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var r structural.Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %q: %w", function, err)
	}
	return &r, nil
}

// ByFingerprint returns the report of the function whose CFG has the
// given fingerprint.
func (s *Store) ByFingerprint(fp string) (*structural.Report, error) {
	name, closer, err := s.db.Get(fingerprintKey(fp))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrNotFound, fp)
	}
	if err != nil {
		return nil, err
	}
	function := string(name)
	closer.Close()
	return s.Get(function)
}

// List returns every stored report ordered by function name.
func (s *Store) List() ([]*structural.Report, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixReport,
		UpperBound: incrementLastByte(prefixReport),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iterator creation failed: %w", err)
	}
	defer iter.Close()

	var reports []*structural.Report
	for iter.First(); iter.Valid(); iter.Next() {
		var r structural.Report
		if err := msgpack.Unmarshal(iter.Value(), &r); err != nil {
			return nil, fmt.Errorf("failed to decode report %q: %w", iter.Key()[len(prefixReport):], err)
		}
		reports = append(reports, &r)
	}
	return reports, iter.Error()
}

// Delete removes the report for function and its fingerprint entry.
func (s *Store) Delete(function string) error {
	old, err := s.Get(function)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(reportKey(function), nil); err != nil {
		return err
	}
	if s.owns(old.Fingerprint, function) {
		if err := b.Delete(fingerprintKey(old.Fingerprint), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// owns reports whether the fingerprint index entry fp points at function.
// Identical CFGs share a fingerprint, so the entry may belong to another
// function.
func (s *Store) owns(fp, function string) bool {
	if fp == "" {
		return false
	}
	name, closer, err := s.db.Get(fingerprintKey(fp))
	if err != nil {
		return false
	}
	defer closer.Close()
	return string(name) == function
}

// incrementLastByte returns the smallest key greater than every key with
// the given prefix.
func incrementLastByte(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
