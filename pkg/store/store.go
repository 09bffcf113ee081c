// Package store persists imported Qualys objects in a bbolt database. A
// Store is an importbuf.Consumer, so it can be attached to any parse or
// paginated import.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/qualys-api-client/pkg/logging"
	"github.com/Sternrassler/qualys-api-client/pkg/objects"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

// Buckets, one per object family.
const (
	BucketHosts       = "hosts"
	BucketDetections  = "detections"
	BucketAssetGroups = "asset_groups"
	BucketScans       = "scans"
	BucketKB          = "kb"
	BucketAppliances  = "appliances"
	BucketReports     = "reports"
)

var buckets = []string{
	BucketHosts, BucketDetections, BucketAssetGroups, BucketScans,
	BucketKB, BucketAppliances, BucketReports,
}

// ErrUnknownBucket is returned for bucket names not created by Open.
var ErrUnknownBucket = errors.New("store: unknown bucket")

// Store wraps a bbolt database for imported objects.
type Store struct {
	db      *bbolt.DB
	logger  zerolog.Logger
	stored  atomic.Int64
	skipped atomic.Int64
}

// Open opens a bbolt database at path and initializes the buckets.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Create required buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db, logger: logging.NewLogger("qualys-store")}, nil
}

// BucketFor returns the bucket an object is stored in, or "" when the
// object is not persisted.
func BucketFor(obj objects.Object) string {
	switch obj.(type) {
	case *objects.Host:
		return BucketHosts
	case *objects.DetectionHost:
		return BucketDetections
	case *objects.AssetGroup:
		return BucketAssetGroups
	case *objects.Scan:
		return BucketScans
	case *objects.KBVuln:
		return BucketKB
	case *objects.Appliance:
		return BucketAppliances
	case *objects.Report:
		return BucketReports
	default:
		return ""
	}
}

// Consume stores a keyed data object under its key, replacing any earlier
// version. Warnings, status documents and unknown types are skipped.
// Safe for concurrent use; concurrent writes are batched.
func (s *Store) Consume(_ context.Context, obj objects.Object) error {
	keyed, ok := obj.(objects.Keyed)
	bucket := BucketFor(obj)
	if !ok || bucket == "" || obj.Kind() != objects.KindData {
		s.skipped.Add(1)
		return nil
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", obj.Tag(), keyed.Key(), err)
	}

	err = s.db.Batch(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(keyed.Key()), data)
	})
	if err != nil {
		return fmt.Errorf("store %s %s: %w", obj.Tag(), keyed.Key(), err)
	}
	s.stored.Add(1)
	return nil
}

// Finish flushes the database to disk.
func (s *Store) Finish(context.Context) error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}
	s.logger.Debug().
		Int64("stored", s.stored.Load()).
		Int64("skipped", s.skipped.Load()).
		Msg("Import flushed")
	return nil
}

// Stored returns the number of objects written since Open.
func (s *Store) Stored() int64 {
	return s.stored.Load()
}

// Skipped returns the number of objects ignored since Open.
func (s *Store) Skipped() int64 {
	return s.skipped.Load()
}

// Count returns the number of entries in bucket.
func (s *Store) Count(bucket string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// Get decodes the entry for key into v. found is false when the key does
// not exist.
func (s *Store) Get(bucket, key string, v any) (found bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil // Not found
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

// ForEach calls fn for every entry of bucket in key order.
func (s *Store) ForEach(bucket string, fn func(key string, data []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

// Close closes the bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}
