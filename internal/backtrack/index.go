// Package backtrack implements the eagerly-loaded FactoryIndex and the
// temporal backtracking join that attributes a CETP shock to the factory
// discharge that caused it.
package backtrack

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("factory_index")

// FactoryIndex is the static, ascending-time-sorted sequence of factory rows
// loaded eagerly at startup. Rows are staged through a bbolt bucket keyed by
// time so the eager load benefits from bbolt's on-disk ordered B+tree rather
// than an ad hoc in-process sort; the bucket is then cursor-scanned once into
// the in-memory slice this package's hot path binary-searches.
type FactoryIndex struct {
	db   *bbolt.DB
	rows []model.FactoryRow // ascending by Time; null-cod rows excluded
}

// BuildIndex opens (or creates) a bbolt database at dbPath, persists every
// non-null-cod row keyed by time, and builds the in-memory sorted slice used
// by InWindow. Rows are the factory CSV rows already parsed by internal/ingest;
// null-cod (BLACKOUT) rows are excluded from the index but
// remain available in the caller's full stream for blackout detection.
func BuildIndex(dbPath string, rows []model.FactoryRow) (*FactoryIndex, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open factory index db %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		for _, r := range rows {
			key := rowKey(r)
			val, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal factory row: %w", err)
			}
			if err := b.Put(key, val); err != nil {
				return fmt.Errorf("put factory row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &FactoryIndex{db: db}
	if err := idx.loadFromBucket(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func rowKey(r model.FactoryRow) []byte {
	key := make([]byte, 8+len(r.FactoryID))
	binary.BigEndian.PutUint64(key[:8], uint64(r.Time.UnixMilli()))
	copy(key[8:], r.FactoryID)
	return key
}

func (idx *FactoryIndex) loadFromBucket() error {
	var rows []model.FactoryRow
	err := idx.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r model.FactoryRow
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal factory row: %w", err)
			}
			rows = append(rows, r)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// bbolt's cursor already walks keys in ascending byte order, which sorts
	// by time first (big-endian prefix); this second sort is a defensive
	// no-op that also resolves the (rare) equal-timestamp ordering.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	idx.rows = rows
	return nil
}

// Close releases the underlying bbolt database.
func (idx *FactoryIndex) Close() error {
	if idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// Len reports the number of indexed (non-null-cod) rows.
func (idx *FactoryIndex) Len() int { return len(idx.rows) }

// InWindow returns every indexed row with Time in [start, end], inclusive.
func (idx *FactoryIndex) InWindow(start, end time.Time) []model.FactoryRow {
	lo := sort.Search(len(idx.rows), func(i int) bool { return !idx.rows[i].Time.Before(start) })
	hi := sort.Search(len(idx.rows), func(i int) bool { return idx.rows[i].Time.After(end) })
	if lo >= hi {
		return nil
	}
	out := make([]model.FactoryRow, hi-lo)
	copy(out, idx.rows[lo:hi])
	return out
}
