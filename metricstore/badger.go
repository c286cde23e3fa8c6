package metricstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// BadgerEngine stores samples in an embedded key-value store, keyed by
// metric-store id and timestamp. Adapted from the teacher's BadgerStore
// (storage/badger.go), which used the same database for log entries;
// generalized here to the sample record this package shares across
// engines, with the original's background value-log GC kept as is.
type BadgerEngine struct {
	db         *badger.DB
	indexing   bool
	maxSizeMB  int
	path       string
	gcInterval time.Duration
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
}

// NewBadgerEngine opens a BadgerDB-backed engine rooted at path.
func NewBadgerEngine(path string, indexing bool, maxSizeMB int) (*BadgerEngine, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening BadgerDB: %w", err)
	}

	e := &BadgerEngine{
		db:         db,
		indexing:   indexing,
		maxSizeMB:  maxSizeMB,
		path:       path,
		gcInterval: 10 * time.Minute,
		stopChan:   make(chan struct{}),
	}
	e.startGC()
	return e, nil
}

func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	close(e.stopChan)
	e.wg.Wait()
	return e.db.Close()
}

func (e *BadgerEngine) StoreSample(id string, sample Sample) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key := e.sampleKey(id, sample.Timestamp)
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("error marshaling sample: %w", err)
	}

	return e.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if e.indexing {
			return e.createIndexes(txn, id, sample, key)
		}
		return nil
	})
}

func (e *BadgerEngine) QuerySamples(id string, q Query) ([]Sample, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var results []Sample
	startKey := e.sampleKey(id, q.StartTime)
	endKey := e.sampleKey(id, q.EndTime)

	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.Valid() && bytes.Compare(it.Item().Key(), endKey) <= 0; it.Next() {
			var sample Sample
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sample)
			}); err != nil {
				return fmt.Errorf("error unmarshaling sample: %w", err)
			}

			if q.LabelFilter != nil && !q.LabelFilter(sample.Labels) {
				continue
			}
			results = append(results, sample)
			if q.Limit > 0 && len(results) >= q.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error querying samples: %w", err)
	}
	return results, nil
}

// sampleKey is "sample_" + id + "_" + nanosecond timestamp, sortable by
// time within one metric-store id.
func (e *BadgerEngine) sampleKey(id string, ts time.Time) []byte {
	prefix := []byte("sample_" + id + "_")
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(ts.UnixNano()))
	return key
}

func (e *BadgerEngine) createIndexes(txn *badger.Txn, id string, sample Sample, sampleKey []byte) error {
	for k, v := range sample.Labels {
		labelKey := fmt.Sprintf("idx_label_%s_%s_%s_%d", id, k, v, sample.Timestamp.UnixNano())
		if err := txn.Set([]byte(labelKey), sampleKey); err != nil {
			return err
		}
	}
	return nil
}

func (e *BadgerEngine) startGC() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := e.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					fmt.Printf("badger engine GC error: %v\n", err)
				}
			case <-e.stopChan:
				return
			}
		}
	}()
}
