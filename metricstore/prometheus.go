package metricstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/prometheus/model/labels"
	promstorage "github.com/prometheus/prometheus/storage"
	"github.com/prometheus/prometheus/tsdb"
	"github.com/prometheus/prometheus/tsdb/chunkenc"
)

// PrometheusEngine stores samples in a Prometheus TSDB instance, one
// series per (metric-store id, label set) pair. Adapted from the
// teacher's PromTSDBStore (storage/promtsdb.go); the trace-specific
// StoreTrace/QueryTraces aliases are dropped since this object store has
// no trace domain.
type PrometheusEngine struct {
	path      string
	retention time.Duration
	db        *tsdb.DB
	mu        sync.RWMutex
}

// NewPrometheusEngine opens a Prometheus TSDB-backed engine rooted at path.
func NewPrometheusEngine(path string, retention, blockSize time.Duration, compaction bool) (*PrometheusEngine, error) {
	opts := tsdb.DefaultOptions()
	opts.RetentionDuration = int64(retention / time.Millisecond)
	opts.MaxBlockDuration = int64(blockSize / time.Millisecond)

	db, err := tsdb.Open(path, nil, nil, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening TSDB: %w", err)
	}

	return &PrometheusEngine{path: path, retention: retention, db: db}, nil
}

func (e *PrometheusEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

func (e *PrometheusEngine) StoreSample(id string, sample Sample) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lbls := make([]labels.Label, 0, len(sample.Labels)+1)
	lbls = append(lbls, labels.Label{Name: "__metric_id__", Value: id})
	for k, v := range sample.Labels {
		lbls = append(lbls, labels.Label{Name: k, Value: v})
	}
	sort.Sort(labels.Labels(lbls))

	ctx := context.Background()
	app := e.db.Appender(ctx)

	if _, err := app.Append(0, lbls, sample.Timestamp.UnixMilli(), sample.Value); err != nil {
		app.Rollback()
		return fmt.Errorf("error appending sample: %w", err)
	}
	if err := app.Commit(); err != nil {
		return fmt.Errorf("error committing sample: %w", err)
	}
	return nil
}

func (e *PrometheusEngine) QuerySamples(id string, q Query) ([]Sample, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	querier, err := e.db.Querier(q.StartTime.UnixMilli(), q.EndTime.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("error creating querier: %w", err)
	}
	defer querier.Close()

	hints := &promstorage.SelectHints{
		Start: q.StartTime.UnixMilli(),
		End:   q.EndTime.UnixMilli(),
	}
	idMatcher, err := labels.NewMatcher(labels.MatchEqual, "__metric_id__", id)
	if err != nil {
		return nil, fmt.Errorf("error creating id matcher: %w", err)
	}

	ctx := context.Background()
	seriesSet := querier.Select(ctx, false, hints, idMatcher)

	var results []Sample
	for seriesSet.Next() {
		series := seriesSet.At()
		lbls := series.Labels()

		labelsMap := make(map[string]string, lbls.Len())
		for _, l := range lbls {
			if l.Name == "__metric_id__" {
				continue
			}
			labelsMap[l.Name] = l.Value
		}
		if q.LabelFilter != nil && !q.LabelFilter(labelsMap) {
			continue
		}

		it := series.Iterator(chunkenc.NewNopIterator())
		for it.Next() != chunkenc.ValNone {
			ts, val := it.At()
			results = append(results, Sample{
				Timestamp: time.UnixMilli(ts),
				Value:     val,
				Labels:    labelsMap,
			})
		}
		if err := it.Err(); err != nil {
			return nil, fmt.Errorf("error iterating samples: %w", err)
		}
	}
	if err := seriesSet.Err(); err != nil {
		return nil, fmt.Errorf("error selecting series: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Timestamp.Before(results[j].Timestamp) })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}
