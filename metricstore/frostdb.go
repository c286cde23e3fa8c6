package metricstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/polarsignals/frostdb"
	"github.com/polarsignals/frostdb/dynparquet"
	"github.com/polarsignals/frostdb/index"
	frostdbQuery "github.com/polarsignals/frostdb/query"
	"github.com/polarsignals/frostdb/query/logicalplan"
	"github.com/prometheus/client_golang/prometheus"
)

// FrostDBOptions configures a FrostDBEngine's column store and batching.
type FrostDBOptions struct {
	BatchSize        int
	FlushInterval    time.Duration
	ActiveMemorySize int64
	WALEnabled       bool
}

// DefaultFrostDBOptions returns the teacher's defaults: 1,000-sample
// batches flushed every 30s against a 100MiB active memory budget.
func DefaultFrostDBOptions() FrostDBOptions {
	return FrostDBOptions{
		BatchSize:        1_000,
		FlushInterval:    30 * time.Second,
		ActiveMemorySize: 100 * frostdb.MiB,
		WALEnabled:       true,
	}
}

// FrostDBEngine stores samples in a FrostDB columnstore, one "samples"
// table shared across every metric-store id (the id travels as a label).
// Adapted from the teacher's FrostDBStore (storage/frostdb.go), which ran
// separate metrics/logs/traces tables; this object store has only
// metrics, so the log and trace tables and their batches are dropped.
type FrostDBEngine struct {
	columnstore *frostdb.ColumnStore
	database    *frostdb.DB
	table       *frostdb.Table
	path        string
	retention   time.Duration

	batch     dynparquet.Samples
	batchSize int
	batchMu   sync.Mutex

	batchMaxSize int
	flushTicker  *time.Ticker
	shutdown     chan struct{}
}

// NewFrostDBEngine opens a FrostDB-backed engine rooted at path.
func NewFrostDBEngine(path string, retention time.Duration, opts FrostDBOptions) (*FrostDBEngine, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())

	registry := prometheus.NewRegistry()

	indexConfig := []*index.LevelConfig{
		{Level: index.L0, MaxSize: 100 * frostdb.MiB, Type: index.CompactionTypeParquetDisk},
		{Level: index.L1, MaxSize: 200 * frostdb.MiB, Type: index.CompactionTypeParquetDisk},
		{Level: index.L2, MaxSize: 500 * frostdb.MiB},
	}

	memSize := opts.ActiveMemorySize
	if memSize == 0 {
		memSize = 100 * frostdb.MiB
	}

	columnstoreOpts := []frostdb.Option{
		frostdb.WithLogger(logger),
		frostdb.WithStoragePath(path),
		frostdb.WithActiveMemorySize(memSize),
		frostdb.WithRegistry(registry),
		frostdb.WithIndexConfig(indexConfig),
		frostdb.WithSnapshotTriggerSize(100 * frostdb.MiB),
	}
	if opts.WALEnabled {
		columnstoreOpts = append(columnstoreOpts, frostdb.WithWAL())
	}

	columnstore, err := frostdb.New(columnstoreOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create column store: %w", err)
	}

	database, err := columnstore.DB(context.Background(), "sysdb_metrics")
	if err != nil {
		columnstore.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	tableConfig := frostdb.NewTableConfig(dynparquet.SampleDefinition())
	table, err := database.Table("samples", tableConfig)
	if err != nil {
		columnstore.Close()
		return nil, fmt.Errorf("failed to create samples table: %w", err)
	}

	batchMaxSize := opts.BatchSize
	if batchMaxSize <= 0 {
		batchMaxSize = 1_000
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}

	e := &FrostDBEngine{
		columnstore:  columnstore,
		database:     database,
		table:        table,
		path:         path,
		retention:    retention,
		batch:        dynparquet.Samples{},
		batchMaxSize: batchMaxSize,
		shutdown:     make(chan struct{}),
	}

	e.flushTicker = time.NewTicker(flushInterval)
	go e.flushRoutine()

	return e, nil
}

func (e *FrostDBEngine) flushRoutine() {
	for {
		select {
		case <-e.flushTicker.C:
			e.FlushBatch()
		case <-e.shutdown:
			return
		}
	}
}

// FlushBatch writes the current in-memory batch to the samples table.
func (e *FrostDBEngine) FlushBatch() {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	if len(e.batch) == 0 {
		return
	}

	record, err := e.batch.ToRecord()
	if err != nil {
		fmt.Printf("frostdb engine: error creating record during flush: %v\n", err)
		return
	}
	if _, err := e.table.InsertRecord(context.Background(), record); err != nil {
		fmt.Printf("frostdb engine: error inserting record during flush: %v\n", err)
		return
	}

	e.batch = dynparquet.Samples{}
	e.batchSize = 0
}

func (e *FrostDBEngine) Close() error {
	if e.flushTicker != nil {
		e.flushTicker.Stop()
		close(e.shutdown)
	}
	e.FlushBatch()

	if e.columnstore != nil {
		return e.columnstore.Close()
	}
	return nil
}

func (e *FrostDBEngine) StoreSample(id string, sample Sample) error {
	labels := sample.Labels
	if labels == nil {
		labels = make(map[string]string)
	} else {
		cp := make(map[string]string, len(labels)+1)
		for k, v := range labels {
			cp[k] = v
		}
		labels = cp
	}
	labels["__metric_id__"] = id

	record := dynparquet.Sample{
		Timestamp: sample.Timestamp.UnixNano(),
		Value:     int64(sample.Value),
		Labels:    labels,
	}

	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	e.batch = append(e.batch, record)
	e.batchSize++

	if e.batchSize >= e.batchMaxSize {
		go e.FlushBatch()
	}
	return nil
}

func (e *FrostDBEngine) QuerySamples(id string, q Query) ([]Sample, error) {
	startTime := q.StartTime.UnixNano()
	endTime := q.EndTime.UnixNano()

	engine := frostdbQuery.NewEngine(memory.DefaultAllocator, e.database.TableProvider())
	scanner := engine.ScanTable("samples").
		Filter(
			logicalplan.And(
				logicalplan.Col("timestamp").Gt(logicalplan.Literal(startTime)),
				logicalplan.Col("timestamp").Lt(logicalplan.Literal(endTime)),
			),
		).
		Project(
			logicalplan.Col("timestamp"),
			logicalplan.Col("value"),
			logicalplan.Col("labels"),
		)

	var samples []Sample
	err := scanner.Execute(context.Background(), func(ctx context.Context, r arrow.Record) error {
		numRows := r.NumRows()
		timestampCol := r.Column(0).(*array.Int64)
		valueCol := r.Column(1).(*array.Int64)
		labelsCol := r.Column(2)

		for i := int64(0); i < numRows; i++ {
			labels := decodeFrostDBLabels(labelsCol, int(i))
			if labels["__metric_id__"] != id {
				continue
			}
			delete(labels, "__metric_id__")

			samples = append(samples, Sample{
				Timestamp: time.Unix(0, timestampCol.Value(int(i))),
				Value:     float64(valueCol.Value(int(i))),
				Labels:    labels,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}

	if q.LabelFilter != nil {
		filtered := make([]Sample, 0, len(samples))
		for _, s := range samples {
			if q.LabelFilter(s.Labels) {
				filtered = append(filtered, s)
			}
		}
		samples = filtered
	}
	if q.Limit > 0 && len(samples) > q.Limit {
		samples = samples[:q.Limit]
	}
	return samples, nil
}

func decodeFrostDBLabels(col arrow.Array, row int) map[string]string {
	labels := make(map[string]string)
	dict, ok := col.(*array.Dictionary)
	if !ok {
		return labels
	}
	keyIndex := dict.GetValueIndex(row)
	if keyIndex < 0 {
		return labels
	}
	values, ok := dict.Dictionary().(*array.String)
	if !ok {
		return labels
	}
	if err := json.Unmarshal([]byte(values.Value(keyIndex)), &labels); err != nil {
		return make(map[string]string)
	}
	return labels
}
