// Command metricstore-bench writes a batch of synthetic samples into a
// metricstore.Engine and times reading them back, printing a summary
// table. It is driven entirely through the metricstore.Engine interface
// so the same tool benchmarks any of the four engines by flag, in place
// of the teacher's four separate standalone tools (tools/frostdb,
// tools/tsdb_test, tests/frostdb_benchmark, tests/tsdb_benchmark), each
// of which drove one specific engine's own native API directly.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"sysdb/config"
	"sysdb/metricstore"
)

func main() {
	engineType := flag.String("engine", "localblock", "engine to benchmark: localblock, badger, prometheus, frostdb")
	dataPath := flag.String("path", "", "data directory (a temp directory is created if empty)")
	numSeries := flag.Int("series", 20, "number of distinct metric ids")
	samplesPerSeries := flag.Int("samples", 5000, "samples written per series")
	numQueries := flag.Int("queries", 50, "number of range queries to time")
	flag.Parse()

	path := *dataPath
	if path == "" {
		tmp, err := os.MkdirTemp("", "metricstore-bench-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating temp directory: %v\n", err)
			os.Exit(1)
		}
		defer os.RemoveAll(tmp)
		path = tmp
	}

	cfg := &config.EngineConfig{Type: *engineType}
	switch *engineType {
	case "localblock":
		cfg.LocalBlockConfig = &config.LocalBlockConfig{BlockSize: "2h", RetentionPeriod: "30d", Compaction: true}
	case "badger":
		cfg.BadgerConfig = &config.BadgerConfig{MaxFileSizeMB: 100, Indexing: true}
	case "prometheus":
		cfg.PrometheusConfig = &config.PrometheusConfig{RetentionPeriod: "30d", BlockDuration: "2h"}
	case "frostdb":
		cfg.FrostDBConfig = &config.FrostDBConfig{BatchSize: 1000, FlushInterval: "1s", ActiveMemoryMB: 100, WALEnabled: true}
	default:
		fmt.Fprintf(os.Stderr, "unknown engine %q\n", *engineType)
		os.Exit(1)
	}

	engine, err := metricstore.Open(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening %s engine: %v\n", *engineType, err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("Benchmarking %s engine at %s\n", *engineType, path)

	seriesIDs := make([]string, *numSeries)
	for i := range seriesIDs {
		seriesIDs[i] = fmt.Sprintf("metric-%d", i)
	}

	baseTime := time.Now().Add(-time.Duration(*samplesPerSeries) * time.Second)

	writeStart := time.Now()
	for _, id := range seriesIDs {
		for j := 0; j < *samplesPerSeries; j++ {
			sample := metricstore.Sample{
				Timestamp: baseTime.Add(time.Duration(j) * time.Second),
				Value:     rand.Float64() * 100,
				Labels: map[string]string{
					"instance": id,
					"shard":    fmt.Sprintf("%d", j%4),
				},
			}
			if err := engine.StoreSample(id, sample); err != nil {
				fmt.Fprintf(os.Stderr, "write error for %s: %v\n", id, err)
			}
		}
	}
	writeDuration := time.Since(writeStart)
	totalSamples := *numSeries * *samplesPerSeries

	var totalQueryTime time.Duration
	minTime, maxTime := time.Duration(math.MaxInt64), time.Duration(0)
	var totalResults int

	for i := 0; i < *numQueries; i++ {
		id := seriesIDs[rand.Intn(len(seriesIDs))]
		q := metricstore.Query{
			StartTime: baseTime,
			EndTime:   baseTime.Add(time.Duration(*samplesPerSeries) * time.Second),
			Limit:     1000,
		}

		start := time.Now()
		results, err := engine.QuerySamples(id, q)
		duration := time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query error for %s: %v\n", id, err)
			continue
		}

		totalQueryTime += duration
		totalResults += len(results)
		if duration < minTime {
			minTime = duration
		}
		if duration > maxTime {
			maxTime = duration
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "engine\t%s\n", *engineType)
	fmt.Fprintf(w, "series\t%d\n", *numSeries)
	fmt.Fprintf(w, "samples written\t%d\n", totalSamples)
	fmt.Fprintf(w, "write duration\t%v\n", writeDuration)
	fmt.Fprintf(w, "write throughput\t%.0f samples/sec\n", float64(totalSamples)/writeDuration.Seconds())
	fmt.Fprintf(w, "queries run\t%d\n", *numQueries)
	fmt.Fprintf(w, "results returned\t%d\n", totalResults)
	fmt.Fprintf(w, "avg query time\t%v\n", totalQueryTime/time.Duration(*numQueries))
	fmt.Fprintf(w, "min query time\t%v\n", minTime)
	fmt.Fprintf(w, "max query time\t%v\n", maxTime)
	w.Flush()
}
