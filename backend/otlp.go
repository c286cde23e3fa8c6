package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"sysdb/config"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
	"sysdb/metricstore"
)

// OTLPBackend turns incoming OTLP metrics payloads into store update
// calls: a data point's resource attributes identify the host (and,
// optionally, the service) the metric belongs to, and the metric itself
// becomes a Metric object carrying its value and remaining labels as
// attributes. Adapted from the teacher's ingestion.Manager/MetricsHandler,
// which instead wrote OTLP data points straight into a telemetry storage
// engine; there is no store analogue for OTLP logs or traces, so the
// teacher's LogsHandler/TracesHandler have no counterpart here.
type OTLPBackend struct {
	cfg        config.OTLPBackendConfig
	store      *store.Store
	mstore     metricstore.Engine
	engineType string

	httpServer *http.Server
	grpcServer *grpc.Server
}

// NewOTLPBackend constructs an OTLP backend. mstore may be nil, in which
// case data point values are stored only as the object graph's attribute,
// never persisted as samples.
func NewOTLPBackend(cfg config.OTLPBackendConfig, st *store.Store, mstore metricstore.Engine, engineType string) *OTLPBackend {
	return &OTLPBackend{cfg: cfg, store: st, mstore: mstore, engineType: engineType}
}

func (b *OTLPBackend) Start() error {
	if b.cfg.HTTPEndpoint != "" {
		if err := b.startHTTPServer(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}
	if b.cfg.GRPCEndpoint != "" {
		if err := b.startGRPCServer(); err != nil {
			if b.httpServer != nil {
				b.httpServer.Shutdown(context.Background())
			}
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}
	return nil
}

func (b *OTLPBackend) Stop() error {
	if b.httpServer != nil {
		ctx, cancel := shutdownContext()
		defer cancel()
		if err := b.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	if b.grpcServer != nil {
		b.grpcServer.GracefulStop()
	}
	return nil
}

func (b *OTLPBackend) startHTTPServer() error {
	router := mux.NewRouter()
	router.HandleFunc("/v1/metrics", b.handleHTTP).Methods("POST")

	b.httpServer = &http.Server{Addr: b.cfg.HTTPEndpoint, Handler: router}
	go func() {
		if err := b.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("otlp backend: HTTP server error: %v\n", err)
		}
	}()
	fmt.Printf("otlp backend: HTTP server listening on %s\n", b.cfg.HTTPEndpoint)
	return nil
}

func (b *OTLPBackend) startGRPCServer() error {
	lis, err := net.Listen("tcp", b.cfg.GRPCEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	b.grpcServer = grpc.NewServer()
	// The OTLP collector gRPC service requires generated protobuf bindings
	// this repo does not vendor; reflection is registered so a generic
	// gRPC client can still introspect the (currently empty) service set.
	reflection.Register(b.grpcServer)

	go func() {
		if err := b.grpcServer.Serve(lis); err != nil {
			fmt.Printf("otlp backend: gRPC server error: %v\n", err)
		}
	}()
	fmt.Printf("otlp backend: gRPC server listening on %s\n", b.cfg.GRPCEndpoint)
	return nil
}

func (b *OTLPBackend) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading request body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req OTLPMetricsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("error parsing metrics: %v", err), http.StatusBadRequest)
		return
	}

	if err := b.processMetrics(&req); err != nil {
		http.Error(w, fmt.Sprintf("error processing metrics: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"success"}`))
}

// processMetrics walks every data point across every resource and scope,
// resolving (or creating) the host/service/metric objects it describes and
// recording the point's value as an attribute and, if a metric store is
// configured, a persisted sample.
func (b *OTLPBackend) processMetrics(req *OTLPMetricsRequest) error {
	for _, rm := range req.ResourceMetrics {
		resourceLabels := attributesToLabels(rm.Resource.Attributes)
		hostName := resourceLabels["host.name"]
		if hostName == "" {
			hostName = "unknown"
		}
		serviceName := resourceLabels["service.name"]

		for _, sm := range rm.ScopeMetrics {
			for i := range sm.Metrics {
				metric := &sm.Metrics[i]
				if err := b.processMetric(metric, hostName, serviceName, resourceLabels); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *OTLPBackend) processMetric(metric *Metric, hostName, serviceName string, resourceLabels map[string]string) error {
	points := collectDataPoints(metric)
	if len(points) == 0 {
		return nil
	}

	ts := store.Timestamp(points[0].TimeUnixNano / 1000)
	if _, err := b.store.StoreHost(hostName, ts, "otlp"); err != nil {
		return fmt.Errorf("error storing host %q: %w", hostName, err)
	}
	if serviceName != "" {
		if _, err := b.store.StoreService(hostName, serviceName, ts, "otlp"); err != nil {
			return fmt.Errorf("error storing service %q: %w", serviceName, err)
		}
	}

	var descriptor *store.MetricStoreRef
	if b.mstore != nil && b.engineType != "" {
		descriptor = &store.MetricStoreRef{Type: b.engineType, ID: metric.Name}
	}

	for _, dp := range points {
		pointTS := store.Timestamp(dp.TimeUnixNano / 1000)
		if _, err := b.store.StoreMetric(hostName, metric.Name, descriptor, pointTS, "otlp"); err != nil {
			return fmt.Errorf("error storing metric %q: %w", metric.Name, err)
		}
		if _, err := b.store.StoreMetricAttribute(hostName, metric.Name, "value", sdbdata.Decimal(dp.AsDouble), pointTS, "otlp"); err != nil {
			return fmt.Errorf("error storing metric value attribute: %w", err)
		}

		labels := attributesToLabels(dp.Attributes)
		for k, v := range labels {
			if _, err := b.store.StoreMetricAttribute(hostName, metric.Name, k, sdbdata.String(v), pointTS, "otlp"); err != nil {
				return fmt.Errorf("error storing metric label %q: %w", k, err)
			}
		}

		if b.mstore != nil {
			sampleLabels := copyLabels(resourceLabels)
			for k, v := range labels {
				sampleLabels[k] = v
			}
			sample := metricstore.Sample{
				Timestamp: time.Unix(0, dp.TimeUnixNano),
				Value:     dp.AsDouble,
				Labels:    sampleLabels,
			}
			if err := b.mstore.StoreSample(metric.Name, sample); err != nil {
				return fmt.Errorf("error persisting sample for %q: %w", metric.Name, err)
			}
		}
	}
	return nil
}

// collectDataPoints flattens whichever of gauge/sum/histogram/summary a
// metric carries into the one numeric-data-point shape the store API
// needs; histogram bucket counts and summary quantiles are not stored as
// separate series the way the teacher's TSDB-backed handler did, since the
// object graph has no bucket/quantile axis — only a metric's latest value.
func collectDataPoints(metric *Metric) []NumberDataPoint {
	switch {
	case metric.Gauge != nil:
		return metric.Gauge.DataPoints
	case metric.Sum != nil:
		return metric.Sum.DataPoints
	case metric.Histogram != nil:
		return histogramToNumberPoints(metric.Histogram.DataPoints)
	case metric.Summary != nil:
		return summaryToNumberPoints(metric.Summary.DataPoints)
	default:
		return nil
	}
}

func histogramToNumberPoints(dps []HistogramDataPoint) []NumberDataPoint {
	out := make([]NumberDataPoint, len(dps))
	for i, dp := range dps {
		out[i] = NumberDataPoint{Attributes: dp.Attributes, TimeUnixNano: dp.TimeUnixNano, AsDouble: dp.Sum}
	}
	return out
}

func summaryToNumberPoints(dps []SummaryDataPoint) []NumberDataPoint {
	out := make([]NumberDataPoint, len(dps))
	for i, dp := range dps {
		out[i] = NumberDataPoint{Attributes: dp.Attributes, TimeUnixNano: dp.TimeUnixNano, AsDouble: dp.Sum}
	}
	return out
}

func attributesToLabels(attrs []Attribute) map[string]string {
	labels := make(map[string]string, len(attrs))
	for _, a := range attrs {
		labels[a.Key] = a.Value.StringValue
	}
	return labels
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// OTLPMetricsRequest is the OTLP/JSON metrics export payload shape,
// trimmed to the fields processMetrics reads.
type OTLPMetricsRequest struct {
	ResourceMetrics []ResourceMetrics `json:"resourceMetrics"`
}

type ResourceMetrics struct {
	Resource     Resource       `json:"resource"`
	ScopeMetrics []ScopeMetrics `json:"scopeMetrics"`
}

type Resource struct {
	Attributes []Attribute `json:"attributes"`
}

type ScopeMetrics struct {
	Scope   Scope    `json:"scope"`
	Metrics []Metric `json:"metrics"`
}

type Scope struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Metric struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Unit        string     `json:"unit"`
	Gauge       *Gauge     `json:"gauge,omitempty"`
	Sum         *Sum       `json:"sum,omitempty"`
	Histogram   *Histogram `json:"histogram,omitempty"`
	Summary     *Summary   `json:"summary,omitempty"`
}

type Gauge struct {
	DataPoints []NumberDataPoint `json:"dataPoints"`
}

type Sum struct {
	DataPoints             []NumberDataPoint `json:"dataPoints"`
	AggregationTemporality string            `json:"aggregationTemporality"`
	IsMonotonic            bool              `json:"isMonotonic"`
}

type Histogram struct {
	DataPoints             []HistogramDataPoint `json:"dataPoints"`
	AggregationTemporality string               `json:"aggregationTemporality"`
}

type Summary struct {
	DataPoints []SummaryDataPoint `json:"dataPoints"`
}

type NumberDataPoint struct {
	Attributes   []Attribute `json:"attributes"`
	TimeUnixNano int64       `json:"timeUnixNano"`
	AsDouble     float64     `json:"asDouble"`
}

type HistogramDataPoint struct {
	Attributes     []Attribute `json:"attributes"`
	TimeUnixNano   int64       `json:"timeUnixNano"`
	Count          uint64      `json:"count"`
	Sum            float64     `json:"sum"`
	BucketCounts   []uint64    `json:"bucketCounts"`
	ExplicitBounds []float64   `json:"explicitBounds"`
}

type SummaryDataPoint struct {
	Attributes     []Attribute     `json:"attributes"`
	TimeUnixNano   int64           `json:"timeUnixNano"`
	Count          uint64          `json:"count"`
	Sum            float64         `json:"sum"`
	QuantileValues []QuantileValue `json:"quantileValues"`
}

type QuantileValue struct {
	Quantile float64 `json:"quantile"`
	Value    float64 `json:"value"`
}

type Attribute struct {
	Key   string         `json:"key"`
	Value AttributeValue `json:"value"`
}

type AttributeValue struct {
	StringValue string  `json:"stringValue,omitempty"`
	IntValue    int64   `json:"intValue,omitempty"`
	DoubleValue float64 `json:"doubleValue,omitempty"`
	BoolValue   bool    `json:"boolValue,omitempty"`
}
