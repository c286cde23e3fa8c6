package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"sysdb/config"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

// MuxBackend is the direct-update HTTP collector: a gorilla/mux router
// accepting JSON bodies that map straight onto the store's six update
// entry points, for collectors that already know the object graph shape
// rather than speaking OTLP. Grounded on the teacher's own use of
// gorilla/mux for routing (ingestion.Manager.startHTTPServer,
// dashboard.Manager's router), generalized here to a router whose routes
// are the update API itself instead of OTLP ingest endpoints.
type MuxBackend struct {
	cfg        config.MuxBackendConfig
	store      *store.Store
	httpServer *http.Server
}

func NewMuxBackend(cfg config.MuxBackendConfig, st *store.Store) *MuxBackend {
	return &MuxBackend{cfg: cfg, store: st}
}

func (b *MuxBackend) Start() error {
	if b.cfg.ListenAddr == "" {
		return nil
	}

	router := mux.NewRouter()
	router.HandleFunc("/update/host", b.handleStoreHost).Methods("POST")
	router.HandleFunc("/update/service", b.handleStoreService).Methods("POST")
	router.HandleFunc("/update/metric", b.handleStoreMetric).Methods("POST")
	router.HandleFunc("/update/attribute", b.handleStoreAttribute).Methods("POST")

	b.httpServer = &http.Server{Addr: b.cfg.ListenAddr, Handler: router}
	go func() {
		if err := b.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("mux backend: HTTP server error: %v\n", err)
		}
	}()
	fmt.Printf("mux backend: HTTP server listening on %s\n", b.cfg.ListenAddr)
	return nil
}

func (b *MuxBackend) Stop() error {
	if b.httpServer == nil {
		return nil
	}
	ctx, cancel := shutdownContextMux()
	defer cancel()
	if err := b.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown mux backend HTTP server: %w", err)
	}
	return nil
}

func shutdownContextMux() (context.Context, context.CancelFunc) {
	return shutdownContext()
}

// hostUpdateRequest mirrors StoreHost's three arguments.
type hostUpdateRequest struct {
	Host      string `json:"host"`
	Timestamp int64  `json:"timestamp"`
	Backend   string `json:"backend"`
}

type serviceUpdateRequest struct {
	Host      string `json:"host"`
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp"`
	Backend   string `json:"backend"`
}

type metricUpdateRequest struct {
	Host       string  `json:"host"`
	Metric     string  `json:"metric"`
	StoreType  string  `json:"storeType,omitempty"`
	StoreID    string  `json:"storeId,omitempty"`
	Timestamp  int64   `json:"timestamp"`
	Backend    string  `json:"backend"`
}

type attributeUpdateRequest struct {
	Host      string `json:"host"`
	Service   string `json:"service,omitempty"`
	Metric    string `json:"metric,omitempty"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
	Backend   string `json:"backend"`
}

func (b *MuxBackend) handleStoreHost(w http.ResponseWriter, r *http.Request) {
	var req hostUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := b.store.StoreHost(req.Host, store.Timestamp(req.Timestamp), req.Backend); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

func (b *MuxBackend) handleStoreService(w http.ResponseWriter, r *http.Request) {
	var req serviceUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := b.store.StoreService(req.Host, req.Service, store.Timestamp(req.Timestamp), req.Backend); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

func (b *MuxBackend) handleStoreMetric(w http.ResponseWriter, r *http.Request) {
	var req metricUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var descriptor *store.MetricStoreRef
	if req.StoreType != "" {
		descriptor = &store.MetricStoreRef{Type: req.StoreType, ID: req.StoreID}
	}
	if _, err := b.store.StoreMetric(req.Host, req.Metric, descriptor, store.Timestamp(req.Timestamp), req.Backend); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

func (b *MuxBackend) handleStoreAttribute(w http.ResponseWriter, r *http.Request) {
	var req attributeUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	value := sdbdata.String(req.Value)
	ts := store.Timestamp(req.Timestamp)

	var err error
	switch {
	case req.Metric != "":
		_, err = b.store.StoreMetricAttribute(req.Host, req.Metric, req.Key, value, ts, req.Backend)
	case req.Service != "":
		_, err = b.store.StoreServiceAttribute(req.Host, req.Service, req.Key, value, ts, req.Backend)
	default:
		_, err = b.store.StoreAttribute(req.Host, req.Key, value, ts, req.Backend)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("error parsing request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"success"}`))
}
