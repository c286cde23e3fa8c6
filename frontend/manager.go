// Package frontend is the query-serving HTTP+websocket surface named in
// spec.md §1 ("host data is served out over a query API"): a gorilla/mux
// router rendering host/service/metric/attribute subtrees through
// core/storejson, filtered by query.ParseFilter expressions, plus a
// websocket endpoint pushing the same filtered snapshot on an interval.
// Adapted from the teacher's dashboard package, which served telemetry
// query results and HTML dashboard pages instead of object-graph JSON.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"sysdb/config"
	"sysdb/core/matcher"
	"sysdb/core/storejson"
	"sysdb/core/store"
	"sysdb/metricstore"
	"sysdb/query"
)

// Manager owns the frontend's HTTP server and its websocket clients.
type Manager struct {
	cfg    config.FrontendConfig
	store  *store.Store
	mstore metricstore.Engine
	router *mux.Router
	server *http.Server

	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex

	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewManager creates a frontend manager routing against st. engineType
// names the metric-store engine, if any, /query/metrics should chart
// through; it is looked up from metricstore.Registry rather than threaded
// in, so NewManager doesn't need an Engine at all when none is configured.
func NewManager(cfg config.FrontendConfig, st *store.Store, engineType string) (*Manager, error) {
	mstore, _ := metricstore.Registry.Get(engineType)
	m := &Manager{
		cfg:     cfg,
		store:   st,
		mstore:  mstore,
		router:  mux.NewRouter(),
		clients: make(map[*websocket.Conn]bool),
	}
	m.setupRoutes()
	return m, nil
}

// Start starts the frontend's HTTP server.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if m.cfg.ListenAddr == "" {
		return nil
	}

	m.server = &http.Server{Addr: m.cfg.ListenAddr, Handler: m.router}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("frontend: HTTP server error: %v", err)
		}
	}()

	m.running = true
	log.Printf("frontend: HTTP server listening on %s", m.cfg.ListenAddr)
	return nil
}

// Stop shuts the frontend server down, closing every open websocket first.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.clientsMutex.Lock()
	for c := range m.clients {
		c.Close()
		delete(m.clients, c)
	}
	m.clientsMutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down frontend server: %w", err)
	}

	m.wg.Wait()
	m.running = false
	log.Println("frontend: HTTP server stopped")
	return nil
}

// Close is Stop, kept as an alias since the teacher's service package
// calls Close on every manager it owns.
func (m *Manager) Close() error { return m.Stop() }

func (m *Manager) setupRoutes() {
	m.router.HandleFunc("/query/hosts", m.handleQueryHosts).Methods("GET")
	m.router.HandleFunc("/query/hosts/{host}", m.handleQueryHost).Methods("GET")
	m.router.HandleFunc("/query/metrics/{id}", m.handleQueryMetrics).Methods("GET")
	m.router.HandleFunc("/ws", m.handleWebSocket).Methods("GET")
}

// parseFlagsAndMatcher reads the "filter" and "skip" query parameters
// shared by every render endpoint. skip is a comma-free set of the words
// attributes, metrics, services.
func parseFlagsAndMatcher(r *http.Request) (storejson.Flags, matcher.Matcher, error) {
	var flags storejson.Flags
	for _, s := range r.URL.Query()["skip"] {
		switch s {
		case "attributes":
			flags |= storejson.SkipAttributes
		case "metrics":
			flags |= storejson.SkipMetrics
		case "services":
			flags |= storejson.SkipServices
		}
	}

	filter := r.URL.Query().Get("filter")
	if filter == "" {
		return flags, nil, nil
	}
	mtr, err := query.ParseFilter(filter)
	if err != nil {
		return flags, nil, fmt.Errorf("invalid filter: %w", err)
	}
	return flags, mtr, nil
}

// handleQueryHosts renders every host matching the optional "filter" query
// parameter as a JSON array.
func (m *Manager) handleQueryHosts(w http.ResponseWriter, r *http.Request) {
	flags, mtr, err := parseFlagsAndMatcher(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := storejson.WriteStore(w, m.store, flags, mtr); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleQueryHost renders a single named host.
func (m *Manager) handleQueryHost(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["host"]
	h := m.store.GetHost(name)
	if h == nil {
		http.Error(w, fmt.Sprintf("host not found: %s", name), http.StatusNotFound)
		return
	}
	defer h.Release()

	flags, mtr, err := parseFlagsAndMatcher(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := storejson.WriteHost(w, h, flags, mtr); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleQueryMetrics renders the raw sample series for one metric-store id
// from the frontend's configured engine, the charting path spec.md §3's
// descriptor exists to serve. start/end default to the last hour and are
// parsed as RFC3339; limit caps the number of samples returned.
func (m *Manager) handleQueryMetrics(w http.ResponseWriter, r *http.Request) {
	if m.mstore == nil {
		http.Error(w, "no metric store engine configured", http.StatusServiceUnavailable)
		return
	}

	q := metricstore.Query{StartTime: time.Now().Add(-time.Hour), EndTime: time.Now()}
	if s := r.URL.Query().Get("start"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.StartTime = t
		}
	}
	if s := r.URL.Query().Get("end"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.EndTime = t
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			q.Limit = n
		}
	}

	samples, err := m.mstore.QuerySamples(mux.Vars(r)["id"], q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(samples); err != nil {
		log.Printf("frontend: error encoding metric samples: %v", err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and pushes a filtered snapshot
// of the store every interval seconds (default 5) until the client sends
// a close frame or disconnects. The filter and interval are read once
// from the initial query string, matching the teacher's dashboard
// websocket which also configured itself from the upgrade request.
func (m *Manager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("frontend: error upgrading to websocket: %v", err)
		return
	}

	flags, mtr, err := parseFlagsAndMatcher(r)
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(err.Error()))
		conn.Close()
		return
	}

	interval := 5 * time.Second
	if s := r.URL.Query().Get("interval"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}

	m.clientsMutex.Lock()
	m.clients[conn] = true
	m.clientsMutex.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.clientsMutex.Lock()
			delete(m.clients, conn)
			m.clientsMutex.Unlock()
			conn.Close()
		}()

		go drainClientReads(conn)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			var buf jsonBuffer
			if err := storejson.WriteStore(&buf, m.store, flags, mtr); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, buf.Bytes()); err != nil {
				return
			}
		}
	}()
}

// drainClientReads discards inbound messages until the connection closes,
// which is all that's needed to notice a client-initiated disconnect.
func drainClientReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// jsonBuffer is the minimal io.Writer storejson needs; avoids pulling in
// bytes.Buffer's whole API for a single accumulate-then-send use.
type jsonBuffer struct {
	data []byte
}

func (b *jsonBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *jsonBuffer) Bytes() []byte { return b.data }
