package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-outcome/listener"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ScenarioStatus is the result of one consolidated scenario
type ScenarioStatus struct {
	Name     string       `json:"name"`
	Title    string       `json:"title"`
	TestCase string       `json:"test_case,omitempty"`
	Result   types.Result `json:"result"`
}

// Status is the state of the run being processed
type Status struct {
	RunID     string           `json:"run_id"`
	Finished  bool             `json:"finished"`
	Summary   listener.Summary `json:"summary"`
	Scenarios []ScenarioStatus `json:"scenarios"`
}

type StatusProvider interface {
	Status() Status
}

type HealthzServer struct {
	log    log.Logger
	status StatusProvider

	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
}

func NewHealthzServer(logger log.Logger, status StatusProvider) *HealthzServer {
	return &HealthzServer{log: logger, status: status}
}

// Router returns the routes of the server
func (h *HealthzServer) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Handle).Methods(http.MethodGet)
	r.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/scenarios/{result}", h.handleScenarios).Methods(http.MethodGet)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(r)
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Handler: h.Router(),
		Addr:    addr,
	}
	h.mu.Lock()
	h.server = server
	h.ctx = ctx
	h.mu.Unlock()
	return server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

func (h *HealthzServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if h.status == nil {
		writeJSON(h.log, w, http.StatusServiceUnavailable, map[string]string{"error": "no run"})
		return
	}
	writeJSON(h.log, w, http.StatusOK, h.status.Status())
}

func (h *HealthzServer) handleScenarios(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := types.ParseResult(vars["result"])
	if err != nil {
		writeJSON(h.log, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if h.status == nil {
		writeJSON(h.log, w, http.StatusServiceUnavailable, map[string]string{"error": "no run"})
		return
	}
	matching := make([]ScenarioStatus, 0)
	for _, s := range h.status.Status().Scenarios {
		if s.Result == result {
			matching = append(matching, s)
		}
	}
	writeJSON(h.log, w, http.StatusOK, matching)
}

func writeJSON(logger log.Logger, w http.ResponseWriter, code int, v any) {
	body, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		logger.Error("failed to marshal response", "err", err)
		code = http.StatusInternalServerError
		body = []byte("internal server error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logger.Error("failed to send response", "err", err)
	}
}
