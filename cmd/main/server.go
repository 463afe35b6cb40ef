package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/kmcd77/glossa/pkg/chain"
	"github.com/kmcd77/glossa/pkg/store"
)

// Registry holds the in-memory models currently served, keyed by name. The
// database is the durable copy; the registry is what requests train against
// and generate from.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*chain.Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*chain.Model)}
}

func (r *Registry) Get(name string) (*chain.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

func (r *Registry) Set(name string, m *chain.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = m
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, name)
}

type Server struct {
	config    *Config
	db        *sql.DB
	st        *store.Store
	logger    *slog.Logger
	models    *Registry
	modelAPI  *ModelAPI
	serverAPI *ServerAPI
	apiMux    *http.ServeMux
}

func NewServer(config *Config, logger *slog.Logger, db *sql.DB, st *store.Store, actionChan chan string) (*Server, error) {

	// Load every stored model into memory so generation never waits on the
	// database.
	models := NewRegistry()
	infos, err := st.List(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list stored models: %w", err)
	}
	for name := range infos {
		m, err := st.Load(context.Background(), name)
		if err != nil {
			return nil, fmt.Errorf("failed to load model '%s': %w", name, err)
		}
		m.SetLogger(logger)
		models.Set(name, m)
	}
	logger.Info("Loaded stored models", "count", len(infos))

	// api initialization
	modelAPI := NewModelAPI(st, models, config, logger)
	serverAPI := NewServerAPI(config, actionChan, logger)

	// create object, register routes to the mux, and return it
	server := &Server{
		config:    config,
		db:        db,
		st:        st,
		logger:    logger,
		models:    models,
		modelAPI:  modelAPI,
		serverAPI: serverAPI,
		apiMux:    http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.modelAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// The health check stays outside the request-id wrapper so something
	// like docker can poll it without generating log noise.
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", server.withRequestID(apiMux))

	return server, nil
}

// withRequestID tags every API request with a unique id, echoed in the
// X-Request-Id header so clients can quote it when reporting a problem.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		s.logger.Debug("Api request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
