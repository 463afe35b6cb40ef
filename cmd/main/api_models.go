package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kmcd77/glossa/pkg/chain"
	"github.com/kmcd77/glossa/pkg/corpus"
	"github.com/kmcd77/glossa/pkg/store"
)

// ModelAPI holds the dependencies for the chain model API handlers.
type ModelAPI struct {
	st     *store.Store
	models *Registry
	config *Config
	logger *slog.Logger
}

// NewModelAPI creates a new instance of the ModelAPI.
func NewModelAPI(st *store.Store, models *Registry, config *Config, logger *slog.Logger) *ModelAPI {
	return &ModelAPI{
		st:     st,
		models: models,
		config: config,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/models endpoints.
func (m *ModelAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/models", m.handleListAndCreateModels)
	mux.HandleFunc("/api/models/import", m.handleImport)
	mux.HandleFunc("/api/models/", m.handleModelByName)
	mux.HandleFunc("/api/stats", m.handleStoreStats)
}

type CreateModelRequest struct {
	Name       string `json:"name"`
	Order      int    `json:"order"`
	Terminator string `json:"terminator"`
}

type PruneRequest struct {
	MinFreq int `json:"minFreq"`
}

type TrainResponse struct {
	Samples int              `json:"samples"`
	Stats   chain.ModelStats `json:"stats"`
}

type GenerateResponse struct {
	Results   []string `json:"results"`
	Truncated bool     `json:"truncated"`
}

// handleListAndCreateModels handles GET for listing and POST for creating models.
func (m *ModelAPI) handleListAndCreateModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		models, err := m.st.List(r.Context())
		if err != nil {
			m.logger.Error("Failed to list models", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
			return
		}
		// Convert map to slice for consistent JSON output
		modelList := make([]store.ModelInfo, 0, len(models))
		for _, model := range models {
			modelList = append(modelList, model)
		}
		respondWithJSON(w, http.StatusOK, modelList)

	case http.MethodPost:
		var req CreateModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if req.Name == "" {
			respondWithError(w, http.StatusBadRequest, "Model name is required")
			return
		}
		if _, ok := m.models.Get(req.Name); ok {
			respondWithError(w, http.StatusConflict, "A model with that name already exists")
			return
		}
		if req.Order == 0 {
			req.Order = m.config.Model.DefaultOrder
		}
		if req.Terminator == "" {
			req.Terminator = m.config.Model.Terminator
		}
		terminator, size := utf8.DecodeRuneInString(req.Terminator)
		if size == 0 || size != len(req.Terminator) {
			respondWithError(w, http.StatusBadRequest, "Terminator must be a single character")
			return
		}

		model, err := chain.New(req.Order, terminator)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to create model: %v", err))
			return
		}
		model.SetLogger(m.logger)
		if err = m.st.Save(r.Context(), req.Name, model); err != nil {
			m.logger.Error("Failed to save new model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create model: %v", err))
			return
		}
		m.models.Set(req.Name, model)

		info, err := m.st.Get(r.Context(), req.Name)
		if err != nil {
			m.logger.Error("Failed to retrieve newly created model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to verify model creation: %v", err))
			return
		}
		respondWithJSON(w, http.StatusCreated, info)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleModelByName routes actions for a specific model, e.g., train, generate, export, delete.
func (m *ModelAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	parts := strings.Split(path, "/")
	modelName := parts[0]

	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	model, ok := m.models.Get(modelName)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Model not found")
		return
	}

	if len(parts) == 1 { // Path is just /api/models/{name}
		if r.Method == http.MethodDelete {
			info, err := m.st.Get(r.Context(), modelName)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				m.logger.Error("Failed to get model info", "name", modelName, "error", err)
				respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
				return
			}
			if err == nil {
				if err = m.st.Delete(r.Context(), info); err != nil {
					m.logger.Error("Failed to remove model", "name", modelName, "error", err)
					respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove model: %v", err))
					return
				}
			}
			m.models.Remove(modelName)
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.Header().Set("Allow", "DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	action := parts[1]
	switch action {
	case "train":
		m.handleTrain(w, r, modelName, model)
	case "generate":
		m.handleGenerate(w, r, modelName, model)
	case "export":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", modelName))
		if err := model.Export(w); err != nil {
			m.logger.Error("Failed to export model", "name", modelName, "error", err)
		}
	case "prune":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req PruneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		removed := model.Prune(req.MinFreq)
		if err := m.st.Save(r.Context(), modelName, model); err != nil {
			m.logger.Error("Failed to save pruned model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save pruned model: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int{"removed": removed})
	case "stats":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		respondWithJSON(w, http.StatusOK, model.Stats())
	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

// handleTrain feeds the request body through the selected corpus reader and
// folds the samples into the model, persisting the result.
func (m *ModelAPI) handleTrain(w http.ResponseWriter, r *http.Request, modelName string, model *chain.Model) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var samples []string
	var err error
	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		samples, err = corpus.NamesCSV(r.Body)
	case "sentences":
		samples, err = corpus.Sentences(r.Body, '.')
	case "lines", "":
		samples, err = corpus.Lines(r.Body)
	default:
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown training format %q", format))
		return
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read training data: %v", err))
		return
	}

	if err = model.TrainCorpus(samples); err != nil {
		if errors.Is(err, chain.ErrInvalidConfig) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Training rejected: %v", err))
			return
		}
		m.logger.Error("Failed to train model", "name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Training failed: %v", err))
		return
	}

	if err = m.st.Save(r.Context(), modelName, model); err != nil {
		m.logger.Error("Failed to save trained model", "name", modelName, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save trained model: %v", err))
		return
	}

	respondWithJSON(w, http.StatusOK, TrainResponse{Samples: len(samples), Stats: model.Stats()})
}

// handleGenerate produces one or more outputs from the model. A model that
// cannot continue from its current context reports 409, since retraining is
// what fixes it, not retrying.
func (m *ModelAPI) handleGenerate(w http.ResponseWriter, r *http.Request, modelName string, model *chain.Model) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	count := m.config.Generate.DefaultCount
	if raw := query.Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "Count must be a positive integer")
			return
		}
		count = parsed
	}
	if count > m.config.Generate.MaxCount {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Count exceeds the configured maximum of %d", m.config.Generate.MaxCount))
		return
	}
	seed := query.Get("seed")

	resp := GenerateResponse{Results: make([]string, 0, count)}
	for i := 0; i < count; i++ {
		out, err := model.GenerateFrom(r.Context(), seed, chain.WithMaxSteps(m.config.Generate.MaxSteps))
		switch {
		case errors.Is(err, chain.ErrBudgetExceeded):
			// Keep the truncated output but tell the client about it.
			resp.Truncated = true
		case errors.Is(err, chain.ErrUnseenContext):
			respondWithError(w, http.StatusConflict, fmt.Sprintf("Generation failed: %v", err))
			return
		case err != nil:
			m.logger.Error("Failed to generate from model", "name", modelName, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Generation failed: %v", err))
			return
		}
		resp.Results = append(resp.Results, out)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// handleImport creates a model from an uploaded JSON export.
func (m *ModelAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}
	if _, ok := m.models.Get(name); ok {
		respondWithError(w, http.StatusConflict, "A model with that name already exists")
		return
	}

	model, err := chain.Import(r.Body)
	if err != nil {
		if errors.Is(err, chain.ErrInvalidConfig) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import rejected: %v", err))
			return
		}
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}
	model.SetLogger(m.logger)

	if err = m.st.Save(r.Context(), name, model); err != nil {
		m.logger.Error("Failed to save imported model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save imported model: %v", err))
		return
	}
	m.models.Set(name, model)

	info, err := m.st.Get(r.Context(), name)
	if err != nil {
		m.logger.Error("Failed to retrieve imported model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to verify import: %v", err))
		return
	}
	respondWithJSON(w, http.StatusCreated, info)
}

// handleStoreStats reports aggregated statistics across the whole database.
func (m *ModelAPI) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	st, err := m.st.Stats(r.Context())
	if err != nil {
		m.logger.Error("Failed to get store stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve stats: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}
