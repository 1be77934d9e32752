// Package handler exposes the pipeline over thin HTTP endpoints. Handlers only
// decode requests, call the orchestrator, and encode results; routing policy,
// auth, and ingestion formats live with external collaborators.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/spending-coach/internal/domain/sessions"
	"github.com/FACorreiaa/spending-coach/internal/domain/taxonomy"
	"github.com/FACorreiaa/spending-coach/internal/domain/transactions"
	"github.com/FACorreiaa/spending-coach/internal/pipeline"
	"github.com/FACorreiaa/spending-coach/internal/store"
	"github.com/FACorreiaa/spending-coach/internal/synthetic"
)

// Handler serves the analysis API.
type Handler struct {
	orchestrator *pipeline.Orchestrator
	store        store.Store
	taxonomy     *taxonomy.Taxonomy
	generator    *synthetic.Generator
	logger       *slog.Logger
}

// New wires the HTTP layer.
func New(orchestrator *pipeline.Orchestrator, st store.Store, tax *taxonomy.Taxonomy, generator *synthetic.Generator, logger *slog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, store: st, taxonomy: tax, generator: generator, logger: logger}
}

// Router returns the CORS-wrapped route table.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", h.createSession)
	mux.HandleFunc("POST /v1/sessions/{id}/analyze", h.analyze)
	mux.HandleFunc("GET /v1/sessions/{id}/dashboard", h.dashboard)
	mux.HandleFunc("POST /v1/sessions/{id}/goal", h.goal)
	mux.HandleFunc("GET /healthz", h.health)
	return cors.Default().Handler(mux)
}

type transactionInput struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Category    string  `json:"category,omitempty"`
}

type createSessionRequest struct {
	Name         string             `json:"name"`
	Demo         bool               `json:"demo"`
	Transactions []transactionInput `json:"transactions"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !req.Demo && len(req.Transactions) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "a session needs transactions (or demo: true)")
		return
	}

	name := req.Name
	if name == "" {
		name = "session " + time.Now().UTC().Format("2006-01-02")
	}
	session := sessions.New(name)

	var txns []transactions.Transaction
	if req.Demo {
		txns = h.generator.Generate(session.ID, synthetic.DefaultMonths, time.Now().UTC())
	} else {
		for i, in := range req.Transactions {
			txn, err := h.parseTransaction(session.ID, in)
			if err != nil {
				h.writeError(w, http.StatusUnprocessableEntity,
					fmt.Sprintf("transaction %d: %s", i, err))
				return
			}
			txns = append(txns, txn)
		}
	}

	ctx := r.Context()
	if err := h.store.CreateSession(ctx, session); err != nil {
		h.serverError(w, "creating session", err)
		return
	}
	if err := h.store.InsertTransactions(ctx, txns); err != nil {
		h.serverError(w, "inserting transactions", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"session":           session,
		"transaction_count": len(txns),
	})
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	derived, err := h.orchestrator.Run(r.Context(), id)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, "analysis already running for this session")
		return
	case errors.Is(err, store.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, pipeline.ErrNoTransactions):
		h.writeError(w, http.StatusUnprocessableEntity, "session has no transactions to analyze")
		return
	case err != nil:
		h.serverError(w, "running analysis", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"anomalies":  len(derived.Anomalies),
		"recurring":  len(derived.Recurring),
		"deltas":     len(derived.Deltas),
		"insights":   len(derived.Insights),
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	dash, err := h.orchestrator.Dashboard(r.Context(), id)
	if errors.Is(err, store.ErrSessionNotFound) {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.serverError(w, "building dashboard", err)
		return
	}
	h.writeJSON(w, http.StatusOK, dash)
}

type goalRequest struct {
	TargetAmount string `json:"target_amount"`
}

func (h *Handler) goal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target, err := decimal.NewFromString(req.TargetAmount)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "target_amount must be a decimal string")
		return
	}

	forecast, err := h.orchestrator.Forecast(r.Context(), id, target)
	if errors.Is(err, store.ErrSessionNotFound) {
		h.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.serverError(w, "forecasting goal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, forecast)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) parseTransaction(sessionID uuid.UUID, in transactionInput) (transactions.Transaction, error) {
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return transactions.Transaction{}, errors.New("date must be YYYY-MM-DD")
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		return transactions.Transaction{}, errors.New("amount must be a decimal string")
	}

	txn := transactions.Transaction{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Date:           date,
		Description:    transactions.CleanDescription(in.Description),
		RawDescription: in.Description,
		Amount:         amount,
	}

	// A caller-supplied category is a user assignment: terminal, never
	// overwritten by any later analysis run.
	if in.Category != "" {
		c, ok := h.taxonomy.ByName(in.Category)
		if !ok {
			return transactions.Transaction{}, fmt.Errorf("unknown category %q", in.Category)
		}
		conf := 1.0
		txn.CategoryID = &c.ID
		txn.Confidence = &conf
		txn.Source = transactions.SourceUser
	}

	return txn, txn.Validate()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) serverError(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	h.writeError(w, http.StatusInternalServerError, "internal error")
}
