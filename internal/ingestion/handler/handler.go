// Package handler serves the collection endpoints: index creation and
// reading back what the store holds.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/logger"
)

// Indexer is the part of *indexer.Engine the handler needs.
type Indexer interface {
	CreateIndex(ctx context.Context, name any, content json.RawMessage) (store.Snapshot, error)
	GetIndex(name string) (index.Index, bool)
	Indexes() store.Snapshot
}

type Handler struct {
	indexer Indexer
	logger  *slog.Logger
}

func New(idx Indexer) *Handler {
	return &Handler{
		indexer: idx,
		logger:  slog.Default().With("component", "ingestion-handler"),
	}
}

// Create serves POST /api/create. Success returns every stored collection;
// failure returns one of the literal messages as a JSON string.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.CreateRequest
	if err := ingestion.DecodeBody(r.Body, &req); err != nil {
		log.Debug("undecodable create body", "error", err)
		h.writeFailure(w, err)
		return
	}

	snap, err := h.indexer.CreateIndex(ctx, req.FileName, req.FileContent)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// ListIndexes serves GET /api/indexes.
func (h *Handler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.indexer.Indexes())
}

// GetIndex serves GET /api/indexes/{fileName}.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.indexer.GetIndex(chi.URLParam(r, "fileName"))
	if !ok {
		h.writeFailure(w, apperrors.ErrIndexNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, idx)
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeMessage(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err))
}

// writeMessage writes message as a bare JSON string, the body clients match
// failures on.
func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
