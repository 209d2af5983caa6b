package api

import (
	"net/http"

	"github.com/sketchduel/backend/internal/classifier"
)

// Predict handles POST /predict by forwarding the drawing to the classifier
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	if h.classifier == nil {
		h.fail(w, r, "classify drawing", classifier.ErrNotConfigured)
		return
	}

	pred, err := h.classifier.Predict(r.Context(), req.ImageData)
	if err != nil {
		h.fail(w, r, "classify drawing", err)
		return
	}

	h.respondJSON(w, http.StatusOK, pred)
}
