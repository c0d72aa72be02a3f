package http

import (
	"context"
	"net/http"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
)

// Generator is the part of generation.Service the handlers need.
type Generator interface {
	Generate(ctx context.Context, userID string, raw []byte) (bank.Payload, error)
	Regenerate(ctx context.Context, userID string, raw []byte) (bank.Question, error)
}

// GenerateHandler answers POST /generate with {questions, meta}.
func GenerateHandler(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		raw, err := readBody(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		payload, err := gen.Generate(r.Context(), userID, raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func RegenerateHandler(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		raw, err := readBody(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		q, err := gen.Regenerate(r.Context(), userID, raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"question": q})
	}
}
