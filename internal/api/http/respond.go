package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	auth "github.com/mind-engage/mindengage-qbank/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
)

// maxBody bounds request bodies; the largest legal one is a 20-question set.
const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures with their cause and sends the
// generic error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	if e.Kind.Status() >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	apperr.Write(w, e)
}

// subject returns the caller's user id or writes 401.
func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		apperr.Write(w, apperr.New(apperr.KindUnauthorized, "Unauthorized"))
		return "", false
	}
	return sub, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, apperr.New(apperr.KindValidation, "Request body too large")
		}
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
	}
	return raw, nil
}

// badRequest turns a decode failure into a validation error carrying the
// field errors as details.
func badRequest(err error) error {
	if fe, ok := schema.AsFieldErrors(err); ok {
		return &apperr.Error{Kind: apperr.KindValidation, Msg: "Validation failed", Details: fe, Err: err}
	}
	return apperr.Wrap(apperr.KindValidation, "Invalid JSON body", err)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
