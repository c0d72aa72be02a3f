package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
)

func ListPassagesHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		list, err := svc.ListPassages(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []bank.Passage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"passages": list})
	}
}

func GetPassageHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		p, err := svc.GetPassage(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"passage": p})
	}
}

func CreatePassageHandler(svc *bank.Service) http.HandlerFunc {
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
		in, err := schema.DecodePassageCreate(raw)
		if err != nil {
			writeError(w, r, badRequest(err))
			return
		}
		p, err := svc.CreatePassage(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"passage": p})
	}
}

func UpdatePassageHandler(svc *bank.Service) http.HandlerFunc {
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
		in, err := schema.DecodePassageUpdate(raw)
		if err != nil {
			writeError(w, r, badRequest(err))
			return
		}
		p, err := svc.UpdatePassage(r.Context(), userID, chi.URLParam(r, "id"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"passage": p})
	}
}

func DeletePassageHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		if err := svc.DeletePassage(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
