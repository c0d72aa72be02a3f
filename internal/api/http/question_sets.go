package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
)

const maxListLimit = 100

// multi collects a filter given either repeated (?difficulty=Easy&difficulty=Hard)
// or comma separated (?difficulty=Easy,Hard).
func multi(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// listOpts parses the bank listing query string.
func listOpts(q url.Values, userID string) (bank.ListOpts, error) {
	opts := bank.ListOpts{
		UserID:    userID,
		PassageID: strings.TrimSpace(q.Get("passageId")),
		Search:    strings.TrimSpace(q.Get("search")),
		Sort:      bank.ParseSort(q.Get("sort")),
		Limit:     parseIntDefault(q.Get("limit"), 50),
		Offset:    parseIntDefault(q.Get("offset"), 0),
	}
	if opts.Limit == 0 || opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	fe := schema.FieldErrors{}
	for _, s := range multi(q, "difficulty") {
		d, err := bank.ParseDifficulty(s)
		if err != nil {
			fe.Add("difficulty", err.Error())
			continue
		}
		opts.Difficulties = append(opts.Difficulties, d)
	}
	for _, s := range multi(q, "gradeLevel") {
		g, err := bank.ParseGradeLevel(s)
		if err != nil {
			fe.Add("gradeLevel", err.Error())
			continue
		}
		opts.GradeLevels = append(opts.GradeLevels, g)
	}
	if types := multi(q, "questionType"); len(types) > 0 {
		ts, err := bank.ParseQuestionTypes(types)
		if err != nil {
			fe.Add("questionType", err.Error())
		}
		opts.QuestionTypes = ts
	}
	if len(fe) > 0 {
		return bank.ListOpts{}, badRequest(fe)
	}
	return opts, nil
}

func ListQuestionSetsHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		opts, err := listOpts(r.URL.Query(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sets, err := svc.ListQuestionSets(r.Context(), opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if sets == nil {
			sets = []bank.QuestionSetWithPassage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"questionSets": sets})
	}
}

func GetQuestionSetHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		qs, err := svc.GetQuestionSet(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questionSet": qs})
	}
}

func CreateQuestionSetHandler(svc *bank.Service) http.HandlerFunc {
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
		in, err := schema.DecodeQuestionSetCreate(raw)
		if err != nil {
			writeError(w, r, badRequest(err))
			return
		}
		qs, err := svc.CreateQuestionSet(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"questionSet": qs})
	}
}

// PatchQuestionSetHandler answers {questionSet}, or {deleted: true} when the
// patch removed every question.
func PatchQuestionSetHandler(svc *bank.Service) http.HandlerFunc {
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
		patch, err := schema.DecodeQuestionSetPatch(raw)
		if err != nil {
			writeError(w, r, badRequest(err))
			return
		}
		qs, deleted, err := svc.PatchQuestionSet(r.Context(), userID, chi.URLParam(r, "id"), patch)
		writeSetResult(w, r, qs, deleted, err)
	}
}

func DeleteQuestionSetHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteQuestionSet(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// RemoveQuestionHandler deletes one question from a saved set.
func RemoveQuestionHandler(svc *bank.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		questionID := chi.URLParam(r, "questionID")
		if questionID == "" {
			writeError(w, r, apperr.New(apperr.KindValidation, "Question id is required"))
			return
		}
		qs, deleted, err := svc.RemoveQuestion(r.Context(), userID, chi.URLParam(r, "id"), questionID)
		writeSetResult(w, r, qs, deleted, err)
	}
}

func writeSetResult(w http.ResponseWriter, r *http.Request, qs bank.QuestionSet, deleted bool, err error) {
	switch {
	case err != nil:
		writeError(w, r, err)
	case deleted:
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"questionSet": qs})
	}
}
