package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/client"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
)

func newServer(t *testing.T, mux *http.ServeMux) *client.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return client.New(srv.URL + "/")
}

func TestLoginStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "ms.kim" || req["password"] != "pw" {
			apperr.Write(w, apperr.New(apperr.KindUnauthorized, "invalid credentials"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
	mux.HandleFunc("GET /passages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			apperr.Write(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"passages": []bank.Passage{{ID: "p1", Title: "Tides"}}})
	})
	c := newServer(t, mux)
	ctx := context.Background()

	if _, err := c.ListPassages(ctx); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("before login: %v", err)
	}
	if err := c.Login(ctx, "ms.kim", "nope"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("bad login: %v", err)
	}
	if err := c.Login(ctx, "ms.kim", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	ps, err := c.ListPassages(ctx)
	if err != nil || len(ps) != 1 || ps[0].Title != "Tides" {
		t.Fatalf("passages = %+v, %v", ps, err)
	}
}

func TestErrorBodyKeepsKindAndDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		apperr.Write(w, apperr.WithDetails(apperr.KindCountMismatch, "Model returned wrong number of questions",
			map[string]int{"expected": 5, "received": 4}))
	})
	mux.HandleFunc("POST /generate/regenerate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>bad gateway</html>", http.StatusGatewayTimeout)
	})
	c := newServer(t, mux)

	_, err := c.Generate(context.Background(), schema.GenerationRequest{Count: 5})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindCountMismatch {
		t.Fatalf("err = %v", err)
	}
	raw, _ := ae.Details.(json.RawMessage)
	var d map[string]int
	if json.Unmarshal(raw, &d) != nil || d["expected"] != 5 || d["received"] != 4 {
		t.Fatalf("details = %s", raw)
	}
	if !ae.Kind.Retryable() {
		t.Fatal("count mismatch should be retryable")
	}

	if _, err := c.Regenerate(context.Background(), schema.RegenerateRequest{}); !apperr.Is(err, apperr.KindTimeout) {
		t.Fatalf("non-JSON 504: %v", err)
	}
}

func TestListQuestionSetsQuery(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /question-sets", func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{"questionSets": []any{}})
	})
	c := newServer(t, mux)

	_, err := c.ListQuestionSets(context.Background(), bank.ListOpts{
		Difficulties:  []bank.Difficulty{bank.DifficultyEasy, bank.DifficultyHard},
		QuestionTypes: []bank.QuestionType{bank.TypeMainIdea},
		Search:        "tide",
		Sort:          bank.SortTitleAsc,
		Limit:         10,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "difficulty=Easy&difficulty=Hard&limit=10&questionType=Main+Idea&search=tide&sort=title-asc"
	if got != want {
		t.Fatalf("query = %s\nwant    %s", got, want)
	}
}

func TestPatchReportsDeletion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /question-sets/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"questions":[]}` {
			t.Errorf("body = %s", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
	})
	mux.HandleFunc("DELETE /question-sets/{id}/questions/{qid}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"questionSet": bank.QuestionSet{ID: r.PathValue("id"), QuestionCount: 2}})
	})
	c := newServer(t, mux)
	ctx := context.Background()

	empty := bank.Questions{}
	if _, deleted, err := c.PatchQuestionSet(ctx, "s1", bank.QuestionSetPatch{Questions: &empty}); err != nil || !deleted {
		t.Fatalf("patch: deleted=%v err=%v", deleted, err)
	}
	qs, deleted, err := c.RemoveQuestion(ctx, "s1", "q2")
	if err != nil || deleted || qs.ID != "s1" || qs.QuestionCount != 2 {
		t.Fatalf("remove: %+v deleted=%v err=%v", qs, deleted, err)
	}
}
