package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/llm"
	"github.com/mind-engage/mindengage-qbank/internal/prompt"
)

// fakeOpenAI serves /v1/chat/completions with the given handler and records
// the last decoded request body.
func fakeOpenAI(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &last)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func client(srv *httptest.Server, model string, timeout time.Duration) *llm.Client {
	return llm.New(llm.Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: model, Timeout: timeout})
}

var msgs = prompt.Messages{System: "sys", User: "usr"}

func TestCompleteSendsJSONModeAndStripsFences(t *testing.T) {
	srv, last := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completion("```json\n{\"ok\":true}\n```"))
	})

	out, err := client(srv, "gpt-4o-mini", time.Second).Complete(context.Background(), msgs)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("out = %q", out)
	}
	req := *last
	if req["model"] != "gpt-4o-mini" || req["temperature"] != 0.7 {
		t.Fatalf("request = %v", req)
	}
	if rf, _ := req["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Fatalf("response_format = %v", req["response_format"])
	}
	ms, _ := req["messages"].([]any)
	if len(ms) != 2 {
		t.Fatalf("messages = %v", ms)
	}
}

func TestCompleteOmitsTemperatureForFixedModels(t *testing.T) {
	srv, last := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completion(`{}`))
	})
	if _, err := client(srv, "gpt-5-mini", time.Second).Complete(context.Background(), msgs); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, ok := (*last)["temperature"]; ok {
		t.Fatalf("temperature sent for gpt-5-mini: %v", *last)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := llm.New(llm.Config{}).Complete(context.Background(), msgs)
		if !errors.Is(err, llm.ErrNotConfigured) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("api error", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
		})
		_, err := client(srv, "gpt-4o-mini", time.Second).Complete(context.Background(), msgs)
		if !errors.Is(err, llm.ErrUnavailable) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("no choices", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
		})
		_, err := client(srv, "gpt-4o-mini", time.Second).Complete(context.Background(), msgs)
		if !errors.Is(err, llm.ErrNoContent) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("empty content", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, completion("  ``` ```  "))
		})
		_, err := client(srv, "gpt-4o-mini", time.Second).Complete(context.Background(), msgs)
		if !errors.Is(err, llm.ErrNoContent) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("timeout", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		_, err := client(srv, "gpt-4o-mini", 30*time.Millisecond).Complete(context.Background(), msgs)
		if !errors.Is(err, llm.ErrTimeout) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                   `{"a":1}`,
		"  ```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":         `{"a":1}`,
		"```JSON {\"a\":1} ```":     `{"a":1}`,
		"not json":                  "not json",
	}
	for in, want := range cases {
		if got := llm.StripFences(in); got != want {
			t.Errorf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTitle(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completion(`{"title":"  The Lighthouse Keeper "}`))
	})
	got, err := client(srv, "gpt-4o-mini", time.Second).Title(context.Background(), "passage")
	if err != nil || got != "The Lighthouse Keeper" {
		t.Fatalf("title = %q, err = %v", got, err)
	}

	srv2, _ := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completion(`{"name":"wrong key"}`))
	})
	if _, err := client(srv2, "gpt-4o-mini", time.Second).Title(context.Background(), "passage"); err == nil {
		t.Fatal("missing title accepted")
	}
}
