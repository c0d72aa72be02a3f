package generation

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/prompt"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
	"github.com/mind-engage/mindengage-qbank/internal/storage"
)

// transcript collects one model exchange in memory and writes it to the blob
// store when the request ends. A nil *transcript records nothing.
type transcript struct {
	key string
	buf bytes.Buffer
	now func() time.Time
}

// TranscriptKey is where a call's transcript is stored.
func TranscriptKey(userID string, at time.Time, id string) string {
	return fmt.Sprintf("generations/%s/%s-%s.log", userID, at.UTC().Format("20060102T150405Z"), id)
}

func (s *Service) startTranscript(userID, kind string, req schema.GenerationRequest) *transcript {
	if s.transcripts == nil {
		return nil
	}
	at := s.now()
	id := s.newID()
	tr := &transcript{key: TranscriptKey(userID, at, id), now: s.now}
	tr.logf("=== %s ===\n", strings.ToUpper(kind))
	tr.logf("Request ID: %s\n", id)
	tr.logf("User: %s\n", userID)
	tr.logf("Passage: %s\n", req.PassageID)
	tr.logf("Grade Level: %s\n", req.GradeLevel)
	tr.logf("Difficulty: %s\n", req.Difficulty)
	tr.logf("Question Types: %s\n", joinTypes(req))
	tr.logf("Count: %d\n", req.Count)
	tr.logf("Started: %s\n\n", at.UTC().Format(time.RFC3339))
	return tr
}

func joinTypes(req schema.GenerationRequest) string {
	ss := make([]string, len(req.QuestionTypes))
	for i, t := range req.QuestionTypes {
		ss[i] = string(t)
	}
	return strings.Join(ss, ", ")
}

func (t *transcript) logf(format string, args ...any) {
	if t == nil {
		return
	}
	fmt.Fprintf(&t.buf, "[%s] ", t.now().UTC().Format("15:04:05.000"))
	fmt.Fprintf(&t.buf, format, args...)
}

func (t *transcript) request(m prompt.Messages) {
	t.logf("=== LLM REQUEST ===\nSystem:\n%s\n\nUser:\n%s\n\n", m.System, m.User)
}

func (t *transcript) response(raw string) {
	t.logf("=== LLM RESPONSE ===\n%s\n\n", raw)
}

// finish appends the outcome and stores the transcript. Storage failures are
// logged and never reach the caller.
func (t *transcript) finish(ctx context.Context, store storage.BlobStore, err error) {
	if t == nil {
		return
	}
	if err != nil {
		t.logf("Outcome: %s (%v)\n", apperr.KindOf(err).Code(), err)
	} else {
		t.logf("Outcome: OK\n")
	}
	// the request context may already be done; the transcript is still wanted
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, perr := store.Put(wctx, t.key, &t.buf); perr != nil {
		log.Printf("generation: store transcript %s: %v", t.key, perr)
	}
}
