package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/generation"
	"github.com/mind-engage/mindengage-qbank/internal/llm"
	"github.com/mind-engage/mindengage-qbank/internal/prompt"
	"github.com/mind-engage/mindengage-qbank/internal/storage"
)

const passageID = "0b7a1c55-3f1e-4d8e-9d55-2a3b7f0e9c11"

/* ---------------- fakes ---------------- */

type fakePassages map[string]bank.Passage // key: user|id

func (f fakePassages) GetPassage(_ context.Context, userID, id string) (bank.Passage, error) {
	p, ok := f[userID+"|"+id]
	if !ok {
		return bank.Passage{}, bank.ErrNotFound
	}
	return p, nil
}

type fakeModel struct {
	out   string
	err   error
	calls int
	last  prompt.Messages
}

func (m *fakeModel) Complete(_ context.Context, msgs prompt.Messages) (string, error) {
	m.calls++
	m.last = msgs
	return m.out, m.err
}

type memBlobs map[string]string

func (b memBlobs) Put(_ context.Context, key string, r io.Reader) (string, error) {
	data, _ := io.ReadAll(r)
	b[key] = string(data)
	return key, nil
}

func (b memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	v, ok := b[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func (b memBlobs) List(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range b {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

/* ---------------- helpers ---------------- */

func passages() fakePassages {
	return fakePassages{
		"u1|" + passageID: {ID: passageID, UserID: "u1", Title: "Lighthouse", GradeLevel: bank.GradeM2,
			Content: "The lighthouse keeper climbed the stairs every night. " + strings.Repeat("The sea was loud. ", 8)},
	}
}

func newService(model *fakeModel, blobs storage.BlobStore) *generation.Service {
	n := 0
	return generation.NewService(passages(), model, generation.Options{
		Transcripts: blobs,
		NewID:       func() string { n++; return fmt.Sprintf("gen-%d", n) },
		Now:         func() time.Time { return time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC) },
	})
}

type answerOpts struct {
	n          int
	metaCount  int
	grade      bank.GradeLevel
	difficulty bank.Difficulty
	types      []bank.QuestionType
}

func answer(o answerOpts) string {
	qs := make([]map[string]any, o.n)
	for i := range qs {
		qs[i] = map[string]any{
			"type":              string(o.types[i%len(o.types)]),
			"difficulty":        string(o.difficulty),
			"question_text":     fmt.Sprintf("Question %d?", i+1),
			"options":           []string{"A", "B", "C", "D"},
			"correct_answer":    i % 4,
			"evidence":          "Found in Paragraph 1: 'The lighthouse keeper climbed the stairs'",
			"validation_status": "PASS",
		}
	}
	b, _ := json.Marshal(map[string]any{
		"questions": qs,
		"meta": map[string]any{
			"grade_level":    o.grade,
			"difficulty":     o.difficulty,
			"question_types": o.types,
			"question_count": o.metaCount,
		},
	})
	return string(b)
}

func request(count int, grade bank.GradeLevel, types ...bank.QuestionType) []byte {
	b, _ := json.Marshal(map[string]any{
		"passageId":     passageID,
		"gradeLevel":    grade,
		"difficulty":    bank.DifficultyMedium,
		"count":         count,
		"questionTypes": types,
	})
	return b
}

func wantKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != kind {
		t.Fatalf("want %s, got %v", kind.Code(), err)
	}
	return ae
}

/* ---------------- tests ---------------- */

func TestGenerateSuccess(t *testing.T) {
	blobs := memBlobs{}
	model := &fakeModel{out: answer(answerOpts{n: 3, metaCount: 3, grade: bank.GradeM2, difficulty: bank.DifficultyMedium,
		types: []bank.QuestionType{bank.TypeInference, bank.TypeMainIdea}})}
	svc := newService(model, blobs)

	// requested types in a different order are the same set
	got, err := svc.Generate(context.Background(), "u1", request(3, bank.GradeM2, bank.TypeMainIdea, bank.TypeInference))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got.Questions) != 3 || got.Meta.QuestionCount != 3 {
		t.Fatalf("payload = %+v", got)
	}
	seen := map[string]bool{}
	for _, q := range got.Questions {
		if q.ID == "" || seen[q.ID] {
			t.Fatalf("ids not unique: %+v", got.Questions)
		}
		seen[q.ID] = true
	}
	if !strings.Contains(model.last.User, passages()["u1|"+passageID].Content) {
		t.Fatal("passage not in prompt")
	}

	key := generation.TranscriptKey("u1", time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC), "gen-1")
	tr, ok := blobs[key]
	if !ok {
		t.Fatalf("no transcript at %s; have %v", key, blobs)
	}
	for _, want := range []string{"=== GENERATE ===", "=== LLM REQUEST ===", "=== LLM RESPONSE ===", "Outcome: OK"} {
		if !strings.Contains(tr, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
}

func TestGenerateCountMismatch(t *testing.T) {
	model := &fakeModel{out: answer(answerOpts{n: 4, metaCount: 4, grade: bank.GradeM1, difficulty: bank.DifficultyMedium,
		types: []bank.QuestionType{bank.TypeDetail}})}
	_, err := newService(model, nil).Generate(context.Background(), "u1", request(5, bank.GradeM1, bank.TypeDetail))
	ae := wantKind(t, err, apperr.KindCountMismatch)
	d, _ := ae.Details.(map[string]int)
	if d["expected"] != 5 || d["received"] != 4 {
		t.Fatalf("details = %v", ae.Details)
	}
}

func TestGenerateMetaCountMismatch(t *testing.T) {
	model := &fakeModel{out: answer(answerOpts{n: 5, metaCount: 6, grade: bank.GradeM1, difficulty: bank.DifficultyMedium,
		types: []bank.QuestionType{bank.TypeDetail}})}
	_, err := newService(model, nil).Generate(context.Background(), "u1", request(5, bank.GradeM1, bank.TypeDetail))
	ae := wantKind(t, err, apperr.KindCountMismatch)
	if d, _ := ae.Details.(map[string]int); d["received"] != 6 {
		t.Fatalf("details = %v", ae.Details)
	}
}

func TestGenerateSettingsMismatch(t *testing.T) {
	cases := []struct {
		name string
		o    answerOpts
	}{
		{"grade", answerOpts{n: 2, metaCount: 2, grade: bank.GradeM1, difficulty: bank.DifficultyMedium, types: []bank.QuestionType{bank.TypeDetail}}},
		{"difficulty", answerOpts{n: 2, metaCount: 2, grade: bank.GradeM2, difficulty: bank.DifficultyHard, types: []bank.QuestionType{bank.TypeDetail}}},
		{"types", answerOpts{n: 2, metaCount: 2, grade: bank.GradeM2, difficulty: bank.DifficultyMedium, types: []bank.QuestionType{bank.TypeDetail, bank.TypeVocabulary}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeModel{out: answer(tc.o)}
			_, err := newService(model, nil).Generate(context.Background(), "u1", request(2, bank.GradeM2, bank.TypeDetail))
			ae := wantKind(t, err, apperr.KindSettingsMismatch)
			d, _ := ae.Details.(map[string]any)
			if d["requested"] == nil || d["received"] == nil {
				t.Fatalf("details = %v", ae.Details)
			}
		})
	}
}

func TestGenerateBadModelOutput(t *testing.T) {
	model := &fakeModel{out: "Here are your questions: 1. ..."}
	_, err := newService(model, nil).Generate(context.Background(), "u1", request(1, bank.GradeM2, bank.TypeDetail))
	wantKind(t, err, apperr.KindInvalidJSON)

	model.out = `{"questions":[{"type":"Detail"}],"meta":{}}`
	_, err = newService(model, nil).Generate(context.Background(), "u1", request(1, bank.GradeM2, bank.TypeDetail))
	ae := wantKind(t, err, apperr.KindResponseValidation)
	if ae.Details == nil {
		t.Fatal("field errors missing from details")
	}
}

func TestGenerateModelErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind apperr.Kind
	}{
		{fmt.Errorf("%w: boom", llm.ErrUnavailable), apperr.KindUnavailable},
		{fmt.Errorf("%w: deadline", llm.ErrTimeout), apperr.KindTimeout},
		{llm.ErrNoContent, apperr.KindNoContent},
		{llm.ErrNotConfigured, apperr.KindUnavailable},
	}
	for _, tc := range cases {
		blobs := memBlobs{}
		_, err := newService(&fakeModel{err: tc.err}, blobs).Generate(context.Background(), "u1", request(1, bank.GradeM2, bank.TypeDetail))
		wantKind(t, err, tc.kind)
		for _, tr := range blobs {
			if !strings.Contains(tr, "Outcome: "+string(tc.kind.Code())) {
				t.Errorf("transcript lacks outcome %s:\n%s", tc.kind.Code(), tr)
			}
		}
	}
}

func TestGenerateRejectsBeforeCallingModel(t *testing.T) {
	model := &fakeModel{}
	svc := newService(model, nil)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "", request(1, bank.GradeM2, bank.TypeDetail))
	wantKind(t, err, apperr.KindUnauthorized)

	_, err = svc.Generate(ctx, "u1", request(0, bank.GradeM2, bank.TypeDetail))
	ae := wantKind(t, err, apperr.KindValidation)
	if ae.Details == nil {
		t.Fatal("validation details missing")
	}

	_, err = svc.Generate(ctx, "u1", []byte(`{`))
	wantKind(t, err, apperr.KindValidation)

	_, err = svc.Generate(ctx, "u2", request(1, bank.GradeM2, bank.TypeDetail))
	wantKind(t, err, apperr.KindNotFound)

	if model.calls != 0 {
		t.Fatalf("model called %d times", model.calls)
	}
}

func TestRegenerateKeepsID(t *testing.T) {
	model := &fakeModel{out: answer(answerOpts{n: 1, metaCount: 1, grade: bank.GradeM2, difficulty: bank.DifficultyHard,
		types: []bank.QuestionType{bank.TypeVocabulary}})}
	svc := newService(model, nil)

	body, _ := json.Marshal(map[string]any{
		"passageId":  passageID,
		"gradeLevel": "M2",
		"question": map[string]any{
			"id":                "keep-me",
			"type":              "Vocabulary",
			"difficulty":        "Hard",
			"question_text":     "What does 'loud' mean here?",
			"options":           []string{"quiet", "noisy", "calm", "dark"},
			"correct_answer":    1,
			"evidence":          "Context: 'The sea was loud.'",
			"validation_status": "NEEDS_FIX",
			"validation_note":   "two options are close",
		},
	})
	q, err := svc.Regenerate(context.Background(), "u1", body)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if q.ID != "keep-me" || q.Type != bank.TypeVocabulary || q.QuestionText != "Question 1?" {
		t.Fatalf("question = %+v", q)
	}
	if !strings.Contains(model.last.User, "What does 'loud' mean here?") {
		t.Fatal("old question not shown to the model")
	}

	model.out = answer(answerOpts{n: 2, metaCount: 2, grade: bank.GradeM2, difficulty: bank.DifficultyHard,
		types: []bank.QuestionType{bank.TypeVocabulary}})
	_, err = svc.Regenerate(context.Background(), "u1", body)
	wantKind(t, err, apperr.KindCountMismatch)
}
