package bank_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
)

type fakeTitler struct {
	title string
	err   error
	calls int
}

func (f *fakeTitler) Title(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.title, f.err
}

func newService(t *testing.T, opts bank.Options) (*bank.Service, bank.Store) {
	t.Helper()
	store := bank.NewSQLStore(openTestDB(t), "sqlite")
	n := 0
	opts.NewID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	clock := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	opts.Now = func() time.Time { clock = clock.Add(time.Second); return clock }
	return bank.NewService(store, opts), store
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("want %s, got %v", kind.Code(), err)
	}
}

func TestService_PassageContentBoundaries(t *testing.T) {
	svc, _ := newService(t, bank.Options{})
	ctx := context.Background()
	cases := []struct {
		n  int
		ok bool
	}{
		{99, false}, {100, true}, {10000, true}, {10001, false},
	}
	for _, tc := range cases {
		_, err := svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: passageText(tc.n), GradeLevel: bank.GradeM1})
		if tc.ok && err != nil {
			t.Fatalf("len %d: unexpected error %v", tc.n, err)
		}
		if !tc.ok {
			wantKind(t, err, apperr.KindValidation)
		}
	}
}

func TestService_CreatePassageTitles(t *testing.T) {
	ctx := context.Background()
	content := "The river wound through the valley. " + passageText(120)

	svc, _ := newService(t, bank.Options{})
	p, err := svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: content, GradeLevel: bank.GradeM2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := bank.FallbackTitle(content); p.Title != want {
		t.Fatalf("title = %q, want %q", p.Title, want)
	}

	ft := &fakeTitler{title: "The Winding River"}
	svc, _ = newService(t, bank.Options{Titler: ft})
	p, err = svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: content, GradeLevel: bank.GradeM2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != "The Winding River" {
		t.Fatalf("title = %q", p.Title)
	}

	p, err = svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: content, GradeLevel: bank.GradeM2, Title: "  Mine  "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != "Mine" || ft.calls != 1 {
		t.Fatalf("explicit title: got %q after %d titler calls", p.Title, ft.calls)
	}

	svc, _ = newService(t, bank.Options{Titler: &fakeTitler{err: errors.New("model down")}})
	p, err = svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: content, GradeLevel: bank.GradeM2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != bank.FallbackTitle(content) {
		t.Fatalf("titler failure must fall back, got %q", p.Title)
	}

	_, err = svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: content, GradeLevel: bank.GradeM2, Title: strings.Repeat("t", 201)})
	wantKind(t, err, apperr.KindValidation)
}

func TestClampTitle(t *testing.T) {
	long := strings.Repeat("x", 250)
	got := bank.ClampTitle(long)
	if len(got) != 200 || !strings.HasSuffix(got, "...") {
		t.Fatalf("clamp: len=%d %q", len(got), got[len(got)-5:])
	}
	if bank.ClampTitle(" ok ") != "ok" {
		t.Fatal("short titles are only trimmed")
	}
}

func TestService_UpdatePassageRetitlesOnContentChange(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTitler{title: "First"}
	svc, _ := newService(t, bank.Options{Titler: ft})
	p, err := svc.CreatePassage(ctx, "u1", bank.CreatePassageInput{Content: passageText(120), GradeLevel: bank.GradeM1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ft.title = "Second"
	grade := bank.GradeM3
	p, err = svc.UpdatePassage(ctx, "u1", p.ID, bank.UpdatePassageInput{GradeLevel: &grade})
	if err != nil {
		t.Fatalf("update grade: %v", err)
	}
	if p.Title != "First" || p.GradeLevel != bank.GradeM3 {
		t.Fatalf("grade-only update changed title: %+v", p)
	}

	content := passageText(130)
	p, err = svc.UpdatePassage(ctx, "u1", p.ID, bank.UpdatePassageInput{Content: &content})
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	if p.Title != "Second" || p.Content != content {
		t.Fatalf("content update: %+v", p)
	}

	short := passageText(99)
	_, err = svc.UpdatePassage(ctx, "u1", p.ID, bank.UpdatePassageInput{Content: &short})
	wantKind(t, err, apperr.KindValidation)

	_, err = svc.UpdatePassage(ctx, "u2", p.ID, bank.UpdatePassageInput{Content: &content})
	wantKind(t, err, apperr.KindNotFound)
}

func createSet(t *testing.T, svc *bank.Service, userID string, n int) (bank.Passage, bank.QuestionSet) {
	t.Helper()
	ctx := context.Background()
	p, err := svc.CreatePassage(ctx, userID, bank.CreatePassageInput{Content: passageText(200), GradeLevel: bank.GradeM1, Title: "Birds"})
	if err != nil {
		t.Fatalf("create passage: %v", err)
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("q%d", i+1)
	}
	qs, err := svc.CreateQuestionSet(ctx, userID, bank.CreateQuestionSetInput{
		PassageID:     p.ID,
		Difficulty:    bank.DifficultyMedium,
		QuestionCount: n,
		QuestionTypes: []bank.QuestionType{bank.TypeMainIdea},
		Payload:       samplePayload(bank.GradeM1, ids...),
	})
	if err != nil {
		t.Fatalf("create set: %v", err)
	}
	return p, qs
}

func TestService_CreateQuestionSetCountInvariant(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, bank.Options{})
	p, _ := createSet(t, svc, "u1", 3)

	in := bank.CreateQuestionSetInput{
		PassageID:     p.ID,
		Difficulty:    bank.DifficultyMedium,
		QuestionCount: 5,
		QuestionTypes: []bank.QuestionType{bank.TypeMainIdea},
		Payload:       samplePayload(bank.GradeM1, "a", "b", "c", "d"),
	}
	_, err := svc.CreateQuestionSet(ctx, "u1", in)
	wantKind(t, err, apperr.KindValidation)

	in.QuestionCount = 4
	in.Payload.Meta.QuestionCount = 3
	_, err = svc.CreateQuestionSet(ctx, "u1", in)
	wantKind(t, err, apperr.KindValidation)

	in.Payload.Meta.QuestionCount = 4
	in.Payload.Questions[1].CorrectAnswer = 4
	_, err = svc.CreateQuestionSet(ctx, "u1", in)
	wantKind(t, err, apperr.KindValidation)

	in.Payload.Questions[1].CorrectAnswer = 3
	_, err = svc.CreateQuestionSet(ctx, "u2", in)
	wantKind(t, err, apperr.KindNotFound)

	if _, err := svc.CreateQuestionSet(ctx, "u1", in); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}
}

func TestService_RemoveQuestion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, bank.Options{})
	_, qs := createSet(t, svc, "u1", 3)

	out, deleted, err := svc.RemoveQuestion(ctx, "u1", qs.ID, "q2")
	if err != nil || deleted {
		t.Fatalf("remove q2: deleted=%v err=%v", deleted, err)
	}
	if out.QuestionCount != 2 || out.Payload.Meta.QuestionCount != 2 {
		t.Fatalf("counts not rewritten: %d / %d", out.QuestionCount, out.Payload.Meta.QuestionCount)
	}
	if out.Payload.Questions[0].ID != "q1" || out.Payload.Questions[1].ID != "q3" {
		t.Fatalf("order not kept: %+v", out.Payload.Questions)
	}

	_, _, err = svc.RemoveQuestion(ctx, "u1", qs.ID, "q2")
	wantKind(t, err, apperr.KindNotFound)

	if _, _, err := svc.RemoveQuestion(ctx, "u1", qs.ID, "q1"); err != nil {
		t.Fatalf("remove q1: %v", err)
	}
	_, deleted, err = svc.RemoveQuestion(ctx, "u1", qs.ID, "q3")
	if err != nil || !deleted {
		t.Fatalf("removing the last question must delete the set: deleted=%v err=%v", deleted, err)
	}
	_, err = svc.GetQuestionSet(ctx, "u1", qs.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestService_PatchQuestionSetRederivesCounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, bank.Options{})
	_, qs := createSet(t, svc, "u1", 2)

	list := append(bank.Questions{}, qs.Payload.Questions...)
	extra := sampleQuestion("q9", bank.TypeDetail)
	list = append(list, extra)
	hard := bank.DifficultyHard
	out, deleted, err := svc.PatchQuestionSet(ctx, "u1", qs.ID, bank.QuestionSetPatch{Difficulty: &hard, Questions: &list})
	if err != nil || deleted {
		t.Fatalf("patch: deleted=%v err=%v", deleted, err)
	}
	if out.QuestionCount != 3 || out.Payload.Meta.QuestionCount != 3 || out.Difficulty != bank.DifficultyHard {
		t.Fatalf("patched set: %+v", out)
	}

	bad := append(bank.Questions{}, list...)
	bad[0].Options[2] = " "
	_, _, err = svc.PatchQuestionSet(ctx, "u1", qs.ID, bank.QuestionSetPatch{Questions: &bad})
	wantKind(t, err, apperr.KindValidation)

	empty := bank.Questions{}
	_, deleted, err = svc.PatchQuestionSet(ctx, "u1", qs.ID, bank.QuestionSetPatch{Questions: &empty})
	if err != nil || !deleted {
		t.Fatalf("empty patch must delete: deleted=%v err=%v", deleted, err)
	}
}

func TestService_DeletePassagePolicy(t *testing.T) {
	ctx := context.Background()

	block, _ := newService(t, bank.Options{})
	p, qs := createSet(t, block, "u1", 1)
	err := block.DeletePassage(ctx, "u1", p.ID)
	wantKind(t, err, apperr.KindConflict)
	if _, err := block.GetQuestionSet(ctx, "u1", qs.ID); err != nil {
		t.Fatalf("set removed by a blocked delete: %v", err)
	}

	cascade, _ := newService(t, bank.Options{Cascade: true})
	p, qs = createSet(t, cascade, "u1", 1)
	if err := cascade.DeletePassage(ctx, "u1", p.ID); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
	_, err = cascade.GetQuestionSet(ctx, "u1", qs.ID)
	wantKind(t, err, apperr.KindNotFound)
}
