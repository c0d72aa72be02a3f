package bank_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
)

func passageText(n int) string {
	return strings.Repeat("a", n)
}

func sampleQuestion(id string, t bank.QuestionType) bank.Question {
	return bank.Question{
		ID:               id,
		Type:             t,
		Difficulty:       bank.DifficultyMedium,
		QuestionText:     "What is the passage mostly about?",
		Options:          [4]string{"Birds", "Trees", "Rivers", "Stones"},
		CorrectAnswer:    1,
		Evidence:         "Found in Paragraph 1: 'The trees were tall.'",
		ValidationStatus: bank.StatusPass,
	}
}

func samplePayload(grade bank.GradeLevel, ids ...string) bank.Payload {
	qs := make(bank.Questions, len(ids))
	for i, id := range ids {
		qs[i] = sampleQuestion(id, bank.TypeMainIdea)
	}
	return bank.Payload{
		Questions: qs,
		Meta: bank.Meta{
			GradeLevel:    grade,
			Difficulty:    bank.DifficultyMedium,
			QuestionTypes: []bank.QuestionType{bank.TypeMainIdea},
			QuestionCount: len(ids),
		},
	}
}

func seedPassage(t *testing.T, s bank.Store, id, user, title string, grade bank.GradeLevel, at time.Time) bank.Passage {
	t.Helper()
	p, err := s.CreatePassage(context.Background(), bank.Passage{
		ID: id, UserID: user, Title: title, Content: passageText(150), GradeLevel: grade, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("create passage %s: %v", id, err)
	}
	return p
}

func seedSet(t *testing.T, s bank.Store, id, passageID, user string, d bank.Difficulty, types []bank.QuestionType, at time.Time) bank.QuestionSet {
	t.Helper()
	pl := samplePayload(bank.GradeM1, id+"-q1", id+"-q2")
	pl.Meta.Difficulty = d
	pl.Meta.QuestionTypes = types
	qs, err := s.CreateQuestionSet(context.Background(), bank.QuestionSet{
		ID: id, PassageID: passageID, UserID: user, Difficulty: d,
		QuestionCount: 2, QuestionTypes: types, Payload: pl, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("create set %s: %v", id, err)
	}
	return qs
}

func storePassageRoundTripAndOwnership(t *testing.T, s bank.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	p := seedPassage(t, s, "p1", "u1", "Forests", bank.GradeM2, at)

	got, err := s.GetPassage(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}

	if _, err := s.GetPassage(ctx, "u2", "p1"); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("other user get: want ErrNotFound, got %v", err)
	}
	p.Title = "stolen"
	p.UserID = "u2"
	if _, err := s.UpdatePassage(ctx, p); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("other user update: want ErrNotFound, got %v", err)
	}
	if err := s.DeletePassage(ctx, "u2", "p1", true); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("other user delete: want ErrNotFound, got %v", err)
	}

	list, err := s.ListPassages(ctx, "u2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("u2 sees %d passages", len(list))
	}
}

func storeQuestionSetRoundTrip(t *testing.T, s bank.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPassage(t, s, "p1", "u1", "Forests", bank.GradeM2, at)

	note := "Option C is also plausible"
	pl := samplePayload(bank.GradeM2, "q1", "q2", "q3")
	pl.Questions[2].ValidationStatus = bank.StatusNeedsFix
	pl.Questions[2].ValidationNote = &note
	in := bank.QuestionSet{
		ID: "s1", PassageID: "p1", UserID: "u1", Difficulty: bank.DifficultyMedium,
		QuestionCount: 3, QuestionTypes: []bank.QuestionType{bank.TypeMainIdea}, Payload: pl, CreatedAt: at,
	}
	if _, err := s.CreateQuestionSet(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetQuestionSet(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got.QuestionSet, in) {
		t.Fatalf("payload changed across save:\n got %+v\nwant %+v", got.QuestionSet, in)
	}
	want := bank.PassageSummary{ID: "p1", Title: "Forests", GradeLevel: bank.GradeM2}
	if got.Passage != want {
		t.Fatalf("passage summary = %+v, want %+v", got.Passage, want)
	}

	if _, err := s.GetQuestionSet(ctx, "u2", "s1"); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("other user: want ErrNotFound, got %v", err)
	}
	if _, err := s.CreateQuestionSet(ctx, bank.QuestionSet{
		ID: "s2", PassageID: "p1", UserID: "u2", Difficulty: bank.DifficultyEasy,
		QuestionCount: 3, QuestionTypes: []bank.QuestionType{bank.TypeDetail}, Payload: pl, CreatedAt: at,
	}); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("create on foreign passage: want ErrNotFound, got %v", err)
	}
}

func storeDeletePassageCascadeAndBlock(t *testing.T, s bank.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPassage(t, s, "p1", "u1", "Forests", bank.GradeM1, at)
	seedSet(t, s, "s1", "p1", "u1", bank.DifficultyEasy, []bank.QuestionType{bank.TypeDetail}, at)

	if err := s.DeletePassage(ctx, "u1", "p1", false); !errors.Is(err, bank.ErrPassageHasSets) {
		t.Fatalf("block: want ErrPassageHasSets, got %v", err)
	}
	if _, err := s.GetQuestionSet(ctx, "u1", "s1"); err != nil {
		t.Fatalf("set must survive a blocked delete: %v", err)
	}

	if err := s.DeletePassage(ctx, "u1", "p1", true); err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if _, err := s.GetPassage(ctx, "u1", "p1"); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("passage still present: %v", err)
	}
	if _, err := s.GetQuestionSet(ctx, "u1", "s1"); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("set still present after cascade: %v", err)
	}
}

func storeListQuestionSetsFilters(t *testing.T, s bank.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedPassage(t, s, "pa", "u1", "Apples in Autumn", bank.GradeM1, base)
	seedPassage(t, s, "pb", "u1", "Bridges of the World", bank.GradeM3, base)
	seedPassage(t, s, "px", "u2", "Apples elsewhere", bank.GradeM1, base)

	seedSet(t, s, "s1", "pa", "u1", bank.DifficultyEasy, []bank.QuestionType{bank.TypeMainIdea}, base.Add(1*time.Minute))
	seedSet(t, s, "s2", "pb", "u1", bank.DifficultyHard, []bank.QuestionType{bank.TypeInference, bank.TypeVocabulary}, base.Add(2*time.Minute))
	seedSet(t, s, "s3", "pa", "u1", bank.DifficultyHard, []bank.QuestionType{bank.TypeDetail}, base.Add(3*time.Minute))
	seedSet(t, s, "sx", "px", "u2", bank.DifficultyEasy, []bank.QuestionType{bank.TypeMainIdea}, base.Add(4*time.Minute))

	ids := func(sets []bank.QuestionSetWithPassage) string {
		out := make([]string, len(sets))
		for i, q := range sets {
			out[i] = q.ID
		}
		return strings.Join(out, ",")
	}

	cases := []struct {
		name string
		opts bank.ListOpts
		want string
	}{
		{"default newest first", bank.ListOpts{}, "s3,s2,s1"},
		{"oldest first", bank.ListOpts{Sort: bank.SortDateAsc}, "s1,s2,s3"},
		{"title asc", bank.ListOpts{Sort: bank.SortTitleAsc}, "s3,s1,s2"},
		{"title desc", bank.ListOpts{Sort: bank.SortTitleDesc}, "s2,s3,s1"},
		{"passage", bank.ListOpts{PassageID: "pa"}, "s3,s1"},
		{"difficulty", bank.ListOpts{Difficulties: []bank.Difficulty{bank.DifficultyHard}}, "s3,s2"},
		{"grade", bank.ListOpts{GradeLevels: []bank.GradeLevel{bank.GradeM3}}, "s2"},
		{"type any-match", bank.ListOpts{QuestionTypes: []bank.QuestionType{bank.TypeVocabulary, bank.TypeDetail}}, "s3,s2"},
		{"search is case-insensitive", bank.ListOpts{Search: "BRIDGES"}, "s2"},
		{"passage and grade", bank.ListOpts{PassageID: "pa", GradeLevels: []bank.GradeLevel{bank.GradeM1}}, "s3,s1"},
		{"passage outside grade", bank.ListOpts{PassageID: "pa", GradeLevels: []bank.GradeLevel{bank.GradeM3}}, ""},
		{"search and page", bank.ListOpts{Search: "apples", Limit: 1, Offset: 1}, "s1"},
		{"page", bank.ListOpts{Limit: 1, Offset: 1}, "s2"},
		{"no match", bank.ListOpts{Search: "volcano"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.UserID = "u1"
			got, err := s.ListQuestionSets(ctx, tc.opts)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if ids(got) != tc.want {
				t.Fatalf("got [%s], want [%s]", ids(got), tc.want)
			}
		})
	}
}

func storeUpdateAndDeleteQuestionSet(t *testing.T, s bank.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPassage(t, s, "p1", "u1", "Forests", bank.GradeM1, at)
	qs := seedSet(t, s, "s1", "p1", "u1", bank.DifficultyEasy, []bank.QuestionType{bank.TypeMainIdea}, at)

	qs.Payload.Questions = qs.Payload.Questions[:1]
	qs.QuestionCount = 1
	qs.Payload.Meta.QuestionCount = 1
	if _, err := s.UpdateQuestionSet(ctx, qs); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetQuestionSet(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuestionCount != 1 || len(got.Payload.Questions) != 1 {
		t.Fatalf("update not persisted: %+v", got.QuestionSet)
	}

	foreign := qs
	foreign.UserID = "u2"
	if _, err := s.UpdateQuestionSet(ctx, foreign); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("foreign update: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteQuestionSet(ctx, "u2", "s1"); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("foreign delete: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteQuestionSet(ctx, "u1", "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteQuestionSet(ctx, "u1", "s1"); !errors.Is(err, bank.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func storeSearchIsLiteral(t *testing.T, s bank.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	titles := []string{"100% Juice", "snake_case Words", "Éclairs à Paris", "Plain Title"}
	for i, title := range titles {
		pid := fmt.Sprintf("p%d", i+1)
		seedPassage(t, s, pid, "u1", title, bank.GradeM1, base)
		seedSet(t, s, fmt.Sprintf("s%d", i+1), pid, "u1", bank.DifficultyEasy, []bank.QuestionType{bank.TypeDetail}, base.Add(time.Duration(i)*time.Minute))
	}

	for search, want := range map[string]string{
		"%":        "s1",
		"_":        "s2",
		`\`:        "",
		"ÉCLAIRS":  "s3",
		"à paris":  "s3",
		"e.c":      "",
		"title":    "s4",
		"snake_ca": "s2",
	} {
		got, err := s.ListQuestionSets(ctx, bank.ListOpts{UserID: "u1", Search: search})
		if err != nil {
			t.Fatalf("search %q: %v", search, err)
		}
		ids := make([]string, len(got))
		for i, q := range got {
			ids[i] = q.ID
		}
		if strings.Join(ids, ",") != want {
			t.Errorf("search %q = [%s], want [%s]", search, strings.Join(ids, ","), want)
		}
	}
}

// storeCases is the behaviour every bank.Store must share.
var storeCases = []struct {
	name string
	run  func(*testing.T, bank.Store)
}{
	{"PassageRoundTripAndOwnership", storePassageRoundTripAndOwnership},
	{"QuestionSetRoundTrip", storeQuestionSetRoundTrip},
	{"DeletePassageCascadeAndBlock", storeDeletePassageCascadeAndBlock},
	{"ListQuestionSetsFilters", storeListQuestionSetsFilters},
	{"SearchIsLiteral", storeSearchIsLiteral},
	{"UpdateAndDeleteQuestionSet", storeUpdateAndDeleteQuestionSet},
}
