package bank

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
)

// Titler produces a title for passage content. Implementations may call a
// model; errors fall back to FallbackTitle.
type Titler interface {
	Title(ctx context.Context, content string) (string, error)
}

type Options struct {
	Titler Titler
	// Cascade makes passage deletion remove the passage's question sets.
	// Without it deletion of a passage that has sets fails with CONFLICT.
	Cascade bool
	Now     func() time.Time
	NewID   func() string
}

// Service applies the question bank rules on top of a Store. Every error it
// returns is an *apperr.Error.
type Service struct {
	store   Store
	titler  Titler
	cascade bool
	now     func() time.Time
	newID   func() string
}

func NewService(store Store, opts Options) *Service {
	s := &Service{store: store, titler: opts.Titler, cascade: opts.Cascade, now: opts.Now, newID: opts.NewID}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// FallbackTitle is the first 50 characters of content followed by "...".
func FallbackTitle(content string) string {
	r := []rune(content)
	if len(r) > 50 {
		r = r[:50]
	}
	t := strings.TrimSpace(string(r))
	if t == "" {
		return "Untitled Passage"
	}
	return t + "..."
}

// ClampTitle cuts titles longer than MaxTitleLen to 197 characters plus "...".
func ClampTitle(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= MaxTitleLen {
		return title
	}
	r := []rune(title)[:MaxTitleLen-3]
	return strings.TrimSpace(string(r)) + "..."
}

func (s *Service) title(ctx context.Context, content string) string {
	if s.titler == nil {
		return FallbackTitle(content)
	}
	t, err := s.titler.Title(ctx, content)
	if err != nil || strings.TrimSpace(t) == "" {
		if err != nil {
			log.Printf("bank: title generation failed, using fallback: %v", err)
		}
		return FallbackTitle(content)
	}
	return ClampTitle(t)
}

func storeErr(what string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, what+" not found", err)
	case errors.Is(err, ErrPassageHasSets):
		return apperr.Wrap(apperr.KindConflict, "passage has question sets", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, "request timed out", err)
	}
	log.Printf("bank: %s store error: %v", strings.ToLower(what), err)
	return apperr.Wrap(apperr.KindDatabase, "database error", err)
}

func invalid(field, msg string) error {
	return apperr.WithDetails(apperr.KindValidation, "Validation failed", map[string][]string{field: {msg}})
}

func checkContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n < MinPassageLen {
		return invalid("content", fmt.Sprintf("Passage must be at least %d characters", MinPassageLen))
	}
	if n > MaxPassageLen {
		return invalid("content", fmt.Sprintf("Passage must be at most %d characters", MaxPassageLen))
	}
	return nil
}

func checkTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return invalid("title", fmt.Sprintf("Title must be at most %d characters", MaxTitleLen))
	}
	return nil
}

// ---- passages ----

func (s *Service) ListPassages(ctx context.Context, userID string) ([]Passage, error) {
	ps, err := s.store.ListPassages(ctx, userID)
	if err != nil {
		return nil, storeErr("Passages", err)
	}
	return ps, nil
}

func (s *Service) GetPassage(ctx context.Context, userID, id string) (Passage, error) {
	p, err := s.store.GetPassage(ctx, userID, id)
	if err != nil {
		return Passage{}, storeErr("Passage", err)
	}
	return p, nil
}

func (s *Service) CreatePassage(ctx context.Context, userID string, in CreatePassageInput) (Passage, error) {
	if err := checkContent(in.Content); err != nil {
		return Passage{}, err
	}
	if !in.GradeLevel.Valid() {
		return Passage{}, invalid("grade_level", "Invalid grade level")
	}
	title := strings.TrimSpace(in.Title)
	if err := checkTitle(title); err != nil {
		return Passage{}, err
	}
	if title == "" {
		title = s.title(ctx, in.Content)
	}
	p, err := s.store.CreatePassage(ctx, Passage{
		ID:         s.newID(),
		UserID:     userID,
		Title:      title,
		Content:    in.Content,
		GradeLevel: in.GradeLevel,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return Passage{}, storeErr("Passage", err)
	}
	return p, nil
}

// UpdatePassage applies a partial update. A content change without an
// explicit title regenerates the title.
func (s *Service) UpdatePassage(ctx context.Context, userID, id string, in UpdatePassageInput) (Passage, error) {
	p, err := s.store.GetPassage(ctx, userID, id)
	if err != nil {
		return Passage{}, storeErr("Passage", err)
	}
	contentChanged := false
	if in.Content != nil {
		if err := checkContent(*in.Content); err != nil {
			return Passage{}, err
		}
		contentChanged = *in.Content != p.Content
		p.Content = *in.Content
	}
	if in.GradeLevel != nil {
		if !in.GradeLevel.Valid() {
			return Passage{}, invalid("grade_level", "Invalid grade level")
		}
		p.GradeLevel = *in.GradeLevel
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if err := checkTitle(t); err != nil {
			return Passage{}, err
		}
		if t == "" {
			t = s.title(ctx, p.Content)
		}
		p.Title = t
	} else if contentChanged {
		p.Title = s.title(ctx, p.Content)
	}
	out, err := s.store.UpdatePassage(ctx, p)
	if err != nil {
		return Passage{}, storeErr("Passage", err)
	}
	return out, nil
}

func (s *Service) DeletePassage(ctx context.Context, userID, id string) error {
	if err := s.store.DeletePassage(ctx, userID, id, s.cascade); err != nil {
		return storeErr("Passage", err)
	}
	return nil
}

// ---- question sets ----

func (s *Service) ListQuestionSets(ctx context.Context, opts ListOpts) ([]QuestionSetWithPassage, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, invalid("limit", "limit and offset must not be negative")
	}
	out, err := s.store.ListQuestionSets(ctx, opts)
	if err != nil {
		return nil, storeErr("Question sets", err)
	}
	return out, nil
}

func (s *Service) GetQuestionSet(ctx context.Context, userID, id string) (QuestionSetWithPassage, error) {
	qs, err := s.store.GetQuestionSet(ctx, userID, id)
	if err != nil {
		return QuestionSetWithPassage{}, storeErr("Question set", err)
	}
	return qs, nil
}

// checkQuestions validates every question and that ids are present and unique.
func checkQuestions(qs Questions) error {
	details := map[string][]string{}
	seen := map[string]bool{}
	for i, q := range qs {
		key := fmt.Sprintf("payload.questions.%d", i)
		if q.ID == "" {
			details[key] = append(details[key], "id is required")
		} else if seen[q.ID] {
			details[key] = append(details[key], fmt.Sprintf("duplicate id %q", q.ID))
		}
		seen[q.ID] = true
		if err := q.Check(); err != nil {
			details[key] = append(details[key], err.Error())
		}
	}
	if len(details) > 0 {
		return apperr.WithDetails(apperr.KindValidation, "Validation failed", details)
	}
	return nil
}

func (s *Service) CreateQuestionSet(ctx context.Context, userID string, in CreateQuestionSetInput) (QuestionSet, error) {
	if !in.Difficulty.Valid() {
		return QuestionSet{}, invalid("difficulty", "Invalid difficulty")
	}
	if in.QuestionCount < MinSetQuestion || in.QuestionCount > MaxSetQuestion {
		return QuestionSet{}, invalid("question_count",
			fmt.Sprintf("Question count must be between %d and %d", MinSetQuestion, MaxSetQuestion))
	}
	if len(in.QuestionTypes) == 0 {
		return QuestionSet{}, invalid("question_types", "At least one question type is required")
	}
	for _, t := range in.QuestionTypes {
		if !t.Valid() {
			return QuestionSet{}, invalid("question_types", fmt.Sprintf("Invalid question type %q", t))
		}
	}
	got := len(in.Payload.Questions)
	if got != in.QuestionCount || in.Payload.Meta.QuestionCount != in.QuestionCount {
		return QuestionSet{}, apperr.WithDetails(apperr.KindValidation,
			"question_count does not match the payload",
			map[string]int{"expected": in.QuestionCount, "received": got, "meta": in.Payload.Meta.QuestionCount})
	}
	if err := checkQuestions(in.Payload.Questions); err != nil {
		return QuestionSet{}, err
	}

	qs, err := s.store.CreateQuestionSet(ctx, QuestionSet{
		ID:            s.newID(),
		PassageID:     in.PassageID,
		UserID:        userID,
		Difficulty:    in.Difficulty,
		QuestionCount: in.QuestionCount,
		QuestionTypes: in.QuestionTypes,
		Payload:       in.Payload,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return QuestionSet{}, storeErr("Passage", err)
	}
	return qs, nil
}

// PatchQuestionSet applies a partial update. Counts are re-derived from the
// resulting question list; an emptied list deletes the set and returns
// deleted=true.
func (s *Service) PatchQuestionSet(ctx context.Context, userID, id string, patch QuestionSetPatch) (qs QuestionSet, deleted bool, err error) {
	cur, err := s.store.GetQuestionSet(ctx, userID, id)
	if err != nil {
		return QuestionSet{}, false, storeErr("Question set", err)
	}
	qs = cur.QuestionSet
	if patch.Difficulty != nil {
		if !patch.Difficulty.Valid() {
			return QuestionSet{}, false, invalid("difficulty", "Invalid difficulty")
		}
		qs.Difficulty = *patch.Difficulty
		qs.Payload.Meta.Difficulty = *patch.Difficulty
	}
	if patch.QuestionTypes != nil {
		types := *patch.QuestionTypes
		if len(types) == 0 {
			return QuestionSet{}, false, invalid("question_types", "At least one question type is required")
		}
		for _, t := range types {
			if !t.Valid() {
				return QuestionSet{}, false, invalid("question_types", fmt.Sprintf("Invalid question type %q", t))
			}
		}
		qs.QuestionTypes = types
		qs.Payload.Meta.QuestionTypes = types
	}
	if patch.Questions != nil {
		list := *patch.Questions
		if len(list) == 0 {
			if err := s.store.DeleteQuestionSet(ctx, userID, id); err != nil {
				return QuestionSet{}, false, storeErr("Question set", err)
			}
			return QuestionSet{}, true, nil
		}
		if len(list) > MaxSetQuestion {
			return QuestionSet{}, false, invalid("questions",
				fmt.Sprintf("A question set holds at most %d questions", MaxSetQuestion))
		}
		if err := checkQuestions(list); err != nil {
			return QuestionSet{}, false, err
		}
		qs.Payload.Questions = list
	}
	qs.QuestionCount = len(qs.Payload.Questions)
	qs.Payload.Meta.QuestionCount = qs.QuestionCount

	out, err := s.store.UpdateQuestionSet(ctx, qs)
	if err != nil {
		return QuestionSet{}, false, storeErr("Question set", err)
	}
	return out, false, nil
}

// RemoveQuestion drops one question from a saved set. Removing the last
// remaining question deletes the whole set.
func (s *Service) RemoveQuestion(ctx context.Context, userID, setID, questionID string) (qs QuestionSet, deleted bool, err error) {
	cur, err := s.store.GetQuestionSet(ctx, userID, setID)
	if err != nil {
		return QuestionSet{}, false, storeErr("Question set", err)
	}
	list, err := cur.Payload.Questions.Remove(questionID)
	if err != nil {
		return QuestionSet{}, false, apperr.Wrap(apperr.KindNotFound, "Question not found", err)
	}
	return s.PatchQuestionSet(ctx, userID, setID, QuestionSetPatch{Questions: &list})
}

func (s *Service) DeleteQuestionSet(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteQuestionSet(ctx, userID, id); err != nil {
		return storeErr("Question set", err)
	}
	return nil
}
