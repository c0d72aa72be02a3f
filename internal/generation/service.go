// Package generation turns a stored passage and a set of generation settings
// into a checked list of questions. The pipeline is linear and makes exactly
// one model call per request; any failed stage ends the request.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/llm"
	"github.com/mind-engage/mindengage-qbank/internal/prompt"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
	"github.com/mind-engage/mindengage-qbank/internal/storage"
)

// PassageLoader returns a passage owned by userID.
type PassageLoader interface {
	GetPassage(ctx context.Context, userID, id string) (bank.Passage, error)
}

// Completer sends one prompt to the model and returns its raw answer.
type Completer interface {
	Complete(ctx context.Context, m prompt.Messages) (string, error)
}

type Options struct {
	// Transcripts receives one log per model call when set.
	Transcripts storage.BlobStore
	NewID       func() string
	Now         func() time.Time
}

type Service struct {
	passages    PassageLoader
	model       Completer
	transcripts storage.BlobStore
	newID       func() string
	now         func() time.Time
}

func NewService(passages PassageLoader, model Completer, opts Options) *Service {
	s := &Service{
		passages:    passages,
		model:       model,
		transcripts: opts.Transcripts,
		newID:       opts.NewID,
		now:         opts.Now,
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Generate runs the full pipeline for a raw generation request body.
func (s *Service) Generate(ctx context.Context, userID string, raw []byte) (bank.Payload, error) {
	if userID == "" {
		return bank.Payload{}, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}
	req, err := schema.DecodeGenerationRequest(raw)
	if err != nil {
		return bank.Payload{}, requestErr(err)
	}
	p, err := s.loadPassage(ctx, userID, req.PassageID)
	if err != nil {
		return bank.Payload{}, err
	}

	msgs := prompt.Build(prompt.Input{
		Passage:       p.Content,
		GradeLevel:    req.GradeLevel,
		Difficulty:    req.Difficulty,
		Count:         req.Count,
		QuestionTypes: req.QuestionTypes,
	})
	tr := s.startTranscript(userID, "generate", req)
	payload, err := s.complete(ctx, msgs, tr)
	if err == nil {
		err = checkPayload(payload, req)
	}
	if err != nil {
		tr.finish(ctx, s.transcripts, err)
		return bank.Payload{}, err
	}

	for i := range payload.Questions {
		payload.Questions[i].ID = s.newID()
	}
	tr.finish(ctx, s.transcripts, nil)
	llm.VerboseLog("generation: %d questions for passage %s", len(payload.Questions), p.ID)
	return payload, nil
}

// Regenerate asks for a single replacement question. The result keeps the
// incoming question's id, type and difficulty.
func (s *Service) Regenerate(ctx context.Context, userID string, raw []byte) (bank.Question, error) {
	if userID == "" {
		return bank.Question{}, apperr.New(apperr.KindUnauthorized, "Unauthorized")
	}
	req, err := schema.DecodeRegenerateRequest(raw)
	if err != nil {
		return bank.Question{}, requestErr(err)
	}
	p, err := s.loadPassage(ctx, userID, req.PassageID)
	if err != nil {
		return bank.Question{}, err
	}

	prev := req.Question
	want := schema.GenerationRequest{
		PassageID:     req.PassageID,
		GradeLevel:    req.GradeLevel,
		Difficulty:    prev.Difficulty,
		Count:         1,
		QuestionTypes: []bank.QuestionType{prev.Type},
	}
	tr := s.startTranscript(userID, "regenerate", want)
	payload, err := s.complete(ctx, prompt.BuildReplacement(p.Content, req.GradeLevel, prev), tr)
	if err == nil {
		err = checkPayload(payload, want)
	}
	if err == nil {
		q := payload.Questions[0]
		if q.Type != prev.Type || q.Difficulty != prev.Difficulty {
			err = apperr.WithDetails(apperr.KindSettingsMismatch, "Replacement question does not match the original settings",
				map[string]any{
					"requested": map[string]any{"type": prev.Type, "difficulty": prev.Difficulty},
					"received":  map[string]any{"type": q.Type, "difficulty": q.Difficulty},
				})
		}
	}
	if err != nil {
		tr.finish(ctx, s.transcripts, err)
		return bank.Question{}, err
	}

	q := payload.Questions[0]
	q.ID = prev.ID
	tr.finish(ctx, s.transcripts, nil)
	return q, nil
}

func (s *Service) loadPassage(ctx context.Context, userID, id string) (bank.Passage, error) {
	p, err := s.passages.GetPassage(ctx, userID, id)
	if err == nil {
		return p, nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return bank.Passage{}, err
	}
	if errors.Is(err, bank.ErrNotFound) {
		return bank.Passage{}, apperr.Wrap(apperr.KindNotFound, "Passage not found", err)
	}
	return bank.Passage{}, apperr.Wrap(apperr.KindDatabase, "Failed to load passage", err)
}

// complete calls the model and decodes its answer.
func (s *Service) complete(ctx context.Context, msgs prompt.Messages, tr *transcript) (bank.Payload, error) {
	tr.request(msgs)
	out, err := s.model.Complete(ctx, msgs)
	if err != nil {
		return bank.Payload{}, modelErr(err)
	}
	tr.response(out)
	llm.VerboseLog("generation: raw model answer %d bytes", len(out))

	payload, err := schema.DecodeModelResponse([]byte(out))
	switch {
	case errors.Is(err, schema.ErrInvalidJSON):
		return bank.Payload{}, apperr.Wrap(apperr.KindInvalidJSON, "Model returned invalid JSON", err)
	case err != nil:
		fe, _ := schema.AsFieldErrors(err)
		return bank.Payload{}, &apperr.Error{
			Kind: apperr.KindResponseValidation, Msg: "Model response failed validation", Details: fe, Err: err,
		}
	}
	return payload, nil
}

// checkPayload enforces that the answer matches the request exactly. Nothing
// is truncated or padded.
func checkPayload(p bank.Payload, req schema.GenerationRequest) error {
	got := len(p.Questions)
	if got != req.Count || p.Meta.QuestionCount != req.Count {
		received := got
		if got == req.Count {
			received = p.Meta.QuestionCount
		}
		return apperr.WithDetails(apperr.KindCountMismatch, "Model returned wrong number of questions",
			map[string]int{"expected": req.Count, "received": received})
	}
	if p.Meta.GradeLevel != req.GradeLevel || p.Meta.Difficulty != req.Difficulty ||
		!bank.SameTypes(p.Meta.QuestionTypes, req.QuestionTypes) {
		return apperr.WithDetails(apperr.KindSettingsMismatch, "Model response does not match requested settings",
			map[string]any{
				"requested": map[string]any{
					"grade_level":    req.GradeLevel,
					"difficulty":     req.Difficulty,
					"question_types": req.QuestionTypes,
				},
				"received": p.Meta,
			})
	}
	return nil
}

func requestErr(err error) error {
	if fe, ok := schema.AsFieldErrors(err); ok {
		return &apperr.Error{Kind: apperr.KindValidation, Msg: "Validation failed", Details: fe, Err: err}
	}
	return apperr.Wrap(apperr.KindValidation, "Invalid JSON body", err)
}

func modelErr(err error) error {
	switch {
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, "AI request timed out", err)
	case errors.Is(err, llm.ErrNoContent):
		return apperr.Wrap(apperr.KindNoContent, "No content in AI response", err)
	case errors.Is(err, llm.ErrNotConfigured):
		return apperr.Wrap(apperr.KindUnavailable, "AI service is not configured", err)
	}
	return apperr.Wrap(apperr.KindUnavailable, "AI service error", err)
}
