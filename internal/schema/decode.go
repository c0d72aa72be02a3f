package schema

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
)

// GenerationRequest asks for Count questions about a stored passage.
type GenerationRequest struct {
	PassageID     string              `json:"passageId"`
	GradeLevel    bank.GradeLevel     `json:"gradeLevel"`
	Difficulty    bank.Difficulty     `json:"difficulty"`
	Count         int                 `json:"count"`
	QuestionTypes []bank.QuestionType `json:"questionTypes"`
}

// RegenerateRequest asks for a replacement of a single question. The
// replacement keeps Question.ID, Question.Type and Question.Difficulty.
type RegenerateRequest struct {
	PassageID  string          `json:"passageId"`
	GradeLevel bank.GradeLevel `json:"gradeLevel"`
	Question   bank.Question   `json:"question"`
}

func decode(s *gojsonschema.Schema, raw []byte, v any) error {
	if err := validate(s, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// shape passed but Go types disagree, e.g. 5.0 for an int
		return FieldErrors{RootField: {err.Error()}}
	}
	return nil
}

func DecodeGenerationRequest(raw []byte) (GenerationRequest, error) {
	var req GenerationRequest
	if err := decode(generationRequest, raw, &req); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

func DecodeRegenerateRequest(raw []byte) (RegenerateRequest, error) {
	var req RegenerateRequest
	if err := decode(regenerateRequest, raw, &req); err != nil {
		return RegenerateRequest{}, err
	}
	return req, nil
}

// DecodeModelResponse checks a model answer. Ids the model may have invented
// are cleared; the caller assigns its own.
func DecodeModelResponse(raw []byte) (bank.Payload, error) {
	var p bank.Payload
	if err := decode(modelResponse, raw, &p); err != nil {
		return bank.Payload{}, err
	}
	for i := range p.Questions {
		p.Questions[i].ID = ""
	}
	return p, nil
}

func DecodePassageCreate(raw []byte) (bank.CreatePassageInput, error) {
	var in bank.CreatePassageInput
	if err := decode(passageCreate, raw, &in); err != nil {
		return bank.CreatePassageInput{}, err
	}
	return in, nil
}

func DecodePassageUpdate(raw []byte) (bank.UpdatePassageInput, error) {
	var in bank.UpdatePassageInput
	if err := decode(passageUpdate, raw, &in); err != nil {
		return bank.UpdatePassageInput{}, err
	}
	return in, nil
}

// DecodeQuestionSetCreate also enforces that both counts agree with the
// number of questions in the payload.
func DecodeQuestionSetCreate(raw []byte) (bank.CreateQuestionSetInput, error) {
	var in bank.CreateQuestionSetInput
	if err := decode(questionSetCreate, raw, &in); err != nil {
		return bank.CreateQuestionSetInput{}, err
	}
	fe := FieldErrors{}
	if n := len(in.Payload.Questions); n != in.QuestionCount {
		fe.Add("payload.questions", fmt.Sprintf("expected %d questions, got %d", in.QuestionCount, n))
	}
	if in.Payload.Meta.QuestionCount != in.QuestionCount {
		fe.Add("payload.meta.question_count",
			fmt.Sprintf("must equal question_count (%d), got %d", in.QuestionCount, in.Payload.Meta.QuestionCount))
	}
	if len(fe) > 0 {
		return bank.CreateQuestionSetInput{}, fe
	}
	return in, nil
}

func DecodeQuestionSetPatch(raw []byte) (bank.QuestionSetPatch, error) {
	var p bank.QuestionSetPatch
	if err := decode(questionSetPatch, raw, &p); err != nil {
		return bank.QuestionSetPatch{}, err
	}
	return p, nil
}
