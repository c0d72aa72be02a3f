// Package schema checks untrusted JSON (request bodies and model output)
// against JSON-schema documents and decodes it into bank types.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RootField keys errors that belong to the document rather than a field.
const RootField = "_root"

// ErrInvalidJSON is returned when the input is not JSON at all.
var ErrInvalidJSON = errors.New("invalid JSON")

// FieldErrors maps a dotted field path (using the document's own keys, e.g.
// "questions.2.options") to its messages. It encodes as the "details" object
// of a validation error response.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fe[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// AsFieldErrors extracts the field errors from err's chain.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

var (
	generationRequest = mustCompile("generation request", generationRequestSchema)
	regenerateRequest = mustCompile("regenerate request", regenerateRequestSchema)
	modelResponse     = mustCompile("model response", modelResponseSchema)
	passageCreate     = mustCompile("passage create", passageCreateSchema)
	passageUpdate     = mustCompile("passage update", passageUpdateSchema)
	questionSetCreate = mustCompile("question set create", questionSetCreateSchema)
	questionSetPatch  = mustCompile("question set patch", questionSetPatchSchema)
)

func mustCompile(name, src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return s
}

// validate returns ErrInvalidJSON for unparsable input, FieldErrors for shape
// violations and nil otherwise.
func validate(s *gojsonschema.Schema, raw []byte) error {
	if !json.Valid(raw) {
		return ErrInvalidJSON
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if res.Valid() {
		return nil
	}
	fe := FieldErrors{}
	for _, e := range res.Errors() {
		// allOf/anyOf summaries repeat what the nested errors already say
		switch e.Type() {
		case "number_all_of", "number_any_of", "number_one_of":
			continue
		}
		fe.Add(fieldOf(e), e.Description())
	}
	if len(fe) == 0 {
		fe.Add(RootField, "document does not match the expected shape")
	}
	return fe
}

func fieldOf(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == "(root)" {
		field = ""
	}
	if e.Type() == "required" {
		if p, ok := e.Details()["property"].(string); ok {
			if field == "" {
				return p
			}
			return field + "." + p
		}
	}
	if field == "" {
		return RootField
	}
	return field
}
