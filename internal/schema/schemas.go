package schema

// Enumerations are repeated in every document so each schema stands alone.

const questionShape = `{
  "type": "object",
  "required": ["type", "difficulty", "question_text", "options", "correct_answer", "evidence", "validation_status"],
  "properties": {
    "id": {"type": "string"},
    "type": {"enum": ["Main Idea", "Detail", "Inference", "Vocabulary"]},
    "difficulty": {"enum": ["Easy", "Medium", "Hard"]},
    "question_text": {"type": "string", "minLength": 1},
    "options": {
      "type": "array",
      "minItems": 4,
      "maxItems": 4,
      "items": {"type": "string", "minLength": 1}
    },
    "correct_answer": {"type": "integer", "minimum": 0, "maximum": 3},
    "evidence": {"type": "string", "minLength": 1},
    "validation_status": {"enum": ["PASS", "NEEDS_FIX"]},
    "validation_note": {"type": ["string", "null"]}
  }
}`

const metaShape = `{
  "type": "object",
  "required": ["grade_level", "difficulty", "question_types", "question_count"],
  "properties": {
    "grade_level": {"enum": ["M1", "M2", "M3"]},
    "difficulty": {"enum": ["Easy", "Medium", "Hard"]},
    "question_types": {
      "type": "array",
      "minItems": 1,
      "maxItems": 4,
      "items": {"enum": ["Main Idea", "Detail", "Inference", "Vocabulary"]}
    },
    "question_count": {"type": "integer", "minimum": 1}
  }
}`

const generationRequestSchema = `{
  "type": "object",
  "required": ["passageId", "gradeLevel", "difficulty", "count", "questionTypes"],
  "properties": {
    "passageId": {"type": "string", "format": "uuid"},
    "gradeLevel": {"enum": ["M1", "M2", "M3"]},
    "difficulty": {"enum": ["Easy", "Medium", "Hard"]},
    "count": {"type": "integer", "minimum": 1, "maximum": 20},
    "questionTypes": {
      "type": "array",
      "minItems": 1,
      "maxItems": 4,
      "uniqueItems": true,
      "items": {"enum": ["Main Idea", "Detail", "Inference", "Vocabulary"]}
    }
  }
}`

// The question being regenerated carries its id so it can be spliced back.
const regenerateRequestSchema = `{
  "type": "object",
  "required": ["passageId", "gradeLevel", "question"],
  "properties": {
    "passageId": {"type": "string", "format": "uuid"},
    "gradeLevel": {"enum": ["M1", "M2", "M3"]},
    "question": {
      "allOf": [
        ` + questionShape + `,
        {"required": ["id"], "properties": {"id": {"type": "string", "minLength": 1}}}
      ]
    }
  }
}`

const modelResponseSchema = `{
  "type": "object",
  "required": ["questions", "meta"],
  "properties": {
    "questions": {"type": "array", "minItems": 1, "items": ` + questionShape + `},
    "meta": ` + metaShape + `
  }
}`

const passageCreateSchema = `{
  "type": "object",
  "required": ["content", "grade_level"],
  "properties": {
    "content": {"type": "string", "minLength": 100, "maxLength": 10000},
    "grade_level": {"enum": ["M1", "M2", "M3"]},
    "title": {"type": "string", "maxLength": 200}
  }
}`

const passageUpdateSchema = `{
  "type": "object",
  "properties": {
    "content": {"type": "string", "minLength": 100, "maxLength": 10000},
    "grade_level": {"enum": ["M1", "M2", "M3"]},
    "title": {"type": "string", "maxLength": 200}
  }
}`

const questionSetCreateSchema = `{
  "type": "object",
  "required": ["passage_id", "difficulty", "question_count", "question_types", "payload"],
  "properties": {
    "passage_id": {"type": "string", "format": "uuid"},
    "difficulty": {"enum": ["Easy", "Medium", "Hard"]},
    "question_count": {"type": "integer", "minimum": 1, "maximum": 20},
    "question_types": {
      "type": "array",
      "minItems": 1,
      "items": {"enum": ["Main Idea", "Detail", "Inference", "Vocabulary"]}
    },
    "payload": {
      "type": "object",
      "required": ["questions", "meta"],
      "properties": {
        "questions": {
          "type": "array",
          "items": {
            "allOf": [
              ` + questionShape + `,
              {"required": ["id"], "properties": {"id": {"type": "string", "minLength": 1}}}
            ]
          }
        },
        "meta": ` + metaShape + `
      }
    }
  }
}`

const questionSetPatchSchema = `{
  "type": "object",
  "properties": {
    "difficulty": {"enum": ["Easy", "Medium", "Hard"]},
    "question_types": {
      "type": "array",
      "minItems": 1,
      "items": {"enum": ["Main Idea", "Detail", "Inference", "Vocabulary"]}
    },
    "questions": {
      "type": "array",
      "maxItems": 20,
      "items": {
        "allOf": [
          ` + questionShape + `,
          {"required": ["id"], "properties": {"id": {"type": "string", "minLength": 1}}}
        ]
      }
    }
  }
}`
