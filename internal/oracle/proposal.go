package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Envelope types for the four proposal shapes the oracle can return. Raw
// responses are validated against a JSON schema before they are decoded;
// anything that fails validation is ErrMalformedOutput and never reaches the
// pipeline.

type CandidateRef struct {
	Group   string `json:"group"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
}

type CandidateProposal struct {
	Candidates []CandidateRef `json:"candidates"`
}

type ProposedResource struct {
	Group       string         `json:"group"`
	Version     string         `json:"version"`
	Kind        string         `json:"kind"`
	Assignments map[string]any `json:"assignments,omitempty"`
}

type ProposedSolution struct {
	Resources     []ProposedResource `json:"resources"`
	Rationale     string             `json:"rationale,omitempty"`
	Confidence    float64            `json:"confidence"`
	OpenQuestions []string           `json:"open_questions,omitempty"`
}

type SolutionProposal struct {
	Solutions []ProposedSolution `json:"solutions"`
}

type ProposedQuestion struct {
	ID         string   `json:"id"`
	Resource   int      `json:"resource"`
	Path       string   `json:"path"`
	Prompt     string   `json:"prompt"`
	AnswerType string   `json:"answer_type"`
	DependsOn  []string `json:"depends_on,omitempty"`
}

type QuestionProposal struct {
	Questions []ProposedQuestion `json:"questions"`
}

type ProposedAssignment struct {
	Resource int    `json:"resource"`
	Path     string `json:"path"`
	Value    any    `json:"value"`
}

type AssignmentProposal struct {
	Assignments []ProposedAssignment `json:"assignments"`
}

const candidateSchema = `{
  "type": "object",
  "required": ["candidates"],
  "properties": {
    "candidates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["version", "kind"],
        "properties": {
          "group": {"type": "string"},
          "version": {"type": "string", "minLength": 1},
          "kind": {"type": "string", "minLength": 1},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`

const solutionSchema = `{
  "type": "object",
  "required": ["solutions"],
  "properties": {
    "solutions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["resources", "confidence"],
        "properties": {
          "resources": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["version", "kind"],
              "properties": {
                "group": {"type": "string"},
                "version": {"type": "string", "minLength": 1},
                "kind": {"type": "string", "minLength": 1},
                "assignments": {"type": "object"}
              }
            }
          },
          "rationale": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "open_questions": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const questionSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "resource", "path", "prompt", "answer_type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "resource": {"type": "integer", "minimum": 0},
          "path": {"type": "string", "minLength": 1},
          "prompt": {"type": "string", "minLength": 1},
          "answer_type": {"type": "string", "enum": ["string", "number", "bool", "enum"]},
          "depends_on": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const assignmentSchema = `{
  "type": "object",
  "required": ["assignments"],
  "properties": {
    "assignments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["resource", "path"],
        "properties": {
          "resource": {"type": "integer", "minimum": 0},
          "path": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var envelopeSchemas = map[TemplateID]*jsonschema.Schema{
	TemplateCandidates: jsonschema.MustCompileString("candidates.v1.json", candidateSchema),
	TemplateRank:       jsonschema.MustCompileString("rank.v1.json", solutionSchema),
	TemplateQuestions:  jsonschema.MustCompileString("questions.v1.json", questionSchema),
	TemplateEnhance:    jsonschema.MustCompileString("enhance.v1.json", assignmentSchema),
}

// Decode validates raw against the template's envelope schema and unmarshals
// it into out. Validation failures come back wrapped in ErrMalformedOutput.
func Decode(template TemplateID, raw json.RawMessage, out any) error {
	sch, ok := envelopeSchemas[template]
	if !ok {
		return Permanent(fmt.Errorf("oracle: no envelope schema for template %q", template))
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return wrapMalformed(err)
	}
	if err := sch.Validate(v); err != nil {
		return wrapMalformed(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wrapMalformed(err)
	}
	return nil
}

func wrapMalformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
}
