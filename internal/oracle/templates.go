package oracle

import (
	"bytes"
	"fmt"
	"strings"
)

// PromptField describes one output field in a template's response schema.
type PromptField struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// PromptSpec defines the sections of a versioned prompt template.
type PromptSpec struct {
	Purpose      string
	Background   string
	OutputFields []PromptField
	Constraints  []string
	Rules        []string
	OutputFormat string
}

// Render produces the final prompt text. Section order is fixed so the same
// spec always renders the same bytes.
func (s PromptSpec) Render() (string, error) {
	if strings.TrimSpace(s.Purpose) == "" {
		return "", fmt.Errorf("oracle: template purpose is empty")
	}
	if len(s.OutputFields) == 0 {
		return "", fmt.Errorf("oracle: template output fields are empty")
	}
	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", s.Purpose)
	writeSection(&buf, "BACKGROUND", s.Background)
	writeSection(&buf, "OUTPUT", formatFields(s.OutputFields))
	writeSection(&buf, "CONSTRAINTS", formatList(s.Constraints))
	writeSection(&buf, "RULES", formatList(s.Rules))
	writeSection(&buf, "OUTPUT_FORMAT", s.OutputFormat)
	return strings.TrimSpace(buf.String()) + "\n", nil
}

var templates = map[TemplateID]PromptSpec{
	TemplateCandidates: {
		Purpose: "Given a deployment intent and the catalog of resource kinds a Kubernetes cluster can express, propose the kinds plausibly relevant to realizing the intent.",
		Background: "The catalog lists every built-in kind and custom resource definition installed on the cluster, " +
			"with supported verbs and a short schema summary. Some clusters carry platform operators (Crossplane, ArgoCD) whose " +
			"compositions may satisfy an intent better than raw built-ins.",
		OutputFields: []PromptField{
			{Name: "candidates", Type: "array", Required: true, Description: "objects {group, version, kind, reason}, most relevant first"},
		},
		Constraints: []string{
			"Only propose kinds that appear in the provided catalog.",
			"Prefer the smallest set of kinds that can plausibly realize the intent.",
		},
		Rules: []string{
			"group/version/kind must be copied verbatim from the catalog.",
			"reason is one sentence tying the kind to the intent.",
		},
		OutputFormat: "Strict JSON only. No markdown, no code fences, no prose outside the JSON object.",
	},
	TemplateRank: {
		Purpose: "Assemble the candidate resource kinds into one or more complete deployment solutions for the stated intent and score each by fit.",
		Background: "A solution may combine several kinds that work together (e.g. a composition plus a supporting built-in). " +
			"Field assignments are dotted paths into each resource's schema with concrete values where the intent implies them.",
		OutputFields: []PromptField{
			{Name: "solutions", Type: "array", Required: true, Description: "objects {resources, rationale, confidence, open_questions}"},
		},
		Constraints: []string{
			"Every resource reference must name a candidate kind verbatim.",
			"confidence is a number in [0,1].",
			"Leave a field unassigned and list it in open_questions when the intent does not determine its value.",
		},
		Rules: []string{
			"resources is an ordered array of {group, version, kind, assignments} where assignments maps dotted field paths to values.",
			"open_questions are short human-readable descriptions of missing configuration.",
		},
		OutputFormat: "Strict JSON only. No markdown, no code fences, no prose outside the JSON object.",
	},
	TemplateQuestions: {
		Purpose: "Derive the minimal set of clarifying questions a user must answer before the given solution can be finalized.",
		Background: "Each question targets one unresolved field path in one of the solution's resources. Questions may depend on " +
			"earlier questions; a dependent question is only shown once its dependencies are answered.",
		OutputFields: []PromptField{
			{Name: "questions", Type: "array", Required: true, Description: "objects {id, resource, path, prompt, answer_type, depends_on}"},
		},
		Constraints: []string{
			"Only target field paths that exist in the resource's schema.",
			"answer_type is one of: string, number, bool, enum.",
			"depends_on lists question ids that must be answered first; never form cycles.",
		},
		Rules: []string{
			"id is a short stable slug, unique within the response.",
			"resource is the zero-based index into the solution's resource list.",
			"Ask nothing the solution already assigns.",
		},
		OutputFormat: "Strict JSON only. No markdown, no code fences, no prose outside the JSON object.",
	},
	TemplateEnhance: {
		Purpose: "Translate free-form follow-up requirements into additional field assignments on the given solution.",
		Background: "The user has stated extra requirements in plain language. Map each onto concrete dotted field paths in the " +
			"solution's resources. Skip requirements the schemas cannot express.",
		OutputFields: []PromptField{
			{Name: "assignments", Type: "array", Required: true, Description: "objects {resource, path, value}"},
		},
		Constraints: []string{
			"resource is the zero-based index into the solution's resource list.",
			"Only propose paths that exist in the resource's schema.",
		},
		Rules: []string{
			"Do not modify assignments the solution already carries unless a requirement explicitly overrides them.",
		},
		OutputFormat: "Strict JSON only. No markdown, no code fences, no prose outside the JSON object.",
	},
}

// Prompt renders the registered template, or errors for an unknown id.
// Unknown templates are permanent failures; retrying cannot invent one.
func Prompt(id TemplateID) (string, error) {
	spec, ok := templates[id]
	if !ok {
		return "", Permanent(fmt.Errorf("oracle: unknown template %q", id))
	}
	return spec.Render()
}

func formatFields(fields []PromptField) string {
	var buf strings.Builder
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s, %s): %s\n", name, f.Type, req, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s, %s)\n", name, f.Type, req)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatList(items []string) string {
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
