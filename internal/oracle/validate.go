package oracle

import (
	"context"
	"encoding/json"
)

// ValidateEnvelope rejects responses that do not match the asked template's
// envelope schema. Stacked under Retry, it turns a malformed response into
// another attempt instead of a pipeline fault.
func ValidateEnvelope() Middleware {
	return func(next Client) Client {
		return &validating{next: next}
	}
}

type validating struct {
	next Client
}

func (v *validating) Name() string { return v.next.Name() }
func (v *validating) Close() error { return v.next.Close() }

func (v *validating) Ask(ctx context.Context, template TemplateID, input any) (json.RawMessage, error) {
	raw, err := v.next.Ask(ctx, template, input)
	if err != nil {
		return nil, err
	}
	sch, ok := envelopeSchemas[template]
	if !ok {
		return raw, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, wrapMalformed(err)
	}
	if err := sch.Validate(decoded); err != nil {
		return nil, wrapMalformed(err)
	}
	return raw, nil
}
