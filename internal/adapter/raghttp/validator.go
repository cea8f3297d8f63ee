package raghttp

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// requestValidator validates incoming query payloads against the embedded
// OpenAPI document, so the contract the UI codes against is the one actually
// enforced.
type requestValidator struct {
	schema *openapi3.Schema
}

func newRequestValidator() (*requestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi spec is invalid: %w", err)
	}

	schemaRef, ok := doc.Components.Schemas["QueryRequest"]
	if !ok || schemaRef.Value == nil {
		return nil, fmt.Errorf("openapi spec is missing the QueryRequest schema")
	}
	return &requestValidator{schema: schemaRef.Value}, nil
}

// validate checks a decoded JSON payload against the QueryRequest schema.
func (v *requestValidator) validate(payload map[string]any) error {
	return v.schema.VisitJSON(payload)
}
