package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/xeipuuv/gojsonschema"
)

const (
	OrderEventSchema         = "order-event"
	RecommendationItemSchema = "recommendation-item"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	OrderEventSchema:         "order-event.json",
	RecommendationItemSchema: "recommendation-item.json",
}

// SchemaValidator validates event payloads and API documents against the
// embedded JSON schemas.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator compiles every embedded schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	sv := &SchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}

	for name, filename := range schemaFiles {
		raw, err := schemaFS.ReadFile(path.Join("schemas", filename))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", filename, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
		}
		sv.schemas[name] = schema
	}

	return sv, nil
}

func (sv *SchemaValidator) ValidateOrderEvent(data interface{}) *ValidationResult {
	return sv.validate(OrderEventSchema, data)
}

func (sv *SchemaValidator) ValidateRecommendationItem(data interface{}) *ValidationResult {
	return sv.validate(RecommendationItemSchema, data)
}

// validate accepts a JSON string, raw bytes, or any value that marshals to JSON.
func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return invalid("schema", fmt.Sprintf("Schema '%s' not found", schemaName), "SCHEMA_NOT_FOUND")
	}

	var documentLoader gojsonschema.JSONLoader
	switch v := data.(type) {
	case string:
		documentLoader = gojsonschema.NewStringLoader(v)
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(v)
	default:
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return invalid("data", fmt.Sprintf("Failed to marshal data to JSON: %v", err), "JSON_MARSHAL_ERROR")
		}
		documentLoader = gojsonschema.NewBytesLoader(jsonBytes)
	}

	result, err := schema.Validate(documentLoader)
	if err != nil {
		return invalid("document", fmt.Sprintf("Malformed document: %v", err), "MALFORMED_DOCUMENT")
	}

	validationResult := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    "VALIDATION_ERROR",
			Value:   re.Value(),
		})
	}

	return validationResult
}

func invalid(field, message, code string) *ValidationResult {
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Field: field, Message: message, Code: code}},
	}
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// Err folds the result into a single error, nil when valid.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	if len(vr.Errors) == 1 {
		return vr.Errors[0]
	}
	return fmt.Errorf("%d validation errors, first: %w", len(vr.Errors), vr.Errors[0])
}
