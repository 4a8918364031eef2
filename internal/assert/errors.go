package assert

import (
	"fmt"

	"github.com/goccy/go-json"
)

// StatusMismatchError is returned when the response status differs from the
// expected one.
type StatusMismatchError struct {
	Expected int
	Actual   int
}

func (e *StatusMismatchError) Error() string {
	return fmt.Sprintf("expected status code %d, got %d", e.Expected, e.Actual)
}

// FieldNotFoundError is returned when a field or path is absent from the
// response body.
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found in response body", e.Field)
}

// FieldMismatchError is returned when a field holds a different value, or a
// value of a different JSON type, than expected.
type FieldMismatchError struct {
	Field    string
	Expected any
	Actual   any
}

func (e *FieldMismatchError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %s", e.Field, describe(e.Expected), describe(e.Actual))
}

// BodyMismatchError is returned when the body as a whole does not match.
type BodyMismatchError struct {
	Mode     string // "exact" or "contains"
	Expected string
	Actual   string
}

func (e *BodyMismatchError) Error() string {
	if e.Mode == "contains" {
		return fmt.Sprintf("expected response body to contain %q, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("response body does not exactly match\nexpected: %s\n  actual: %s", e.Expected, e.Actual)
}

// HeaderMismatchError is returned when a response header differs.
type HeaderMismatchError struct {
	Header   string
	Expected string
	Actual   string
}

func (e *HeaderMismatchError) Error() string {
	return fmt.Sprintf("header %q: expected %q, got %q", e.Header, e.Expected, e.Actual)
}

// ExpectationError reports an expectation that cannot be evaluated, such as
// expected JSON that does not parse.
type ExpectationError struct {
	Msg string
	Err error
}

func (e *ExpectationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExpectationError) Unwrap() error { return e.Err }

// SchemaFileNotFoundError is returned when a schema file does not exist under
// the schema root.
type SchemaFileNotFoundError struct {
	Path string
}

func (e *SchemaFileNotFoundError) Error() string {
	return fmt.Sprintf("schema file not found: %s", e.Path)
}

// SchemaParseError is returned when a schema is not valid JSON or not a
// valid JSON Schema.
type SchemaParseError struct {
	Source string
	Err    error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("parsing schema %s: %v", e.Source, e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

// SchemaValidationError wraps the validator's report when the response body
// does not conform to a schema.
type SchemaValidationError struct {
	Source string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("response body does not match schema %s: %v", e.Source, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// describe renders a decoded JSON value for error messages. Strings keep their
// quotes so that "1" and 1 read differently.
func describe(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%s (%s)", b, jsonType(v))
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
