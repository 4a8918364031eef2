package assert

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abel-apply/apicheck/internal/client"
)

const inlineSchemaURL = "inline-schema.json"

// Schema validates the body against an inline JSON Schema document.
func Schema(resp *client.Response, schema string) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		return &SchemaParseError{Source: "inline", Err: err}
	}
	return validate(resp, inlineSchemaURL, "inline", doc)
}

// SchemaFile validates the body against the schema stored at rel under root.
// rel may not point outside root.
func SchemaFile(resp *client.Response, root, rel string) error {
	path, err := schemaPath(root, rel)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &SchemaFileNotFoundError{Path: path}
		}
		return fmt.Errorf("reading schema %s: %w", path, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &SchemaParseError{Source: rel, Err: err}
	}
	return validate(resp, path, rel, doc)
}

func schemaPath(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving schema root %q: %w", root, err)
	}
	path := filepath.Join(absRoot, filepath.FromSlash(rel))
	inside, err := filepath.Rel(absRoot, path)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", &ExpectationError{Msg: fmt.Sprintf("schema path %q is outside the schema root", rel)}
	}
	return path, nil
}

func validate(resp *client.Response, url, source string, doc any) error {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return &SchemaParseError{Source: source, Err: err}
	}
	sch, err := c.Compile(url)
	if err != nil {
		return &SchemaParseError{Source: source, Err: err}
	}

	if !resp.HasJSON() {
		return &SchemaValidationError{Source: source, Err: errors.New("response body is not JSON")}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(resp.Raw))
	if err != nil {
		return &SchemaValidationError{Source: source, Err: err}
	}
	if err := sch.Validate(inst); err != nil {
		return &SchemaValidationError{Source: source, Err: err}
	}
	return nil
}
