package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// InvalidArgsError reports arguments that failed the tool's declared
// schema. The underlying implementation was never invoked.
type InvalidArgsError struct {
	Tool   string
	Detail string
}

func (e *InvalidArgsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Detail)
}

var schemaCache sync.Map

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateArgs checks args against the tool's parameter schema. When the
// first pass fails, flat-param recovery is attempted: models sometimes
// omit a single required wrapper object and put its fields at the top
// level, so if every required leaf of that wrapper is present there, the
// wrapper is assembled and validation retried. The returned map is the
// one the handler should receive.
func validateArgs(t Tool, args map[string]any) (map[string]any, error) {
	if len(t.Parameters) == 0 {
		return args, nil
	}
	schema, err := compileSchema(t.Parameters)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t.Name, err)
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := schema.Validate(normalizeJSON(args)); err == nil {
		return args, nil
	} else if wrapped, ok := recoverFlatParams(t.Parameters, args); ok {
		if werr := schema.Validate(normalizeJSON(wrapped)); werr == nil {
			return wrapped, nil
		}
		return nil, &InvalidArgsError{Tool: t.Name, Detail: compactValidationError(err)}
	} else {
		return nil, &InvalidArgsError{Tool: t.Name, Detail: compactValidationError(err)}
	}
}

// recoverFlatParams detects the omitted-wrapper shape: the schema requires
// exactly one top-level property, that property is an object, the wrapper
// key is absent from args, and every field the wrapper requires is present
// at the top level. It returns the re-wrapped arguments.
func recoverFlatParams(raw json.RawMessage, args map[string]any) (map[string]any, bool) {
	var doc struct {
		Properties map[string]struct {
			Type     string   `json:"type"`
			Required []string `json:"required"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	if len(doc.Required) != 1 {
		return nil, false
	}
	wrapper := doc.Required[0]
	prop, ok := doc.Properties[wrapper]
	if !ok || prop.Type != "object" {
		return nil, false
	}
	if _, present := args[wrapper]; present {
		return nil, false
	}
	for _, leaf := range prop.Required {
		if _, present := args[leaf]; !present {
			return nil, false
		}
	}

	inner := make(map[string]any, len(args))
	for k, v := range args {
		inner[k] = v
	}
	return map[string]any{wrapper: inner}, true
}

// normalizeJSON round-trips a value through encoding/json so the schema
// validator sees canonical types (float64 numbers, map[string]any).
func normalizeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// compactValidationError keeps the one-line cause rather than the
// validator's full tree rendering.
func compactValidationError(err error) string {
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return fmt.Sprintf("%s: %s", leaf.InstanceLocation, leaf.Message)
		}
		return leaf.Message
	}
	return err.Error()
}
