package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// JSONSchema reflects the Config document into an indented JSON Schema.
// Property names come from the yaml tags so the schema describes exactly
// what the loader accepts. Reflection runs once; later calls return the
// cached bytes.
var JSONSchema = sync.OnceValues(func() ([]byte, error) {
	reflector := jsonschema.Reflector{FieldNameTag: "yaml"}
	return json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
})
