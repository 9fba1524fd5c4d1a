package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSrc string

var (
	schemaOnce sync.Once
	schemaVal  cue.Value
	schemaErr  error
)

// corpusSchema compiles the embedded CUE schema once per process.
func corpusSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile corpus schema: %w", err)
			return
		}
		def := v.LookupPath(cue.ParsePath("#Corpus"))
		if err := def.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Corpus: %w", err)
			return
		}
		schemaVal = def
	})
	return schemaVal, schemaErr
}

// Load reads a corpus file, validates it against the embedded CUE schema,
// and decodes the scenario array. YAML corpora are bridged to JSON before
// validation so both formats share one schema and one set of struct tags.
//
// A corpus that fails to read, validate, or decode is rejected whole: that
// is a command-level error, not a per-scenario structural fault.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("corpus %s: %w", path, err)
		}
	}

	schema, err := corpusSchema()
	if err != nil {
		return nil, err
	}
	if err := cuejson.Validate(data, schema); err != nil {
		return nil, fmt.Errorf("corpus %s: schema violation: %w", path, err)
	}

	var scenarios []Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("corpus %s: decode: %w", path, err)
	}
	return scenarios, nil
}

// yamlToJSON decodes a YAML document generically and re-encodes it as JSON.
// yaml.v3 produces map[string]any for mappings, so the result marshals
// directly without key conversion.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("bridge yaml to json: %w", err)
	}
	return out, nil
}
