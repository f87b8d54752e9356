package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weftui/weft/internal/ir"
)

// LoadError represents an error that occurred during program loading.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E002" // Program document not found
	ErrCodeBadDocument = "E003" // Document failed to parse
	ErrCodeSchema      = "E004" // Document failed schema validation
	ErrCodeInvalid     = "E005" // Document failed structural validation
	ErrCodeJournal     = "E006" // Journal open/read error
	ErrCodeDispatch    = "E007" // Action dispatch failed
)

// ReadProgramDocument reads a program document from disk and returns its
// JSON form. YAML documents (.yaml, .yml) are converted; everything else
// is treated as JSON. The returned bytes are what the program hash is
// computed over.
func ReadProgramDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program document not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadDocument, Message: fmt.Sprintf("parsing YAML document %s: %v", path, err)}
		}
		return converted, nil
	default:
		return data, nil
	}
}

// LoadProgram reads, parses, and validates a program document. The raw
// JSON bytes are returned alongside the compiled program so callers can
// derive the program hash for journaling.
func LoadProgram(path string) (*ir.Program, []byte, error) {
	doc, err := ReadProgramDocument(path)
	if err != nil {
		return nil, nil, err
	}

	program, err := ir.UnmarshalProgram(doc)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeBadDocument, Message: fmt.Sprintf("parsing program: %v", err)}
	}

	if errs := program.Validate(); len(errs) > 0 {
		return nil, nil, &LoadError{Code: ErrCodeInvalid, Message: errs[0].Error()}
	}

	return program, doc, nil
}

// yamlToJSON converts a YAML document to JSON bytes. yaml.v3 decodes
// mappings as map[string]interface{}, which marshals to JSON directly.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	normalized, err := normalizeYAML(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// normalizeYAML rejects YAML constructs that have no JSON equivalent
// (non-string mapping keys) and recurses into containers.
func normalizeYAML(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			norm, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[interface{}]interface{}:
		return nil, fmt.Errorf("mapping with non-string keys is not valid JSON")
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			norm, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	default:
		return v, nil
	}
}
