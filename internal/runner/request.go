package runner

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"dupecheck/internal/pipeline"
)

//go:embed run_request.schema.json
var runRequestSchemaJSON string

// RunRequest is the external trigger payload for a pipeline run.
type RunRequest struct {
	Mode      string `json:"mode"`
	ReportID  *int64 `json:"reportId,omitempty"`
	KeepPairs bool   `json:"keepPairs,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateRunRequest parses and validates a raw run-request payload.
func ValidateRunRequest(payload json.RawMessage) (*RunRequest, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode request JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize request JSON: %w", err)
	}

	var request RunRequest
	if err := json.Unmarshal(normalized, &request); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}

	if _, err := parseMode(request.Mode); err != nil {
		return nil, err
	}
	if request.ReportID != nil && *request.ReportID <= 0 {
		return nil, fmt.Errorf("reportId must be positive")
	}

	return &request, nil
}

func parseMode(mode string) (pipeline.RunMode, error) {
	switch pipeline.RunMode(strings.TrimSpace(mode)) {
	case pipeline.ModeAnalyze:
		return pipeline.ModeAnalyze, nil
	case pipeline.ModeAnalyzeFast:
		return pipeline.ModeAnalyzeFast, nil
	default:
		return "", fmt.Errorf("mode must be %q or %q", pipeline.ModeAnalyze, pipeline.ModeAnalyzeFast)
	}
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("run_request.schema.json", strings.NewReader(runRequestSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("run_request.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("request is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("request contains trailing content")
	}

	return value, nil
}
