// Package script loads and plays replay scripts: recorded sequences of
// host input used to drive a session without a real input method.
//
// Scripts are JSON or YAML documents validated against an embedded JSON
// schema before they are decoded.
package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://fieldsync.dev/schema/replay-v1.schema.json"

//go:embed schema.json
var schemaJSON []byte

var (
	// ErrInvalid is returned for scripts that do not match the schema.
	ErrInvalid = errors.New("invalid replay script")

	// ErrFormat is returned for unsupported file extensions.
	ErrFormat = errors.New("unsupported script format")
)

// Op names a replay step.
type Op string

// Step operations.
const (
	OpInsert    Op = "insert"
	OpCompose   Op = "compose"
	OpFinish    Op = "finish"
	OpBackspace Op = "backspace"
	OpSelect    Op = "select"
	OpWait      Op = "wait_ms"
)

// Step is one host input event.
type Step struct {
	Op    Op     `json:"op"`
	Text  string `json:"text,omitempty"`
	Count int    `json:"count,omitempty"`
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
	Ms    int    `json:"ms,omitempty"`
}

// Expect is the optional final field state a replay must reach.
type Expect struct {
	Text      *string `json:"text,omitempty"`
	Selection []int   `json:"selection,omitempty"`
	Composing []int   `json:"composing,omitempty"`
}

// Script is a decoded replay script.
type Script struct {
	Name        string  `json:"name,omitempty"`
	InitialText string  `json:"initial_text,omitempty"`
	Steps       []Step  `json:"steps"`
	Expect      *Expect `json:"expect,omitempty"`
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Load reads a script file. The format follows the extension: .json,
// .yaml or .yml.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, filepath.Ext(path))
	}
}

// ParseJSON validates and decodes a JSON script.
func ParseJSON(data []byte) (*Script, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return decode(doc)
}

// ParseYAML validates and decodes a YAML script.
func ParseYAML(data []byte) (*Script, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}

	// The validator accepts JSON values only.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert YAML: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("convert YAML: %w", err)
	}
	return decode(doc)
}

func decode(doc any) (*Script, error) {
	sch, err := schema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode script: %w", err)
	}
	var s Script
	if err := json.Unmarshal(buf, &s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &s, nil
}
