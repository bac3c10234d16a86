// Package bank imports question-bank files into the catalog.
//
// A bank file describes one specialization: for each level it lists themes,
// each naming its competency and carrying multiple-choice questions. Files
// may be JSON or YAML and are checked against an embedded JSON Schema before
// anything is written.
package bank

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/skillgrid/assessor/internal/model"
)

//go:embed schema.json
var schemaJSON string

// File is a parsed bank file.
type File struct {
	Profile        string           `json:"profile" yaml:"profile"`
	Specialization string           `json:"specialization" yaml:"specialization"`
	FileName       string           `json:"file_name" yaml:"file_name"`
	Levels         map[string]Level `json:"levels" yaml:"levels"`
}

// Level holds the themes written for one difficulty level.
type Level struct {
	Themes []Theme `json:"themes" yaml:"themes"`
}

// Theme is a topic together with the competency it belongs to.
type Theme struct {
	Theme      string     `json:"theme" yaml:"theme"`
	Competency string     `json:"competency" yaml:"competency"`
	Questions  []Question `json:"questions" yaml:"questions"`
}

// Question is one multiple-choice item. Texts are stored as given.
type Question struct {
	Question        string `json:"question" yaml:"question"`
	Var1            string `json:"var_1" yaml:"var_1"`
	Var2            string `json:"var_2" yaml:"var_2"`
	Var3            string `json:"var_3" yaml:"var_3"`
	Var4            string `json:"var_4" yaml:"var_4"`
	CorrectPosition *int   `json:"correct_position,omitempty" yaml:"correct_position,omitempty"`
	CorrectAnswer   *int   `json:"correct_answer,omitempty" yaml:"correct_answer,omitempty"`
}

// Correct returns the 1-based correct option: correct_position, else
// correct_answer, else 1.
func (q Question) Correct() int {
	switch {
	case q.CorrectPosition != nil:
		return *q.CorrectPosition
	case q.CorrectAnswer != nil:
		return *q.CorrectAnswer
	default:
		return 1
	}
}

// ValidationError lists the schema violations of one file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid bank file: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Parser validates and decodes bank files.
type Parser struct {
	schema *gojsonschema.Schema
}

// NewParser compiles the embedded schema.
func NewParser() (*Parser, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile bank schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// IsBankFile reports whether path has a bank file extension.
func IsBankFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Parse validates data against the schema and decodes it. The format is
// chosen by the extension of path.
func (p *Parser) Parse(path string, data []byte) (*File, error) {
	var (
		doc    gojsonschema.JSONLoader
		decode func(*File) error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		doc = gojsonschema.NewBytesLoader(data)
		decode = func(f *File) error { return json.Unmarshal(data, f) }
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%s: parse yaml: %w", path, err)
		}
		doc = gojsonschema.NewGoLoader(raw)
		decode = func(f *File) error { return yaml.Unmarshal(data, f) }
	default:
		return nil, fmt.Errorf("%s: unsupported bank file extension", path)
	}

	result, err := p.schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: validate: %w", path, err)
	}
	if !result.Valid() {
		verr := &ValidationError{Path: path}
		for _, re := range result.Errors() {
			verr.Problems = append(verr.Problems, re.String())
		}
		return nil, verr
	}

	var f File
	if err := decode(&f); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	if f.FileName == "" {
		f.FileName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &f, nil
}

type levelBlock struct {
	level model.Level
	Level
}

// levels returns the file's level blocks in model.Levels order.
func (f *File) levels() []levelBlock {
	var out []levelBlock
	for _, l := range model.Levels {
		if b, ok := f.Levels[l.String()]; ok {
			out = append(out, levelBlock{level: l, Level: b})
		}
	}
	return out
}
