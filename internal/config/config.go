// Package config loads service descriptions and deploy settings.
//
// A service is described in service.yml, service.yaml, service.json or
// service.cue. Whatever the format, the document is validated against the
// embedded CUE schema before it is decoded, so errors carry file positions.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/driftless/internal/service"
)

//go:embed schema.cue
var schemaSource string

// Error codes returned in LoadError.Code.
const (
	ErrCodeNotFound    = "config-not-found"
	ErrCodeUnsupported = "config-unsupported-format"
	ErrCodeParse       = "config-parse-failed"
	ErrCodeInvalid     = "config-invalid"
)

// DefaultFiles are probed in order by Discover.
var DefaultFiles = []string{"service.yml", "service.yaml", "service.json", "service.cue"}

// LoadError reports a configuration problem, with the CUE position when known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Discover returns the first service file found in dir.
func Discover(dir string) (string, error) {
	for _, name := range DefaultFiles {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no service file in %s (looked for %v)", dir, DefaultFiles)}
}

// Load reads, validates and decodes the service file at path, then applies
// settings (stage, region, bucket overrides).
func Load(path string, settings Settings) (*service.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("service file not found: %s", path)}
		}
		return nil, fmt.Errorf("read service file: %w", err)
	}
	svc, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	settings.Apply(svc)
	return svc, nil
}

// Parse validates and decodes a service document. The format is chosen from
// the filename extension.
func Parse(filename string, data []byte) (*service.Service, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	var doc cue.Value
	switch filepath.Ext(filename) {
	case ".yml", ".yaml":
		file, err := cueyaml.Extract(filename, data)
		if err != nil {
			return nil, fromCUEError(ErrCodeParse, err)
		}
		doc = ctx.BuildFile(file)
	case ".json", ".cue":
		doc = ctx.CompileBytes(data, cue.Filename(filename))
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported service file %q", filename)}
	}
	if err := doc.Err(); err != nil {
		return nil, fromCUEError(ErrCodeParse, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Service")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUEError(ErrCodeInvalid, err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fromCUEError(ErrCodeInvalid, err)
	}

	var svc service.Service
	if err := json.Unmarshal(raw, &svc); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return &svc, nil
}

// fromCUEError keeps the first CUE error and its position.
func fromCUEError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
