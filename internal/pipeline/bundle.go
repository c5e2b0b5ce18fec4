package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/driftless/internal/canon"
	"github.com/roach88/driftless/internal/service"
	"github.com/roach88/driftless/internal/version"
)

const (
	// TemplateFileName is the object name of the compiled template.
	TemplateFileName = "compiled-cloudformation-template.json"
	// StateFileName is the object name of the service state summary.
	StateFileName = "serverless-state.json"

	packageDir = ".serverless"
)

// Bundle is the packaged output of a service: artifact contents by file
// name, and which function or layer deploys from which file.
type Bundle struct {
	Files     map[string][]byte
	Functions map[string]string // function key -> file name
	Layers    map[string]string // layer key -> file name
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{
		Files:     make(map[string][]byte),
		Functions: make(map[string]string),
		Layers:    make(map[string]string),
	}
}

// LoadBundle reads the artifacts of svc relative to root. Functions without
// an artifact of their own share "<root>/.serverless/<service>.zip"; layers
// default to "<root>/.serverless/<layer>.zip". Image functions have no
// artifact.
func LoadBundle(svc *service.Service, root string) (*Bundle, error) {
	b := NewBundle()
	paths := make(map[string]string)

	read := func(p string) (string, error) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		name := filepath.Base(p)
		if prev, ok := paths[name]; ok {
			if prev != p {
				return "", fmt.Errorf("artifacts %s and %s share the object name %s", prev, p, name)
			}
			return name, nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read artifact: %w", err)
		}
		paths[name] = p
		b.Files[name] = data
		return name, nil
	}

	for _, key := range svc.FunctionNames() {
		if svc.Functions[key].Image != "" {
			continue
		}
		p := svc.FunctionArtifact(key)
		if p == "" {
			p = filepath.Join(packageDir, svc.Name+".zip")
		}
		name, err := read(p)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", key, err)
		}
		b.Functions[key] = name
	}
	for _, key := range svc.LayerNames() {
		p := svc.Layers[key].Artifact
		if p == "" {
			p = filepath.Join(packageDir, key+".zip")
		}
		name, err := read(p)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", key, err)
		}
		b.Layers[key] = name
	}
	return b, nil
}

// AddFunction registers the artifact a function deploys from.
func (b *Bundle) AddFunction(key, name string, data []byte) {
	b.Files[name] = data
	b.Functions[key] = name
}

// AddLayer registers the artifact of a layer.
func (b *Bundle) AddLayer(key, name string, data []byte) {
	b.Files[name] = data
	b.Layers[key] = name
}

// Identities returns the content hash of every function and layer artifact.
func (b *Bundle) Identities() version.Identities {
	ids := version.Identities{
		Code:   make(map[string]string, len(b.Functions)),
		Layers: make(map[string]string, len(b.Layers)),
	}
	for key, name := range b.Functions {
		ids.Code[key] = canon.BytesSHA256(b.Files[name])
	}
	for key, name := range b.Layers {
		ids.Layers[key] = canon.BytesSHA256(b.Files[name])
	}
	return ids
}

// Names returns the artifact file names in sorted order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.Files))
	for name := range b.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
