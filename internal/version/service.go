package version

import (
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/service"
)

// Identities are the content hashes of a service's local artifacts.
type Identities struct {
	// Code maps function keys to artifact content hashes. Image functions
	// may be absent; their image URI is the code identity.
	Code map[string]string
	// Layers maps layer keys to layer artifact content hashes.
	Layers map[string]string
}

// Hashes is the result of hashing every function and layer of a service.
type Hashes struct {
	Functions map[string]digest.Digest // by function key
	Layers    map[string]digest.Digest // by layer logical ID
}

// HashService computes layer identities first and then every function hash.
func HashService(svc *service.Service, ids Identities, opts ...Option) (Hashes, error) {
	out := Hashes{
		Functions: make(map[string]digest.Digest, len(svc.Functions)),
		Layers:    make(map[string]digest.Digest, len(svc.Layers)),
	}

	for _, key := range svc.LayerNames() {
		content, ok := ids.Layers[key]
		if !ok {
			return Hashes{}, fmt.Errorf("layer %q: no content hash", key)
		}
		id, err := LayerIdentity(content, FromLayer(svc.Layers[key]))
		if err != nil {
			return Hashes{}, fmt.Errorf("layer %q: %w", key, err)
		}
		out.Layers[naming.LayerLogicalID(key)] = id
	}

	for _, key := range svc.FunctionNames() {
		fn, _ := svc.Resolved(key)
		code := ids.Code[key]
		if code == "" {
			code = fn.Image
		}
		h, err := ComputeFunctionVersionHash(FromFunction(fn), code, out.Layers, opts...)
		if err != nil {
			return Hashes{}, fmt.Errorf("function %q: %w", key, err)
		}
		out.Functions[key] = h
	}
	return out, nil
}
