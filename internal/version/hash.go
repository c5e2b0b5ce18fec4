package version

import (
	"fmt"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/driftless/internal/canon"
	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/naming"
)

// enforceMarker is folded into every hash input when EnforceHashUpdate is set.
const enforceMarker = "enforce-hash-update/1"

// Option adjusts hash computation.
type Option func(*options)

type options struct {
	enforceHashUpdate bool
}

// EnforceHashUpdate changes every function hash once, forcing a fresh
// version for all functions.
func EnforceHashUpdate(enabled bool) Option {
	return func(o *options) { o.enforceHashUpdate = enabled }
}

// ComputeFunctionVersionHash returns the content identity of a function.
//
// codeIdentity is the artifact content hash or the image digest.
// layerIdentities maps local layer logical IDs to their LayerIdentity; layer
// references that resolve to a local layer hash by that identity and every
// other reference hashes by its literal form. Layer order is kept.
func ComputeFunctionVersionHash(cfg FunctionConfig, codeIdentity string, layerIdentities map[string]digest.Digest, opts ...Option) (digest.Digest, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if codeIdentity == "" && cfg.ImageURI == "" {
		return "", fmt.Errorf("function version hash: code identity is required")
	}

	record := map[string]any{
		"code": codeIdentity,
	}
	putString(record, "handler", cfg.Handler)
	putString(record, "runtime", cfg.Runtime)
	putInt(record, "memorySize", cfg.MemorySize)
	putInt(record, "timeout", cfg.Timeout)
	if len(cfg.Environment) > 0 {
		record["environment"] = cfg.Environment
	}
	if !cfg.Role.IsZero() {
		record["role"] = cfg.Role.String()
	}
	if len(cfg.Layers) > 0 {
		layers := make([]any, 0, len(cfg.Layers))
		for _, ref := range cfg.Layers {
			layers = append(layers, layerInput(ref, layerIdentities))
		}
		record["layers"] = layers
	}
	if cfg.VPC != nil && (len(cfg.VPC.SecurityGroupIDs) > 0 || len(cfg.VPC.SubnetIDs) > 0) {
		record["vpc"] = map[string]any{
			"securityGroupIds": sortedCopy(cfg.VPC.SecurityGroupIDs),
			"subnetIds":        sortedCopy(cfg.VPC.SubnetIDs),
		}
	}
	putString(record, "imageUri", cfg.ImageURI)
	if len(cfg.Architectures) > 0 {
		record["architectures"] = cfg.Architectures
	}
	putInt(record, "ephemeralStorage", cfg.EphemeralStorage)
	if cfg.SnapStart {
		record["snapStart"] = true
	}
	putString(record, "tracingMode", cfg.TracingMode)
	putString(record, "deadLetterTarget", cfg.DeadLetterTarget)
	if len(cfg.FileSystemConfigs) > 0 {
		fs := make([]any, 0, len(cfg.FileSystemConfigs))
		for _, c := range cfg.FileSystemConfigs {
			fs = append(fs, map[string]any{"arn": c.ARN, "localMountPath": c.LocalMountPath})
		}
		record["fileSystemConfigs"] = fs
	}
	putString(record, "kmsKeyArn", cfg.KMSKeyARN)
	if o.enforceHashUpdate {
		record["enforce"] = enforceMarker
	}

	return canon.HashContent(canon.DomainFunctionVersion, record)
}

// LayerIdentity returns the content identity of a local layer: its artifact
// content hash plus the settings that make the provider publish a new layer
// version.
func LayerIdentity(contentHash string, cfg LayerConfig) (digest.Digest, error) {
	if contentHash == "" {
		return "", fmt.Errorf("layer identity: content hash is required")
	}
	record := map[string]any{"content": contentHash}
	if len(cfg.CompatibleRuntimes) > 0 {
		record["compatibleRuntimes"] = sortedCopy(cfg.CompatibleRuntimes)
	}
	if len(cfg.CompatibleArchitectures) > 0 {
		record["compatibleArchitectures"] = sortedCopy(cfg.CompatibleArchitectures)
	}
	putString(record, "licenseInfo", cfg.LicenseInfo)
	putString(record, "description", cfg.Description)
	return canon.HashContent(canon.DomainLayer, record)
}

// VersionLogicalID names the version resource of a function for a hash.
func VersionLogicalID(functionName string, hash digest.Digest) string {
	encoded := hash.Encoded()
	if encoded == "" {
		encoded = string(hash)
	}
	var b strings.Builder
	b.WriteString(naming.LambdaVersionLogicalIDPrefix(functionName))
	for _, r := range encoded {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func layerInput(ref cfn.Value, identities map[string]digest.Digest) string {
	switch ref.Kind {
	case cfn.KindRef, cfn.KindGetAtt:
		if id, ok := identities[ref.Value]; ok {
			return "layer:" + id.String()
		}
	}
	return ref.String()
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func putInt(m map[string]any, key string, v int) {
	if v != 0 {
		m[key] = v
	}
}

func sortedCopy(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}
