package version

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/driftless/internal/cfn"
)

func baseConfig() FunctionConfig {
	return FunctionConfig{
		Handler:     "handler.hello",
		Runtime:     "nodejs20.x",
		MemorySize:  1024,
		Timeout:     6,
		Environment: map[string]string{"A": "1", "B": "2", "C": "3"},
		Role:        cfn.GetAtt("IamRoleLambdaExecution", "Arn"),
		VPC: &VPCConfig{
			SecurityGroupIDs: []string{"sg-1", "sg-2"},
			SubnetIDs:        []string{"subnet-a", "subnet-b"},
		},
		CodeS3Bucket: "bucket",
		CodeS3Key:    "serverless/orders/dev/1700000000000-2023-11-14T22:13:20.000Z/orders.zip",
	}
}

func mustHash(t *testing.T, cfg FunctionConfig, code string, layers map[string]digest.Digest, opts ...Option) digest.Digest {
	t.Helper()
	h, err := ComputeFunctionVersionHash(cfg, code, layers, opts...)
	require.NoError(t, err)
	return h
}

func TestHash_Deterministic(t *testing.T) {
	a := mustHash(t, baseConfig(), "code-1", nil)
	b := mustHash(t, baseConfig(), "code-1", nil)
	assert.Equal(t, a, b)
	assert.Equal(t, digest.SHA256, a.Algorithm())
}

func TestHash_IgnoresEnvironmentKeyOrder(t *testing.T) {
	reordered := baseConfig()
	env := make(map[string]string)
	for _, k := range []string{"C", "A", "B"} {
		env[k] = baseConfig().Environment[k]
	}
	reordered.Environment = env

	assert.Equal(t, mustHash(t, baseConfig(), "code-1", nil), mustHash(t, reordered, "code-1", nil))
}

func TestHash_VPCIDsAreSets(t *testing.T) {
	swapped := baseConfig()
	swapped.VPC = &VPCConfig{
		SecurityGroupIDs: []string{"sg-2", "sg-1"},
		SubnetIDs:        []string{"subnet-b", "subnet-a"},
	}
	assert.Equal(t, mustHash(t, baseConfig(), "code-1", nil), mustHash(t, swapped, "code-1", nil))
}

func TestHash_IgnoresArtifactLocation(t *testing.T) {
	moved := baseConfig()
	moved.CodeS3Bucket = "other-bucket"
	moved.CodeS3Key = "serverless/orders/dev/1800000000000-2027-01-15T08:00:00.000Z/orders.zip"
	assert.Equal(t, mustHash(t, baseConfig(), "code-1", nil), mustHash(t, moved, "code-1", nil))
}

func TestHash_IgnoresUnlistedProperties(t *testing.T) {
	reserved := 5
	changed := baseConfig()
	changed.Description = "new description"
	changed.Tags = map[string]string{"team": "payments"}
	changed.ReservedConcurrency = &reserved
	changed.ProvisionedConcurrency = 3

	assert.Equal(t, mustHash(t, baseConfig(), "code-1", nil), mustHash(t, changed, "code-1", nil))
}

func TestHash_ChangesWithAllowListedProperties(t *testing.T) {
	base := mustHash(t, baseConfig(), "code-1", nil)

	mutations := map[string]func(*FunctionConfig){
		"handler":     func(c *FunctionConfig) { c.Handler = "handler.other" },
		"runtime":     func(c *FunctionConfig) { c.Runtime = "nodejs22.x" },
		"memory":      func(c *FunctionConfig) { c.MemorySize = 2048 },
		"timeout":     func(c *FunctionConfig) { c.Timeout = 7 },
		"environment": func(c *FunctionConfig) { c.Environment = map[string]string{"A": "1", "B": "2", "C": "4"} },
		"role":        func(c *FunctionConfig) { c.Role = cfn.Literal("arn:aws:iam::123456789012:role/other") },
		"vpc":         func(c *FunctionConfig) { c.VPC.SubnetIDs = []string{"subnet-a"} },
		"layers":      func(c *FunctionConfig) { c.Layers = []cfn.Value{cfn.Literal("arn:aws:lambda:us-east-1:1:layer:x:1")} },
		"arch":        func(c *FunctionConfig) { c.Architectures = []string{"arm64"} },
		"tracing":     func(c *FunctionConfig) { c.TracingMode = "Active" },
		"dlq":         func(c *FunctionConfig) { c.DeadLetterTarget = "arn:aws:sns:us-east-1:1:dlq" },
		"kms":         func(c *FunctionConfig) { c.KMSKeyARN = "arn:aws:kms:us-east-1:1:key/k" },
		"snapstart":   func(c *FunctionConfig) { c.SnapStart = true },
		"storage":     func(c *FunctionConfig) { c.EphemeralStorage = 1024 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			assert.NotEqual(t, base, mustHash(t, cfg, "code-1", nil))
		})
	}
}

func TestHash_ChangesWithCode(t *testing.T) {
	assert.NotEqual(t, mustHash(t, baseConfig(), "code-1", nil), mustHash(t, baseConfig(), "code-2", nil))
}

func TestHash_RequiresCodeIdentity(t *testing.T) {
	_, err := ComputeFunctionVersionHash(baseConfig(), "", nil)
	assert.Error(t, err)

	image := baseConfig()
	image.ImageURI = "123456789012.dkr.ecr.us-east-1.amazonaws.com/app@sha256:abc"
	_, err = ComputeFunctionVersionHash(image, "", nil)
	assert.NoError(t, err)
}

func TestHash_LocalLayerUsesIdentityNotLocation(t *testing.T) {
	layerID, err := LayerIdentity("layer-content", LayerConfig{CompatibleRuntimes: []string{"nodejs20.x"}})
	require.NoError(t, err)
	ids := map[string]digest.Digest{"DepsLambdaLayer": layerID}

	byRef := baseConfig()
	byRef.Layers = []cfn.Value{cfn.Ref("DepsLambdaLayer")}
	byGetAtt := baseConfig()
	byGetAtt.Layers = []cfn.Value{cfn.GetAtt("DepsLambdaLayer", "Arn")}

	assert.Equal(t, mustHash(t, byRef, "code-1", ids), mustHash(t, byGetAtt, "code-1", ids))

	newContent, err := LayerIdentity("layer-content-2", LayerConfig{CompatibleRuntimes: []string{"nodejs20.x"}})
	require.NoError(t, err)
	assert.NotEqual(t,
		mustHash(t, byRef, "code-1", ids),
		mustHash(t, byRef, "code-1", map[string]digest.Digest{"DepsLambdaLayer": newContent}))
}

func TestLayerIdentity_DescriptionIsVersionAffecting(t *testing.T) {
	a, err := LayerIdentity("c", LayerConfig{Description: "v1"})
	require.NoError(t, err)
	b, err := LayerIdentity("c", LayerConfig{Description: "v2"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = LayerIdentity("", LayerConfig{})
	assert.Error(t, err)
}

// Layer order is treated as significant: the provider applies layers in
// attachment order, so swapping them yields a new version.
func TestHash_LayerOrderIsSignificant(t *testing.T) {
	first := baseConfig()
	first.Layers = []cfn.Value{cfn.Literal("arn:aws:lambda:us-east-1:1:layer:a:1"), cfn.Literal("arn:aws:lambda:us-east-1:1:layer:b:1")}
	second := baseConfig()
	second.Layers = []cfn.Value{first.Layers[1], first.Layers[0]}

	assert.NotEqual(t, mustHash(t, first, "code-1", nil), mustHash(t, second, "code-1", nil))
}

func TestHash_EnforceHashUpdate(t *testing.T) {
	plain := mustHash(t, baseConfig(), "code-1", nil)
	enforced := mustHash(t, baseConfig(), "code-1", nil, EnforceHashUpdate(true))
	assert.NotEqual(t, plain, enforced)
	assert.Equal(t, enforced, mustHash(t, baseConfig(), "code-1", nil, EnforceHashUpdate(true)))
	assert.Equal(t, plain, mustHash(t, baseConfig(), "code-1", nil, EnforceHashUpdate(false)))
}

func TestVersionLogicalID(t *testing.T) {
	h := digest.Digest("sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	assert.Equal(t, "HelloLambdaVersion0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", VersionLogicalID("hello", h))
}

func TestDecide(t *testing.T) {
	a := digest.Digest("sha256:aa")
	b := digest.Digest("sha256:bb")

	assert.True(t, Decide(a, "").NeedsNewVersion)
	assert.True(t, Decide(a, b).NeedsNewVersion)
	d := Decide(a, a)
	assert.False(t, d.NeedsNewVersion)
	assert.Equal(t, a, d.Previous)
}
