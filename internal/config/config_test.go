package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/service"
)

func TestLoad_YAML(t *testing.T) {
	svc, err := Load(filepath.Join("testdata", "service.yml"), Settings{})
	require.NoError(t, err)

	assert.Equal(t, "orders", svc.Name)
	assert.Equal(t, DefaultStage, svc.Provider.Stage)
	assert.Equal(t, DefaultRegion, svc.Provider.Region)
	assert.Equal(t, "orders-dev", svc.StackName())
	require.Contains(t, svc.Functions, "hello")

	hello := svc.Functions["hello"]
	assert.Equal(t, []cfn.Value{cfn.Ref("DepsLambdaLayer")}, hello.Layers)
	require.Len(t, hello.Events, 2)
	assert.Equal(t, &service.CloudWatchLogEvent{LogGroup: "/aws/lambda/hello1"}, hello.Events[0].CloudWatchLog)
	assert.Equal(t, &service.CloudWatchLogEvent{LogGroup: "/aws/lambda/hello2", Filter: "ERROR"}, hello.Events[1].CloudWatchLog)

	assert.Equal(t, 512, svc.Functions["worker"].MemorySize)
	assert.Equal(t, []string{"nodejs20.x"}, svc.Layers["deps"].CompatibleRuntimes)
}

func TestLoad_CUE(t *testing.T) {
	svc, err := Load(filepath.Join("testdata", "service.cue"), Settings{Stage: "prod", Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "orders-prod", svc.StackName())
	assert.Equal(t, "eu-west-1", svc.Provider.Region)
	assert.Equal(t, "handler.hello", svc.Functions["hello"].Handler)
}

func TestLoad_SchemaViolationHasPosition(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "invalid.yml"), Settings{})
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeInvalid, le.Code)
	assert.Contains(t, le.Error(), "timeout")
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	src := []byte("service: orders\nprovider:\n  name: aws\nfunctions:\n  hello:\n    handlr: x\n")
	_, err := Parse("service.yml", src)
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestParse_VersionFunctions(t *testing.T) {
	src := []byte("service: orders\nprovider:\n  name: aws\n  versionFunctions: false\nfunctions:\n  hello:\n    handler: h.main\n    versionFunction: true\n  worker:\n    handler: h.work\n")
	svc, err := Parse("service.yml", src)
	require.NoError(t, err)

	require.NotNil(t, svc.Provider.VersionFunctions)
	assert.False(t, *svc.Provider.VersionFunctions)
	assert.True(t, svc.Versioned("hello"))
	assert.False(t, svc.Versioned("worker"))
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse("service.toml", []byte(""))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeUnsupported, le.Code)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "service.yml"), Settings{})
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestDiscover(t *testing.T) {
	path, err := Discover("testdata")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "service.yml"), path)

	_, err = Discover(t.TempDir())
	assert.True(t, IsLoadError(err))
}

func TestDefaultSettings_Env(t *testing.T) {
	env := map[string]string{
		"DRIFTLESS_STAGE":       "prod",
		"DRIFTLESS_FORCE":       "true",
		"DRIFTLESS_CLOCK_SKEW":  "2s",
		"DRIFTLESS_CONCURRENCY": "8",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	s, err := DefaultSettings(lookup)
	require.NoError(t, err)
	assert.Equal(t, "prod", s.Stage)
	assert.Equal(t, "", s.Region)
	assert.True(t, s.Force)
	assert.Equal(t, 2*time.Second, s.ClockSkew)
	assert.Equal(t, 8, s.Concurrency)
	assert.Equal(t, DefaultDBPath, s.DBPath)
	assert.NoError(t, s.Validate())
}

func TestDefaultSettings_BadEnv(t *testing.T) {
	_, err := DefaultSettings(func(k string) (string, bool) {
		if k == "DRIFTLESS_CONCURRENCY" {
			return "many", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestSettings_Validate(t *testing.T) {
	assert.Error(t, Settings{Concurrency: 0}.Validate())
	assert.Error(t, Settings{Concurrency: 1, ClockSkew: -time.Second}.Validate())
}

func TestSettings_ApplyKeepsFileStage(t *testing.T) {
	svc := &service.Service{Provider: service.Provider{Stage: "qa", Region: "us-west-2"}}
	Settings{Bucket: "my-bucket"}.Apply(svc)
	assert.Equal(t, "qa", svc.Provider.Stage)
	assert.Equal(t, "us-west-2", svc.Provider.Region)
	assert.Equal(t, "my-bucket", svc.Provider.DeploymentBucket)
}
