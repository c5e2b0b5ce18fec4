package template

import (
	"fmt"
	"path"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/service"
	"github.com/roach88/driftless/internal/version"
)

const (
	formatVersion = "2010-09-09"
	description   = "The AWS CloudFormation template for this Serverless application"

	// DefaultRoleLogicalID is the execution role functions use when neither
	// the function nor the provider names one.
	DefaultRoleLogicalID = "IamRoleLambdaExecution"
)

// Input is everything Compile needs besides the service.
type Input struct {
	// Directory is the object key prefix of the deployment folder the
	// artifacts were uploaded to.
	Directory string
	// Identities are the local artifact content hashes.
	Identities version.Identities
	// Previous maps function keys to the last deployed version hash.
	Previous map[string]digest.Digest
	Options  []version.Option
}

// Version is the version resource compiled for one function.
type Version struct {
	Function  string
	LogicalID string
	version.Decision
}

// Compiled is a compiled template plus what was decided along the way.
type Compiled struct {
	Template map[string]any
	Hashes   version.Hashes
	Versions []Version
}

// Compile builds the template of svc. Every versioned function gets a version
// whose logical ID is derived from its version hash, so an unchanged function
// compiles to the same version resource and the stack update keeps it.
// Functions with versioning turned off get neither the version nor its
// output and are left out of Versions.
func Compile(svc *service.Service, in Input) (*Compiled, error) {
	hashes, err := version.HashService(svc, in.Identities, in.Options...)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", svc.StackName(), err)
	}

	resources := make(map[string]any)
	outputs := make(map[string]any)

	bucket := deploymentBucket(svc, resources, outputs)

	for _, key := range svc.LayerNames() {
		l := svc.Layers[key]
		logicalID := naming.LayerLogicalID(key)
		resources[logicalID] = layerResource(svc, key, l, bucket, in.Directory)
		outputs[naming.LayerOutputLogicalID(key)] = map[string]any{
			"Description": "Current Lambda layer version",
			"Value":       map[string]any{"Ref": logicalID},
			"Export":      exportName(svc, naming.LayerOutputLogicalID(key)),
		}
	}

	compiled := &Compiled{Hashes: hashes}
	for _, key := range svc.FunctionNames() {
		fn, _ := svc.Resolved(key)
		functionID := naming.FunctionLogicalID(key)
		resources[functionID] = functionResource(svc, key, fn, bucket, in.Directory)

		if !svc.Versioned(key) {
			continue
		}
		h := hashes.Functions[key]
		versionID := version.VersionLogicalID(key, h)
		resources[versionID] = versionResource(functionID, fn, in.Identities.Code[key])
		outputs[naming.LambdaVersionOutputLogicalID(key)] = map[string]any{
			"Description": "Current Lambda function version",
			"Value":       map[string]any{"Ref": versionID},
			"Export":      exportName(svc, naming.LambdaVersionOutputLogicalID(key)),
		}

		compiled.Versions = append(compiled.Versions, Version{
			Function:  key,
			LogicalID: versionID,
			Decision:  version.Decide(h, in.Previous[key]),
		})
	}

	filters, err := logsub.CompileFilterResources(svc)
	if err != nil {
		return nil, err
	}
	for id, r := range filters {
		resources[id] = r
	}

	compiled.Template = map[string]any{
		"AWSTemplateFormatVersion": formatVersion,
		"Description":              description,
		"Resources":                resources,
		"Outputs":                  outputs,
	}
	return compiled, nil
}

// Core returns the template a new stack is created with before any artifact
// is uploaded: only the deployment bucket and its name output.
func Core() map[string]any {
	resources := make(map[string]any)
	outputs := make(map[string]any)
	addDeploymentBucket(resources, outputs)
	return map[string]any{
		"AWSTemplateFormatVersion": formatVersion,
		"Description":              description,
		"Resources":                resources,
		"Outputs":                  outputs,
	}
}

// deploymentBucket returns the bucket value artifacts are referenced from.
// Without a configured bucket the template declares its own.
func deploymentBucket(svc *service.Service, resources, outputs map[string]any) any {
	if svc.Provider.DeploymentBucket != "" {
		return svc.Provider.DeploymentBucket
	}
	addDeploymentBucket(resources, outputs)
	return map[string]any{"Ref": naming.DeploymentBucketLogicalID}
}

func addDeploymentBucket(resources, outputs map[string]any) {
	resources[naming.DeploymentBucketLogicalID] = map[string]any{
		"Type": "AWS::S3::Bucket",
		"Properties": map[string]any{
			"BucketEncryption": map[string]any{
				"ServerSideEncryptionConfiguration": []any{
					map[string]any{
						"ServerSideEncryptionByDefault": map[string]any{"SSEAlgorithm": "AES256"},
					},
				},
			},
		},
	}
	outputs[naming.DeploymentBucketLogicalID+"Name"] = map[string]any{
		"Value": map[string]any{"Ref": naming.DeploymentBucketLogicalID},
	}
}

func functionResource(svc *service.Service, key string, fn service.Function, bucket any, dir string) map[string]any {
	props := map[string]any{
		"FunctionName": fn.Name,
		"MemorySize":   fn.MemorySize,
		"Timeout":      fn.Timeout,
	}
	if fn.Image != "" {
		props["Code"] = map[string]any{"ImageUri": fn.Image}
		props["PackageType"] = "Image"
	} else {
		props["Code"] = map[string]any{
			"S3Bucket": bucket,
			"S3Key":    artifactKey(dir, svc.FunctionArtifact(key), svc.Name),
		}
		props["Handler"] = fn.Handler
		props["Runtime"] = fn.Runtime
	}
	if fn.Architecture != "" {
		props["Architectures"] = []string{fn.Architecture}
	}
	if fn.Description != "" {
		props["Description"] = fn.Description
	}
	if len(fn.Environment) > 0 {
		props["Environment"] = map[string]any{"Variables": fn.Environment}
	}
	if fn.Role.IsZero() {
		props["Role"] = cfn.GetAtt(DefaultRoleLogicalID, "Arn").Template()
	} else {
		props["Role"] = fn.Role.Template()
	}
	if len(fn.Layers) > 0 {
		layers := make([]any, 0, len(fn.Layers))
		for _, l := range fn.Layers {
			layers = append(layers, l.Template())
		}
		props["Layers"] = layers
	}
	if fn.VPC != nil {
		props["VpcConfig"] = map[string]any{
			"SecurityGroupIds": fn.VPC.SecurityGroupIDs,
			"SubnetIds":        fn.VPC.SubnetIDs,
		}
	}
	if fn.EphemeralStorageSize > 0 {
		props["EphemeralStorage"] = map[string]any{"Size": fn.EphemeralStorageSize}
	}
	if fn.SnapStart {
		props["SnapStart"] = map[string]any{"ApplyOn": "PublishedVersions"}
	}
	if fn.Tracing != "" {
		props["TracingConfig"] = map[string]any{"Mode": fn.Tracing}
	}
	if fn.OnError != "" {
		props["DeadLetterConfig"] = map[string]any{"TargetArn": fn.OnError}
	}
	if fn.FileSystemConfig != nil {
		props["FileSystemConfigs"] = []any{map[string]any{
			"Arn":            fn.FileSystemConfig.ARN,
			"LocalMountPath": fn.FileSystemConfig.LocalMountPath,
		}}
	}
	if fn.KMSKeyARN != "" {
		props["KmsKeyArn"] = fn.KMSKeyARN
	}
	if fn.ReservedConcurrency != nil {
		props["ReservedConcurrentExecutions"] = *fn.ReservedConcurrency
	}
	if tags := mergeTags(svc.Provider.Tags, fn.Tags); len(tags) > 0 {
		props["Tags"] = tags
	}
	return map[string]any{
		"Type":       "AWS::Lambda::Function",
		"Properties": props,
	}
}

func versionResource(functionID string, fn service.Function, codeHash string) map[string]any {
	props := map[string]any{
		"FunctionName": map[string]any{"Ref": functionID},
	}
	if codeHash != "" && fn.Image == "" {
		props["CodeSha256"] = codeHash
	}
	if fn.Description != "" {
		props["Description"] = fn.Description
	}
	if fn.ProvisionedConcurrency > 0 {
		props["ProvisionedConcurrencyConfig"] = map[string]any{
			"ProvisionedConcurrentExecutions": fn.ProvisionedConcurrency,
		}
	}
	return map[string]any{
		"Type":           "AWS::Lambda::Version",
		"DeletionPolicy": "Retain",
		"Properties":     props,
	}
}

func layerResource(svc *service.Service, key string, l service.Layer, bucket any, dir string) map[string]any {
	name := l.Name
	if name == "" {
		name = key
	}
	artifact := l.Artifact
	if artifact == "" {
		artifact = key + ".zip"
	}
	props := map[string]any{
		"LayerName": name,
		"Content": map[string]any{
			"S3Bucket": bucket,
			"S3Key":    path.Join(dir, path.Base(artifact)),
		},
	}
	if l.Description != "" {
		props["Description"] = l.Description
	}
	if len(l.CompatibleRuntimes) > 0 {
		props["CompatibleRuntimes"] = l.CompatibleRuntimes
	}
	if len(l.CompatibleArchitectures) > 0 {
		props["CompatibleArchitectures"] = l.CompatibleArchitectures
	}
	if l.LicenseInfo != "" {
		props["LicenseInfo"] = l.LicenseInfo
	}
	r := map[string]any{
		"Type":       "AWS::Lambda::LayerVersion",
		"Properties": props,
	}
	if l.Retain {
		r["DeletionPolicy"] = "Retain"
	}
	return r
}

// artifactKey is the object key of a function artifact. Functions without
// their own artifact share the service artifact, "<service>.zip" by default.
func artifactKey(dir, artifact, serviceName string) string {
	if artifact == "" {
		artifact = serviceName + ".zip"
	}
	return path.Join(dir, path.Base(artifact))
}

func exportName(svc *service.Service, outputID string) map[string]any {
	return map[string]any{"Name": "sls-" + svc.StackName() + "-" + outputID}
}

func mergeTags(provider, function map[string]string) []any {
	merged := make(map[string]string, len(provider)+len(function))
	for k, v := range provider {
		merged[k] = v
	}
	for k, v := range function {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]any, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, map[string]any{"Key": k, "Value": merged[k]})
	}
	return tags
}
