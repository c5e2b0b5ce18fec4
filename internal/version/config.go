package version

import (
	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/service"
)

// VPCConfig is the network attachment of a function. ID lists are sets.
type VPCConfig struct {
	SecurityGroupIDs []string
	SubnetIDs        []string
}

// FileSystemConfig mounts an EFS access point.
type FileSystemConfig struct {
	ARN            string
	LocalMountPath string
}

// FunctionConfig is the resolved configuration of one function.
//
// Only the fields above the marker take part in the version hash. The rest
// are carried so callers can hand over one struct and still be sure they
// are ignored.
type FunctionConfig struct {
	Handler           string
	Runtime           string
	MemorySize        int
	Timeout           int
	Environment       map[string]string
	Role              cfn.Value
	Layers            []cfn.Value
	VPC               *VPCConfig
	ImageURI          string
	Architectures     []string
	EphemeralStorage  int
	SnapStart         bool
	TracingMode       string
	DeadLetterTarget  string
	FileSystemConfigs []FileSystemConfig
	KMSKeyARN         string

	// Not version affecting.
	Description            string
	Tags                   map[string]string
	ReservedConcurrency    *int
	ProvisionedConcurrency int
	CodeS3Bucket           string
	CodeS3Key              string
}

// LayerConfig holds the version-affecting settings of a local layer.
type LayerConfig struct {
	CompatibleRuntimes      []string
	CompatibleArchitectures []string
	LicenseInfo             string
	Description             string
}

// FromFunction converts a resolved service function.
func FromFunction(fn service.Function) FunctionConfig {
	cfg := FunctionConfig{
		Handler:                fn.Handler,
		Runtime:                fn.Runtime,
		MemorySize:             fn.MemorySize,
		Timeout:                fn.Timeout,
		Environment:            fn.Environment,
		Role:                   fn.Role,
		Layers:                 fn.Layers,
		ImageURI:               fn.Image,
		EphemeralStorage:       fn.EphemeralStorageSize,
		SnapStart:              fn.SnapStart,
		TracingMode:            fn.Tracing,
		DeadLetterTarget:       fn.OnError,
		KMSKeyARN:              fn.KMSKeyARN,
		Description:            fn.Description,
		Tags:                   fn.Tags,
		ReservedConcurrency:    fn.ReservedConcurrency,
		ProvisionedConcurrency: fn.ProvisionedConcurrency,
	}
	if fn.Architecture != "" {
		cfg.Architectures = []string{fn.Architecture}
	}
	if fn.VPC != nil {
		cfg.VPC = &VPCConfig{SecurityGroupIDs: fn.VPC.SecurityGroupIDs, SubnetIDs: fn.VPC.SubnetIDs}
	}
	if fn.FileSystemConfig != nil {
		cfg.FileSystemConfigs = []FileSystemConfig{{ARN: fn.FileSystemConfig.ARN, LocalMountPath: fn.FileSystemConfig.LocalMountPath}}
	}
	return cfg
}

// FromLayer converts a service layer.
func FromLayer(l service.Layer) LayerConfig {
	return LayerConfig{
		CompatibleRuntimes:      l.CompatibleRuntimes,
		CompatibleArchitectures: l.CompatibleArchitectures,
		LicenseInfo:             l.LicenseInfo,
		Description:             l.Description,
	}
}
