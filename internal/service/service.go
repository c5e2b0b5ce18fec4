// Package service defines the in-memory description of a serverless service:
// its provider defaults, functions, layers and the events that matter to
// reconciliation. Values are produced by internal/config and consumed by the
// version hasher, the template compiler and the log subscription reconciler.
package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/naming"
)

// Service is a fully loaded service description for one stage.
type Service struct {
	Name      string              `json:"service"`
	Provider  Provider            `json:"provider"`
	Package   Package             `json:"package"`
	Functions map[string]Function `json:"functions"`
	Layers    map[string]Layer    `json:"layers"`
}

// Provider carries stage scoped settings and function defaults.
type Provider struct {
	Stage            string            `json:"stage"`
	Region           string            `json:"region"`
	DeploymentBucket string            `json:"deploymentBucket"`
	Runtime          string            `json:"runtime"`
	MemorySize       int               `json:"memorySize"`
	Timeout          int               `json:"timeout"`
	Architecture     string            `json:"architecture"`
	Environment      map[string]string `json:"environment"`
	Role             cfn.Value         `json:"role"`
	Layers           []cfn.Value       `json:"layers"`
	VPC              *VPC              `json:"vpc"`
	Tracing          string            `json:"tracing"`
	KMSKeyARN        string            `json:"kmsKeyArn"`
	Tags             map[string]string `json:"tags"`
	VersionFunctions *bool             `json:"versionFunctions"`
}

// Package describes where the service level artifact lives.
type Package struct {
	Artifact   string `json:"artifact"`
	Individual bool   `json:"individually"`
}

// VPC is the network attachment of a function.
type VPC struct {
	SecurityGroupIDs []string `json:"securityGroupIds"`
	SubnetIDs        []string `json:"subnetIds"`
}

// FileSystemConfig mounts an EFS access point into a function.
type FileSystemConfig struct {
	ARN            string `json:"arn"`
	LocalMountPath string `json:"localMountPath"`
}

// Function is one deployable unit.
type Function struct {
	Name                   string            `json:"name"`
	Handler                string            `json:"handler"`
	Image                  string            `json:"image"`
	Runtime                string            `json:"runtime"`
	MemorySize             int               `json:"memorySize"`
	Timeout                int               `json:"timeout"`
	Architecture           string            `json:"architecture"`
	Description            string            `json:"description"`
	Environment            map[string]string `json:"environment"`
	Role                   cfn.Value         `json:"role"`
	Layers                 []cfn.Value       `json:"layers"`
	VPC                    *VPC              `json:"vpc"`
	EphemeralStorageSize   int               `json:"ephemeralStorageSize"`
	SnapStart              bool              `json:"snapStart"`
	Tracing                string            `json:"tracing"`
	OnError                string            `json:"onError"`
	FileSystemConfig       *FileSystemConfig `json:"fileSystemConfig"`
	KMSKeyARN              string            `json:"kmsKeyArn"`
	Tags                   map[string]string `json:"tags"`
	ReservedConcurrency    *int              `json:"reservedConcurrency"`
	ProvisionedConcurrency int               `json:"provisionedConcurrency"`
	VersionFunction        *bool             `json:"versionFunction"`
	Package                Package           `json:"package"`
	Events                 []Event           `json:"events"`
}

// Layer is a Lambda layer defined by the service itself.
type Layer struct {
	Name                    string   `json:"name"`
	Path                    string   `json:"path"`
	Artifact                string   `json:"artifact"`
	Description             string   `json:"description"`
	CompatibleRuntimes      []string `json:"compatibleRuntimes"`
	CompatibleArchitectures []string `json:"compatibleArchitectures"`
	LicenseInfo             string   `json:"licenseInfo"`
	Retain                  bool     `json:"retain"`
}

// Event is one function event. Only the event kinds that take part in
// reconciliation are modeled; others are kept raw.
type Event struct {
	CloudWatchLog *CloudWatchLogEvent        `json:"cloudwatchLog,omitempty"`
	Other         map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{}
	for kind, body := range raw {
		if kind == "cloudwatchLog" {
			var cw CloudWatchLogEvent
			if err := json.Unmarshal(body, &cw); err != nil {
				return fmt.Errorf("cloudwatchLog: %w", err)
			}
			e.CloudWatchLog = &cw
			continue
		}
		if e.Other == nil {
			e.Other = make(map[string]json.RawMessage)
		}
		e.Other[kind] = body
	}
	return nil
}

// CloudWatchLogEvent subscribes a function to a log group. It may be given as
// the bare log group name or as an object.
type CloudWatchLogEvent struct {
	LogGroup string `json:"logGroup"`
	Filter   string `json:"filter,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CloudWatchLogEvent) UnmarshalJSON(data []byte) error {
	var logGroup string
	if err := json.Unmarshal(data, &logGroup); err == nil {
		*c = CloudWatchLogEvent{LogGroup: logGroup}
		return nil
	}
	type plain CloudWatchLogEvent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CloudWatchLogEvent(p)
	return nil
}

// StackName returns "<service>-<stage>".
func (s *Service) StackName() string {
	return naming.StackName(s.Name, s.Provider.Stage)
}

// FunctionNames returns function keys in sorted order.
func (s *Service) FunctionNames() []string {
	names := make([]string, 0, len(s.Functions))
	for name := range s.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LayerNames returns layer keys in sorted order.
func (s *Service) LayerNames() []string {
	names := make([]string, 0, len(s.Layers))
	for name := range s.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeployedFunctionName returns the physical name of a function.
func (s *Service) DeployedFunctionName(key string) string {
	if fn, ok := s.Functions[key]; ok && fn.Name != "" {
		return fn.Name
	}
	return naming.FunctionName(s.Name, s.Provider.Stage, key)
}

// LayerKeyForLogicalID maps a layer logical ID back to its key.
func (s *Service) LayerKeyForLogicalID(logicalID string) (string, bool) {
	for _, key := range s.LayerNames() {
		if naming.LayerLogicalID(key) == logicalID {
			return key, true
		}
	}
	return "", false
}

// FunctionArtifact returns the artifact path a function deploys from.
func (s *Service) FunctionArtifact(key string) string {
	fn := s.Functions[key]
	if fn.Package.Artifact != "" {
		return fn.Package.Artifact
	}
	return s.Package.Artifact
}

// CleanLogValue strips newlines and unescapes quotes, matching how the
// provider stores log group names and filter patterns.
func CleanLogValue(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, `\"`, `"`)
}
