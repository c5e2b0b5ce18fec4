package canon

import (
	"fmt"
	"regexp"
)

// Placeholders substituted for per-deploy values.
const (
	PlaceholderTimestamp = "{{deploy-timestamp}}"
	PlaceholderArtifact  = "{{artifact-key}}"
	PlaceholderBucket    = "{{deployment-bucket}}"
)

// deployDirPattern matches the "<epoch-ms>-<ISO8601>" segment every deploy
// writes its artifacts under, e.g. 1589988704359-2020-05-20T15:31:44.359Z.
var deployDirPattern = regexp.MustCompile(`\d{13}-\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{3})?Z`)

// DeployDirPattern exposes the timestamped folder pattern to listing code.
func DeployDirPattern() *regexp.Regexp {
	return deployDirPattern
}

// TemplateRules is the rule set for compiled stack templates: artifact
// locations and generated deployment resources never affect the hash.
func TemplateRules() []Rule {
	return []Rule{
		ReplacePattern(deployDirPattern, PlaceholderTimestamp),
		ReplaceAtPath("Resources.*.Properties.Code.S3Key", PlaceholderArtifact),
		ReplaceAtPath("Resources.*.Properties.Code.S3Bucket", PlaceholderBucket),
		ReplaceAtPath("Resources.*.Properties.Content.S3Key", PlaceholderArtifact),
		ReplaceAtPath("Resources.*.Properties.Content.S3Bucket", PlaceholderBucket),
		ReplaceAtPath("Resources.ServerlessDeploymentBucket.Properties.BucketName", PlaceholderBucket),
		DropAtPath("Resources.ApiGatewayDeployment*"),
		DropAtPath("Resources.WebsocketsDeployment*"),
	}
}

// NormalizeTemplate normalizes a compiled template with TemplateRules plus
// any extra rules.
func NormalizeTemplate(template any, extra ...Rule) (Normalized, error) {
	return Normalize(template, append(TemplateRules(), extra...)...)
}

// TemplateHash returns the content hash of a compiled template in the same
// base64 form as artifact hashes.
func TemplateHash(template any, extra ...Rule) (string, error) {
	n, err := NormalizeTemplate(template, extra...)
	if err != nil {
		return "", fmt.Errorf("template hash: %w", err)
	}
	data, err := Marshal(n)
	if err != nil {
		return "", fmt.Errorf("template hash: %w", err)
	}
	return BytesSHA256(data), nil
}
