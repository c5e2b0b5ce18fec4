package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/roach88/driftless/internal/canon"
	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/deploy"
	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/provider/awsprov"
)

// Operation names counted by Cloud.Calls.
const (
	OpListObjects      = "ListObjects"
	OpStatObject       = "StatObject"
	OpPut              = "Put"
	OpFunctionModified = "FunctionLastModified"
	OpDescribeFilters  = "DescribeSubscriptionFilters"
	OpDeleteFilter     = "DeleteSubscriptionFilter"
	OpDeploymentBucket = "DeploymentBucket"
	OpApply            = "Apply"
	OpAccount          = "Account"
)

// ErrLimitExceeded is returned by Apply when a template would put more
// filters on a log group than the provider allows.
var ErrLimitExceeded = errors.New("LimitExceededException: resource limit exceeded")

// Object is one stored object.
type Object struct {
	Data         []byte
	ContentType  string
	ContentHash  string
	LastModified time.Time
}

// Stack is a stack as the fake provider holds it.
type Stack struct {
	Name     string
	Bucket   string
	Template map[string]any
	// Filters maps filter logical IDs to the physical filter they created.
	Filters map[string]logsub.ObservedFilter
}

// Cloud is an in-memory provider: object storage, functions, log groups,
// stacks and the caller identity. Apply behaves like a stack engine for the
// resources the pipeline compiles: changed functions are stamped with the
// clock, subscription filters are created, updated and removed, and the per
// log group limit is enforced.
//
// Every method is safe for concurrent use and counted by operation.
type Cloud struct {
	mu sync.Mutex

	Clock     clock.Clock
	Region    string
	AccountID string
	Partition string

	Buckets   map[string]map[string]Object
	Functions map[string]time.Time
	LogGroups map[string][]logsub.ObservedFilter
	Stacks    map[string]*Stack

	// FailOn makes an operation return the error instead of running.
	FailOn map[string]error
	// FailDelete makes deleting one filter name fail.
	FailDelete map[string]error

	calls  map[string]int
	serial int
}

// NewCloud returns an empty cloud in us-east-1 stamping times with c.
func NewCloud(c clock.Clock) *Cloud {
	return &Cloud{
		Clock:      c,
		Region:     "us-east-1",
		AccountID:  "123456789012",
		Partition:  "aws",
		Buckets:    make(map[string]map[string]Object),
		Functions:  make(map[string]time.Time),
		LogGroups:  make(map[string][]logsub.ObservedFilter),
		Stacks:     make(map[string]*Stack),
		FailOn:     make(map[string]error),
		FailDelete: make(map[string]error),
		calls:      make(map[string]int),
	}
}

// Calls returns how often op was invoked.
func (c *Cloud) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// ResetCalls zeroes every counter.
func (c *Cloud) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[string]int)
}

// AddBucket creates an empty bucket.
func (c *Cloud) AddBucket(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Buckets[name] == nil {
		c.Buckets[name] = make(map[string]Object)
	}
}

// RemoveBucket deletes a bucket and everything in it.
func (c *Cloud) RemoveBucket(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Buckets, name)
}

// AddFilter places a filter on a log group, creating the group.
func (c *Cloud) AddFilter(f logsub.ObservedFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LogGroups[f.LogGroupName] = append(c.LogGroups[f.LogGroupName], f)
}

// Filters returns the filters on a log group sorted by name.
func (c *Cloud) Filters(logGroup string) []logsub.ObservedFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]logsub.ObservedFilter(nil), c.LogGroups[logGroup]...)
	sort.Slice(out, func(i, j int) bool { return out[i].FilterName < out[j].FilterName })
	return out
}

// SetFunctionModified overrides the modification time of a function.
func (c *Cloud) SetFunctionModified(name string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Functions[name] = t
}

// Keys returns the object keys of a bucket in sorted order.
func (c *Cloud) Keys(bucket string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.Buckets[bucket]))
	for k := range c.Buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cloud) enter(op string) error {
	c.calls[op]++
	return c.FailOn[op]
}

// ListObjects implements deploy.ObjectLister.
func (c *Cloud) ListObjects(ctx context.Context, bucket, prefix string) ([]deploy.ArtifactDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpListObjects); err != nil {
		return nil, err
	}
	objects, ok := c.Buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", bucket, deploy.ErrBucketNotFound)
	}
	var out []deploy.ArtifactDescriptor
	for key, o := range objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, describe(key, o, false))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// StatObject implements deploy.ObjectStater.
func (c *Cloud) StatObject(ctx context.Context, bucket, key string) (deploy.ArtifactDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpStatObject); err != nil {
		return deploy.ArtifactDescriptor{}, err
	}
	objects, ok := c.Buckets[bucket]
	if !ok {
		return deploy.ArtifactDescriptor{}, fmt.Errorf("bucket %s: %w", bucket, deploy.ErrBucketNotFound)
	}
	o, ok := objects[key]
	if !ok {
		return deploy.ArtifactDescriptor{}, fmt.Errorf("NoSuchKey: %s", key)
	}
	return describe(key, o, true), nil
}

// Put stores an object stamped with the clock.
func (c *Cloud) Put(ctx context.Context, bucket, key string, data []byte, contentType, contentHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpPut); err != nil {
		return err
	}
	objects, ok := c.Buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s: %w", bucket, deploy.ErrBucketNotFound)
	}
	objects[key] = Object{
		Data:         append([]byte(nil), data...),
		ContentType:  contentType,
		ContentHash:  contentHash,
		LastModified: c.Clock.Now(),
	}
	return nil
}

func describe(key string, o Object, withHash bool) deploy.ArtifactDescriptor {
	t := o.LastModified
	size := int64(len(o.Data))
	a := deploy.ArtifactDescriptor{Key: key, LastModified: &t, Size: &size}
	if withHash {
		a.ContentHash = o.ContentHash
	}
	return a
}

// FunctionLastModified implements deploy.FunctionReader.
func (c *Cloud) FunctionLastModified(ctx context.Context, name string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpFunctionModified); err != nil {
		return time.Time{}, err
	}
	t, ok := c.Functions[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", name, deploy.ErrFunctionNotFound)
	}
	return t, nil
}

// DescribeSubscriptionFilters implements logsub.FilterSource.
func (c *Cloud) DescribeSubscriptionFilters(ctx context.Context, logGroupName string) ([]logsub.ObservedFilter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpDescribeFilters); err != nil {
		return nil, err
	}
	filters, ok := c.LogGroups[logGroupName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", logGroupName, logsub.ErrLogGroupNotFound)
	}
	return append([]logsub.ObservedFilter(nil), filters...), nil
}

// DeleteSubscriptionFilter implements logsub.Deleter. Deleting a filter
// that does not exist succeeds.
func (c *Cloud) DeleteSubscriptionFilter(ctx context.Context, logGroupName, filterName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpDeleteFilter); err != nil {
		return err
	}
	if err := c.FailDelete[filterName]; err != nil {
		return err
	}
	c.removeFilter(logGroupName, filterName)
	for _, s := range c.Stacks {
		for id, f := range s.Filters {
			if f.LogGroupName == logGroupName && f.FilterName == filterName {
				delete(s.Filters, id)
			}
		}
	}
	return nil
}

func (c *Cloud) removeFilter(logGroupName, filterName string) {
	filters := c.LogGroups[logGroupName]
	kept := filters[:0]
	for _, f := range filters {
		if f.FilterName != filterName {
			kept = append(kept, f)
		}
	}
	if _, ok := c.LogGroups[logGroupName]; ok {
		c.LogGroups[logGroupName] = kept
	}
}

// Account returns the configured caller identity.
func (c *Cloud) Account(ctx context.Context) (awsprov.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpAccount); err != nil {
		return awsprov.Account{}, err
	}
	return awsprov.Account{ID: c.AccountID, Partition: c.Partition}, nil
}

// DeploymentBucket returns the bucket of a stack.
func (c *Cloud) DeploymentBucket(ctx context.Context, stackName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpDeploymentBucket); err != nil {
		return "", err
	}
	s, ok := c.Stacks[stackName]
	if !ok {
		return "", fmt.Errorf("%s: %w", stackName, awsprov.ErrStackNotFound)
	}
	if s.Bucket == "" {
		return "", fmt.Errorf("%s: %w", stackName, awsprov.ErrDeploymentBucketMissing)
	}
	return s.Bucket, nil
}

// Apply creates or updates a stack from a template body or from a template
// previously uploaded with Put.
func (c *Cloud) Apply(ctx context.Context, stackName string, src awsprov.TemplateSource, tags map[string]string) (awsprov.ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter(OpApply); err != nil {
		return "", err
	}

	body := []byte(src.Body)
	if src.URL != "" {
		data, err := c.fetch(src.URL)
		if err != nil {
			return "", err
		}
		body = data
	}
	decoded, err := canon.Decode(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	tmpl, ok := decoded.(map[string]any)
	if !ok {
		return "", fmt.Errorf("template of %s is not an object", stackName)
	}

	s, exists := c.Stacks[stackName]
	if !exists {
		s = &Stack{Name: stackName, Filters: make(map[string]logsub.ObservedFilter)}
	}
	if exists && sameContent(s.Template, tmpl) {
		return awsprov.StackUnchanged, nil
	}
	if err := c.applyResources(s, tmpl); err != nil {
		return "", err
	}
	s.Template = tmpl
	c.Stacks[stackName] = s
	if !exists {
		return awsprov.StackCreated, nil
	}
	return awsprov.StackUpdated, nil
}

func (c *Cloud) fetch(raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	bucket, _, ok := strings.Cut(u.Host, ".s3.")
	if !ok {
		return nil, fmt.Errorf("template URL %s is not an object URL", raw)
	}
	o, ok := c.Buckets[bucket][strings.TrimPrefix(u.Path, "/")]
	if !ok {
		return nil, fmt.Errorf("ValidationError: template %s not found", raw)
	}
	return o.Data, nil
}

func (c *Cloud) applyResources(s *Stack, tmpl map[string]any) error {
	resources, _ := tmpl["Resources"].(map[string]any)
	previous, _ := s.Template["Resources"].(map[string]any)

	// Filters are checked before anything changes so a failed update
	// leaves the stack as it was.
	next, err := c.planFilters(s, resources)
	if err != nil {
		return err
	}

	if _, ok := resources[naming.DeploymentBucketLogicalID]; ok && s.Bucket == "" {
		s.Bucket = strings.ToLower(s.Name) + "-serverlessdeploymentbucket-" + c.nextSuffix()
		if c.Buckets[s.Bucket] == nil {
			c.Buckets[s.Bucket] = make(map[string]Object)
		}
	}

	now := c.Clock.Now()
	for id, r := range resources {
		if resourceType(r) != "AWS::Lambda::Function" {
			continue
		}
		if prev, ok := previous[id]; ok && sameContent(prev, r) {
			continue
		}
		c.Functions[functionName(r)] = now
	}
	for id, r := range previous {
		if resourceType(r) != "AWS::Lambda::Function" {
			continue
		}
		if _, ok := resources[id]; !ok {
			delete(c.Functions, functionName(r))
		}
	}

	for id, f := range s.Filters {
		if n, ok := next[id]; !ok || n.LogGroupName != f.LogGroupName || n.FilterName != f.FilterName {
			c.removeFilter(f.LogGroupName, f.FilterName)
		}
	}
	for id, f := range next {
		if old, ok := s.Filters[id]; ok && old.LogGroupName == f.LogGroupName && old.FilterName == f.FilterName {
			c.removeFilter(f.LogGroupName, f.FilterName)
		}
		c.LogGroups[f.LogGroupName] = append(c.LogGroups[f.LogGroupName], f)
	}
	s.Filters = next
	return nil
}

// planFilters computes the physical filters of resources. A filter keeps its
// physical name while its log group is unchanged.
func (c *Cloud) planFilters(s *Stack, resources map[string]any) (map[string]logsub.ObservedFilter, error) {
	next := make(map[string]logsub.ObservedFilter)
	added := make(map[string]int)
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := resources[id]
		if resourceType(r) != "AWS::Logs::SubscriptionFilter" {
			continue
		}
		props, _ := r.(map[string]any)["Properties"].(map[string]any)
		group, _ := props["LogGroupName"].(string)
		pattern, _ := props["FilterPattern"].(string)
		f := logsub.ObservedFilter{
			LogGroupName:   group,
			FilterPattern:  pattern,
			DestinationARN: c.destination(resources, props["DestinationArn"]),
		}
		if old, ok := s.Filters[id]; ok && old.LogGroupName == group {
			f.FilterName = old.FilterName
		} else {
			f.FilterName = naming.FilterNamePrefix(s.Name, id) + c.nextSuffix()
			added[group]++
		}
		next[id] = f
	}

	// New filters are created before replaced ones are removed, so every
	// filter currently on the group counts.
	for group, n := range added {
		if len(c.LogGroups[group])+n > logsub.MaxFiltersPerLogGroup {
			return nil, fmt.Errorf("create subscription filter in %s: %w", group, ErrLimitExceeded)
		}
	}
	return next, nil
}

func (c *Cloud) destination(resources map[string]any, v any) string {
	parsed, err := cfn.Parse(v)
	if err != nil {
		return ""
	}
	switch parsed.Kind {
	case cfn.KindLiteral:
		return parsed.Value
	case cfn.KindGetAtt:
		if name := functionName(resources[parsed.Value]); name != "" {
			return cfn.FunctionARN(c.Partition, c.Region, c.AccountID, name)
		}
	}
	return ""
}

func (c *Cloud) nextSuffix() string {
	c.serial++
	return fmt.Sprintf("FAKE%04d", c.serial)
}

func resourceType(r any) string {
	m, _ := r.(map[string]any)
	t, _ := m["Type"].(string)
	return t
}

func functionName(r any) string {
	m, _ := r.(map[string]any)
	props, _ := m["Properties"].(map[string]any)
	name, _ := props["FunctionName"].(string)
	return name
}

func sameContent(a, b any) bool {
	ca, errA := canon.MarshalContent(a)
	cb, errB := canon.MarshalContent(b)
	return errA == nil && errB == nil && bytes.Equal(ca, cb)
}
