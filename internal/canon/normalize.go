package canon

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalized is canonicalized content ready for Marshal.
// The zero value normalizes nothing and marshals to null.
type Normalized struct {
	value any
}

// Value returns the normalized tree. It is made of map[string]any, []any,
// string, json.Number, bool and nil only.
func (n Normalized) Value() any {
	return n.value
}

// RuleKind selects what a Rule does to a matching value.
type RuleKind int

const (
	// RuleReplacePattern rewrites every regexp match inside string values.
	RuleReplacePattern RuleKind = iota
	// RuleReplaceAtPath replaces the whole value found at a path.
	RuleReplaceAtPath
	// RuleDropAtPath removes object members found at a path.
	RuleDropAtPath
)

// Rule is one substitution applied during normalization.
//
// Paths are dot-separated object keys; each segment is a path.Match glob,
// so "Resources.*.Properties.Code.S3Key" matches the S3Key of every resource
// and "Resources.ApiGatewayDeployment*" matches generated deployment ids.
// Array elements do not add a segment.
type Rule struct {
	Kind        RuleKind
	Path        string
	Pattern     *regexp.Regexp
	Placeholder string
}

// ReplacePattern returns a rule rewriting regexp matches in any string value.
func ReplacePattern(pattern *regexp.Regexp, placeholder string) Rule {
	return Rule{Kind: RuleReplacePattern, Pattern: pattern, Placeholder: placeholder}
}

// ReplacePatternAt is ReplacePattern scoped to values under a path.
func ReplacePatternAt(p string, pattern *regexp.Regexp, placeholder string) Rule {
	return Rule{Kind: RuleReplacePattern, Path: p, Pattern: pattern, Placeholder: placeholder}
}

// ReplaceAtPath returns a rule replacing the value at a path with placeholder.
func ReplaceAtPath(p, placeholder string) Rule {
	return Rule{Kind: RuleReplaceAtPath, Path: p, Placeholder: placeholder}
}

// DropAtPath returns a rule removing object members matching a path.
func DropAtPath(p string) Rule {
	return Rule{Kind: RuleDropAtPath, Path: p}
}

// Normalize deep-copies content into canonical form, applying rules.
//
// Accepted input is decoded JSON/YAML: maps with string keys, slices,
// strings, bools, nil, json.Number and Go integer/float types. Floats must be
// finite. Anything else is an error, never silently dropped.
func Normalize(content any, rules ...Rule) (Normalized, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		c, err := compileRule(r)
		if err != nil {
			return Normalized{}, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled[i] = c
	}

	w := walker{rules: compiled}
	v, err := w.walk(nil, content)
	if err != nil {
		return Normalized{}, err
	}
	return Normalized{value: v}, nil
}

// Decode reads a JSON document preserving numbers as json.Number so that
// integers never pass through float64.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return v, nil
}

type compiledRule struct {
	Rule
	segments []string
}

func compileRule(r Rule) (compiledRule, error) {
	c := compiledRule{Rule: r}
	if r.Path != "" {
		c.segments = strings.Split(r.Path, ".")
		for _, seg := range c.segments {
			if _, err := path.Match(seg, ""); err != nil {
				return c, fmt.Errorf("bad path segment %q: %w", seg, err)
			}
		}
	}
	switch r.Kind {
	case RuleReplacePattern:
		if r.Pattern == nil {
			return c, fmt.Errorf("pattern rule without pattern")
		}
	case RuleReplaceAtPath, RuleDropAtPath:
		if r.Path == "" {
			return c, fmt.Errorf("path rule without path")
		}
	default:
		return c, fmt.Errorf("unknown rule kind %d", r.Kind)
	}
	return c, nil
}

// matches reports whether the rule's path equals p exactly.
func (c compiledRule) matches(p []string) bool {
	if len(c.segments) != len(p) {
		return false
	}
	for i, seg := range c.segments {
		if ok, _ := path.Match(seg, p[i]); !ok {
			return false
		}
	}
	return true
}

// covers reports whether p lies at or below the rule's path.
func (c compiledRule) covers(p []string) bool {
	if len(c.segments) == 0 {
		return true
	}
	if len(p) < len(c.segments) {
		return false
	}
	return c.matches(p[:len(c.segments)])
}

type walker struct {
	rules []compiledRule
}

func (w walker) walk(p []string, v any) (any, error) {
	for _, r := range w.rules {
		if r.Kind == RuleReplaceAtPath && r.matches(p) {
			return r.Placeholder, nil
		}
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return w.walkString(p, val), nil
	case bool:
		return val, nil
	case json.Number:
		if _, err := strconv.ParseFloat(val.String(), 64); err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", joinPath(p), val)
		}
		return val, nil
	case int:
		return json.Number(strconv.FormatInt(int64(val), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(val, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(val, 10)), nil
	case float32:
		return floatNumber(p, float64(val))
	case float64:
		return floatNumber(p, val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := w.walk(p, elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = w.walkString(p, elem)
		}
		return out, nil
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = elem
		}
		return w.walkObject(p, m)
	case map[string]any:
		return w.walkObject(p, val)
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", joinPath(p), v)
	}
}

func (w walker) walkObject(p []string, obj map[string]any) (any, error) {
	out := make(map[string]any, len(obj))
	for k, elem := range obj {
		child := append(append(make([]string, 0, len(p)+1), p...), k)
		if w.dropped(child) {
			continue
		}
		n, err := w.walk(child, elem)
		if err != nil {
			return nil, err
		}
		out[norm.NFC.String(k)] = n
	}
	return out, nil
}

func (w walker) dropped(p []string) bool {
	for _, r := range w.rules {
		if r.Kind == RuleDropAtPath && r.matches(p) {
			return true
		}
	}
	return false
}

func (w walker) walkString(p []string, s string) string {
	s = norm.NFC.String(s)
	for _, r := range w.rules {
		if r.Kind == RuleReplacePattern && r.covers(p) {
			s = r.Pattern.ReplaceAllLiteralString(s, r.Placeholder)
		}
	}
	return s
}

func floatNumber(p []string, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s: non-finite number %v", joinPath(p), f)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func joinPath(p []string) string {
	if len(p) == 0 {
		return "$"
	}
	return "$." + strings.Join(p, ".")
}
