package canon

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Marshal produces RFC 8785 canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Numbers use the ECMAScript shortest form (1.0 and 1 are the same number)
//  4. U+2028/U+2029 are emitted literally
//
// Integers beyond 2^53 lose precision, as in any I-JSON consumer.
func Marshal(n Normalized) ([]byte, error) {
	// The canonicalizer only accepts an object or array at the top level,
	// so scalars travel inside a one-element array.
	v := n.value
	_, isObject := v.(map[string]any)
	_, isArray := v.([]any)
	scalar := !isObject && !isArray
	if scalar {
		v = []any{v}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}

	out, err := jsoncanonicalizer.Transform(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	if scalar {
		out = out[1 : len(out)-1]
	}
	return out, nil
}

// MarshalContent normalizes content with rules and marshals it in one step.
func MarshalContent(content any, rules ...Rule) ([]byte, error) {
	n, err := Normalize(content, rules...)
	if err != nil {
		return nil, err
	}
	return Marshal(n)
}
