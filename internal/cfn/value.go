package cfn

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags the shape of a Value.
type Kind string

const (
	KindLiteral     Kind = "literal"
	KindRef         Kind = "ref"
	KindImportValue Kind = "importValue"
	KindGetAtt      Kind = "getAtt"
)

// Value is a string-typed template property that may be given literally or
// through an intrinsic function. Attr is only set for KindGetAtt.
type Value struct {
	Kind  Kind
	Value string
	Attr  string
}

// Literal returns a literal Value.
func Literal(s string) Value { return Value{Kind: KindLiteral, Value: s} }

// Ref returns a {"Ref": logicalID} Value.
func Ref(logicalID string) Value { return Value{Kind: KindRef, Value: logicalID} }

// ImportValue returns a {"Fn::ImportValue": name} Value.
func ImportValue(name string) Value { return Value{Kind: KindImportValue, Value: name} }

// GetAtt returns a {"Fn::GetAtt": [logicalID, attr]} Value.
func GetAtt(logicalID, attr string) Value {
	return Value{Kind: KindGetAtt, Value: logicalID, Attr: attr}
}

// IsZero reports whether v was never set.
func (v Value) IsZero() bool {
	return v.Kind == "" && v.Value == ""
}

// Template returns the value in template form: a plain string for literals,
// otherwise the intrinsic function object.
func (v Value) Template() any {
	switch v.Kind {
	case KindRef:
		return map[string]any{"Ref": v.Value}
	case KindImportValue:
		return map[string]any{"Fn::ImportValue": v.Value}
	case KindGetAtt:
		return map[string]any{"Fn::GetAtt": []any{v.Value, v.Attr}}
	default:
		return v.Value
	}
}

// String renders a stable, human-readable form used in hash inputs and logs.
func (v Value) String() string {
	switch v.Kind {
	case KindRef:
		return "ref:" + v.Value
	case KindImportValue:
		return "import:" + v.Value
	case KindGetAtt:
		return "getatt:" + v.Value + "." + v.Attr
	default:
		return v.Value
	}
}

// Parse converts a decoded template or configuration value into a Value.
func Parse(raw any) (Value, error) {
	switch val := raw.(type) {
	case string:
		return Literal(val), nil
	case map[string]any:
		if len(val) != 1 {
			return Value{}, fmt.Errorf("intrinsic object must have exactly one key, got %d", len(val))
		}
		for k, arg := range val {
			switch k {
			case "Ref":
				s, ok := arg.(string)
				if !ok {
					return Value{}, fmt.Errorf("Ref argument must be a string")
				}
				return Ref(s), nil
			case "Fn::ImportValue":
				s, ok := arg.(string)
				if !ok {
					return Value{}, fmt.Errorf("Fn::ImportValue argument must be a string")
				}
				return ImportValue(s), nil
			case "Fn::GetAtt":
				return parseGetAtt(arg)
			default:
				return Value{}, fmt.Errorf("unsupported intrinsic %q", k)
			}
		}
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}

func parseGetAtt(arg any) (Value, error) {
	switch a := arg.(type) {
	case string:
		id, attr, ok := strings.Cut(a, ".")
		if !ok {
			return Value{}, fmt.Errorf("Fn::GetAtt %q must be LogicalId.Attribute", a)
		}
		return GetAtt(id, attr), nil
	case []any:
		if len(a) != 2 {
			return Value{}, fmt.Errorf("Fn::GetAtt needs two elements, got %d", len(a))
		}
		id, ok1 := a[0].(string)
		attr, ok2 := a[1].(string)
		if !ok1 || !ok2 {
			return Value{}, fmt.Errorf("Fn::GetAtt elements must be strings")
		}
		return GetAtt(id, attr), nil
	}
	return Value{}, fmt.Errorf("unsupported Fn::GetAtt argument %T", arg)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Template())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}
