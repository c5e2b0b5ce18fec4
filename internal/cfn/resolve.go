package cfn

// Resolver is the capability set needed to turn a Value into a concrete
// string. Each method reports false when it cannot resolve its argument.
type Resolver interface {
	ResolveRef(logicalID string) (string, bool)
	ResolveGetAtt(logicalID, attr string) (string, bool)
	ResolveImport(name string) (string, bool)
}

// Resolve returns the concrete string for v. Literals always resolve.
func Resolve(v Value, r Resolver) (string, bool) {
	switch v.Kind {
	case KindRef:
		if r == nil {
			return "", false
		}
		return r.ResolveRef(v.Value)
	case KindGetAtt:
		if r == nil {
			return "", false
		}
		return r.ResolveGetAtt(v.Value, v.Attr)
	case KindImportValue:
		if r == nil {
			return "", false
		}
		return r.ResolveImport(v.Value)
	default:
		return v.Value, v.Value != ""
	}
}

// MapResolver resolves from fixed tables. Missing tables resolve nothing.
type MapResolver struct {
	Refs    map[string]string
	GetAtts map[string]string // keyed by "LogicalId.Attr"
	Imports map[string]string
}

func (m MapResolver) ResolveRef(logicalID string) (string, bool) {
	s, ok := m.Refs[logicalID]
	return s, ok
}

func (m MapResolver) ResolveGetAtt(logicalID, attr string) (string, bool) {
	s, ok := m.GetAtts[logicalID+"."+attr]
	return s, ok
}

func (m MapResolver) ResolveImport(name string) (string, bool) {
	s, ok := m.Imports[name]
	return s, ok
}
