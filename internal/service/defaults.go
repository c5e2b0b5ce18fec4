package service

import "maps"

const (
	defaultRuntime      = "nodejs20.x"
	defaultMemorySize   = 1024
	defaultTimeout      = 6
	defaultArchitecture = "x86_64"
)

// Resolved returns the function with provider defaults applied. Function
// environment variables override provider ones key by key; every other
// setting is taken from the function when set.
func (s *Service) Resolved(key string) (Function, bool) {
	fn, ok := s.Functions[key]
	if !ok {
		return Function{}, false
	}
	p := s.Provider

	if fn.Image == "" && fn.Runtime == "" {
		fn.Runtime = firstNonEmpty(p.Runtime, defaultRuntime)
	}
	if fn.MemorySize == 0 {
		fn.MemorySize = firstNonZero(p.MemorySize, defaultMemorySize)
	}
	if fn.Timeout == 0 {
		fn.Timeout = firstNonZero(p.Timeout, defaultTimeout)
	}
	if fn.Architecture == "" {
		fn.Architecture = firstNonEmpty(p.Architecture, defaultArchitecture)
	}
	if len(p.Environment) > 0 || len(fn.Environment) > 0 {
		env := make(map[string]string, len(p.Environment)+len(fn.Environment))
		maps.Copy(env, p.Environment)
		maps.Copy(env, fn.Environment)
		fn.Environment = env
	}
	if fn.Role.IsZero() {
		fn.Role = p.Role
	}
	if fn.Layers == nil {
		fn.Layers = p.Layers
	}
	if fn.VPC == nil {
		fn.VPC = p.VPC
	}
	if fn.Tracing == "" {
		fn.Tracing = p.Tracing
	}
	if fn.KMSKeyARN == "" {
		fn.KMSKeyARN = p.KMSKeyARN
	}
	if fn.Name == "" {
		fn.Name = s.DeployedFunctionName(key)
	}
	return fn, true
}

// Versioned reports whether the function publishes a version on deploy. The
// function's versionFunction overrides the provider's versionFunctions and
// both default to true.
func (s *Service) Versioned(key string) bool {
	if fn, ok := s.Functions[key]; ok && fn.VersionFunction != nil {
		return *fn.VersionFunction
	}
	if s.Provider.VersionFunctions != nil {
		return *s.Provider.VersionFunctions
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
