/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

import "strings"

// ClassFilter selects classes by package membership, name substring, and
// access-flag modifiers. It operates directly on DecompiledClass: there is
// no second, lighter-weight class model purely for filtering, because
// DecompiledClass already carries everything a filter needs.
type ClassFilter struct {
	Packages        []string // if non-empty, class.Package must have one as a prefix
	ExcludePackages []string
	ClassName       string // substring match against SimpleName or ClassName
	Modifiers       []string
}

// Matches reports whether c satisfies f. An unset field matches everything.
func (f ClassFilter) Matches(c DecompiledClass) bool {
	if len(f.Packages) > 0 && !hasAnyPrefix(c.Package, f.Packages) {
		return false
	}
	if hasAnyPrefix(c.Package, f.ExcludePackages) {
		return false
	}
	if f.ClassName != "" &&
		!strings.Contains(c.SimpleName, f.ClassName) &&
		!strings.Contains(c.ClassName, f.ClassName) {
		return false
	}
	if len(f.Modifiers) > 0 && !hasAllModifiers(c.AccessFlags, f.Modifiers) {
		return false
	}
	return true
}

// MethodFilter selects methods by name substring, parameter shape, return
// type, and access-flag modifiers.
type MethodFilter struct {
	MethodName string
	ParamCount int // -1 means "don't care"
	ParamTypes []string
	ReturnType string
	Modifiers  []string
}

// Matches reports whether m satisfies f.
func (f MethodFilter) Matches(m DecompiledMethod) bool {
	if f.MethodName != "" && !strings.Contains(m.Name, f.MethodName) {
		return false
	}
	if f.ParamCount >= 0 && len(m.Parameters) != f.ParamCount {
		return false
	}
	if len(f.ParamTypes) > 0 {
		if len(f.ParamTypes) != len(m.Parameters) {
			return false
		}
		for i, pt := range f.ParamTypes {
			if pt != "" && pt != m.Parameters[i] {
				return false
			}
		}
	}
	if f.ReturnType != "" && f.ReturnType != m.ReturnType {
		return false
	}
	if len(f.Modifiers) > 0 && !hasAllModifiers(m.AccessFlags, f.Modifiers) {
		return false
	}
	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAllModifiers(flags uint32, modifiers []string) bool {
	have := make(map[string]bool)
	for _, name := range FlagsToStrings(flags) {
		have[name] = true
	}
	for _, m := range modifiers {
		if !have[m] {
			return false
		}
	}
	return true
}
