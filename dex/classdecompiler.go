/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

import (
	"fmt"
	"strings"
)

// DecompiledMethod is the metadata plus reconstructed expressions for one
// method.
type DecompiledMethod struct {
	Name            string
	Signature       string // "(P1, P2, ...): R", no class prefix
	AccessFlags     uint32
	IsPublic        bool
	IsPrivate       bool
	IsStatic        bool
	Parameters      []string
	ReturnType      string
	Expressions     []Expression
	BytecodeSize    int
}

// HasSecurityCalls reports whether any reconstructed expression's text
// contains "JavaScript", "setAllowFileAccess", or "setMixedContentMode".
// Matching is case-sensitive, so "addJavascriptInterface" does not match.
func (m DecompiledMethod) HasSecurityCalls() bool {
	for _, e := range m.Expressions {
		if containsAny(e.Text, "JavaScript", "setAllowFileAccess", "setMixedContentMode") {
			return true
		}
	}
	return false
}

// WebviewExpressions returns the subset of expressions that mention WebView
// or WebSettings. MethodSignature carries the resolved class name (Text
// never does -- Format renders only the receiver and method name), so it is
// the field that actually identifies the call's owning class.
func (m DecompiledMethod) WebviewExpressions() []Expression {
	var out []Expression
	for _, e := range m.Expressions {
		if containsAny(e.MethodSignature, "WebView", "WebSettings") {
			out = append(out, e)
		}
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DecompiledClass is the class-level view produced by the decompiler.
type DecompiledClass struct {
	ClassName   string
	Package     string
	SimpleName  string
	Superclass  string // empty if none (java.lang.Object's superclass slot, or Object itself)
	Interfaces  []string
	Fields      []string // "name: type"
	Methods     []DecompiledMethod
	AccessFlags uint32
}

func (c DecompiledClass) IsPublic() bool   { return c.AccessFlags&AccPublic != 0 }
func (c DecompiledClass) IsFinal() bool    { return c.AccessFlags&AccFinal != 0 }
func (c DecompiledClass) IsAbstract() bool { return c.AccessFlags&AccAbstract != 0 }

// SecurityMethods returns methods judged to have security-relevant calls.
func (c DecompiledClass) SecurityMethods() []DecompiledMethod {
	var out []DecompiledMethod
	for _, m := range c.Methods {
		if m.HasSecurityCalls() {
			out = append(out, m)
		}
	}
	return out
}

// WebviewMethods returns methods with at least one WebView/WebSettings
// expression.
func (c DecompiledClass) WebviewMethods() []DecompiledMethod {
	var out []DecompiledMethod
	for _, m := range c.Methods {
		if len(m.WebviewExpressions()) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// Decompile builds a DecompiledClass for one class_def. Per-field and
// per-method failures are skipped, not propagated: a single obfuscated
// field or method must not sink the whole class.
func Decompile(p *Parser, classDef *ClassDef) (*DecompiledClass, error) {
	className, err := p.TypeName(int(classDef.ClassIdx))
	if err != nil {
		return nil, fmt.Errorf("dex.Decompile: %w", err)
	}
	pkg, simple := splitClassName(className)

	var superclass string
	if classDef.SuperclassIdx != NoIndex {
		if sc, err := p.TypeName(int(classDef.SuperclassIdx)); err == nil {
			superclass = sc
		}
	}

	interfaces, err := decompileInterfaces(p, classDef.InterfacesOff)
	if err != nil {
		// A malformed interfaces list degrades to empty rather than
		// failing the whole class.
		interfaces = nil
	}

	cd, err := p.ClassData(classDef.ClassDataOff)
	if err != nil {
		return &DecompiledClass{
			ClassName:   className,
			Package:     pkg,
			SimpleName:  simple,
			Superclass:  superclass,
			Interfaces:  interfaces,
			AccessFlags: classDef.AccessFlags,
		}, nil
	}

	var fields []string
	for _, f := range cd.StaticFields {
		if s, ok := decompileField(p, f); ok {
			fields = append(fields, s)
		}
	}
	for _, f := range cd.InstanceFields {
		if s, ok := decompileField(p, f); ok {
			fields = append(fields, s)
		}
	}

	var methods []DecompiledMethod
	for _, em := range cd.DirectMethods {
		if m, ok := decompileMethod(p, em); ok {
			methods = append(methods, m)
		}
	}
	for _, em := range cd.VirtualMethods {
		if m, ok := decompileMethod(p, em); ok {
			methods = append(methods, m)
		}
	}

	return &DecompiledClass{
		ClassName:   className,
		Package:     pkg,
		SimpleName:  simple,
		Superclass:  superclass,
		Interfaces:  interfaces,
		Fields:      fields,
		Methods:     methods,
		AccessFlags: classDef.AccessFlags,
	}, nil
}

func decompileInterfaces(p *Parser, interfacesOff uint32) ([]string, error) {
	idxs, err := p.InterfaceTypeIdxs(interfacesOff)
	if err != nil {
		return nil, err
	}
	if len(idxs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		name, err := p.TypeName(int(idx))
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func decompileField(p *Parser, f EncodedField) (string, bool) {
	fi, err := p.FieldInfo(int(f.FieldIdx))
	if err != nil {
		return "", false
	}
	name, err := p.String(int(fi.NameIdx))
	if err != nil {
		return "", false
	}
	typeName, err := p.TypeName(int(fi.TypeIdx))
	if err != nil {
		return "", false
	}
	return name + ": " + typeName, true
}

func decompileMethod(p *Parser, em EncodedMethod) (DecompiledMethod, bool) {
	mi, err := p.MethodInfo(int(em.MethodIdx))
	if err != nil {
		return DecompiledMethod{}, false
	}
	name, err := p.String(int(mi.NameIdx))
	if err != nil {
		return DecompiledMethod{}, false
	}
	proto, err := p.ProtoInfo(int(mi.ProtoIdx))
	if err != nil {
		return DecompiledMethod{}, false
	}
	returnType, err := p.TypeName(int(proto.ReturnTypeIdx))
	if err != nil {
		return DecompiledMethod{}, false
	}
	params := make([]string, 0, len(proto.ParamTypeIdxs))
	for _, idx := range proto.ParamTypeIdxs {
		pt, err := p.TypeName(int(idx))
		if err != nil {
			return DecompiledMethod{}, false
		}
		params = append(params, pt)
	}
	signature := fmt.Sprintf("(%s): %s", strings.Join(params, ", "), returnType)

	var expressions []Expression
	bytecodeSize := 0
	if em.CodeOff != 0 {
		words, err := p.MethodBytecode(em.CodeOff)
		if err == nil {
			bytecodeSize = len(words)
			insns := DecodeInstructions(words)
			expressions = BuildExpressions(p, insns)
		}
	}

	return DecompiledMethod{
		Name:         name,
		Signature:    signature,
		AccessFlags:  em.AccessFlags,
		IsPublic:     em.AccessFlags&AccPublic != 0,
		IsPrivate:    em.AccessFlags&AccPrivate != 0,
		IsStatic:     em.AccessFlags&AccStatic != 0,
		Parameters:   params,
		ReturnType:   returnType,
		Expressions:  expressions,
		BytecodeSize: bytecodeSize,
	}, true
}

// splitClassName normalizes a raw class type name ("Lcom/example/Foo;" or
// "com.example.Foo") to "com.example.Foo" and splits it into package and
// simple name. TypeName already
// performs the L...; -> dotted conversion, so this only needs to handle the
// case where a caller passes a raw descriptor directly.
func splitClassName(className string) (pkg, simple string) {
	name := className
	// Only descriptor form carries the L...; wrapper; a dotted name that
	// merely starts with 'L' (LoginActivity) must stay intact.
	if strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";") {
		name = name[1 : len(name)-1]
	}
	name = replaceSlashes(name)

	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
