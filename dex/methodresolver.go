/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

import (
	"fmt"
	"strings"
)

// MethodSignature is the resolved, printable identity of one method_id.
// Resolution is cache-free: callers that resolve the same method
// repeatedly may memoize, the resolver itself does not.
type MethodSignature struct {
	ClassName      string
	MethodName     string
	ReturnTypeName string
	ParamTypeNames []string
}

// FullSignature renders "Class.method(P1, P2, ...): R".
func (m MethodSignature) FullSignature() string {
	return fmt.Sprintf("%s.%s(%s): %s", m.ClassName, m.MethodName, strings.Join(m.ParamTypeNames, ", "), m.ReturnTypeName)
}

// ResolveMethod composes a MethodSignature for method_ids[methodIdx].
func ResolveMethod(p *Parser, methodIdx uint32) (*MethodSignature, error) {
	mi, err := p.MethodInfo(int(methodIdx))
	if err != nil {
		return nil, fmt.Errorf("dex.ResolveMethod(%d): %w", methodIdx, err)
	}
	className, err := p.TypeName(int(mi.ClassIdx))
	if err != nil {
		return nil, fmt.Errorf("dex.ResolveMethod(%d): %w", methodIdx, err)
	}
	methodName, err := p.String(int(mi.NameIdx))
	if err != nil {
		return nil, fmt.Errorf("dex.ResolveMethod(%d): %w", methodIdx, err)
	}
	proto, err := p.ProtoInfo(int(mi.ProtoIdx))
	if err != nil {
		return nil, fmt.Errorf("dex.ResolveMethod(%d): %w", methodIdx, err)
	}
	returnType, err := p.TypeName(int(proto.ReturnTypeIdx))
	if err != nil {
		return nil, fmt.Errorf("dex.ResolveMethod(%d): %w", methodIdx, err)
	}
	params := make([]string, 0, len(proto.ParamTypeIdxs))
	for _, idx := range proto.ParamTypeIdxs {
		pt, err := p.TypeName(int(idx))
		if err != nil {
			return nil, fmt.Errorf("dex.ResolveMethod(%d): %w", methodIdx, err)
		}
		params = append(params, pt)
	}
	return &MethodSignature{
		ClassName:      className,
		MethodName:     methodName,
		ReturnTypeName: returnType,
		ParamTypeNames: params,
	}, nil
}

// IsWebviewMethod reports whether the signature belongs to
// android.webkit.WebView or android.webkit.WebSettings.
func (m MethodSignature) IsWebviewMethod() bool {
	return strings.Contains(m.ClassName, "android.webkit.WebView") ||
		strings.Contains(m.ClassName, "android.webkit.WebSettings")
}

// IsSetJavaScriptEnabled reports whether this is
// WebSettings.setJavaScriptEnabled.
func (m MethodSignature) IsSetJavaScriptEnabled() bool {
	return strings.Contains(m.ClassName, "WebSettings") && m.MethodName == "setJavaScriptEnabled"
}

// IsAddJavascriptInterface reports whether this is
// WebView.addJavascriptInterface.
func (m MethodSignature) IsAddJavascriptInterface() bool {
	return strings.Contains(m.ClassName, "WebView") && m.MethodName == "addJavascriptInterface"
}
