/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the AbstractValue tagged union.
type ValueKind int

const (
	ValueUnknown ValueKind = iota
	ValueConstInt
	ValueConstString
	ValueMethodCall
	ValueThis
	ValueParameter
)

// AbstractValue is one simulated register's contents at a point in the
// linear pass. Only the field matching Kind is meaningful.
type AbstractValue struct {
	Kind ValueKind

	IntVal    int64
	StringVal string

	// MethodCall fields.
	Receiver  string
	Signature *MethodSignature
	ArgExprs  []string
}

// Format renders an AbstractValue the way reconstructed expressions display
// it: ConstInt(0)/ConstInt(1) as "false"/"true", other
// ints as decimal literals, strings quoted, method calls as
// receiver.method(args), and Unknown as "?".
func (v AbstractValue) Format() string {
	switch v.Kind {
	case ValueConstInt:
		switch v.IntVal {
		case 0:
			return "false"
		case 1:
			return "true"
		default:
			return strconv.FormatInt(v.IntVal, 10)
		}
	case ValueConstString:
		return fmt.Sprintf("%q", v.StringVal)
	case ValueMethodCall:
		return fmt.Sprintf("%s.%s(%s)", v.Receiver, v.Signature.MethodName, strings.Join(v.ArgExprs, ", "))
	case ValueThis:
		return "this"
	case ValueParameter:
		return "?"
	default:
		return "?"
	}
}

// Expression is one reconstructed, "significant" method-call expression
// emitted by the builder.
type Expression struct {
	Text            string
	MethodSignature string
	IsMethodCall    bool
}

// BuildExpressions runs a linear, join-free register simulation over one
// method's decoded instruction stream and returns the reconstructed
// expressions for invocations judged significant.
func BuildExpressions(p *Parser, insns []Instruction) []Expression {
	registers := make(map[int]AbstractValue)
	var out []Expression

	for _, insn := range insns {
		switch insn.Kind {
		case KindConst4, KindConst16, KindConst:
			registers[insn.Dest] = AbstractValue{Kind: ValueConstInt, IntVal: insn.Value}

		case KindConstString:
			s, err := p.String(int(insn.StrIdx))
			if err != nil {
				registers[insn.Dest] = AbstractValue{Kind: ValueUnknown}
				continue
			}
			registers[insn.Dest] = AbstractValue{Kind: ValueConstString, StringVal: s}

		case KindInvoke:
			sig, err := ResolveMethod(p, insn.MethodIdx)
			if err != nil {
				continue
			}
			call := buildMethodCallValue(registers, insn.Args, sig)
			if isSignificant(sig, call) {
				out = append(out, Expression{
					Text:            call.Format(),
					MethodSignature: sig.FullSignature(),
					IsMethodCall:    true,
				})
			}

		case KindInvokeRange:
			sig, err := ResolveMethod(p, insn.MethodIdx)
			if err != nil {
				continue
			}
			args := make([]int, insn.ArgCount)
			for j := 0; j < insn.ArgCount; j++ {
				args[j] = insn.FirstArg + j
			}
			call := buildMethodCallValue(registers, args, sig)
			if isSignificant(sig, call) {
				out = append(out, Expression{
					Text:            call.Format(),
					MethodSignature: sig.FullSignature(),
					IsMethodCall:    true,
				})
			}
		}
	}
	return out
}

// buildMethodCallValue resolves the receiver register (first argument, for
// both instance and static dispatch forms) and the remaining
// argument registers to their formatted text, reading Unknown for any
// register the linear pass never wrote.
func buildMethodCallValue(registers map[int]AbstractValue, args []int, sig *MethodSignature) AbstractValue {
	receiver := "?"
	if len(args) > 0 {
		if v, ok := registers[args[0]]; ok {
			receiver = v.Format()
		}
	}
	var argExprs []string
	if len(args) > 1 {
		argExprs = make([]string, 0, len(args)-1)
		for _, reg := range args[1:] {
			if v, ok := registers[reg]; ok {
				argExprs = append(argExprs, v.Format())
			} else {
				argExprs = append(argExprs, "?")
			}
		}
	}
	return AbstractValue{Kind: ValueMethodCall, Receiver: receiver, Signature: sig, ArgExprs: argExprs}
}

// isSignificant is the boundary between "noise" and "interesting surface":
// only WebView/WebSettings-shaped invocations are worth emitting.
func isSignificant(sig *MethodSignature, call AbstractValue) bool {
	if sig.IsSetJavaScriptEnabled() || sig.IsWebviewMethod() {
		return true
	}
	text := call.Format()
	return strings.Contains(text, "WebSettings") || strings.Contains(text, "WebView")
}
