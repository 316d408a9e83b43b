package docstore

import (
	"strings"
)

// Op identifies a filter predicate.
type Op int

const (
	OpAll    Op = iota // matches every document
	OpEq               // field equals value
	OpNe               // field is absent or differs from value
	OpIn               // field (or one of its elements) equals one of values
	OpElemEq           // array field has an element equal to value
	OpOr               // any sub-filter matches
	OpAnd              // every sub-filter matches
)

// Filter is a predicate over documents. The zero value matches everything.
// Backends evaluate it with Match or translate it into their own query language.
type Filter struct {
	op     Op
	field  string
	value  any
	values []any
	subs   []Filter
}

// All matches every document.
func All() Filter { return Filter{op: OpAll} }

// Eq matches documents whose field equals v.
func Eq(field string, v any) Filter { return Filter{op: OpEq, field: field, value: v} }

// Ne matches documents whose field is absent or not equal to v.
func Ne(field string, v any) Filter { return Filter{op: OpNe, field: field, value: v} }

// In matches documents whose field equals any of vs.
func In(field string, vs ...any) Filter { return Filter{op: OpIn, field: field, values: vs} }

// ElemEq matches documents whose array field contains v.
func ElemEq(field string, v any) Filter { return Filter{op: OpElemEq, field: field, value: v} }

// Or matches documents matching at least one of fs.
func Or(fs ...Filter) Filter { return Filter{op: OpOr, subs: fs} }

// And matches documents matching every one of fs.
func And(fs ...Filter) Filter { return Filter{op: OpAnd, subs: fs} }

// Op returns the predicate kind.
func (f Filter) Op() Op { return f.op }

// Field returns the field a leaf predicate applies to.
func (f Filter) Field() string { return f.field }

// Value returns the operand of Eq, Ne and ElemEq.
func (f Filter) Value() any { return f.value }

// Values returns the operands of In.
func (f Filter) Values() []any { return f.values }

// Subs returns the children of Or and And.
func (f Filter) Subs() []Filter { return f.subs }

// Match evaluates the filter against doc.
func (f Filter) Match(doc Document) bool {
	switch f.op {
	case OpAll:
		return true
	case OpEq:
		v, ok := doc[f.field]
		return ok && equalValues(v, f.value)
	case OpNe:
		v, ok := doc[f.field]
		return !ok || !equalValues(v, f.value)
	case OpIn:
		v, ok := doc[f.field]
		if !ok {
			return false
		}
		for _, candidate := range f.values {
			if equalValues(v, candidate) || containsValue(v, candidate) {
				return true
			}
		}
		return false
	case OpElemEq:
		return containsValue(doc[f.field], f.value)
	case OpOr:
		for _, sub := range f.subs {
			if sub.Match(doc) {
				return true
			}
		}
		return false
	case OpAnd:
		for _, sub := range f.subs {
			if !sub.Match(doc) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the filter for logs and error messages.
func (f Filter) String() string {
	switch f.op {
	case OpAll:
		return "{}"
	case OpEq:
		return f.field + " = " + formatValue(f.value)
	case OpNe:
		return f.field + " != " + formatValue(f.value)
	case OpIn:
		parts := make([]string, len(f.values))
		for i, v := range f.values {
			parts[i] = formatValue(v)
		}
		return f.field + " in [" + strings.Join(parts, ", ") + "]"
	case OpElemEq:
		return f.field + " contains " + formatValue(f.value)
	case OpOr, OpAnd:
		sep := " OR "
		if f.op == OpAnd {
			sep = " AND "
		}
		parts := make([]string, len(f.subs))
		for i, sub := range f.subs {
			parts[i] = sub.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "?"
}

// containsValue reports whether arr is a slice holding an element equal to v.
func containsValue(arr any, v any) bool {
	switch items := arr.(type) {
	case []any:
		for _, item := range items {
			if equalValues(item, v) {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if equalValues(item, v) {
				return true
			}
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb || ka == kindOther {
		return false
	}
	return compareValues(a, b) == 0
}
