package hashindex

import "fmt"

type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueRef
	ValueInt
	ValueUint
	ValueFloat
)

// Value is the tagged slot stored alongside each key. Callers pick exactly
// one variant; reading through the wrong accessor is a contract violation.
type Value struct {
	kind ValueKind
	ref  any
	i    int64
	u    uint64
	f    float64
}

func RefValue(v any) Value {
	return Value{kind: ValueRef, ref: v}
}

func IntValue(v int64) Value {
	return Value{kind: ValueInt, i: v}
}

func UintValue(v uint64) Value {
	return Value{kind: ValueUint, u: v}
}

func FloatValue(v float64) Value {
	return Value{kind: ValueFloat, f: v}
}

func (me Value) Kind() ValueKind {
	return me.kind
}

func (me Value) Ref() any {
	me.mustBe(ValueRef)
	return me.ref
}

func (me Value) Int() int64 {
	me.mustBe(ValueInt)
	return me.i
}

func (me Value) Uint() uint64 {
	me.mustBe(ValueUint)
	return me.u
}

func (me Value) Float() float64 {
	me.mustBe(ValueFloat)
	return me.f
}

func (me Value) mustBe(kind ValueKind) {
	if me.kind != kind {
		panic(fmt.Sprintf("value holds kind %d, not %d", me.kind, kind))
	}
}
