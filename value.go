package tinylang

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

type ObjectType string

const (
	INTEGER_OBJ      = "INTEGER"
	STRING_OBJ       = "STRING"
	BOOLEAN_OBJ      = "BOOLEAN"
	RETURN_VALUE_OBJ = "RETURN_VALUE"
)

// Object is a runtime value. A nil Object means "no value": it is what
// function definitions, conditionals and loops evaluate to.
type Object interface {
	Type() ObjectType
	Inspect() string
}

type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

// ReturnValue unwinds one function call. It never escapes a call.
type ReturnValue struct {
	Value Object
}

func (rv *ReturnValue) Type() ObjectType { return RETURN_VALUE_OBJ }
func (rv *ReturnValue) Inspect() string  { return Inspect(rv.Value) }

var (
	TRUE_OBJ  = &Boolean{Value: true}
	FALSE_OBJ = &Boolean{Value: false}
)

func nativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE_OBJ
	}
	return FALSE_OBJ
}

// Inspect renders a value the way print does, including "null" for no value.
func Inspect(obj Object) string {
	if obj == nil {
		return "null"
	}
	return obj.Inspect()
}

// ToNative converts a runtime value into the matching Go value.
func ToNative(obj Object) any {
	switch o := obj.(type) {
	case *Integer:
		return o.Value
	case *String:
		return o.Value
	case *Boolean:
		return o.Value
	case *ReturnValue:
		return ToNative(o.Value)
	default:
		return nil
	}
}

// toObject converts a host value into a runtime value. Numeric kinds become
// integers; anything the language cannot represent is formatted as a string.
func toObject(val any) (Object, error) {
	if val == nil {
		return nil, fmt.Errorf("cannot inject nil value")
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Bool:
		return nativeBoolToBooleanObject(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Integer{Value: v.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("cannot inject %d: out of integer range", u)
		}
		return &Integer{Value: int64(u)}, nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("cannot inject %v: out of integer range", f)
		}
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("cannot inject non-integral number %v", f)
		}
		return &Integer{Value: int64(f)}, nil
	case reflect.String:
		return &String{Value: v.String()}, nil
	default:
		return &String{Value: fmt.Sprintf("%v", val)}, nil
	}
}
