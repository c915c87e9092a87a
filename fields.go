package ion

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// FieldType roughly mirrors zapcore.FieldType.
type FieldType uint8

const (
	UnknownType FieldType = iota
	StringType
	Int64Type
	Uint64Type
	Float64Type
	BoolType
	DurationType
	StringsType
	ErrorType
	AnyType
)

// Field is a structured logging key-value pair. Primitive constructors do not
// allocate.
type Field struct {
	Key       string
	Type      FieldType
	Integer   int64
	StringVal string
	Float     float64
	Interface any
}

// F detects the type of value and builds the matching Field.
func F(key string, value any) Field {
	switch v := value.(type) {
	case string:
		return String(key, v)
	case int:
		return Int(key, v)
	case int64:
		return Int64(key, v)
	case uint64:
		return Uint64(key, v)
	case float64:
		return Float64(key, v)
	case bool:
		return Bool(key, v)
	case time.Duration:
		return Duration(key, v)
	case []string:
		return Strings(key, v)
	case error:
		return Err(v)
	default:
		return Field{Key: key, Type: AnyType, Interface: value}
	}
}

func String(key, value string) Field {
	return Field{Key: key, Type: StringType, StringVal: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Type: Int64Type, Integer: int64(value)}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Type: Int64Type, Integer: value}
}

// Uint64 keeps the full unsigned range.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Type: Uint64Type, Interface: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Type: Float64Type, Float: value}
}

func Bool(key string, value bool) Field {
	var i int64
	if value {
		i = 1
	}
	return Field{Key: key, Type: BoolType, Integer: i}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Type: DurationType, Integer: int64(value)}
}

func Strings(key string, value []string) Field {
	return Field{Key: key, Type: StringsType, Interface: value}
}

// Err creates an error field with the standard key "error".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Type: AnyType, Interface: nil}
	}
	return Field{Key: "error", Type: ErrorType, Interface: err}
}

// Attr converts an OpenTelemetry attribute into a Field so span attributes can
// be logged under their semantic-convention names.
func Attr(kv attribute.KeyValue) Field {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		return Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		return Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		return Float64(key, kv.Value.AsFloat64())
	case attribute.STRING:
		return String(key, kv.Value.AsString())
	case attribute.STRINGSLICE:
		return Strings(key, kv.Value.AsStringSlice())
	default:
		return Field{Key: key, Type: AnyType, Interface: kv.Value.AsInterface()}
	}
}

// Attrs converts every attribute of set, in key order.
func Attrs(set attribute.Set) []Field {
	out := make([]Field, 0, set.Len())
	for iter := set.Iter(); iter.Next(); {
		out = append(out, Attr(iter.Attribute()))
	}
	return out
}
