package document

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Sanitize converts v into a tree of primitive values safe for the document store.
//
// nil becomes "", floats become float64 (non-finite values become 0), integers
// become int64, sequences become []any and maps become map[string]any with nil
// entries dropped. Structs are converted to maps using their json tags and
// times are rendered as dates (midnight) or RFC3339 timestamps. Anything else is
// rendered with fmt.Sprint. Sanitize(Sanitize(v)) equals Sanitize(v).
func Sanitize(v any) any {
	if v == nil {
		return ""
	}
	return sanitizeValue(reflect.ValueOf(v))
}

// ToDocument sanitizes v and returns it as a Document. Non-map values yield an empty document.
func ToDocument(v any) Document {
	m, ok := Sanitize(v).(map[string]any)
	if !ok {
		return Document{}
	}
	return Document(m)
}

func sanitizeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return ""
	}
	if rv.Type() == timeType {
		return formatTime(rv.Interface().(time.Time))
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return sanitizeValue(rv.Elem())
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return int64(math.MaxInt64)
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return float64(0)
		}
		return f
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return sanitizeList(rv)
	case reflect.Array:
		return sanitizeList(rv)
	case reflect.Map:
		return sanitizeMap(rv)
	case reflect.Struct:
		return sanitizeStruct(rv)
	default:
		return fmt.Sprint(rv.Interface())
	}
}

func sanitizeList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = sanitizeValue(rv.Index(i))
	}
	return out
}

func sanitizeMap(rv reflect.Value) map[string]any {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		val := iter.Value()
		if isNil(val) {
			continue
		}
		out[mapKey(iter.Key())] = sanitizeValue(val)
	}
	return out
}

func sanitizeStruct(rv reflect.Value) map[string]any {
	out := make(map[string]any)
	rt := rv.Type()
	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}
		val := rv.Field(i)
		if field.Anonymous && name == "" && val.Kind() == reflect.Struct {
			for k, v := range sanitizeStruct(val) {
				out[k] = v
			}
			continue
		}
		if isNil(val) || (omitEmpty && val.IsZero()) {
			continue
		}
		if name == "" {
			name = field.Name
		}
		out[name] = sanitizeValue(val)
	}
	return out
}

func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty, false
}

func mapKey(k reflect.Value) string {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer:
		return v.IsNil()
	case reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isNil(v.Elem())
	default:
		return false
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(time.RFC3339)
}
