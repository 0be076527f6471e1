package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"firesync/internal/models"
)

// ToDocumentValue converts a dynamically typed Go value into a document
// value. Maps with string keys become Map values with keys in ascending
// order, slices become Array values and unsupported types go through their
// JSON form. Values that cannot be represented become Null.
func ToDocumentValue(value any) models.Value {
	switch v := value.(type) {
	case nil:
		return models.Null()
	case models.Value:
		return v
	case *models.Map:
		return models.MapOf(v)
	case bool:
		return models.Bool(v)
	case int:
		return models.Int(int64(v))
	case int8:
		return models.Int(int64(v))
	case int16:
		return models.Int(int64(v))
	case int32:
		return models.Int(int64(v))
	case int64:
		return models.Int(v)
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return models.Int(int64(v))
	case uint16:
		return models.Int(int64(v))
	case uint32:
		return models.Int(int64(v))
	case uint64:
		return fromUint(v)
	case float32:
		return models.Float(float64(v))
	case float64:
		return models.Float(v)
	case json.Number:
		return fromNumber(v)
	case string:
		return models.String(v)
	case []byte:
		return models.String(string(v))
	case time.Time:
		return models.String(v.UTC().Format(time.RFC3339))
	case json.RawMessage:
		return ParseJSON(v)
	case []any:
		items := make([]models.Value, len(v))
		for i, item := range v {
			items[i] = ToDocumentValue(item)
		}
		return models.Array(items...)
	case []string:
		items := make([]models.Value, len(v))
		for i, item := range v {
			items[i] = models.String(item)
		}
		return models.Array(items...)
	case map[string]any:
		m := models.NewMap()
		for _, k := range SortedKeys(v) {
			m.Set(k, ToDocumentValue(v[k]))
		}
		return models.MapOf(m)
	case map[string]string:
		m := models.NewMap()
		for _, k := range SortedKeys(v) {
			m.Set(k, models.String(v[k]))
		}
		return models.MapOf(m)
	case fmt.Stringer:
		return models.String(v.String())
	}
	return reflectValue(reflect.ValueOf(value))
}

// ToSyncDocument converts a string keyed map into a document with keys in
// ascending order.
func ToSyncDocument(fields map[string]any) *models.SyncDocument {
	doc := models.NewSyncDocument()
	for _, k := range SortedKeys(fields) {
		doc.Set(k, ToDocumentValue(fields[k]))
	}
	return doc
}

// ParseJSON decodes raw JSON into a document value, keeping integers exact.
// Invalid JSON becomes Null.
func ParseJSON(raw []byte) models.Value {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var parsed any
	if err := decoder.Decode(&parsed); err != nil {
		return models.Null()
	}
	if decoder.More() {
		return models.Null()
	}
	return ToDocumentValue(parsed)
}

// NormalizeStoredString turns a stored string that holds a JSON object or
// array back into structure. Any other string is returned as a String value.
func NormalizeStoredString(s string) models.Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return models.String(s)
	}
	if !json.Valid([]byte(trimmed)) {
		return models.String(s)
	}
	return ParseJSON([]byte(trimmed))
}

func fromUint(v uint64) models.Value {
	if v > math.MaxInt64 {
		return models.Float(float64(v))
	}
	return models.Int(int64(v))
}

func fromNumber(n json.Number) models.Value {
	if i, err := n.Int64(); err == nil {
		return models.Int(i)
	}
	if f, err := n.Float64(); err == nil {
		return models.Float(f)
	}
	return models.String(n.String())
}

func reflectValue(rv reflect.Value) models.Value {
	switch rv.Kind() {
	case reflect.Invalid:
		return models.Null()
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return models.Null()
		}
		return ToDocumentValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]models.Value, rv.Len())
		for i := range items {
			items[i] = ToDocumentValue(rv.Index(i).Interface())
		}
		return models.Array(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		plain := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			plain[iter.Key().String()] = iter.Value().Interface()
		}
		return ToDocumentValue(plain)
	case reflect.String:
		return models.String(rv.String())
	case reflect.Bool:
		return models.Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return models.Int(rv.Int())
	case reflect.Float32, reflect.Float64:
		return models.Float(rv.Float())
	}

	raw, err := json.Marshal(rv.Interface())
	if err != nil {
		return models.Null()
	}
	return ParseJSON(raw)
}
