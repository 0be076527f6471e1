package firestore

import (
	"sort"
	"strconv"

	"firesync/internal/models"
)

const nullMarker = "NULL_VALUE"

// WireValue is the tagged JSON value of the document REST API. Exactly one
// member is set on a well formed value.
type WireValue struct {
	NullValue    *string    `json:"nullValue,omitempty"`
	BooleanValue *bool      `json:"booleanValue,omitempty"`
	IntegerValue *string    `json:"integerValue,omitempty"`
	DoubleValue  *float64   `json:"doubleValue,omitempty"`
	StringValue  *string    `json:"stringValue,omitempty"`
	ArrayValue   *WireArray `json:"arrayValue,omitempty"`
	MapValue     *WireMap   `json:"mapValue,omitempty"`
}

type WireArray struct {
	Values []WireValue `json:"values,omitempty"`
}

// WireMap always serializes its fields member, so an empty map goes out as
// {"fields":{}} and can never be read back as an array.
type WireMap struct {
	Fields map[string]WireValue `json:"fields"`
}

// Encode converts a document value to its wire form.
func Encode(v models.Value) WireValue {
	switch v.Kind() {
	case models.KindBool:
		b, _ := v.AsBool()
		return WireValue{BooleanValue: &b}
	case models.KindInt:
		i, _ := v.AsInt()
		s := strconv.FormatInt(i, 10)
		return WireValue{IntegerValue: &s}
	case models.KindFloat:
		f, _ := v.AsFloat()
		return WireValue{DoubleValue: &f}
	case models.KindString:
		s, _ := v.AsString()
		return WireValue{StringValue: &s}
	case models.KindArray:
		items, _ := v.AsArray()
		values := make([]WireValue, len(items))
		for i, item := range items {
			values[i] = Encode(item)
		}
		return WireValue{ArrayValue: &WireArray{Values: values}}
	case models.KindMap:
		m, _ := v.AsMap()
		return WireValue{MapValue: &WireMap{Fields: EncodeFields(m)}}
	default:
		marker := nullMarker
		return WireValue{NullValue: &marker}
	}
}

// EncodeFields encodes every entry of m. The result is never nil.
func EncodeFields(m *models.Map) map[string]WireValue {
	fields := make(map[string]WireValue, m.Len())
	m.Range(func(k string, v models.Value) bool {
		fields[k] = Encode(v)
		return true
	})
	return fields
}

// Decode converts a wire value back. Shapes it does not recognize decode to Null.
func Decode(w WireValue) models.Value {
	switch {
	case w.NullValue != nil:
		return models.Null()
	case w.BooleanValue != nil:
		return models.Bool(*w.BooleanValue)
	case w.IntegerValue != nil:
		i, err := strconv.ParseInt(*w.IntegerValue, 10, 64)
		if err != nil {
			return models.Null()
		}
		return models.Int(i)
	case w.DoubleValue != nil:
		return models.Float(*w.DoubleValue)
	case w.StringValue != nil:
		return models.String(*w.StringValue)
	case w.ArrayValue != nil:
		items := make([]models.Value, len(w.ArrayValue.Values))
		for i, item := range w.ArrayValue.Values {
			items[i] = Decode(item)
		}
		return models.Array(items...)
	case w.MapValue != nil:
		return models.MapOf(DecodeFields(w.MapValue.Fields))
	default:
		return models.Null()
	}
}

// DecodeFields decodes a wire field set. Keys come back sorted since the wire
// form carries no order.
func DecodeFields(fields map[string]WireValue) *models.Map {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := models.NewMap()
	for _, k := range keys {
		m.Set(k, Decode(fields[k]))
	}
	return m
}

// wireDocument is the request and response body of single document calls.
type wireDocument struct {
	Name       string               `json:"name,omitempty"`
	Fields     map[string]WireValue `json:"fields"`
	CreateTime string               `json:"createTime,omitempty"`
	UpdateTime string               `json:"updateTime,omitempty"`
}
