package converter

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firesync/internal/models"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestToDocumentValue(t *testing.T) {
	nested := models.NewMap().Set("x", models.Int(1))

	tests := []struct {
		name     string
		input    any
		expected models.Value
	}{
		{name: "nil", input: nil, expected: models.Null()},
		{name: "bool", input: true, expected: models.Bool(true)},
		{name: "int", input: 42, expected: models.Int(42)},
		{name: "max int64", input: int64(math.MaxInt64), expected: models.Int(math.MaxInt64)},
		{name: "uint8", input: uint8(7), expected: models.Int(7)},
		{name: "huge uint64", input: uint64(math.MaxUint64), expected: models.Float(float64(uint64(math.MaxUint64)))},
		{name: "float", input: 1.5, expected: models.Float(1.5)},
		{name: "json integer", input: json.Number("12"), expected: models.Int(12)},
		{name: "json float", input: json.Number("1.25"), expected: models.Float(1.25)},
		{name: "string", input: "hi", expected: models.String("hi")},
		{name: "bytes", input: []byte("raw"), expected: models.String("raw")},
		{name: "time", input: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), expected: models.String("2024-05-01T10:00:00Z")},
		{name: "empty slice stays array", input: []any{}, expected: models.Array()},
		{name: "empty map stays map", input: map[string]any{}, expected: models.MapOf(nil)},
		{name: "string slice", input: []string{"a", "b"}, expected: models.Array(models.String("a"), models.String("b"))},
		{name: "typed slice", input: []int{1, 2}, expected: models.Array(models.Int(1), models.Int(2))},
		{name: "existing value", input: models.String("kept"), expected: models.String("kept")},
		{name: "existing map", input: nested, expected: models.MapOf(nested)},
		{
			name:     "nested map",
			input:    map[string]any{"b": []any{1, "two"}, "a": map[string]any{}},
			expected: models.MapOf(models.NewMap().Set("a", models.MapOf(nil)).Set("b", models.Array(models.Int(1), models.String("two")))),
		},
		{
			name:     "struct via json",
			input:    sample{Name: "n", Count: 3},
			expected: models.MapOf(models.NewMap().Set("count", models.Int(3)).Set("name", models.String("n"))),
		},
		{name: "nil pointer", input: (*sample)(nil), expected: models.Null()},
		{name: "channel", input: make(chan int), expected: models.Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDocumentValue(tt.input)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected.Kind(), got.Kind())
		})
	}
}

func TestToDocumentValueSortsMapKeys(t *testing.T) {
	m, ok := ToDocumentValue(map[string]any{"z": 1, "a": 2, "m": 3}).AsMap()

	assert.True(t, ok)
	assert.Equal(t, []string{"a", "m", "z"}, m.Keys())
}

func TestToSyncDocument(t *testing.T) {
	doc := ToSyncDocument(map[string]any{"title": "x", "id": int64(5)})

	assert.Equal(t, []string{"id", "title"}, doc.Keys())
	v, _ := doc.Get("id")
	assert.True(t, v.Equal(models.Int(5)))
}

func TestNormalizeStoredString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.Value
	}{
		{name: "plain text", input: "red", expected: models.String("red")},
		{name: "number text stays text", input: "42", expected: models.String("42")},
		{name: "json object", input: `{"a":1}`, expected: models.MapOf(models.NewMap().Set("a", models.Int(1)))},
		{name: "json array", input: ` [1, 2] `, expected: models.Array(models.Int(1), models.Int(2))},
		{name: "empty json object", input: `{}`, expected: models.MapOf(nil)},
		{name: "broken json", input: `{"a":`, expected: models.String(`{"a":`)},
		{name: "empty", input: "", expected: models.String("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(NormalizeStoredString(tt.input)))
		})
	}
}

func TestParseJSON(t *testing.T) {
	assert.True(t, models.Int(math.MaxInt64).Equal(ParseJSON([]byte("9223372036854775807"))))
	assert.True(t, models.Null().Equal(ParseJSON([]byte("nope"))))
	assert.True(t, models.Null().Equal(ParseJSON([]byte("1 2"))))
}
