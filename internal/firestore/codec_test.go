package firestore

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesync/internal/models"
)

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value models.Value
	}{
		{name: "null", value: models.Null()},
		{name: "true", value: models.Bool(true)},
		{name: "false", value: models.Bool(false)},
		{name: "zero", value: models.Int(0)},
		{name: "negative int", value: models.Int(-42)},
		{name: "max int64", value: models.Int(math.MaxInt64)},
		{name: "min int64", value: models.Int(math.MinInt64)},
		{name: "float", value: models.Float(3.25)},
		{name: "empty string", value: models.String("")},
		{name: "string", value: models.String("héllo")},
		{name: "empty array", value: models.Array()},
		{name: "empty map", value: models.MapOf(nil)},
		{name: "array of mixed", value: models.Array(models.Int(1), models.String("a"), models.Null())},
		{name: "nested", value: models.MapOf(models.NewMap().
			Set("terms", models.Array(models.MapOf(models.NewMap().Set("meta", models.MapOf(nil))))).
			Set("count", models.Int(7)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(Encode(tt.value))
			require.NoError(t, err)

			var wire WireValue
			require.NoError(t, json.Unmarshal(raw, &wire))

			decoded := Decode(wire)
			assert.True(t, tt.value.Equal(decoded), "round trip of %s produced %s", raw, decoded.Kind())
		})
	}
}

func TestEncodeEmptyMapIsAnObject(t *testing.T) {
	raw, err := json.Marshal(Encode(models.MapOf(nil)))

	require.NoError(t, err)
	assert.JSONEq(t, `{"mapValue":{"fields":{}}}`, string(raw))

	decoded := Decode(Encode(models.MapOf(nil)))
	assert.Equal(t, models.KindMap, decoded.Kind())
}

func TestEncodeEmptyArrayStaysArray(t *testing.T) {
	raw, err := json.Marshal(Encode(models.Array()))

	require.NoError(t, err)
	assert.JSONEq(t, `{"arrayValue":{}}`, string(raw))
	assert.Equal(t, models.KindArray, Decode(Encode(models.Array())).Kind())
}

func TestEncodeIntegerAsString(t *testing.T) {
	raw, err := json.Marshal(Encode(models.Int(math.MaxInt64)))

	require.NoError(t, err)
	assert.JSONEq(t, `{"integerValue":"9223372036854775807"}`, string(raw))

	got, ok := Decode(Encode(models.Int(math.MaxInt64))).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), got)
}

func TestDecodeIsPermissive(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"timestampValue":"2024-01-01T00:00:00Z"}`,
		`{"integerValue":"not-a-number"}`,
		`{"geoPointValue":{"latitude":1,"longitude":2}}`,
	}

	for _, input := range inputs {
		var wire WireValue
		require.NoError(t, json.Unmarshal([]byte(input), &wire))
		assert.True(t, Decode(wire).IsNull(), input)
	}
}

func TestDecodeFieldsSortsKeys(t *testing.T) {
	var fields map[string]WireValue
	require.NoError(t, json.Unmarshal([]byte(`{"b":{"stringValue":"x"},"a":{"mapValue":{}}}`), &fields))

	m := DecodeFields(fields)

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	a, _ := m.Get("a")
	assert.Equal(t, models.KindMap, a.Kind())
}
