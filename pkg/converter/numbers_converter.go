package converter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConvertInterfaceToInt64 accepts the numeric shapes that arrive from JSON
// payloads: Go numbers, json.Number and base 10 strings.
func ConvertInterfaceToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case json.Number:
		return parseInt64(string(v))
	case string:
		return parseInt64(v)
	default:
		return 0, fmt.Errorf("unsupported type %T for conversion to int64", value)
	}
}

func parseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}
