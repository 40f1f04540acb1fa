package signer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params is the set of parameters of one gateway call. Values are scalars:
// strings, numbers, bools or nil.
type Params map[string]any

// excludedKeys never take part in the canonical string.
var excludedKeys = map[string]struct{}{
	"sign":        {},
	"sign_type":   {},
	"biz_content": {},
}

// Canonicalize builds the string that gets signed: excluded keys and blank
// values are dropped, the remaining keys are sorted and joined as key=value
// pairs with "&". Values are not escaped.
func Canonicalize(params Params) string {
	keys := make([]string, 0, len(params))
	values := make(map[string]string, len(params))

	for k, v := range params {
		if _, skip := excludedKeys[k]; skip {
			continue
		}
		value, ok := stringValue(v)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		keys = append(keys, k)
		values[k] = value
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
	}
	return b.String()
}

// stringValue converts a parameter value to its wire representation.
// It reports false for nil.
func stringValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case *string:
		if val == nil {
			return "", false
		}
		return *val, true
	case json.Number:
		return val.String(), true
	case int:
		return strconv.Itoa(val), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}
