package sqlengine

import (
	"fmt"
	"strconv"
	"time"
)

// renderValue turns a scanned cell into its exported text form. NULL becomes
// an empty string, the rest follows the shortest faithful representation.
func renderValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", value)
	}
}
