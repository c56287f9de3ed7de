package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Text приводит значение ячейки или JSON-поля к строке; nil дает "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// Int разбирает целое из строки ("12", "12.0") или числа.
func Int(v any) (int, bool) {
	s := strings.TrimSpace(Text(v))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Bool понимает булевы значения из таблиц: TRUE/FALSE, 1/0, «wahr»/«falsch».
// Нераспознанное значение считается false.
func Bool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(Text(v))) {
	case "true", "1", "1.0", "yes", "wahr", "ja":
		return true
	}
	return false
}
