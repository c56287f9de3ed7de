package normalize

// StripEmpty рекурсивно удаляет nil, пустые строки, пустые объекты и списки.
// Контейнер, опустевший после чистки детей, тоже удаляется, так что
// повторный вызов ничего не меняет. Корневое значение возвращается всегда.
func StripEmpty(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val = StripEmpty(val); !IsEmpty(val) {
				out[k] = val
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if val = StripEmpty(val); !IsEmpty(val) {
				out = append(out, val)
			}
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, 0, len(t))
		for _, val := range t {
			if m := StripEmpty(val).(map[string]any); len(m) > 0 {
				out = append(out, m)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return v
}

// IsEmpty: значение считается пустым и выбрасывается из payload.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}
