package extract

import "strings"

// SettingString reads a string job setting, falling back to def.
func SettingString(settings map[string]any, key, def string) string {
	if v, ok := settings[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// SettingInt reads a numeric job setting. JSON numbers decode as float64.
func SettingInt(settings map[string]any, key string, def int) int {
	switch v := settings[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

// SettingBool reads a boolean job setting.
func SettingBool(settings map[string]any, key string, def bool) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return def
}
