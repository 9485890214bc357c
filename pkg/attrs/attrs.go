// Package attrs reads values back out of slog-style key/value lists.
package attrs

// ExtractString returns the string stored under key in a flat
// [k1, v1, k2, v2, ...] list, or "" when the key is absent or not a string.
// Audit helpers use it to lift the subject id out of log attributes.
func ExtractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		s, _ := kv[i+1].(string)
		return s
	}
	return ""
}
