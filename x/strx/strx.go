package strx

import "strings"

// Coalesce returns the first non-blank string, or "" if all are blank.
func Coalesce(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
