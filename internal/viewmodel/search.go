package viewmodel

import "strings"

// matchesSearch reports whether any field contains term, ignoring case. An empty
// term matches everything.
func matchesSearch(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
