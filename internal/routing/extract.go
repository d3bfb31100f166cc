package routing

import (
	"regexp"
	"strings"
)

// UnknownLabel is reported when a dispatch produced no author and no marker.
const UnknownLabel = "unknown"

// ErrorLabel is reported for a dispatch that failed.
const ErrorLabel = "error"

var routedMarker = regexp.MustCompile(`\[ROUTED_TO:\s*([^\]]+)\]|\[HANDLED_BY:\s*([^\]]+)\]`)

// ExtractRoutedTo returns the label a dispatch was routed to. The last
// ROUTED_TO or HANDLED_BY marker in text wins. Without a marker the last
// author in path that is not a coordinator or router is used, then the last
// author of any kind.
func ExtractRoutedTo(text string, path []string) string {
	if matches := routedMarker.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		label := last[1]
		if label == "" {
			label = last[2]
		}
		if label = strings.TrimSpace(label); label != "" {
			return label
		}
	}

	for i := len(path) - 1; i >= 0; i-- {
		if !isRouterName(path[i]) {
			return path[i]
		}
	}
	if len(path) > 0 {
		return path[len(path)-1]
	}
	return UnknownLabel
}

func isRouterName(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "coordinator") || strings.Contains(n, "router") || strings.Contains(n, "category")
}

// CountHops returns the number of distinct agents in path, at least 1.
func CountHops(path []string) int {
	seen := make(map[string]struct{}, len(path))
	for _, p := range path {
		seen[p] = struct{}{}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}
