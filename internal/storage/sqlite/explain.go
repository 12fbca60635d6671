package sqlite

import (
	"fmt"
	"strings"
)

// renderQuery interpolates args into the ? placeholders of query so the
// statement can be read or pasted into a SQL shell
func renderQuery(query string, args ...string) (string, error) {
	query = strings.Join(strings.Fields(query), " ")

	if n := strings.Count(query, "?"); n != len(args) {
		return "", fmt.Errorf("query takes %d arguments, got %d", n, len(args))
	}

	var b strings.Builder
	next := 0
	for _, r := range query {
		if r == '?' {
			b.WriteString("'" + strings.ReplaceAll(args[next], "'", "''") + "'")
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
