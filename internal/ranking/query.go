package ranking

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Query maps feature names to the weight a caller wants for them
type Query map[string]float64

// ParseQuery parses "python:5,java:3" into a Query. Whitespace around
// names and values is ignored; an empty string yields an empty query.
func ParseQuery(raw string) (Query, error) {
	q := make(Query)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return q, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid query term %q: expected feature:weight", pair)
		}

		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %q: %w", name, err)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("invalid weight for %q: must be finite", name)
		}
		q[name] = w
	}

	return q, nil
}
