package ranking

import (
	"github.com/ZanzyTHEbar/devmine/internal/database"
)

// WeightVector holds one weight per feature, ordered by feature name
type WeightVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Len returns the number of features in the vector
func (w WeightVector) Len() int {
	return len(w.Values)
}

// WeightsFor builds the weight vector for a name-ordered feature catalog:
// the query's weight when the feature is named in the query, the feature's
// default weight otherwise.
func WeightsFor(features []database.Feature, query Query) WeightVector {
	wv := WeightVector{
		Names:  make([]string, len(features)),
		Values: make([]float64, len(features)),
	}

	for i, f := range features {
		wv.Names[i] = f.Name
		if w, ok := query[f.Name]; ok {
			wv.Values[i] = w
		} else {
			wv.Values[i] = f.DefaultWeight
		}
	}

	return wv
}

// Align projects the vector onto the given columns by name. Columns with
// no matching feature get weight 0.
func (w WeightVector) Align(columns []string) []float64 {
	byName := make(map[string]float64, len(w.Names))
	for i, name := range w.Names {
		byName[name] = w.Values[i]
	}

	out := make([]float64, len(columns))
	for i, col := range columns {
		out[i] = byName[col]
	}
	return out
}

// unknownTerms returns query keys that name no feature
func unknownTerms(features []database.Feature, query Query) []string {
	known := make(map[string]struct{}, len(features))
	for _, f := range features {
		known[f.Name] = struct{}{}
	}

	var unknown []string
	for name := range query {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}
