// Package ranking ranks developers against a query of feature weights.
//
// A developer's rank is the weighted sum of their feature scores:
//
//	ranks = A · b
//
// where A is the cached developer × feature score matrix (columns ordered by
// feature name) and b is the weight vector built from the feature catalog's
// default weights overridden by the query. The score matrix is built once
// per process and served from memory until Invalidate is called.
package ranking
