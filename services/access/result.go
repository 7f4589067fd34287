package access

// Result is the internal tagged outcome of an authorized fetch. A
// forbidden result carries no rows and collapses to an empty collection
// at the external boundary, so a denial is indistinguishable from an
// empty store. Keeping the tag internal lets the decision path be tested
// without giving callers a way to observe it.
type Result[T any] struct {
	forbidden bool
	rows      []T
}

// Allowed builds a result carrying authorized rows
func Allowed[T any](rows []T) Result[T] {
	return Result[T]{rows: rows}
}

// Forbidden builds a result denying the whole fetch
func Forbidden[T any]() Result[T] {
	return Result[T]{forbidden: true}
}

// Forbidden reports whether the fetch was denied outright
func (r Result[T]) Forbidden() bool {
	return r.forbidden
}

// Collapse flattens the result for the external boundary: forbidden
// results become an empty collection.
func (r Result[T]) Collapse() []T {
	if r.forbidden || r.rows == nil {
		return []T{}
	}
	return r.rows
}
