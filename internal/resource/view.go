package resource

// View renders a Manager's state. Implementations must treat both arguments
// as read-only.
type View[T Record, Out any] interface {
	Render(q QueryState, c CacheState[T]) Out
}

// ViewFunc adapts a function to View.
type ViewFunc[T Record, Out any] func(q QueryState, c CacheState[T]) Out

func (f ViewFunc[T, Out]) Render(q QueryState, c CacheState[T]) Out {
	return f(q, c)
}

// Render renders the current state of m with v.
func Render[T Record, Out any](m *Manager[T], v View[T, Out]) Out {
	q, c := m.Snapshot()
	return v.Render(q, c)
}
