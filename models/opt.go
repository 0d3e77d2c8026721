package models

// Opt holds a value that the source page may leave blank. A cell showing
// the "-" placeholder parses to None, never to the zero value.
type Opt[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, ok: true}
}

func None[T any]() Opt[T] {
	return Opt[T]{}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.ok
}

// OrElse returns the value, or def when absent.
func (o Opt[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

func (o Opt[T]) IsSet() bool {
	return o.ok
}
