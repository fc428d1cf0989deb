package sdapi

// Optional holds a caller-supplied value for one field of an update.
// The zero value means "not supplied": the field keeps whatever the server has.
// Null is a deliberate request to clear the field.
type Optional[T any] struct {
	value T
	state optionalState
}

type optionalState uint8

const (
	unsupplied optionalState = iota
	supplied
	null
)

// Some supplies v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, state: supplied}
}

// Null asks for the field to be sent as JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{state: null}
}

// Get returns the supplied value and whether one was supplied.
// A Null optional reports false.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == supplied
}

func (o Optional[T]) IsSupplied() bool { return o.state != unsupplied }
func (o Optional[T]) IsNull() bool     { return o.state == null }

// Supplied is what update payload builders consume.
// ok is false only for the unsupplied state; a Null optional yields (nil, true).
func (o Optional[T]) Supplied() (v interface{}, ok bool) {
	switch o.state {
	case supplied:
		return o.value, true
	case null:
		return nil, true
	}
	return nil, false
}

// OrNil returns the value, or nil when unsupplied or null.
func (o Optional[T]) OrNil() interface{} {
	if o.state != supplied {
		return nil
	}
	return o.value
}

// Field is the untyped view of an Optional.
type Field interface {
	Supplied() (interface{}, bool)
}
