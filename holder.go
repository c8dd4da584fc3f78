package scope

// holder keeps the value of one open scope. Every write, named or not, is
// offered to onChange before it is committed; an error from onChange aborts
// the write.
type holder[T any] struct {
	value    T
	present  bool
	onChange func(value T, method string) error
}

func (h *holder[T]) get() T {
	return h.value
}

func (h *holder[T]) commit(value T, method string) error {
	if h.onChange != nil {
		if err := h.onChange(value, method); err != nil {
			return err
		}
	}
	h.value, h.present = value, true
	return nil
}

// bind turns handlers into methods operating on the holder. Each method reads
// the current value, applies the handler, commits the result under the
// method's name and returns it.
func (h *holder[T]) bind(handlers map[string]Handler[T]) map[string]Method[T] {
	methods := make(map[string]Method[T], len(handlers))
	for name, handler := range handlers {
		if handler == nil {
			continue
		}
		methods[name] = func(args ...any) (T, error) {
			var zero T
			next, err := handler(h.get())(args...)
			if err != nil {
				return zero, err
			}
			if err := h.commit(next, name); err != nil {
				return zero, err
			}
			return next, nil
		}
	}
	return methods
}
