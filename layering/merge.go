// Package layering merges and deep-copies scope values with reflection.
package layering

import "reflect"

// Merge composes values ordered from strongest to weakest. Settings present in
// a stronger value win; zero values of any kind count as unset and fall
// through to weaker values. Maps are merged key by key, slices are replaced
// whole. The result shares no memory with the inputs.
func Merge[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	merged := deepCopy(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = overlay(reflect.ValueOf(layers[i]), merged)
	}
	return fromValue[T](merged)
}

// Clone returns a deep copy of value. Unexported struct fields are left at
// their zero value.
func Clone[T any](value T) T {
	return fromValue[T](deepCopy(reflect.ValueOf(value)))
}

func fromValue[T any](v reflect.Value) T {
	var zero T
	if !v.IsValid() {
		return zero
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if v.Type() != target {
		out := reflect.New(target).Elem()
		out.Set(v.Convert(target))
		return out.Interface().(T)
	}
	return v.Interface().(T)
}

// overlay lays strong over weak.
func overlay(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return deepCopy(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer, reflect.Interface:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		var inner reflect.Value
		if weak.IsValid() && weak.Kind() == strong.Kind() && !weak.IsNil() {
			inner = weak.Elem()
		}
		merged := overlay(strong.Elem(), inner)
		if strong.Kind() == reflect.Interface {
			return merged.Convert(strong.Type())
		}
		ptr := reflect.New(strong.Type().Elem())
		ptr.Elem().Set(merged)
		return ptr
	case reflect.Struct:
		out := reflect.New(strong.Type()).Elem()
		sameType := weak.IsValid() && weak.Type() == strong.Type()
		for i := 0; i < strong.NumField(); i++ {
			if !out.Field(i).CanSet() {
				continue
			}
			var under reflect.Value
			if sameType {
				under = weak.Field(i)
			}
			out.Field(i).Set(overlay(strong.Field(i), under))
		}
		return out
	case reflect.Map:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() && weak.Type() == strong.Type() {
			for iter := weak.MapRange(); iter.Next(); {
				out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
			}
		}
		for iter := strong.MapRange(); iter.Next(); {
			if existing := out.MapIndex(iter.Key()); existing.IsValid() {
				out.SetMapIndex(iter.Key(), overlay(iter.Value(), existing))
				continue
			}
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		return deepCopy(strong)
	case reflect.Array:
		out := reflect.New(strong.Type()).Elem()
		for i := 0; i < strong.Len(); i++ {
			var under reflect.Value
			if weak.IsValid() && weak.Kind() == reflect.Array && weak.Len() > i {
				under = weak.Index(i)
			}
			out.Index(i).Set(overlay(strong.Index(i), under))
		}
		return out
	default:
		if strong.IsZero() && weak.IsValid() && weak.Type() == strong.Type() {
			return deepCopy(weak)
		}
		return deepCopy(strong)
	}
}

func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		ptr := reflect.New(v.Type().Elem())
		ptr.Elem().Set(deepCopy(v.Elem()))
		return ptr
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return deepCopy(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
