package helpers

import "reflect"

// StrPanic panics with panicMessage if s is empty; otherwise returns s. Used for fail-fast
// validation of required config strings (server address, etc.).
func StrPanic(s string, panicMessage string) string {
	if s == "" {
		panic(panicMessage)
	}
	return s
}

// NilPanic panics with panicMessage if v is nil (nil interface, pointer, slice, map, chan, func);
// otherwise returns v unchanged. Used throughout service/ constructors to fail fast on a missing
// collaborator instead of deferring to a nil-pointer panic deep in a request path.
func NilPanic[T any](v T, panicMessage string) T {
	if isNil(v) {
		panic(panicMessage)
	}
	return v
}

// isNil reports whether v is nil or a nil pointer/slice/map/chan/func/interface via reflect;
// plain v == nil misses typed nils (e.g. a nil *grpc.ClientConn boxed in an interface).
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
