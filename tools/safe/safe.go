package safe

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"SyncProject/logger"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required dependencies in constructors.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// SafeGo starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func SafeGo(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover logs a recovered panic; use as `defer safe.Recover("where")`.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Errorf("[SafeGo] %s panic recovered: %v\n%s", name, r, debug.Stack())
	}
}
