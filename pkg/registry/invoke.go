package registry

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/mcphost/bridge/pkg/logger"
)

// callHandler invokes fn and converts a panic in the handler body into a
// returned error, so one buggy handler cannot take down the dispatcher
// goroutine every handler runs on.
func callHandler(fn reflect.Value, in []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("registry: handler panicked", "panic", r, "stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	out := fn.Call(in)
	result = out[0].Interface()
	if errVal := out[1].Interface(); errVal != nil {
		err = errVal.(error)
	}
	return result, err
}
