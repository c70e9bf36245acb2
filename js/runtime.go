// Package js exposes the visibility observer to scripts through the goja
// JavaScript engine (pure Go ES5.1+ implementation).
package js

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/viewwatch/events"
)

// Runtime wraps a goja runtime with the small slice of the browser host that
// the observer needs: console, timers, a window with events and sizes, and
// document.documentElement.
type Runtime struct {
	vm       *goja.Runtime
	window   *goja.Object
	document *goja.Object
	timers   *events.TimerQueue
	windowEv *events.Target
	logger   *zap.Logger
	start    time.Time

	// consoleOut, when set, also receives every console line.
	consoleOut io.Writer

	mu      sync.Mutex
	errMu   sync.Mutex
	errors  []error
	onError func(error)
}

// NewRuntime creates a new JavaScript runtime. A nil logger discards console
// output.
func NewRuntime(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{
		vm:       goja.New(),
		timers:   events.NewTimerQueue(),
		windowEv: events.NewTarget("window"),
		logger:   logger,
		start:    time.Now(),
	}

	r.setupConsole()
	r.setupTimers()
	r.setupWindow()
	SetupIntersectionObserver(r)

	return r
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Timers returns the virtual clock that drives setTimeout and the observer's
// throttle.
func (r *Runtime) Timers() *events.TimerQueue {
	return r.timers
}

// Window returns the event target backing window.addEventListener.
func (r *Runtime) Window() *events.Target {
	return r.windowEv
}

// SetOnError sets a callback for errors thrown by timer callbacks.
func (r *Runtime) SetOnError(handler func(error)) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.onError = handler
}

// SetConsoleOutput copies console output to w in addition to the logger.
func (r *Runtime) SetConsoleOutput(w io.Writer) {
	r.consoleOut = w
}

// RunScript executes code, then advances the virtual clock by d so that
// timers and throttled observer callbacks scheduled by the script run. Every
// error the script raised along the way is returned.
func (r *Runtime) RunScript(code string, d time.Duration) error {
	r.ClearErrors()
	if _, err := r.Execute(code); err != nil {
		return err
	}
	r.AdvanceTime(d)
	return multierr.Combine(r.Errors()...)
}

// Execute runs JavaScript code and returns the result.
func (r *Runtime) Execute(code string) (result goja.Value, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("script execution panic: %v", p)
			r.reportError(err)
		}
	}()

	result, err = r.vm.RunString(code)
	if err != nil {
		r.reportError(err)
	}
	return result, err
}

// Errors returns all errors that occurred during execution.
func (r *Runtime) Errors() []error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return append([]error{}, r.errors...)
}

// ClearErrors clears all recorded errors.
func (r *Runtime) ClearErrors() {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.errors = nil
}

func (r *Runtime) reportError(err error) {
	r.errMu.Lock()
	r.errors = append(r.errors, err)
	handler := r.onError
	r.errMu.Unlock()

	r.logger.Warn("script error", zap.Error(err))
	if handler != nil {
		handler(err)
	}
}

// AdvanceTime moves the virtual clock forward, running every timer that falls
// due. It returns the number of timers that ran.
func (r *Runtime) AdvanceTime(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timers.Advance(d)
}

// Resize sets window.innerWidth/innerHeight and dispatches "resize".
func (r *Runtime) Resize(width, height float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window.Set("innerWidth", width)
	r.window.Set("innerHeight", height)
	return r.windowEv.Dispatch("resize")
}

// SetDocumentSize sets document.documentElement.clientWidth/clientHeight.
func (r *Runtime) SetDocumentSize(width, height float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	root := r.document.Get("documentElement").ToObject(r.vm)
	root.Set("clientWidth", width)
	root.Set("clientHeight", height)
}

// Dispatch fires an event on window from Go.
func (r *Runtime) Dispatch(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windowEv.Dispatch(event)
}

func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()

	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		level := level
		console.Set(level, func(call goja.FunctionCall) goja.Value {
			msg := formatArgs(call.Arguments)
			if r.consoleOut != nil {
				fmt.Fprintln(r.consoleOut, msg)
			}
			switch level {
			case "warn":
				r.logger.Warn(msg, zap.String("source", "console"))
			case "error":
				r.logger.Error(msg, zap.String("source", "console"))
			case "debug":
				r.logger.Debug(msg, zap.String("source", "console"))
			default:
				r.logger.Info(msg, zap.String("source", "console"))
			}
			return goja.Undefined()
		})
	}

	r.vm.Set("console", console)
}

func (r *Runtime) setupTimers() {
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}

		delay := int64(0)
		if len(call.Arguments) > 1 {
			delay = call.Arguments[1].ToInteger()
		}
		if delay < 0 {
			delay = 0
		}

		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = call.Arguments[2:]
		}

		id := r.timers.SetTimeout(func() {
			if _, err := callback(goja.Undefined(), args...); err != nil {
				r.reportError(err)
			}
		}, time.Duration(delay)*time.Millisecond)
		return r.vm.ToValue(id)
	})

	r.vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			r.timers.Clear(int(call.Arguments[0].ToInteger()))
		}
		return goja.Undefined()
	})

	r.vm.Set("performance", map[string]interface{}{
		"now": func() float64 {
			return float64(r.timers.Now()) / float64(time.Millisecond)
		},
	})
}

func (r *Runtime) setupWindow() {
	window := r.vm.GlobalObject()
	window.Set("window", window)
	window.Set("self", window)
	window.Set("innerWidth", 0)
	window.Set("innerHeight", 0)
	bindEventTarget(r.vm, window, r.windowEv)

	r.vm.Set("Event", func(call goja.ConstructorCall) *goja.Object {
		if len(call.Arguments) < 1 {
			panic(r.vm.NewTypeError("Event constructor requires a type"))
		}
		call.This.Set("type", call.Arguments[0].String())
		return nil
	})

	documentElement := r.vm.NewObject()
	documentElement.Set("clientWidth", 0)
	documentElement.Set("clientHeight", 0)
	document := r.vm.NewObject()
	document.Set("documentElement", documentElement)
	r.vm.Set("document", document)

	r.window = window
	r.document = document
}

// bindEventTarget adds addEventListener, removeEventListener and
// dispatchEvent to obj, backed by target. Adding the same listener twice for
// one event type is a no-op.
func bindEventTarget(vm *goja.Runtime, obj *goja.Object, target *events.Target) {
	type registration struct {
		eventType   string
		fn          goja.Value
		unsubscribe func()
	}
	var registrations []*registration

	find := func(eventType string, fn goja.Value) int {
		for i, reg := range registrations {
			if reg.eventType == eventType && reg.fn.SameAs(fn) {
				return i
			}
		}
		return -1
	}

	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		eventType := call.Arguments[0].String()
		callback, ok := goja.AssertFunction(call.Arguments[1])
		if !ok || find(eventType, call.Arguments[1]) >= 0 {
			return goja.Undefined()
		}

		unsubscribe := target.Subscribe(eventType, func() error {
			event := vm.NewObject()
			event.Set("type", eventType)
			event.Set("target", obj)
			_, err := callback(obj, event)
			return err
		})
		registrations = append(registrations, &registration{
			eventType:   eventType,
			fn:          call.Arguments[1],
			unsubscribe: unsubscribe,
		})
		return goja.Undefined()
	})

	obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		i := find(call.Arguments[0].String(), call.Arguments[1])
		if i < 0 {
			return goja.Undefined()
		}
		registrations[i].unsubscribe()
		registrations = append(registrations[:i], registrations[i+1:]...)
		return goja.Undefined()
	})

	obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError("dispatchEvent requires an event"))
		}
		eventType := call.Arguments[0].String()
		if ev, ok := call.Arguments[0].(*goja.Object); ok {
			if t := ev.Get("type"); t != nil {
				eventType = t.String()
			}
		}
		if err := target.Dispatch(eventType); err != nil {
			throwError(vm, err)
		}
		return vm.ToValue(true)
	})
}

// formatArgs formats function call arguments for console output.
func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	return strings.Join(parts, " ")
}

// formatValue formats a single value for output.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return v.String()
}

// toFloat reads a JS number, treating missing and non-numeric values as 0.
func toFloat(v goja.Value) float64 {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	f := v.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
