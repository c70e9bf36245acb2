package js

import (
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/chrisuehlinger/viewwatch/geometry"
	"github.com/chrisuehlinger/viewwatch/observer"
)

// IntersectionObserver is the Go side of a script-created observer. Observed
// elements are arbitrary script objects with a getBoundingClientRect method.
type IntersectionObserver struct {
	callback   goja.Callable
	vm         *goja.Runtime
	obs        *observer.Observer
	jsObserver *goja.Object
	start      time.Time
}

// intersectionObserverInit mirrors the options object accepted by the
// constructor.
type intersectionObserverInit struct {
	root             *goja.Object
	secondScrollArea *goja.Object
	rootMargin       string
	threshold        []float64
	triggerEvent     string
	triggerObject    *goja.Object
	triggerMethod    string
	blockingTime     time.Duration
}

// SetupIntersectionObserver installs the IntersectionObserver constructor.
func SetupIntersectionObserver(r *Runtime) {
	vm := r.vm

	vm.Set("IntersectionObserver", func(call goja.ConstructorCall) *goja.Object {
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': 1 argument required"))
		}
		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': parameter 1 is not a function"))
		}

		var optsArg goja.Value
		if len(call.Arguments) > 1 {
			optsArg = call.Arguments[1]
		}
		init := parseObserverInit(vm, optsArg, r.window)

		io := &IntersectionObserver{
			callback:   callback,
			vm:         vm,
			jsObserver: call.This,
			start:      r.start,
		}

		opts := observer.Options{
			Viewport:     &scriptViewport{vm: vm, window: r.window, document: r.document},
			Rects:        scriptRects{vm: vm},
			Root:         methodSource{vm: vm, obj: init.root, add: "addEventListener", remove: "removeEventListener"},
			Window:       methodSource{vm: vm, obj: r.window, add: "addEventListener", remove: "removeEventListener"},
			RootMargin:   init.rootMargin,
			Threshold:    init.threshold,
			BlockingTime: init.blockingTime,
			Timer:        r.timers,
			Logger:       r.logger.Named("intersection-observer"),
			Clock: func() time.Time {
				return r.start.Add(r.timers.Now())
			},
		}
		if init.secondScrollArea != nil {
			opts.SecondaryScrollArea = init.secondScrollArea
			if isFunction(init.secondScrollArea.Get("addEventListener")) {
				opts.SecondaryEvents = methodSource{vm: vm, obj: init.secondScrollArea, add: "addEventListener", remove: "removeEventListener"}
			}
		}
		if init.triggerObject != nil {
			opts.Trigger = &observer.Trigger{
				Source: methodSource{vm: vm, obj: init.triggerObject, add: init.triggerMethod},
				Event:  init.triggerEvent,
			}
		}

		obs, err := observer.New(io.deliver, opts)
		if err != nil {
			panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': " + err.Error()))
		}
		io.obs = obs

		io.bind(call.This)
		return nil
	})
}

func parseObserverInit(vm *goja.Runtime, v goja.Value, window *goja.Object) intersectionObserverInit {
	init := intersectionObserverInit{root: window}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return init
	}
	opts := v.ToObject(vm)

	if root := opts.Get("root"); isObject(root) {
		init.root = root.ToObject(vm)
	}
	if !isFunction(init.root.Get("addEventListener")) {
		panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': root does not support addEventListener"))
	}

	if area := opts.Get("secondScrollArea"); isObject(area) {
		init.secondScrollArea = area.ToObject(vm)
	}

	if m := opts.Get("rootMargin"); m != nil && !goja.IsUndefined(m) {
		init.rootMargin = m.String()
	}

	if th := opts.Get("threshold"); th != nil && !goja.IsUndefined(th) && !goja.IsNull(th) {
		if arr, ok := th.(*goja.Object); ok && arr.ClassName() == "Array" {
			length := int(arr.Get("length").ToInteger())
			for i := 0; i < length; i++ {
				init.threshold = append(init.threshold, arr.Get(strconv.Itoa(i)).ToFloat())
			}
		} else {
			init.threshold = []float64{th.ToFloat()}
		}
	}

	event := optionString(opts, "additionTriggerEvent")
	method := optionString(opts, "additionTriggerEventMethod")
	var target *goja.Object
	if t := opts.Get("additionTriggerEventObject"); isObject(t) {
		target = t.ToObject(vm)
	}
	set := 0
	for _, ok := range []bool{event != "", method != "", target != nil} {
		if ok {
			set++
		}
	}
	switch set {
	case 0:
	case 3:
		if !isFunction(target.Get(method)) {
			panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': additionTriggerEventObject has no method " + method))
		}
		init.triggerEvent = event
		init.triggerObject = target
		init.triggerMethod = method
	default:
		panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': additionTriggerEvent, additionTriggerEventObject and additionTriggerEventMethod must be given together"))
	}

	if bt := opts.Get("blockingTime"); bt != nil && !goja.IsUndefined(bt) && !goja.IsNull(bt) {
		ms := bt.ToFloat()
		switch {
		case ms == 0:
			init.blockingTime = observer.NoBlocking
		case ms < 0:
			panic(vm.NewTypeError("Failed to construct 'IntersectionObserver': blockingTime must not be negative"))
		default:
			init.blockingTime = time.Duration(ms * float64(time.Millisecond))
		}
	}

	return init
}

// bind installs the instance methods on the script object.
func (io *IntersectionObserver) bind(obj *goja.Object) {
	vm := io.vm

	obj.Set("observe", func(call goja.FunctionCall) goja.Value {
		target := io.elementArg(call, "observe")
		if err := io.obs.Observe(target); err != nil {
			throwError(vm, err)
		}
		return goja.Undefined()
	})

	obj.Set("unobserve", func(call goja.FunctionCall) goja.Value {
		io.obs.Unobserve(io.elementArg(call, "unobserve"))
		return goja.Undefined()
	})

	obj.Set("disconnect", func(call goja.FunctionCall) goja.Value {
		io.obs.Disconnect()
		return goja.Undefined()
	})

	obj.Set("takeRecords", func(call goja.FunctionCall) goja.Value {
		_, err := io.obs.TakeRecords()
		throwError(vm, err)
		return goja.Undefined()
	})

	obj.Set("rootMargin", io.obs.RootMargin().String())
	obj.Set("thresholds", io.obs.Thresholds())
}

func (io *IntersectionObserver) elementArg(call goja.FunctionCall, method string) *goja.Object {
	if len(call.Arguments) < 1 || !isObject(call.Arguments[0]) {
		panic(io.vm.NewTypeError("Failed to execute '" + method + "' on 'IntersectionObserver': parameter 1 is not an object"))
	}
	return call.Arguments[0].ToObject(io.vm)
}

// deliver converts a batch into script entries and invokes the callback with
// the observer as this.
func (io *IntersectionObserver) deliver(entries []observer.Entry, _ *observer.Observer) error {
	vm := io.vm
	list := make([]interface{}, len(entries))
	for i, e := range entries {
		entry := vm.NewObject()
		entry.Set("boundingClientRect", rectObject(vm, e.BoundingClientRect))
		entry.Set("intersectionRatio", e.IntersectionRatio)
		entry.Set("isIntersecting", e.IsIntersecting)
		entry.Set("target", e.Target)
		entry.Set("time", float64(e.Time.Sub(io.start))/float64(time.Millisecond))
		list[i] = entry
	}
	_, err := io.callback(io.jsObserver, vm.NewArray(list...), io.jsObserver)
	return err
}

func rectObject(vm *goja.Runtime, r geometry.Rect) *goja.Object {
	obj := vm.NewObject()
	obj.Set("x", r.X)
	obj.Set("y", r.Y)
	obj.Set("width", r.Width)
	obj.Set("height", r.Height)
	obj.Set("top", r.Top())
	obj.Set("right", r.Right())
	obj.Set("bottom", r.Bottom())
	obj.Set("left", r.Left())
	return obj
}

// scriptViewport reads sizes from document.documentElement and window.
type scriptViewport struct {
	vm       *goja.Runtime
	window   *goja.Object
	document *goja.Object
}

func (v *scriptViewport) DocumentSize() geometry.Size {
	root := v.document.Get("documentElement")
	if !isObject(root) {
		return geometry.Size{}
	}
	obj := root.ToObject(v.vm)
	return geometry.NewSize(toFloat(obj.Get("clientWidth")), toFloat(obj.Get("clientHeight")))
}

func (v *scriptViewport) DisplaySize() geometry.Size {
	return geometry.NewSize(toFloat(v.window.Get("innerWidth")), toFloat(v.window.Get("innerHeight")))
}

// scriptRects calls getBoundingClientRect on script objects.
type scriptRects struct {
	vm *goja.Runtime
}

var errNoBoundingRect = errors.New("element has no getBoundingClientRect method")

func (s scriptRects) BoundingClientRect(e observer.Element) (rect geometry.Rect, err error) {
	obj, ok := e.(*goja.Object)
	if !ok {
		return geometry.Rect{}, errNoBoundingRect
	}
	fn, ok := goja.AssertFunction(obj.Get("getBoundingClientRect"))
	if !ok {
		return geometry.Rect{}, errNoBoundingRect
	}
	v, err := fn(obj)
	if err != nil {
		return geometry.Rect{}, err
	}
	if !isObject(v) {
		return geometry.Rect{}, errNoBoundingRect
	}
	r := v.ToObject(s.vm)

	x, y := r.Get("left"), r.Get("top")
	if x == nil || goja.IsUndefined(x) {
		x = r.Get("x")
	}
	if y == nil || goja.IsUndefined(y) {
		y = r.Get("y")
	}
	return geometry.NewRect(toFloat(x), toFloat(y), toFloat(r.Get("width")), toFloat(r.Get("height"))), nil
}

// methodSource subscribes by calling obj[add](event, handler) and releases by
// calling obj[remove](event, handler) when remove is set and present.
type methodSource struct {
	vm     *goja.Runtime
	obj    *goja.Object
	add    string
	remove string
}

func (m methodSource) Subscribe(event string, handler func() error) func() {
	vm := m.vm
	listener := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if err := handler(); err != nil {
			throwError(vm, err)
		}
		return goja.Undefined()
	})

	add, ok := goja.AssertFunction(m.obj.Get(m.add))
	if !ok {
		return func() {}
	}
	if _, err := add(m.obj, vm.ToValue(event), listener); err != nil {
		return func() {}
	}

	return func() {
		if m.remove == "" {
			return
		}
		if remove, ok := goja.AssertFunction(m.obj.Get(m.remove)); ok {
			_, _ = remove(m.obj, vm.ToValue(event), listener)
		}
	}
}

// throwError raises err in the script. Script exceptions are rethrown as-is;
// observer errors become Error objects carrying the error's name.
func throwError(vm *goja.Runtime, err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	var oerr *observer.Error
	if errors.As(err, &oerr) {
		obj := vm.NewGoError(err)
		obj.Set("name", oerr.Name)
		obj.Set("message", oerr.Message)
		panic(obj)
	}
	panic(vm.NewGoError(err))
}

func optionString(opts *goja.Object, key string) string {
	v := opts.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

func isFunction(v goja.Value) bool {
	_, ok := goja.AssertFunction(v)
	return ok
}
