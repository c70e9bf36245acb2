package js

import (
	"strings"
	"testing"
	"time"
)

const observerPrelude = `
	window.innerWidth = 1000;
	window.innerHeight = 800;
	function box(name, left, top, width, height) {
		return {
			name: name,
			r: {left: left, top: top, width: width, height: height},
			getBoundingClientRect: function() { return this.r; }
		};
	}
	var batches = [];
	function record(entries, obs) {
		batches.push(entries.map(function(e) { return e.target.name + ":" + e.intersectionRatio; }).join(" "));
	}
`

func newObserverRuntime(t *testing.T) *Runtime {
	t.Helper()
	r := NewRuntime(nil)
	if _, err := r.Execute(observerPrelude); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return r
}

func batches(t *testing.T, r *Runtime) string {
	t.Helper()
	result, err := r.Execute(`batches.join("|")`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return result.String()
}

func TestIntersectionObserverObserve(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var io = new IntersectionObserver(record);
		io.observe(box("a", 100, 100, 50, 50));
		io.observe(box("hidden", 2000, 0, 10, 10));
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "a:1" {
		t.Errorf("Expected 'a:1', got %q", got)
	}
}

func TestIntersectionObserverEntryShape(t *testing.T) {
	r := newObserverRuntime(t)

	result, err := r.Execute(`
		var seen;
		var io = new IntersectionObserver(function(entries, obs) {
			var e = entries[0];
			seen = [entries.length, e.isIntersecting, e.boundingClientRect.right,
				e.boundingClientRect.bottom, e.time, obs === io, this === io].join(",");
		});
		io.observe(box("a", 10, 20, 30, 40));
		seen
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "1,true,40,60,0,true,true" {
		t.Errorf("Unexpected entry: %q", result.String())
	}
}

func TestIntersectionObserverScrollIsThrottled(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var a = box("a", 100, 100, 50, 50);
		var io = new IntersectionObserver(record);
		io.observe(a);
		a.r.top = -45;
		window.dispatchEvent(new Event("scroll"));
		a.r.top = 0;
		window.dispatchEvent(new Event("scroll"));
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "a:1|a:0.1" {
		t.Errorf("Expected the second scroll to be dropped, got %q", got)
	}

	r.AdvanceTime(10 * time.Millisecond)
	if _, err := r.Execute(`window.dispatchEvent(new Event("scroll"))`); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "a:1|a:0.1|a:1" {
		t.Errorf("Expected a check after the cooldown, got %q", got)
	}
}

func TestIntersectionObserverResizeFromGo(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var io = new IntersectionObserver(record);
		io.observe(box("wide", 1000, 0, 100, 100));
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "" {
		t.Fatalf("Expected no batch before resize, got %q", got)
	}

	if err := r.Resize(1100, 800); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if got := batches(t, r); got != "wide:1" {
		t.Errorf("Expected 'wide:1' after resize, got %q", got)
	}
}

func TestIntersectionObserverDocumentLargerThanWindow(t *testing.T) {
	r := newObserverRuntime(t)
	r.SetDocumentSize(1000, 3000)

	_, err := r.Execute(`
		var io = new IntersectionObserver(record);
		io.observe(box("below", 0, 2000, 10, 10));
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "below:1" {
		t.Errorf("Expected 'below:1', got %q", got)
	}
}

func TestIntersectionObserverSecondScrollArea(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var area = box("area", 0, 0, 100, 100);
		var io = new IntersectionObserver(record, {secondScrollArea: area});
		io.observe(box("outside", 150, 10, 50, 50));
		io.observe(box("partial", 50, 50, 100, 100));
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "partial:0.25" {
		t.Errorf("Expected 'partial:0.25', got %q", got)
	}
}

func TestIntersectionObserverCustomTrigger(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var carousel = {
			handlers: {},
			on: function(event, fn) { this.handlers[event] = fn; }
		};
		var slide = box("slide", 1200, 0, 100, 100);
		var io = new IntersectionObserver(record, {
			additionTriggerEvent: "slid",
			additionTriggerEventObject: carousel,
			additionTriggerEventMethod: "on"
		});
		io.observe(slide);
		slide.r.left = 0;
		carousel.handlers.slid();
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "slide:1" {
		t.Errorf("Expected the trigger to recheck, got %q", got)
	}
}

func TestIntersectionObserverPartialTriggerIsRejected(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`new IntersectionObserver(record, {additionTriggerEvent: "slid"})`)
	if err == nil {
		t.Fatal("Expected a TypeError for a partial trigger")
	}
	if !strings.Contains(err.Error(), "must be given together") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestIntersectionObserverInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"missing callback", `new IntersectionObserver()`},
		{"callback not a function", `new IntersectionObserver(42)`},
		{"bad root margin", `new IntersectionObserver(record, {rootMargin: "10em"})`},
		{"negative blocking time", `new IntersectionObserver(record, {blockingTime: -5})`},
		{"root without events", `new IntersectionObserver(record, {root: {}})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newObserverRuntime(t)
			result, err := r.Execute(`
				var name = "";
				try { ` + tt.script + `; } catch (e) { name = e.name; }
				name
			`)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if result.String() != "TypeError" {
				t.Errorf("Expected TypeError, got %q", result.String())
			}
		})
	}
}

func TestIntersectionObserverOptionProperties(t *testing.T) {
	r := newObserverRuntime(t)

	result, err := r.Execute(`
		var io = new IntersectionObserver(record, {rootMargin: "10px 5%", threshold: 0.5});
		io.rootMargin + "|" + io.thresholds[0]
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "10px 5% 10px 5%|0.5" {
		t.Errorf("Unexpected properties: %q", result.String())
	}
}

func TestIntersectionObserverIgnoresInvalidThresholds(t *testing.T) {
	r := newObserverRuntime(t)

	result, err := r.Execute(`
		var io = new IntersectionObserver(record, {threshold: [1.5, 0.5, "half", -2]});
		io.observe(box("a", 0, 0, 10, 10));
		io.thresholds.length + ":" + io.thresholds[0] + "|" + batches.join("|")
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "1:0.5|a:1" {
		t.Errorf("Unexpected result: %q", result.String())
	}
}

func TestIntersectionObserverObserveFromCallback(t *testing.T) {
	r := newObserverRuntime(t)

	result, err := r.Execute(`
		var late = box("late", 0, 0, 10, 10);
		var thrown = "none";
		var io = new IntersectionObserver(function(entries, obs) {
			record(entries, obs);
			if (batches.length === 1) {
				try { obs.observe(late); } catch (e) { thrown = e.name; }
			}
		});
		io.observe(box("a", 0, 0, 10, 10));
		thrown + "|" + batches.join("|")
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "none|a:1|late:1" {
		t.Errorf("Unexpected result: %q", result.String())
	}
}

func TestIntersectionObserverTakeRecordsThrows(t *testing.T) {
	r := newObserverRuntime(t)

	result, err := r.Execute(`
		var io = new IntersectionObserver(record);
		var name = "";
		try { io.takeRecords(); } catch (e) { name = e.name; }
		name
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "NotSupportedError" {
		t.Errorf("Expected NotSupportedError, got %q", result.String())
	}
}

func TestIntersectionObserverUnobserveAndDisconnect(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var a = box("a", 0, 0, 10, 10);
		var b = box("b", 20, 0, 10, 10);
		var io = new IntersectionObserver(record, {blockingTime: 0});
		io.observe(a);
		io.observe(b);
		io.unobserve(a);
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	r.AdvanceTime(0)
	if _, err := r.Execute(`window.dispatchEvent(new Event("scroll"))`); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	r.AdvanceTime(0)
	if _, err := r.Execute(`io.disconnect(); window.dispatchEvent(new Event("scroll"))`); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := batches(t, r); got != "a:1|b:1|b:1" {
		t.Errorf("Expected 'a:1|b:1|b:1', got %q", got)
	}
}

func TestIntersectionObserverCallbackErrorPropagates(t *testing.T) {
	r := newObserverRuntime(t)

	result, err := r.Execute(`
		var io = new IntersectionObserver(function() { throw new Error("callback failed"); });
		var caught = "";
		try { io.observe(box("a", 0, 0, 10, 10)); } catch (e) { caught = e.message; }
		caught
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.String() != "callback failed" {
		t.Errorf("Expected the callback error, got %q", result.String())
	}
}

func TestIntersectionObserverSkipsBrokenElements(t *testing.T) {
	r := newObserverRuntime(t)

	_, err := r.Execute(`
		var io = new IntersectionObserver(record);
		io.observe({name: "plain"});
		io.observe({name: "throws", getBoundingClientRect: function() { throw new Error("gone"); }});
		io.observe(box("ok", 0, 0, 10, 10));
	`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := batches(t, r); got != "ok:1" {
		t.Errorf("Expected only 'ok:1', got %q", got)
	}
}
