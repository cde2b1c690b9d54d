package timers

import "testing"

func TestHeapFiresInDeadlineOrder(t *testing.T) {
	h := New()
	var order []string

	h.Schedule(300, func(Milliseconds) { order = append(order, "c") })
	h.Schedule(100, func(Milliseconds) { order = append(order, "a") })
	h.Schedule(200, func(Milliseconds) { order = append(order, "b") })

	h.Fire(1000)

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestHeapFiresOnlyDueTimers(t *testing.T) {
	h := New()
	fired := 0
	h.Schedule(100, func(Milliseconds) { fired++ })
	h.Schedule(500, func(Milliseconds) { fired++ })

	h.Fire(200)
	if fired != 1 {
		t.Fatalf("expected 1 timer fired at t=200, got %d", fired)
	}

	h.Fire(600)
	if fired != 2 {
		t.Fatalf("expected 2 timers fired by t=600, got %d", fired)
	}
}

func TestHandleCancel(t *testing.T) {
	h := New()
	fired := false
	handle := h.Schedule(100, func(Milliseconds) { fired = true })
	handle.Cancel()
	h.Fire(200)
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestTimeoutMillis(t *testing.T) {
	h := New()
	if _, ok := h.TimeoutMillis(0); ok {
		t.Fatal("expected no timer on empty heap")
	}
	h.Schedule(150, func(Milliseconds) {})
	ms, ok := h.TimeoutMillis(100)
	if !ok || ms != 50 {
		t.Fatalf("expected 50ms remaining, got %d (ok=%v)", ms, ok)
	}
	ms, ok = h.TimeoutMillis(200)
	if !ok || ms != 0 {
		t.Fatalf("expected overdue timer to report 0ms, got %d (ok=%v)", ms, ok)
	}
}
