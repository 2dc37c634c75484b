package events

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func makeEvent(ms int) Event {
	return Event{
		Kind:           KindSuccess,
		Timestamp:      time.Now(),
		ResponseTimeMs: ms,
	}
}

func makeFailure(code string, ms int) Event {
	return Event{
		Kind:           KindError,
		Timestamp:      time.Now(),
		ResponseTimeMs: ms,
		Error:          &SendError{Code: code, Message: code + " happened"},
	}
}

func latencies(evts []Event) []int {
	out := make([]int, len(evts))
	for i, e := range evts {
		out[i] = e.ResponseTimeMs
	}
	return out
}

func TestEventBuffer_Eviction(t *testing.T) {
	buf := NewRingBuffer(3)

	buf.Add(makeEvent(1))
	buf.Add(makeEvent(2))
	buf.Add(makeEvent(3))

	if buf.Len() != 3 {
		t.Fatalf("expected len=3, got %d", buf.Len())
	}

	// Add one more; oldest should be evicted.
	buf.Add(makeEvent(4))

	if buf.Len() != 3 {
		t.Fatalf("expected len=3 after eviction, got %d", buf.Len())
	}

	got := latencies(buf.ListAll())
	want := []int{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestEventBuffer_CapacityOne(t *testing.T) {
	buf := NewRingBuffer(1)

	buf.Add(makeEvent(10))
	buf.Add(makeEvent(20))
	if buf.Len() != 1 {
		t.Fatalf("expected len=1, got %d", buf.Len())
	}

	all := buf.ListAll()
	if all[0].ResponseTimeMs != 20 {
		t.Errorf("expected newest event to survive, got %d", all[0].ResponseTimeMs)
	}
}

func TestEventBuffer_Empty(t *testing.T) {
	buf := NewRingBuffer(10)

	if all := buf.ListAll(); all != nil {
		t.Errorf("expected nil for empty buffer, got %v", all)
	}
	if buf.Len() != 0 {
		t.Errorf("expected len=0, got %d", buf.Len())
	}
	sum, n := buf.TailLatency(100)
	if sum != 0 || n != 0 {
		t.Errorf("expected zero latency window, got sum=%d n=%d", sum, n)
	}
}

func TestEventBuffer_Tail(t *testing.T) {
	buf := NewRingBuffer(20)
	for i := 1; i <= 10; i++ {
		buf.Add(makeEvent(i))
	}

	t.Run("last_five_in_order", func(t *testing.T) {
		got := latencies(buf.Tail(5))
		want := []int{6, 7, 8, 9, 10}
		if len(got) != len(want) {
			t.Fatalf("expected %d events, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("position %d: expected %d, got %d", i, want[i], got[i])
			}
		}
	})

	t.Run("limit_exceeds_len", func(t *testing.T) {
		if got := buf.Tail(50); len(got) != 10 {
			t.Errorf("expected whole log (10), got %d", len(got))
		}
	})

	t.Run("non_positive_limit", func(t *testing.T) {
		if got := buf.Tail(0); got != nil {
			t.Errorf("expected nil for limit 0, got %v", got)
		}
		if got := buf.Tail(-3); got != nil {
			t.Errorf("expected nil for negative limit, got %v", got)
		}
	})
}

func TestEventBuffer_TailErrors(t *testing.T) {
	buf := NewRingBuffer(10)
	buf.Add(makeFailure("A", 1))
	buf.Add(makeEvent(2))
	buf.Add(makeFailure("B", 3))
	buf.Add(makeFailure("A", 4))
	buf.Add(makeFailure("B", 5))

	all := buf.TailErrors("", 10)
	if len(all) != 4 {
		t.Fatalf("expected 4 failures, got %d", len(all))
	}

	bOnly := latencies(buf.TailErrors("B", 10))
	if len(bOnly) != 2 || bOnly[0] != 3 || bOnly[1] != 5 {
		t.Errorf("expected B failures [3 5], got %v", bOnly)
	}

	lastA := latencies(buf.TailErrors("A", 1))
	if len(lastA) != 1 || lastA[0] != 4 {
		t.Errorf("expected newest A failure [4], got %v", lastA)
	}

	if got := buf.TailErrors("C", 10); got != nil {
		t.Errorf("expected nil for unknown code, got %v", got)
	}
}

func TestEventBuffer_TailLatency(t *testing.T) {
	buf := NewRingBuffer(5)
	for i := 1; i <= 8; i++ {
		buf.Add(makeEvent(i * 10))
	}

	// Buffer holds 40..80.
	sum, n := buf.TailLatency(3)
	if n != 3 || sum != 60+70+80 {
		t.Errorf("expected sum=210 n=3, got sum=%d n=%d", sum, n)
	}

	sum, n = buf.TailLatency(100)
	if n != 5 || sum != 40+50+60+70+80 {
		t.Errorf("expected sum=300 n=5, got sum=%d n=%d", sum, n)
	}
}

func TestEventBuffer_Truncate(t *testing.T) {
	buf := NewRingBuffer(5)
	for i := 1; i <= 7; i++ {
		buf.Add(makeEvent(i))
	}

	buf.Truncate(2)
	got := latencies(buf.ListAll())
	if len(got) != 2 || got[0] != 6 || got[1] != 7 {
		t.Fatalf("expected [6 7] after truncate, got %v", got)
	}

	// Appending after a truncate keeps chronological order.
	buf.Add(makeEvent(8))
	got = latencies(buf.ListAll())
	if len(got) != 3 || got[2] != 8 {
		t.Errorf("expected [6 7 8], got %v", got)
	}

	// Truncating to more than the length is a no-op.
	buf.Truncate(100)
	if buf.Len() != 3 {
		t.Errorf("expected len=3, got %d", buf.Len())
	}
}

func TestEventBuffer_Clear(t *testing.T) {
	buf := NewRingBuffer(3)
	buf.Add(makeEvent(1))
	buf.Add(makeEvent(2))

	buf.Clear()
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got len=%d", buf.Len())
	}

	buf.Add(makeEvent(3))
	got := latencies(buf.ListAll())
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("expected [3] after clear+add, got %v", got)
	}
}

func TestEventBuffer_WrapAround(t *testing.T) {
	buf := NewRingBuffer(3)

	for i := 0; i < 10; i++ {
		buf.Add(makeEvent(i))
	}

	got := latencies(buf.ListAll())
	for i, want := range []int{7, 8, 9} {
		if got[i] != want {
			t.Errorf("position %d: expected %d, got %d", i, want, got[i])
		}
	}
}

func TestEventBuffer_ConcurrentAccess(t *testing.T) {
	buf := NewRingBuffer(100)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%3 == 0 {
				buf.Add(makeFailure(fmt.Sprintf("CODE_%d", n%2), n))
				return
			}
			buf.Add(makeEvent(n))
		}(i)
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf.ListAll()
			buf.Tail(10)
			buf.TailErrors("", 5)
			buf.TailLatency(100)
			buf.Len()
		}()
	}

	wg.Wait()

	if buf.Len() != 50 {
		t.Errorf("expected len=50, got %d", buf.Len())
	}
}

func TestEventBuffer_LargeEviction(t *testing.T) {
	buf := NewRingBuffer(1000)

	for i := 0; i < 1005; i++ {
		buf.Add(makeEvent(i))
	}

	if buf.Len() != 1000 {
		t.Fatalf("expected len=1000, got %d", buf.Len())
	}

	all := buf.ListAll()
	if all[0].ResponseTimeMs != 5 {
		t.Errorf("expected first retained event to be 5, got %d", all[0].ResponseTimeMs)
	}
	if all[999].ResponseTimeMs != 1004 {
		t.Errorf("expected last event to be 1004, got %d", all[999].ResponseTimeMs)
	}
}

func TestEventBuffer_ZeroCapacity(t *testing.T) {
	buf := NewRingBuffer(0)
	if buf.Cap() != 1 {
		t.Errorf("expected cap=1 for zero capacity input, got %d", buf.Cap())
	}
}

func TestEvent_IsError(t *testing.T) {
	ok := makeEvent(1)
	if ok.IsError("") {
		t.Error("success event should not match IsError")
	}
	fail := makeFailure(CodeQuotaExceeded, 1)
	if !fail.IsError("") || !fail.IsError(CodeQuotaExceeded) {
		t.Error("failure should match its own code and the empty code")
	}
	if fail.IsError(CodeAPIError) {
		t.Error("failure should not match a different code")
	}
}

func TestRingBuffer_ReturnedErrorsAreCopies(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Add(Event{Kind: KindError, Error: &SendError{Code: CodeQuotaExceeded, Message: "limit"}})

	tail := rb.Tail(1)
	tail[0].Error.Code = "TAMPERED"
	errs := rb.TailErrors(CodeQuotaExceeded, 1)
	if len(errs) != 1 {
		t.Fatalf("stored event was modified through Tail: got %d matches", len(errs))
	}

	errs[0].Error.Message = "changed"
	if got := rb.ListAll()[0].Error.Message; got != "limit" {
		t.Errorf("stored message = %q, want limit", got)
	}
}
