package chain

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// step returns a handler that appends name to log when it runs.
func step(log *[]string, name string) common.Handler {
	return common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		*log = append(*log, name)
		return nil
	})
}

// failingStep returns a handler that appends name to log and then fails.
func failingStep(log *[]string, name string, err error) common.Handler {
	return common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		*log = append(*log, name)
		return err
	})
}

func runChain(t *testing.T, c *Chain) error {
	t.Helper()
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	return c.Handle(rec, req)
}

func TestChainRunsInOrder(t *testing.T) {
	var log []string

	c := New(step(&log, "terminal"),
		Before(step(&log, "b1")),
		Before(step(&log, "b2")),
		After(step(&log, "a1")),
		After(step(&log, "a2")),
	)

	if err := runChain(t, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"b1", "b2", "terminal", "a1", "a2"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected execution order %v, got %v", want, log)
	}
}

func TestInterleavedDeclarationKeepsRelativeOrder(t *testing.T) {
	var log []string

	// Kinds may be interleaved in the unit list; execution still groups
	// befores first and afters last, each in declaration order.
	c := New(step(&log, "terminal"),
		After(step(&log, "a1")),
		Before(step(&log, "b1")),
		After(step(&log, "a2")),
		Before(step(&log, "b2")),
	)

	if err := runChain(t, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"b1", "b2", "terminal", "a1", "a2"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected execution order %v, got %v", want, log)
	}
}

func TestBeforeHaltSkipsEverythingDownstream(t *testing.T) {
	var log []string
	halt := errors.New("nope")

	c := New(step(&log, "terminal"),
		Before(step(&log, "b1")),
		Before(failingStep(&log, "b2", halt)),
		Before(step(&log, "b3")),
		After(step(&log, "a1")),
	)

	err := runChain(t, c)
	if !errors.Is(err, halt) {
		t.Fatalf("expected the halt error verbatim, got %v", err)
	}

	want := []string{"b1", "b2"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected only %v to run, got %v", want, log)
	}
}

func TestTerminalErrorSkipsAfters(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	c := New(failingStep(&log, "terminal", boom),
		Before(step(&log, "b1")),
		After(step(&log, "a1")),
	)

	err := runChain(t, c)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the terminal error verbatim, got %v", err)
	}

	want := []string{"b1", "terminal"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected only %v to run, got %v", want, log)
	}
}

func TestAfterErrorPropagates(t *testing.T) {
	var log []string
	late := errors.New("late failure")

	c := New(step(&log, "terminal"),
		After(failingStep(&log, "a1", late)),
		After(step(&log, "a2")),
	)

	err := runChain(t, c)
	if !errors.Is(err, late) {
		t.Fatalf("expected the after error verbatim, got %v", err)
	}

	want := []string{"terminal", "a1"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected only %v to run, got %v", want, log)
	}
}

func TestEmptyUnitListEqualsTerminal(t *testing.T) {
	terminal := common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusCreated)
		_, err := w.Write([]byte("made"))
		return err
	})

	c := New(terminal)

	req := httptest.NewRequest("POST", "/things", nil)
	rec := httptest.NewRecorder()
	if err := c.Handle(rec, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if rec.Body.String() != "made" {
		t.Errorf("expected body %q, got %q", "made", rec.Body.String())
	}
}

func TestTerminalRunsOncePerRequest(t *testing.T) {
	count := 0
	c := New(common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		count++
		return nil
	}))

	for i := 0; i < 3; i++ {
		if err := runChain(t, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if count != 3 {
		t.Errorf("expected the terminal to run once per request, got %d runs for 3 requests", count)
	}
}

func TestContextValuesFlowDownstream(t *testing.T) {
	// A before unit attaches a value; the terminal and an after unit must
	// see it through the same request.
	var terminalSaw, afterSaw string

	c := New(
		common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			terminalSaw, _ = mcontext.GetRequestIDFromRequest(r)
			return nil
		}),
		BeforeFunc(func(w http.ResponseWriter, r *http.Request) error {
			mcontext.WithRequestID(r.Context(), "req-7")
			return nil
		}),
		AfterFunc(func(w http.ResponseWriter, r *http.Request) error {
			afterSaw, _ = mcontext.GetRequestIDFromRequest(r)
			return nil
		}),
	)

	if err := runChain(t, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terminalSaw != "req-7" {
		t.Errorf("terminal expected to see request id %q, saw %q", "req-7", terminalSaw)
	}
	if afterSaw != "req-7" {
		t.Errorf("after unit expected to see request id %q, saw %q", "req-7", afterSaw)
	}
}

func TestChainNestsAsTerminal(t *testing.T) {
	var log []string

	inner := New(step(&log, "inner-terminal"), Before(step(&log, "inner-b")))
	outer := New(inner, Before(step(&log, "outer-b")), After(step(&log, "outer-a")))

	if err := runChain(t, outer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer-b", "inner-b", "inner-terminal", "outer-a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected execution order %v, got %v", want, log)
	}
}

func TestUnitListReuseAcrossChains(t *testing.T) {
	var log []string

	units := []Unit{Before(step(&log, "b"))}
	first := New(step(&log, "t1"), units...)

	// Mutating the caller's slice after composition must not affect the
	// already-built chain.
	units[0] = After(step(&log, "late"))
	second := New(step(&log, "t2"), units...)

	if err := runChain(t, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := runChain(t, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"b", "t1", "t2", "late"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected execution order %v, got %v", want, log)
	}
}

func TestNilTerminalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected New to panic on a nil terminal")
		}
	}()
	New(nil)
}

func TestNilUnitHandlerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected Before to panic on a nil handler")
		}
	}()
	Before(nil)
}

func TestZeroUnitRejected(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected New to panic on a zero-value unit")
		}
	}()
	New(common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error { return nil }), Unit{})
}

func TestKindString(t *testing.T) {
	if KindBefore.String() != "before" {
		t.Errorf("expected %q, got %q", "before", KindBefore.String())
	}
	if KindAfter.String() != "after" {
		t.Errorf("expected %q, got %q", "after", KindAfter.String())
	}
	if Kind(42).String() != "unknown" {
		t.Errorf("expected %q, got %q", "unknown", Kind(42).String())
	}
}

func TestUnitAccessors(t *testing.T) {
	h := common.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error { return nil })

	b := Before(h)
	if b.Kind() != KindBefore {
		t.Errorf("expected kind %v, got %v", KindBefore, b.Kind())
	}
	if b.Handler() == nil {
		t.Error("expected the wrapped handler back")
	}

	a := After(h)
	if a.Kind() != KindAfter {
		t.Errorf("expected kind %v, got %v", KindAfter, a.Kind())
	}
}
