package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHooksRunInReverseOrder(t *testing.T) {
	h := NewHandler(time.Second)

	var order []int
	h.OnShutdown(func(context.Context) error {
		order = append(order, 1)
		return nil
	})
	h.OnShutdown(func(context.Context) error {
		order = append(order, 2)
		return nil
	})

	h.Trigger()
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("hook order = %v, want [2 1]", order)
	}
}

func TestWaitReturnsHookError(t *testing.T) {
	h := NewHandler(time.Second)
	boom := errors.New("boom")
	h.OnShutdown(func(context.Context) error { return boom })

	h.Trigger()
	if err := h.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}
}

func TestContextCancelledOnTrigger(t *testing.T) {
	h := NewHandler(time.Second)

	select {
	case <-h.Context().Done():
		t.Fatal("context done before trigger")
	default:
	}

	h.Trigger()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after trigger")
	}
}
