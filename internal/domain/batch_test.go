package domain

import (
	"errors"
	"testing"
	"time"
)

func TestBatchResultBuilder(t *testing.T) {
	completed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("All accepted", func(t *testing.T) {
		b := NewBatchResultBuilder("b1", "t1", 2)
		b.Accept()
		b.Accept()
		res := b.Build(completed)

		if res.Status != BatchAccepted {
			t.Errorf("expected status accepted, got %s", res.Status)
		}
		if res.TotalAccepted != 2 || res.TotalRejected != 0 || res.TotalReceived != 2 {
			t.Errorf("unexpected counts: %+v", res)
		}
		if res.Errors == nil || len(res.Errors) != 0 {
			t.Errorf("expected empty non-nil errors, got %#v", res.Errors)
		}
	})

	t.Run("Partial keeps input order", func(t *testing.T) {
		b := NewBatchResultBuilder("b1", "t1", 4)
		b.Accept()
		b.Reject(1, errors.New("message cannot be blank"))
		b.Accept()
		b.Reject(3, errors.New("store: disk full"))
		res := b.Build(completed)

		if res.Status != BatchPartial {
			t.Errorf("expected status partial, got %s", res.Status)
		}
		want := []string{"entry 1: message cannot be blank", "entry 3: store: disk full"}
		if len(res.Errors) != len(want) {
			t.Fatalf("expected %d errors, got %d", len(want), len(res.Errors))
		}
		for i := range want {
			if res.Errors[i] != want[i] {
				t.Errorf("error %d: expected %q, got %q", i, want[i], res.Errors[i])
			}
		}
		if res.TotalAccepted+res.TotalRejected != res.TotalReceived {
			t.Errorf("counts do not add up: %+v", res)
		}
	})

	t.Run("Empty batch", func(t *testing.T) {
		res := NewBatchResultBuilder("b1", "t1", 0).Build(completed)
		if res.Status != BatchAccepted || res.TotalReceived != 0 {
			t.Errorf("unexpected empty result: %+v", res)
		}
	})

	t.Run("Result is isolated from later rejections", func(t *testing.T) {
		b := NewBatchResultBuilder("b1", "t1", 2)
		b.Reject(0, errors.New("bad"))
		res := b.Build(completed)
		b.Reject(1, errors.New("worse"))
		if len(res.Errors) != 1 {
			t.Errorf("expected built result to be immutable, got %v", res.Errors)
		}
	})
}
