package domain

import (
	"errors"
	"testing"
)

func TestNewTraceContext(t *testing.T) {
	t.Run("Generates missing ids", func(t *testing.T) {
		tc, err := NewRootTraceContext(UUIDGenerator{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !tc.IsValid() {
			t.Fatalf("expected valid trace, got %+v", tc)
		}
		if tc.TraceID == tc.SpanID {
			t.Error("expected distinct trace and span ids")
		}
		if tc.CorrelationID != tc.TraceID {
			t.Errorf("expected correlation id to default to trace id, got %q", tc.CorrelationID)
		}
	})

	t.Run("Keeps supplied ids", func(t *testing.T) {
		tc, err := NewTraceContext(UUIDGenerator{}, "trace", "span", "corr", "user")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := TraceContext{TraceID: "trace", SpanID: "span", CorrelationID: "corr", UserID: "user"}
		if tc != want {
			t.Errorf("expected %+v, got %+v", want, tc)
		}
	})

	t.Run("Generated ids never collide", func(t *testing.T) {
		const runs = 1000
		seen := make(map[string]struct{}, 2*runs)
		for i := 0; i < runs; i++ {
			tc, err := NewRootTraceContext(UUIDGenerator{})
			if err != nil {
				t.Fatalf("run %d: unexpected error: %v", i, err)
			}
			for _, id := range []string{tc.TraceID, tc.SpanID} {
				if _, dup := seen[id]; dup {
					t.Fatalf("run %d: id %q generated twice", i, id)
				}
				seen[id] = struct{}{}
			}
		}
	})

	t.Run("Same supplied fields are equal", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			a, _ := NewTraceContext(UUIDGenerator{}, "trace", "span", "corr", "user")
			b, _ := NewTraceContext(UUIDGenerator{}, "trace", "span", "corr", "user")
			if a != b {
				t.Fatalf("expected equal contexts, got %+v and %+v", a, b)
			}
		}
	})

	t.Run("Generator failure", func(t *testing.T) {
		boom := errors.New("no entropy")
		_, err := NewRootTraceContext(IDFunc(func() (string, error) { return "", boom }))
		if !errors.Is(err, boom) {
			t.Errorf("expected generator error, got %v", err)
		}
	})
}
