package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestJoinContexts(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	b, cancelB := context.WithCancel(context.Background())
	ctx, cancel := joinContexts(a, b)
	defer cancel()
	cancelB()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not canceled by b")
	}

	ctx2, cancel2 := joinContexts(context.Background(), context.Background())
	cancel2()
	if ctx2.Err() == nil {
		t.Fatalf("cancel func should cancel the joined context")
	}
}
