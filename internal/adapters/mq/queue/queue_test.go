package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
)

func view(id string, version uint64) model.View {
	return model.View{EntityID: id, Version: version}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Enqueue(ctx, view("ev-1", 1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	v := <-q.Dequeue(ctx)
	if v.EntityID != "ev-1" || v.Version != 1 {
		t.Errorf("expected ev-1@1, got %s@%d", v.EntityID, v.Version)
	}

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := q.Enqueue(ctx, view("ev-1", uint64(i))); err != nil {
			t.Fatalf("expected enqueue %d to succeed, got %v", i, err)
		}
	}

	if err := q.Enqueue(ctx, view("ev-1", 3)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull when full, got %v", err)
	}

	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 1; i <= 5; i++ {
		_ = q.Enqueue(ctx, view("ev-1", uint64(i)))
	}
	_ = q.Close()

	var got []uint64
	for v := range q.Dequeue(ctx) {
		got = append(got, v.Version)
	}
	if fmt.Sprint(got) != "[1 2 3 4 5]" {
		t.Errorf("expected versions in order, got %v", got)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	producers, perProducer := 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for q.Enqueue(ctx, view(fmt.Sprintf("ev-%d", id), uint64(j))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	consumed := make(chan struct{}, producers*perProducer)
	for i := 0; i < 4; i++ {
		go func() {
			for range q.Dequeue(ctx) {
				consumed <- struct{}{}
			}
		}()
	}

	wg.Wait()

	deadline := time.After(2 * time.Second)
	for n := 0; n < producers*perProducer; n++ {
		select {
		case <-consumed:
		case <-deadline:
			t.Fatalf("consumed %d of %d views", n, producers*perProducer)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, view("ev-1", 1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	if err := q.Enqueue(ctx, view("ev-1", 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after closing, got %v", err)
	}

	// buffered views drain before the channel closes
	ch := q.Dequeue(ctx)
	timeout := time.After(100 * time.Millisecond)
	var drained int
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if drained != 1 {
					t.Errorf("expected 1 drained view, got %d", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, view("ev-1", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
