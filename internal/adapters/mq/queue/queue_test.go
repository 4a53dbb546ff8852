package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/tarelay/internal/adapters/wire"
)

func job(id string) Job {
	return Job{Packet: &wire.Packet{ID: id}, Enqueued: time.Now()}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job("p1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Packet.ID != "p1" {
		t.Errorf("expected p1, got %v", j.Packet.ID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job("p1")) || !q.Enqueue(ctx, job("p2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job("p3")) {
		t.Error("expected enqueue to fail when full")
	}

	// EnqueueWait blocks until the deadline when full.
	wctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(wctx, job("p3")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// And succeeds once a consumer makes room.
	go func() {
		time.Sleep(10 * time.Millisecond)
		<-q.Dequeue(ctx)
	}()
	if err := q.EnqueueWait(ctx, job("p3")); err != nil {
		t.Errorf("expected enqueue to succeed after dequeue, got %v", err)
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := q.EnqueueWait(ctx, job(fmt.Sprintf("p%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	_ = q.Close()

	i := 0
	for j := range q.Dequeue(ctx) {
		if want := fmt.Sprintf("p%d", i); j.Packet.ID != want {
			t.Fatalf("expected %s, got %s", want, j.Packet.ID)
		}
		i++
	}
	if i != 100 {
		t.Errorf("expected 100 jobs, got %d", i)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, job("p1")) {
		t.Error("expected enqueue to succeed")
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
	if q.Enqueue(ctx, job("p2")) {
		t.Error("expected enqueue to fail after closing")
	}
	if err := q.EnqueueWait(ctx, job("p2")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Queued jobs drain before the channel closes.
	jobs := q.Dequeue(ctx)
	if j, ok := <-jobs; !ok || j.Packet.ID != "p1" {
		t.Errorf("expected p1 before close, got %v %v", j.Packet, ok)
	}
	if _, ok := <-jobs; ok {
		t.Error("expected dequeue channel to be closed")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
