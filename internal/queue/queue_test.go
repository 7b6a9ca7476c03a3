package queue

import "testing"

func TestNew(t *testing.T) {
	q := New()
	if q.Length() != 0 {
		t.Fatalf("new queue length = %d, want 0", q.Length())
	}
	if q.Full() {
		t.Fatal("new queue reports full")
	}
}

func TestPushPop(t *testing.T) {
	q := NewCapacity(3)
	if err := q.Push([]byte("a")); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := q.Push([]byte("b")); err != nil {
		t.Fatalf("push b: %v", err)
	}
	if q.Length() != 2 {
		t.Fatalf("length = %d, want 2", q.Length())
	}

	item, ok := q.Pop()
	if !ok || string(item) != "a" {
		t.Fatalf("pop = %q, %v, want a, true", item, ok)
	}
	item, ok = q.Pop()
	if !ok || string(item) != "b" {
		t.Fatalf("pop = %q, %v, want b, true", item, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop on empty queue returned ok=true")
	}
}

func TestPushFull(t *testing.T) {
	q := NewCapacity(2)
	if err := q.Push([]byte("a")); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := q.Push([]byte("b")); err != nil {
		t.Fatalf("push b: %v", err)
	}
	if !q.Full() {
		t.Fatal("queue at capacity did not report full")
	}
	if err := q.Push([]byte("c")); err == nil {
		t.Fatal("push on full queue did not error")
	}
	if q.Length() != 2 {
		t.Fatalf("length after rejected push = %d, want 2", q.Length())
	}
}

func TestWrapAround(t *testing.T) {
	q := NewCapacity(2)
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Pop()
	if err := q.Push([]byte("c")); err != nil {
		t.Fatalf("push c after wrap: %v", err)
	}
	item, ok := q.Pop()
	if !ok || string(item) != "b" {
		t.Fatalf("pop = %q, %v, want b, true", item, ok)
	}
	item, ok = q.Pop()
	if !ok || string(item) != "c" {
		t.Fatalf("pop = %q, %v, want c, true", item, ok)
	}
}
