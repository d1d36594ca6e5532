package queue

import "testing"

func TestPushPopOrder(t *testing.T) {
	q := NewQueue[int](10)

	q.Push(1)
	q.Push(2)
	q.Push(3)

	a, _ := q.Pop()
	b, _ := q.Pop()
	c, _ := q.Pop()

	if a != 1 || b != 2 || c != 3 {
		t.Fatal("Bad contents:", a, b, c)
	}

	if _, ok := q.Pop(); ok {
		t.Fatal("Yields element past end")
	}
}

func TestPopEmpty(t *testing.T) {
	q := NewQueue[int](10)

	if _, ok := q.Pop(); ok {
		t.Fatal("Could Pop from empty queue")
	}
}

func TestGrow(t *testing.T) {
	q := NewQueue[int](2)

	for i := 0; i < 17; i++ {
		q.Push(i)
	}

	if q.Len() != 17 {
		t.Fatal("Wrong length after growth:", q.Len())
	}

	for i := 0; i < 17; i++ {
		e, ok := q.Pop()
		if !ok || e != i {
			t.Fatal("Bad element after growth:", i, e, ok)
		}
	}
}

func TestLen(t *testing.T) {
	q := NewQueue[int](10)
	q.Push(2)
	q.Push(3)
	if q.Len() != 2 {
		t.Fatal("Wrong length", q.Len())
	}
}

func TestLenRollover(t *testing.T) {
	q := NewQueue[int](3)
	q.Push(2)
	q.Push(3)
	q.Push(4)
	q.Pop()
	q.Pop()
	q.Push(5)
	if q.Len() != 2 {
		t.Fatal("Wrong length", q.Len())
	}
	q.Pop()
	if e, _ := q.Pop(); e != 5 {
		t.Fatal("Unexpected value")
	}
}

func TestPeek(t *testing.T) {
	q := NewQueue[int](10)
	q.Push(2)

	if e, ok := q.Peek(); !ok || e != 2 {
		t.Fatal("Wrong element:", e)
	}

	if q.Len() != 1 {
		t.Fatal("Peek consumed the element")
	}
}

func TestRemove(t *testing.T) {
	q := NewQueue[int](4)

	// Force a rollover first so Remove has to cope with a wrapped ring
	q.Push(0)
	q.Push(0)
	q.Pop()
	q.Pop()

	for i := 1; i <= 6; i++ {
		q.Push(i)
	}

	n := q.Remove(func(e int) bool { return e%2 == 0 })

	if n != 3 {
		t.Fatal("Wrong removal count:", n)
	}

	a, _ := q.Pop()
	b, _ := q.Pop()
	c, _ := q.Pop()

	if a != 1 || b != 3 || c != 5 {
		t.Fatal("Bad contents after Remove:", a, b, c)
	}
}

func TestRemoveNone(t *testing.T) {
	q := NewQueue[string](2)
	q.Push("a")
	q.Push("b")

	if n := q.Remove(func(string) bool { return false }); n != 0 {
		t.Fatal("Removed elements it should not have:", n)
	}

	if e, _ := q.Pop(); e != "a" {
		t.Fatal("Order changed by no-op Remove:", e)
	}
}

// Benches time for Pushing, then Popping 10 elements from a long queue
func BenchmarkQueue(b *testing.B) {
	q := NewQueue[int](1000)

	for i := 0; i < b.N; i++ {
		for j := 0; j < 10; j++ {
			q.Push(j)
		}
		for j := 0; j < 10; j++ {
			if _, ok := q.Pop(); !ok {
				b.Fatal("got nothing", i, j)
			}
		}
	}
}
