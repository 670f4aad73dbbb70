package stream

import "testing"

func TestBacklogSince(t *testing.T) {
	b := NewBacklog(100)

	for i := int64(1); i <= 10; i++ {
		b.Push(i, []byte("msg"))
	}

	got := b.Since(7)
	if len(got) != 3 {
		t.Fatalf("Since(7): expected 3 entries, got %d", len(got))
	}
}

func TestBacklogWraparound(t *testing.T) {
	b := NewBacklog(5)

	// Push 8 entries; the first 3 are evicted.
	for i := int64(1); i <= 8; i++ {
		b.Push(i, []byte{byte(i)})
	}

	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}

	got := b.Since(0)
	if len(got) != 5 {
		t.Fatalf("Since(0): expected 5, got %d", len(got))
	}
	if got[0][0] != 4 {
		t.Errorf("oldest entry = %d, want 4", got[0][0])
	}
	if got[4][0] != 8 {
		t.Errorf("newest entry = %d, want 8", got[4][0])
	}
}

func TestBacklogEmpty(t *testing.T) {
	b := NewBacklog(10)
	if got := b.Since(0); len(got) != 0 {
		t.Fatalf("empty backlog Since should return 0 entries, got %d", len(got))
	}
}

func TestBacklogCopiesData(t *testing.T) {
	b := NewBacklog(10)
	src := []byte{1, 2, 3}
	b.Push(1, src)
	src[0] = 99

	got := b.Since(0)
	if len(got) != 1 || got[0][0] != 1 {
		t.Error("backlog must copy pushed data, not alias it")
	}
}
