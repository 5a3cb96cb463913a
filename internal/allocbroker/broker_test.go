package allocbroker

import "testing"

func TestAllocateOnlyOnce(t *testing.T) {
	b := New()
	tok, ok := b.TryAllocate()
	if !ok {
		t.Fatal("expected first allocation to succeed")
	}
	if _, ok := b.TryAllocate(); ok {
		t.Fatal("expected second allocation to fail while token is held")
	}
	tok.Release()
	if _, ok := b.TryAllocate(); !ok {
		t.Fatal("expected allocation to succeed after release")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	b := New()
	tok, _ := b.TryAllocate()
	tok.Release()
	tok.Release()
	if _, ok := b.TryAllocate(); !ok {
		t.Fatal("expected allocation to succeed after double release")
	}
}
