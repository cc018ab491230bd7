package util

import "testing"

func TestHashNameDeterministicAndSafe(t *testing.T) {
	a := HashName("http://example.com/a b?c=d")
	if a != HashName("http://example.com/a b?c=d") {
		t.Fatalf("hash not deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("len=%d want 64", len(a))
	}
	for _, r := range a {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("unexpected rune %q in %s", r, a)
		}
	}
	if a == HashName("http://example.com/a b?c=e") {
		t.Fatalf("distinct ids collided")
	}
}

func TestStorageKey(t *testing.T) {
	if got := StorageKey("img", "x"); got != "asset:img:x" {
		t.Fatalf("got %q", got)
	}
}
