package checksum

import "testing"

func TestSum(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestShort(t *testing.T) {
	if got := Short(Sum([]byte("abc"))); got != "ba7816bf8f01" {
		t.Errorf("got = %q, want %q", got, "ba7816bf8f01")
	}
	if got := Short("abc"); got != "abc" {
		t.Errorf("got = %q, want %q", got, "abc")
	}
}

func TestCombine(t *testing.T) {
	a, b := Sum([]byte("input")), Sum([]byte("settings"))
	if Combine(a, b) == Combine(b, a) {
		t.Error("Combine should depend on order")
	}
	if Combine(a, b) != Combine(a, b) {
		t.Error("Combine should be deterministic")
	}
	if Combine("ab", "c") == Combine("a", "bc") {
		t.Error("Combine should separate parts")
	}
	if got := len(Combine(a)); got != 64 {
		t.Errorf("len = %d, want 64", got)
	}
}
