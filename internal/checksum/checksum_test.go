package checksum

import "testing"

func TestSum_KnownVector(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum = %q, want %q", got, want)
	}
}

func TestShort(t *testing.T) {
	if got := Short([]byte("abc"), 12); got != "ba7816bf8f01" {
		t.Errorf("Short = %q", got)
	}
	if got := Short([]byte("abc"), 0); len(got) != 64 {
		t.Errorf("Short(0) len = %d, want 64", len(got))
	}
	if got := Short([]byte("abc"), 100); len(got) != 64 {
		t.Errorf("Short(100) len = %d, want 64", len(got))
	}
}
