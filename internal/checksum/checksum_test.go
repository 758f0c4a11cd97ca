package checksum

import "testing"

func TestSum(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum(abc) = %s, want %s", got, want)
	}
	if Sum(nil) == got {
		t.Error("different inputs produced the same digest")
	}
}

func TestShort(t *testing.T) {
	if got := Short(Sum([]byte("abc"))); got != "ba7816bf8f01" {
		t.Errorf("Short = %s", got)
	}
	if got := Short("abc"); got != "abc" {
		t.Errorf("Short(abc) = %s", got)
	}
}
