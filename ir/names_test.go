package ir

import "testing"

func TestNameTableInternIdempotent(t *testing.T) {
	names := NewNameTable()
	a := names.Intern("position")
	b := names.Intern("position")
	if a != b {
		t.Fatalf("Intern not idempotent: %d != %d", a, b)
	}
	if names.Text(a) != "position" {
		t.Fatalf("Text(%d) = %q, want %q", a, names.Text(a), "position")
	}
}

func TestNameTableDistinctNames(t *testing.T) {
	names := NewNameTable()
	a := names.Intern("foo")
	b := names.Intern("bar")
	if a == b {
		t.Fatalf("distinct names got the same id: %d", a)
	}
}

func TestNoNameIsZero(t *testing.T) {
	if NoName != 0 {
		t.Fatalf("NoName = %d, want 0", NoName)
	}
	names := NewNameTable()
	if names.Text(NoName) != "" {
		t.Fatalf("Text(NoName) = %q, want empty", names.Text(NoName))
	}
}
