package graph

import "testing"

func TestNameInterner(t *testing.T) {
	ni := NewNameInterner()

	idEmpty := ni.Intern("")
	if idEmpty != 0 {
		t.Fatalf("empty string should intern to id 0, got %d", idEmpty)
	}

	idA1 := ni.Intern("Orchard Road")
	idB := ni.Intern("Bukit Timah Road")
	idA2 := ni.Intern("Orchard Road")

	if idA1 != idA2 {
		t.Errorf("repeated name should reuse id: got %d and %d", idA1, idA2)
	}
	if idA1 == idB {
		t.Errorf("distinct names should get distinct ids")
	}

	table := ni.Build()
	if table.Name(idA1) != "Orchard Road" {
		t.Errorf("Name(%d) = %q, want %q", idA1, table.Name(idA1), "Orchard Road")
	}
	if table.Name(idB) != "Bukit Timah Road" {
		t.Errorf("Name(%d) = %q, want %q", idB, table.Name(idB), "Bukit Timah Road")
	}
	if table.Name(0) != "" {
		t.Errorf("Name(0) should be empty, got %q", table.Name(0))
	}
}

func TestNameTableOutOfRange(t *testing.T) {
	var table *NameTable
	if table.Name(5) != "" {
		t.Error("nil table should return empty string")
	}
	if table.Count() != 0 {
		t.Error("nil table should have count 0")
	}

	ni := NewNameInterner()
	ni.Intern("Main Street")
	built := ni.Build()
	if got := built.Name(99); got != "" {
		t.Errorf("out of range id should return empty string, got %q", got)
	}
}
