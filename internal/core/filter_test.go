package core

import "testing"

func TestCapabilityFilterAllowsListed(t *testing.T) {
	f := NewCapabilityFilter([]string{"list_ai_providers", "echo"})
	if err := f.Check("echo"); err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
	if f.Allows("runtime_info") {
		t.Fatalf("expected runtime_info to be hidden")
	}
}

func TestCapabilityFilterDenyIsInvalidRequest(t *testing.T) {
	f := NewCapabilityFilter([]string{"echo"})
	err := f.Check("drop_tables")
	if err == nil {
		t.Fatalf("expected deny")
	}
	if KindOf(err) != KindInvalidRequest {
		t.Fatalf("expected InvalidRequest, got %s", KindOf(err))
	}
}

func TestCapabilityFilterEmptyAllowsAll(t *testing.T) {
	for _, names := range [][]string{nil, {""}, {"*"}, {"*", "echo"}} {
		f := NewCapabilityFilter(names)
		if !f.Allows("anything") {
			t.Fatalf("filter %v should allow everything", names)
		}
	}
	var nilFilter *CapabilityFilter
	if !nilFilter.Allows("anything") {
		t.Fatalf("nil filter should allow everything")
	}
}

func TestCapabilityFilterApplyKeepsOrder(t *testing.T) {
	f := NewCapabilityFilter([]string{"c", "a"})
	got := f.Apply([]Capability{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("unexpected filtered list: %#v", got)
	}
}
