package uitree

import (
	"reflect"
	"testing"
)

func TestFlatten_OrderAndAttributes(t *testing.T) {
	root := Element{
		Role:  "AXWindow",
		Title: "Alert",
		Children: []Element{
			{Role: "AXStaticText", Value: "pid:"},
			{Role: "AXStaticText", Value: "4821"},
			{Role: "AXGroup", Children: []Element{
				{Role: "AXStaticText", Description: "path:"},
				{Role: "AXStaticText", Help: "/usr/bin/curl"},
			}},
		},
	}

	got := Flatten(root)
	want := []string{"Alert", "pid:", "4821", "path:", "/usr/bin/curl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestFlatten_DuplicatesFirstOccurrenceWins(t *testing.T) {
	root := Element{
		Children: []Element{
			{Value: "Allow"},
			{Value: "443 (TCP)"},
			{Value: "Allow"},             // exact duplicate dropped
			{Title: "Allow", Value: "X"}, // duplicate in a different attribute
		},
	}

	got := Flatten(root)
	want := []string{"Allow", "443 (TCP)", "X"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestFlatten_TrimsWhitespaceAndSkipsEmpty(t *testing.T) {
	root := Element{
		Children: []Element{
			{Value: "  93.184.216.34  "},
			{Value: "   "},
			{Value: ""},
		},
	}

	got := Flatten(root)
	want := []string{"93.184.216.34"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %v, want %v", got, want)
	}
}

func TestFlatten_DepthGuard(t *testing.T) {
	// Build a chain far deeper than maxDepth. Flatten must return without
	// exhausting the stack and keep what it saw on the way down.
	deep := Element{Value: "leaf"}
	for i := 0; i < maxDepth*3; i++ {
		deep = Element{Children: []Element{deep}}
	}

	got := Flatten(deep)
	if len(got) != 0 {
		t.Errorf("expected depth guard to cut off the chain, got %v", got)
	}
}

func TestFlatten_NodeGuard(t *testing.T) {
	wide := Element{}
	for i := 0; i < maxNodes+100; i++ {
		wide.Children = append(wide.Children, Element{Value: "x"})
	}

	// Must terminate; dedup collapses the values anyway, the point is the
	// visit counter stops the walk.
	got := Flatten(wide)
	if len(got) != 1 || got[0] != "x" {
		t.Errorf("Flatten = %v, want [x]", got)
	}
}
