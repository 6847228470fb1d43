package main

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"#", "Title"}, [][]string{{"1", "Sunny"}, {"2"}}, []columnAlignment{alignRight})
	for _, want := range []string{"TITLE", "Sunny"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatalf("empty headers should render nothing")
	}
}
