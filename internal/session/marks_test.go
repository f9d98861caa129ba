package session

import "testing"

func TestMarksStrictlyIncreasing(t *testing.T) {
	var tr markTracker
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 5; i++ {
		name := tr.Issue()
		if seen[name] {
			t.Fatalf("mark %q reused", name)
		}
		seen[name] = true
		if name <= prev && prev != "" && len(name) == len(prev) {
			t.Errorf("mark %q not increasing after %q", name, prev)
		}
		prev = name
		if !tr.Resolve(name) {
			t.Errorf("outstanding mark %q did not resolve", name)
		}
	}
}

func TestMarksResolveOnlyOutstanding(t *testing.T) {
	var tr markTracker
	name := tr.Issue()
	if tr.Resolve("turn-99") {
		t.Error("foreign name resolved")
	}
	if !tr.Resolve(name) {
		t.Error("outstanding mark did not resolve")
	}
	if tr.Resolve(name) {
		t.Error("mark resolved twice")
	}
}

func TestMarksClearDropsStaleEcho(t *testing.T) {
	var tr markTracker
	name := tr.Issue()
	tr.Clear()
	if tr.Resolve(name) {
		t.Error("cleared mark must not resolve")
	}
	next := tr.Issue()
	if next == name {
		t.Errorf("mark %q reused after clear", name)
	}
}
