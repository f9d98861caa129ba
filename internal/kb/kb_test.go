package kb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAndRender(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	data := `{"documents":[
		{"id":"d1","category":"hours","question":"What are your hours?","answer":"9 AM to 5 PM, Monday through Friday."},
		{"id":"d2","category":"pricing","question":"How much does it cost?","answer":"Plans start at $29 a month."}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	k, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k.Count() != 2 {
		t.Errorf("Count = %d, expected 2", k.Count())
	}
	section := k.PromptSection()
	if !strings.Contains(section, "9 AM to 5 PM") || !strings.Contains(section, "$29") {
		t.Errorf("prompt section missing answers: %q", section)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	k, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if k.Count() != 0 {
		t.Errorf("Count = %d, expected 0", k.Count())
	}
	if k.PromptSection() != "" {
		t.Error("empty base must render no prompt section")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/kb.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed file")
	}
}
