package prompts

import (
	"strings"
	"testing"
)

func TestGetKnownPrompts(t *testing.T) {
	keys := []string{"search-strategy", "social-analysis", "pep-analysis", "media-analysis", "summary"}
	for _, key := range keys {
		prompt, err := Get("intel.json", key)
		if err != nil {
			t.Fatalf("Get(intel.json, %s) failed: %v", key, err)
		}
		if !strings.Contains(prompt, "{{.Name}}") {
			t.Errorf("prompt %s missing {{.Name}} placeholder", key)
		}
	}
}

func TestGetMissingKey(t *testing.T) {
	if _, err := Get("intel.json", "no-such-prompt"); err == nil {
		t.Error("expected error for missing prompt key")
	}
}

func TestGetMissingFile(t *testing.T) {
	if _, err := Get("missing.json", "summary"); err == nil {
		t.Error("expected error for missing prompt file")
	}
}

func TestFormat(t *testing.T) {
	out := Format("Search for {{.Name}} in {{.Region}}", map[string]string{
		"Name":   "Jane Doe",
		"Region": "EU",
	})
	if out != "Search for Jane Doe in EU" {
		t.Errorf("unexpected format result: %q", out)
	}
}

func TestFormatLeavesUnknownPlaceholders(t *testing.T) {
	out := Format("{{.Name}} and {{.Other}}", map[string]string{"Name": "Jane"})
	if out != "Jane and {{.Other}}" {
		t.Errorf("unexpected format result: %q", out)
	}
}
