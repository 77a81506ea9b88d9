package script

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_YAMLObject(t *testing.T) {
	path := writeFile(t, "session.yaml", `
title: Evening wind-down
voice: Kore
batches:
  - text: Breathe in
  - text: ""
  - text: Relax
    instructions:
      - type: bell
        volume: 0.4
`)

	s, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Title != "Evening wind-down" || s.Voice != "Kore" {
		t.Errorf("title/voice = %q/%q", s.Title, s.Voice)
	}
	if len(s.Batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(s.Batches))
	}
	if s.Batches[1].Text != "" {
		t.Errorf("empty batch should be kept as placeholder, got %q", s.Batches[1].Text)
	}
	instr := s.Batches[2].Instructions
	if len(instr) != 1 || instr[0]["type"] != "bell" || instr[0]["volume"] != 0.4 {
		t.Errorf("instructions = %+v", instr)
	}
}

func TestLoad_JSONArray(t *testing.T) {
	path := writeFile(t, "session.json", `[{"text":"One"},{"text":"Two","instructions":[{"cue":"chime"}]}]`)

	s, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(s.Batches) != 2 || s.Batches[0].Text != "One" || s.Batches[1].Text != "Two" {
		t.Errorf("batches = %+v", s.Batches)
	}
	if s.Batches[1].Instructions[0]["cue"] != "chime" {
		t.Errorf("instructions = %+v", s.Batches[1].Instructions)
	}
}

func TestLoad_PlainText(t *testing.T) {
	path := writeFile(t, "session.txt", "Close your eyes. Breathe slowly.\n\nFeel your feet on the floor.\n")

	s, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"Close your eyes. Breathe slowly.", "Feel your feet on the floor."}
	if len(s.Batches) != len(want) {
		t.Fatalf("batches = %+v, want %d", s.Batches, len(want))
	}
	for i, w := range want {
		if s.Batches[i].Text != w {
			t.Errorf("batch %d = %q, want %q", i, s.Batches[i].Text, w)
		}
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/session.yaml", 0); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_InvalidTopLevel(t *testing.T) {
	if _, err := Parse([]byte(`just a string`)); err == nil {
		t.Fatal("expected error for scalar document")
	}
}

func TestParse_Empty(t *testing.T) {
	s, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(s.Batches) != 0 {
		t.Errorf("batches = %+v, want none", s.Batches)
	}
}
