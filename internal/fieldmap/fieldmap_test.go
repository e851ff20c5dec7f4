package fieldmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PipelineID != Default().PipelineID {
		t.Fatalf("expected default pipeline id, got %q", m.PipelineID)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	content := "pipelineId: custom-pipeline\nfields:\n  reviewStatus: custom-review-status\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PipelineID != "custom-pipeline" {
		t.Fatalf("pipelineId = %q", m.PipelineID)
	}
	if m.Fields.ReviewStatus != "custom-review-status" {
		t.Fatalf("reviewStatus = %q", m.Fields.ReviewStatus)
	}
	// Untouched entries keep their defaults.
	if m.Fields.JobType != Default().Fields.JobType {
		t.Fatalf("jobType = %q, want default", m.Fields.JobType)
	}
}

func TestLoadRejectsEmptyPipelineID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	if err := os.WriteFile(path, []byte("pipelineId: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty pipelineId")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
