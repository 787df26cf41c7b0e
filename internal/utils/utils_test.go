package utils

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirIsEmpty(t *testing.T) {
	tempRoot := t.TempDir()

	// Brand new should be empty.
	if empty, err := DirIsEmpty(tempRoot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if !empty {
		t.Errorf("expected %q to be deemed empty", tempRoot)
	}

	// Holding normal files should not be empty.
	dir := filepath.Join(tempRoot, "files")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("failed to make a temp subdir: %v", err)
	}
	for _, file := range []string{"a", ".b", "c"} {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, []byte{}, 0755); err != nil {
			t.Fatalf("failed to write a file: %v", err)
		}
		if empty, err := DirIsEmpty(dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		} else if empty {
			t.Errorf("expected %q to be deemed not-empty", dir)
		}
	}

	// Test error path.
	if _, err := DirIsEmpty(filepath.Join(tempRoot, "does-not-exist")); err == nil {
		t.Errorf("unexpected success for non-existent dir")
	}
}

func TestReCreate(t *testing.T) {
	tempRoot := t.TempDir()

	dir := filepath.Join(tempRoot, "dir")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("failed to make a temp subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file"), []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write a file: %v", err)
	}

	if err := ReCreate(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if empty, err := DirIsEmpty(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if !empty {
		t.Errorf("expected %q to be emptied", dir)
	}

	// non-existing path is created
	dir2 := filepath.Join(tempRoot, "does-not-exist-yet")
	if err := ReCreate(dir2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(dir2); err != nil {
		t.Errorf("expected %q to be created err: %v", dir2, err)
	}
}

func TestRunCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh executable not found")
	}

	log := slog.Default()

	// stdout is captured and trimmed
	out, err := RunCommand(context.TODO(), log, nil, "", "sh", "-c", "echo ' hello '")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("RunCommand() = %q, want %q", out, "hello")
	}

	// stdout is returned even when the command exits non-zero
	out, err = RunCommand(context.TODO(), log, nil, "", "sh", "-c", "echo partial-output; echo failure >&2; exit 1")
	if err == nil {
		t.Fatalf("expected error for non-zero exit")
	}
	if out != "partial-output" {
		t.Errorf("RunCommand() partial output = %q, want %q", out, "partial-output")
	}
	if !strings.Contains(err.Error(), "failure") {
		t.Errorf("expected stderr in error, got: %v", err)
	}

	// given envs are passed to the command
	out, err = RunCommand(context.TODO(), log, []string{"TEST_VALUE=value1"}, "", "sh", "-c", "echo $TEST_VALUE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "value1" {
		t.Errorf("RunCommand() = %q, want %q", out, "value1")
	}
}
