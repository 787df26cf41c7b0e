package syncer

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWorkspaceError(t *testing.T) {
	underlying := errors.New("fatal: repository not found")
	err := fmt.Errorf("sync failed err:%w", &WorkspaceError{Kind: CloneFailed, Err: underlying})

	var wsErr *WorkspaceError
	if !errors.As(err, &wsErr) {
		t.Fatalf("expected error chain to contain *WorkspaceError, got %v", err)
	}
	if wsErr.Kind != CloneFailed {
		t.Errorf("Kind = %v, want %v", wsErr.Kind, CloneFailed)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected error chain to contain underlying engine error")
	}
	// engine error message must survive verbatim
	if !strings.Contains(err.Error(), "repository not found") {
		t.Errorf("error message does not contain engine detail: %v", err)
	}
}

func TestPublishError(t *testing.T) {
	err := &PublishError{
		Kind: PushRejected,
		Refs: []RefStatus{
			{Flag: '!', From: "refs/heads/master", To: "refs/heads/master", Summary: "[rejected] (non-fast-forward)"},
			{Flag: '!', From: "refs/heads/dev", To: "refs/heads/dev", Summary: "[remote rejected] (pre-receive hook declined)"},
		},
	}

	// every failing ref's message must be listed
	for _, detail := range []string{"non-fast-forward", "pre-receive hook declined", "refs/heads/master", "refs/heads/dev"} {
		if !strings.Contains(err.Error(), detail) {
			t.Errorf("error message missing %q: %v", detail, err)
		}
	}

	var pubErr *PublishError
	if !errors.As(fmt.Errorf("run failed err:%w", err), &pubErr) {
		t.Fatalf("expected error chain to contain *PublishError")
	}
	if pubErr.Kind != PushRejected {
		t.Errorf("Kind = %v, want %v", pubErr.Kind, PushRejected)
	}
}

func TestPublishError_no_refs(t *testing.T) {
	underlying := errors.New("could not resolve host")
	err := &PublishError{Kind: PushFailed, Err: underlying}

	if !strings.Contains(err.Error(), "could not resolve host") {
		t.Errorf("error message does not contain engine detail: %v", err)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected Unwrap to return underlying error")
	}
}
