package syncer

import (
	"fmt"
	"strings"
)

// WorkspaceErrorKind classifies failures of the local workspace
// reconciliation step.
type WorkspaceErrorKind string

const (
	CloneFailed WorkspaceErrorKind = "clone-failed"
	InvalidRepo WorkspaceErrorKind = "invalid-repo"
	PullFailed  WorkspaceErrorKind = "pull-failed"
)

// WorkspaceError is returned when the local copy of the source repo
// cannot be created or brought up to date. it aborts the current run
// only, the loop carries on with the next tick.
type WorkspaceError struct {
	Kind WorkspaceErrorKind
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s err:%v", e.Kind, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// PublishErrorKind classifies failures of the target publish step.
type PublishErrorKind string

const (
	// PushFailed covers transport, auth and remote configuration
	// failures where no per-ref detail is available
	PushFailed PublishErrorKind = "push-failed"

	// PushRejected means the remote reported at least one ref as
	// rejected, a partial push is still a failure of the whole step
	PushRejected PublishErrorKind = "push-rejected"
)

// PublishError is returned when pushing to the target remote fails.
// Refs holds the per-ref failure detail of a rejected push.
type PublishError struct {
	Kind PublishErrorKind
	Refs []RefStatus
	Err  error
}

func (e *PublishError) Error() string {
	if len(e.Refs) == 0 {
		return fmt.Sprintf("publish %s err:%v", e.Kind, e.Err)
	}

	details := make([]string, 0, len(e.Refs))
	for _, rs := range e.Refs {
		details = append(details, rs.String())
	}
	return fmt.Sprintf("publish %s refs:[%s]", e.Kind, strings.Join(details, ", "))
}

func (e *PublishError) Unwrap() error { return e.Err }
