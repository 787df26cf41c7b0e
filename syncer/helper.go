package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/verylucky01/repo-sync/giturl"
	"github.com/verylucky01/repo-sync/internal/utils"
)

var (
	gitExecutablePath string

	// to parse ref status lines of "git push --porcelain" output
	// <flag> \t <from>:<to> \t <summary>
	pushRefLineRgx = regexp.MustCompile(`(?m)^([ +\-*!=])\t([^\t:]*):([^\t]+)\t(.+)$`)
)

func init() {
	gitExecutablePath = exec.Command("git").String()
}

// push ref status flags as reported by "git push --porcelain"
const (
	flagFastForward = ' '
	flagForced      = '+'
	flagDeleted     = '-'
	flagNew         = '*'
	flagRejected    = '!'
	flagUpToDate    = '='
)

// RefStatus is the status of a single pushed ref as reported by
// "git push --porcelain"
type RefStatus struct {
	Flag    byte   // one of the porcelain status flags
	From    string // local ref, empty for deletions
	To      string // remote ref
	Summary string // human readable detail, holds the rejection reason
}

// Rejected returns whether the remote refused the ref update.
// the porcelain flag is the only contract here, the summary text is
// informational only.
func (rs RefStatus) Rejected() bool {
	return rs.Flag == flagRejected
}

func (rs RefStatus) String() string {
	return fmt.Sprintf("%s -> %s (%s)", rs.From, rs.To, rs.Summary)
}

// parsePushOutput parses per-ref status lines out of
// "git push --porcelain" output. lines which are not ref status lines
// (the "To <url>" header, "Done" trailer, remote messages) are skipped.
func parsePushOutput(output string) []RefStatus {
	var statuses []RefStatus

	for _, match := range pushRefLineRgx.FindAllStringSubmatch(output, -1) {
		statuses = append(statuses, RefStatus{
			Flag:    match[1][0],
			From:    match[2],
			To:      match[3],
			Summary: strings.TrimSpace(match[4]),
		})
	}

	return statuses
}

// rejectedRefs filters the given statuses down to the rejected ones
func rejectedRefs(statuses []RefStatus) []RefStatus {
	var rejected []RefStatus
	for _, rs := range statuses {
		if rs.Rejected() {
			rejected = append(rejected, rs)
		}
	}
	return rejected
}

// runGitCommand runs git with given arguments on given CWD. credentials
// embedded in remote URLs are scrubbed from returned errors since git
// prints push URLs verbatim in its failure messages.
func runGitCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, args ...string) (string, error) {
	out, err := utils.RunCommand(ctx, log, envs, cwd, gitExecutablePath, args...)
	if err != nil {
		return out, fmt.Errorf("%s", giturl.Redacted(err.Error()))
	}
	return out, nil
}
