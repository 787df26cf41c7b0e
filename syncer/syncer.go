package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verylucky01/repo-sync/auth"
	"github.com/verylucky01/repo-sync/giturl"
	"github.com/verylucky01/repo-sync/internal/lock"
	"github.com/verylucky01/repo-sync/internal/utils"
)

// fixed logical name of the push remote in the local workspace
const targetRemoteName = "target"

// State of the sync driver. one run is a single traversal
// Idle -> Reconciling -> PublishingLFS -> Publishing -> Idle on success
// or -> Failed, terminal for that run only.
type State string

const (
	StateIdle          State = "idle"
	StateReconciling   State = "reconciling"
	StatePublishingLFS State = "publishing-lfs"
	StatePublishing    State = "publishing"
	StateFailed        State = "failed"
)

// Syncer mirrors a source repository to a target remote.
// A Syncer is safe for concurrent use by multiple goroutines, sync runs
// are serialised against the shared local workspace so no two runs ever
// overlap.
type Syncer struct {
	lock      lock.Mutex  // workspace will be locked for the whole of a run
	cfg       Config      // immutable after New
	sourceURL *giturl.URL // parsed source remote URL
	targetURL *giturl.URL // parsed target remote URL
	dir       string      // absolute path of the local workspace
	envs      []string    // envs which will be passed to git commands
	running   bool        // indicates if syncer is running the sync loop

	stateMu lock.RWMutex
	state   State

	stop, stopped chan bool // chans to stop sync loop
	log           *slog.Logger

	// GitHub App installation token cache, re-minted close to expiry
	githubAppToken          string
	githubAppTokenExpiresAt time.Time
}

// New creates a syncer from the given config. the source repo will not
// be synced until either Sync() or StartLoop() is called.
func New(conf Config, envs []string, log *slog.Logger) (*Syncer, error) {
	if err := conf.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}

	srcURL, err := giturl.Parse(conf.Source)
	if err != nil {
		return nil, fmt.Errorf("unable to parse source url err:%w", err)
	}

	tgtURL, err := giturl.Parse(conf.Target)
	if err != nil {
		return nil, fmt.Errorf("unable to parse target url err:%w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	log = log.With("repo", tgtURL.Repo)

	dir, err := filepath.Abs(conf.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("unable to convert local path '%s' to abs path err:%w", conf.LocalPath, err)
	}

	return &Syncer{
		cfg:       conf,
		sourceURL: srcURL,
		targetURL: tgtURL,
		dir:       dir,
		envs:      envs,
		state:     StateIdle,
		stop:      make(chan bool),
		stopped:   make(chan bool),
		log:       log,
	}, nil
}

// State returns the current state of the sync driver
func (s *Syncer) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	return s.state
}

func (s *Syncer) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Sync runs one full sync: reconcile the local workspace, best-effort
// LFS setup, publish to target. a failure of reconcile or publish
// aborts the run, LFS setup never does.
func (s *Syncer) Sync(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	defer updateSyncLatency(s.targetURL.Repo, time.Now())

	start := time.Now()
	s.log.Info("starting sync run", "source", s.cfg.Source, "branch", s.cfg.Branch)

	err := s.sync(ctx)
	recordSync(s.targetURL.Repo, err == nil)
	if err != nil {
		s.setState(StateFailed)
		return err
	}

	s.setState(StateIdle)
	s.log.Info("sync run complete", "time", time.Since(start))
	return nil
}

func (s *Syncer) sync(ctx context.Context) error {
	s.setState(StateReconciling)
	if err := s.ensureLocalRepo(ctx); err != nil {
		return err
	}

	s.setState(StatePublishingLFS)
	if err := s.setupLFS(ctx); err != nil {
		// LFS is an enhancement, not a correctness requirement for
		// plain history transfer, a failure here must not abort the run
		s.log.Warn("git lfs setup failed, continuing without lfs", "err", err)
	}

	s.setState(StatePublishing)
	return s.publish(ctx)
}

// ensureLocalRepo makes sure the local workspace exists and is up to
// date with the source remote. clone-if-absent else pull keeps this
// idempotent across ticks.
func (s *Syncer) ensureLocalRepo(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	switch {
	case os.IsNotExist(err):
		return s.clone(ctx)
	case err != nil:
		return &WorkspaceError{Kind: InvalidRepo, Err: err}
	}

	// git refuses to clone into a non-empty dir so only an empty dir is
	// treated same as an absent one
	if empty, err := utils.DirIsEmpty(s.dir); err != nil {
		return &WorkspaceError{Kind: InvalidRepo, Err: err}
	} else if empty {
		return s.clone(ctx)
	}

	if err := s.sanityCheckRepo(ctx); err != nil {
		return &WorkspaceError{Kind: InvalidRepo, Err: err}
	}

	s.log.Info("pulling latest changes from origin", "path", s.dir)
	// git pull origin
	if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "pull", "origin"); err != nil {
		return &WorkspaceError{Kind: PullFailed, Err: err}
	}
	s.log.Info("workspace pull complete")

	return nil
}

func (s *Syncer) clone(ctx context.Context) error {
	s.log.Info("local workspace does not exist, cloning", "path", s.dir)
	// git clone <source> <dir>
	if _, err := runGitCommand(ctx, s.log, s.envs, "", "clone", s.cfg.Source, s.dir); err != nil {
		return &WorkspaceError{Kind: CloneFailed, Err: err}
	}
	s.log.Info("workspace clone complete", "path", s.dir)
	return nil
}

// sanityCheckRepo makes sure the existing workspace dir is a usable
// non-bare clone rooted at the workspace path with an origin remote
func (s *Syncer) sanityCheckRepo(ctx context.Context) error {
	// a bare repo has no work tree to pull into or push from
	// git rev-parse --is-bare-repository
	if out, err := runGitCommand(ctx, s.log, s.envs, s.dir, "rev-parse", "--is-bare-repository"); err != nil {
		return fmt.Errorf("unable to verify repo err:%w", err)
	} else if out != "false" {
		return fmt.Errorf("workspace is a bare repository path:%s", s.dir)
	}

	// Check that this is actually the root of the repo.
	// git rev-parse --show-toplevel
	root, err := runGitCommand(ctx, s.log, s.envs, s.dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return fmt.Errorf("can't get repo top-level err:%w", err)
	}
	// git resolves symlinks in the reported top-level
	dir, err := filepath.EvalSymlinks(s.dir)
	if err != nil {
		return fmt.Errorf("unable to resolve workspace path err:%w", err)
	}
	if root != dir {
		return fmt.Errorf("workspace dir is under another repo path:%s top-level:%s", dir, root)
	}

	// pull step requires configured origin remote
	// git config --get remote.origin.url
	if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "config", "--get", "remote.origin.url"); err != nil {
		return fmt.Errorf("workspace has no origin remote err:%w", err)
	}

	return nil
}

// setupLFS enables git-lfs for the workspace if the extension is
// available in the environment. LFS is best-effort, the caller treats
// any returned error as a warning.
func (s *Syncer) setupLFS(ctx context.Context) error {
	// git lfs version
	if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "lfs", "version"); err != nil {
		s.log.Warn("git-lfs is not available, skipping lfs setup")
		return nil
	}

	// git lfs install --local
	if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "lfs", "install", "--local"); err != nil {
		return fmt.Errorf("unable to enable lfs on workspace err:%w", err)
	}

	s.log.Info("git lfs set up for workspace")
	return nil
}

// publish pushes the configured branch to the target remote under
// authentication. the 'target' remote URL is re-set on every run since
// tokens may rotate between runs.
func (s *Syncer) publish(ctx context.Context) error {
	pushURL, err := s.authenticatedTargetURL(ctx)
	if err != nil {
		return &PublishError{Kind: PushFailed, Err: err}
	}

	if err := s.ensureTargetRemote(ctx, pushURL); err != nil {
		return &PublishError{Kind: PushFailed, Err: err}
	}

	s.log.Info("pushing to target", "url", giturl.Redacted(pushURL), "branch", s.cfg.Branch)

	refspec := s.cfg.Branch + ":" + s.cfg.Branch
	// git push --porcelain target <branch>:<branch>
	out, err := runGitCommand(ctx, s.log, s.envs, s.dir, "push", "--porcelain", targetRemoteName, refspec)

	// per-ref status is reported even when push exits non-zero, any
	// rejected ref fails the whole step
	if rejected := rejectedRefs(parsePushOutput(out)); len(rejected) > 0 {
		return &PublishError{Kind: PushRejected, Refs: rejected, Err: err}
	}
	if err != nil {
		return &PublishError{Kind: PushFailed, Err: err}
	}

	s.log.Info("push to target complete")
	return nil
}

// ensureTargetRemote creates or updates the named push remote so that
// it points at given URL
func (s *Syncer) ensureTargetRemote(ctx context.Context, url string) error {
	// git remote get-url target
	if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "remote", "get-url", targetRemoteName); err != nil {
		// git remote add target <url>
		if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "remote", "add", targetRemoteName, url); err != nil {
			return fmt.Errorf("unable to add target remote err:%w", err)
		}
		return nil
	}

	// git remote set-url target <url>
	if _, err := runGitCommand(ctx, s.log, s.envs, s.dir, "remote", "set-url", targetRemoteName, url); err != nil {
		return fmt.Errorf("unable to update target remote url err:%w", err)
	}
	return nil
}

// authenticatedTargetURL returns the target remote URL with credentials
// embedded. a static token takes precedence, otherwise a GitHub App
// installation token is minted and cached until close to its expiry.
func (s *Syncer) authenticatedTargetURL(ctx context.Context) (string, error) {
	token := s.cfg.TargetToken
	if token == "" {
		// github matches repo name without `.git` for permission for token req
		t, err := s.getGithubAppToken(ctx, strings.TrimSuffix(s.targetURL.Repo, ".git"))
		if err != nil {
			return "", fmt.Errorf("unable to get github app token err:%w", err)
		}
		token = t
	}

	return auth.URL(s.cfg.Target, token, s.cfg.Providers), nil
}

func (s *Syncer) getGithubAppToken(ctx context.Context, repo string) (string, error) {
	// return token if current token is valid for next 10 min
	if s.githubAppTokenExpiresAt.After(time.Now().UTC().Add(10 * time.Minute)) {
		return s.githubAppToken, nil
	}

	permissions := auth.GithubAppTokenReqPermissions{
		Repositories: []string{repo},
		Permissions:  map[string]string{"contents": "write"},
	}

	token, err := auth.GithubAppInstallationToken(ctx, s.cfg.GithubApp, permissions)
	if err != nil {
		return "", err
	}

	s.githubAppToken = token.Token
	s.githubAppTokenExpiresAt = token.ExpiresAt

	s.log.Debug("new github app access token created")

	return s.githubAppToken, nil
}

// StartLoop syncs the repository periodically based on the configured
// interval, starting with an immediate run. runs never overlap, a run
// that takes longer than the interval delays the next tick. it blocks
// until ctx is cancelled or Stop is called.
func (s *Syncer) StartLoop(ctx context.Context) {
	if s.running {
		s.log.Error("sync loop has already been started")
		return
	}
	s.running = true
	s.log.Info("started sync loop", "interval", s.cfg.Interval)

	defer func() {
		s.running = false
		close(s.stopped)
	}()

	for {
		// bound the run only if a timeout is configured, without one a
		// hung git call stalls the loop until the process is restarted
		sCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.cfg.SyncTimeout > 0 {
			sCtx, cancel = context.WithTimeout(ctx, s.cfg.SyncTimeout)
		}
		err := s.Sync(sCtx)
		cancel()
		if err != nil {
			s.log.Error("sync run failed", "err", err)
		}

		t := time.NewTimer(s.cfg.Interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Stop stops the sync loop and waits until it exits. in-flight git
// calls are not interrupted, cancel the loop ctx for that.
func (s *Syncer) Stop() {
	if !s.running {
		return
	}
	close(s.stop)
	<-s.stopped
}
