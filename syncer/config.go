package syncer

import (
	"fmt"
	"time"

	"github.com/verylucky01/repo-sync/auth"
)

const (
	defaultBranch      = "master"
	defaultInterval    = 60 * time.Second
	minAllowedInterval = time.Second
)

// Config represents the sync config for one source/target repository
// pair. Config is validated and defaulted once at startup and treated
// as read-only for the life of the process.
type Config struct {
	// git URL of the source repo to mirror from
	Source string `yaml:"source_remote"`

	// git URL of the target repo to mirror to
	Target string `yaml:"target_remote"`

	// access token for the target remote, it will be embedded into the
	// push URL based on the provider mapping. required unless github_app
	// credentials are set
	TargetToken string `yaml:"target_token"`

	// LocalPath is the path of the local workspace. the syncer creates
	// it on first clone but otherwise treats it as an opaque git work
	// tree owned by git
	LocalPath string `yaml:"local_path"`

	// Branch mirrored from source to target
	Branch string `yaml:"branch"`

	// Interval is time duration for how long to wait between sync runs
	Interval time.Duration `yaml:"interval"`

	// SyncTimeout bounds one full sync run. 0 disables the timeout in
	// which case a hung git call stalls the loop until the process is
	// restarted
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	// Providers overrides the default host-marker to token style
	// mapping used to build the authenticated push URL
	Providers []auth.Provider `yaml:"auth_providers"`

	// GithubApp credentials used to mint the target token when
	// TargetToken is not set
	GithubApp auth.GithubAppConfig `yaml:"github_app"`
}

// ValidateAndApplyDefaults validates the config and fills in defaults
// for the optional fields
func (c *Config) ValidateAndApplyDefaults() error {
	if c.Source == "" {
		return fmt.Errorf("source remote url cannot be empty")
	}

	if c.Target == "" {
		return fmt.Errorf("target remote url cannot be empty")
	}

	if c.LocalPath == "" {
		return fmt.Errorf("local workspace path cannot be empty")
	}

	if c.TargetToken == "" && !c.GithubApp.Valid() {
		return fmt.Errorf("target token must be set when github app credentials are not provided")
	}

	if c.Branch == "" {
		c.Branch = defaultBranch
	}

	if c.Interval == 0 {
		c.Interval = defaultInterval
	}

	if c.Interval < minAllowedInterval {
		return fmt.Errorf("provided interval between syncs is too short (%s), must be >= %s", c.Interval, minAllowedInterval)
	}

	if len(c.Providers) == 0 {
		c.Providers = auth.DefaultProviders()
	}

	for _, p := range c.Providers {
		switch p.Style {
		case auth.StyleBasic, auth.StyleOAuth2:
		default:
			return fmt.Errorf("wrong auth style provided for host marker '%s', must be one of %s, %s",
				p.HostMarker, auth.StyleBasic, auth.StyleOAuth2)
		}
	}

	return nil
}
