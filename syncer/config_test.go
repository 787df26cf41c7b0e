package syncer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/verylucky01/repo-sync/auth"
)

func TestConfig_ValidateAndApplyDefaults(t *testing.T) {
	validConf := func() Config {
		return Config{
			Source:      "https://gitcode.com/org/repo.git",
			Target:      "https://github.com/org/repo.git",
			TargetToken: "t0ken",
			LocalPath:   "/tmp/repo",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing_source", func(c *Config) { c.Source = "" }, true},
		{"missing_target", func(c *Config) { c.Target = "" }, true},
		{"missing_local_path", func(c *Config) { c.LocalPath = "" }, true},
		{"missing_token", func(c *Config) { c.TargetToken = "" }, true},
		{"github_app_instead_of_token", func(c *Config) {
			c.TargetToken = ""
			c.GithubApp = auth.GithubAppConfig{
				AppID:          "1234",
				InstallationID: "5678",
				PrivateKeyPath: "/etc/app/key.pem",
			}
		}, false},
		{"partial_github_app", func(c *Config) {
			c.TargetToken = ""
			c.GithubApp = auth.GithubAppConfig{AppID: "1234"}
		}, true},
		{"interval_too_short", func(c *Config) { c.Interval = 100 * time.Millisecond }, true},
		{"invalid_provider_style", func(c *Config) {
			c.Providers = []auth.Provider{{HostMarker: "github.com", Style: "bearer"}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := validConf()
			tt.mutate(&conf)
			if err := conf.ValidateAndApplyDefaults(); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAndApplyDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_defaults(t *testing.T) {
	conf := Config{
		Source:      "https://gitcode.com/org/repo.git",
		Target:      "https://github.com/org/repo.git",
		TargetToken: "t0ken",
		LocalPath:   "/tmp/repo",
	}
	if err := conf.ValidateAndApplyDefaults(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if conf.Branch != "master" {
		t.Errorf("default branch = %v, want master", conf.Branch)
	}
	if conf.Interval != 60*time.Second {
		t.Errorf("default interval = %v, want 60s", conf.Interval)
	}
	if conf.SyncTimeout != 0 {
		t.Errorf("default sync timeout = %v, want 0 (disabled)", conf.SyncTimeout)
	}
	if diff := cmp.Diff(auth.DefaultProviders(), conf.Providers); diff != "" {
		t.Errorf("default providers mismatch (-want +got):\n%s", diff)
	}

	// explicitly set values are not overridden
	conf.Branch = "main"
	conf.Interval = 5 * time.Second
	if err := conf.ValidateAndApplyDefaults(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.Branch != "main" || conf.Interval != 5*time.Second {
		t.Errorf("explicit values overridden branch:%v interval:%v", conf.Branch, conf.Interval)
	}
}
