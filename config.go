package main

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"github.com/verylucky01/repo-sync/auth"
	"github.com/verylucky01/repo-sync/syncer"
	"gopkg.in/yaml.v3"
)

var (
	configSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "repo_sync_config_last_load_successful",
		Help: "Whether the last configuration load attempt was successful.",
	})
	configSuccessTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "repo_sync_config_last_load_success_timestamp_seconds",
		Help: "Timestamp of the last successful configuration load.",
	})
)

// buildConfig assembles the sync config from the optional YAML config
// file with env var / flag values taking precedence, then validates it
func buildConfig(c *cli.Command) (*syncer.Config, error) {
	conf := &syncer.Config{}

	if path := c.String("config"); path != "" {
		fileConf, err := parseConfigFile(path)
		if err != nil {
			configSuccess.Set(0)
			return nil, err
		}
		conf = fileConf
	}

	if v := c.String("source"); v != "" {
		conf.Source = v
	}
	if v := c.String("target"); v != "" {
		conf.Target = v
	}
	if v := c.String("target-token"); v != "" {
		conf.TargetToken = v
	}
	if v := c.String("local-path"); v != "" {
		conf.LocalPath = v
	}
	if v := c.String("branch"); v != "" {
		conf.Branch = v
	}
	if v := c.Int("sync-interval"); v != 0 {
		conf.Interval = time.Duration(v) * time.Second
	}

	if err := conf.ValidateAndApplyDefaults(); err != nil {
		configSuccess.Set(0)
		return nil, err
	}

	configSuccess.Set(1)
	configSuccessTime.SetToCurrentTime()

	return conf, nil
}

func parseConfigFile(path string) (*syncer.Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateConfigKeys(yamlFile); err != nil {
		return nil, err
	}

	conf := &syncer.Config{}
	if err := yaml.Unmarshal(yamlFile, conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// validateConfigKeys checks config sections for unexpected keys, a typo
// in an auth related key must fail loudly rather than silently sync
// without credentials
func validateConfigKeys(yamlData []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	allowedKeys := getAllowedKeys(syncer.Config{})
	if key := findUnexpectedKey(raw, allowedKeys); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	// check each provider in "auth_providers" section
	if providers, ok := raw["auth_providers"].([]interface{}); ok {
		allowedProviderKeys := getAllowedKeys(auth.Provider{})
		for _, providerInterface := range providers {
			providerMap, ok := providerInterface.(map[string]interface{})
			if !ok {
				return fmt.Errorf("auth_providers config section is not valid")
			}
			if key := findUnexpectedKey(providerMap, allowedProviderKeys); key != "" {
				return fmt.Errorf("unexpected key: .auth_providers[%v].%v", providerMap["host_marker"], key)
			}
		}
	}

	// check "github_app" section
	if appMap, ok := raw["github_app"].(map[string]interface{}); ok {
		allowedAppKeys := getAllowedKeys(auth.GithubAppConfig{})
		if key := findUnexpectedKey(appMap, allowedAppKeys); key != "" {
			return fmt.Errorf("unexpected key: .github_app.%v", key)
		}
	}

	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct
func getAllowedKeys(config interface{}) []string {
	var allowedKeys []string
	val := reflect.ValueOf(config)
	typ := reflect.TypeOf(config)

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag != "" {
			allowedKeys = append(allowedKeys, yamlTag)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw interface{}, allowedKeys []string) string {
	for key := range raw.(map[string]interface{}) {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}

	return ""
}
