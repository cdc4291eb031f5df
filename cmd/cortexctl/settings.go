package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings are resolved with precedence flags > CORTEXCTL_* env > defaults.
type Settings struct {
	BackendURL string
	Timeout    time.Duration
}

var settings Settings

func loadSettings(cmd *cobra.Command) error {
	v := viper.New()
	v.SetDefault("backend_url", "http://localhost:8080")
	v.SetDefault("timeout", 10*time.Second)

	v.SetEnvPrefix("CORTEXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("backend_url", cmd.Flags().Lookup("backend-url")); err != nil {
		return fmt.Errorf("binding backend-url flag: %w", err)
	}
	if err := v.BindPFlag("timeout", cmd.Flags().Lookup("timeout")); err != nil {
		return fmt.Errorf("binding timeout flag: %w", err)
	}

	settings.BackendURL = v.GetString("backend_url")
	settings.Timeout = v.GetDuration("timeout")
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	return nil
}
