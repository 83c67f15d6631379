package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

func remediationFlagSet(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.Bool("remediate", false, "")
	fs.Bool("dry-run", false, "")
	return fs
}

func TestRemediationSettingsConfigDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Remediation.Enabled = true
	cfg.Remediation.DryRun = true

	enabled, dryRun := remediationSettings(cfg, remediationFlagSet(t))

	assert.True(t, enabled, "unset flags fall back to config")
	assert.True(t, dryRun)
}

func TestRemediationSettingsFlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Remediation.Enabled = true

	fs := remediationFlagSet(t)
	require.NoError(t, fs.Set("remediate", "false"))
	require.NoError(t, fs.Set("dry-run", "true"))

	enabled, dryRun := remediationSettings(cfg, fs)

	assert.False(t, enabled, "an explicit flag beats config, even to disable")
	assert.True(t, dryRun)
}

func TestRemediationSettingsNilFlagSet(t *testing.T) {
	cfg := &config.Config{}
	cfg.Remediation.Enabled = true

	enabled, dryRun := remediationSettings(cfg, nil)

	assert.True(t, enabled)
	assert.False(t, dryRun)
}
