package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Slack.Token = "xoxb-test"
	cfg.Slack.ReviewChannel = "C111"
	cfg.Slack.ImageChannel = "C222"
	return cfg
}

func TestValidateAcceptsFilledDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Slack.Token = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"unknown mode", "slack: token", "redis: addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateApechainRequiresKeySource(t *testing.T) {
	cfg := validConfig()
	cfg.Apechain.Enabled = true
	cfg.Apechain.RPCURL = "https://rpc.apechain.com"
	cfg.Apechain.ContractAddress = "0x1234"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "private_key or encrypted_key_path") {
		t.Errorf("Validate() = %v, want missing key source error", err)
	}

	cfg.Apechain.PrivateKey = "abc123"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with raw key = %v, want nil", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CURATOR_SLACK_TOKEN", "xoxb-env")
	t.Setenv("CURATOR_DATABASE_PORT", "6543")
	t.Setenv("CURATOR_APPROVAL_TIMEOUT_HORIZON", "72h")
	t.Setenv("CURATOR_PIPELINE_ALLOWED_IMAGE_HOSTS", "a.example.com, b.example.com")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Slack.Token != "xoxb-env" {
		t.Errorf("slack token = %q", cfg.Slack.Token)
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("database port = %d", cfg.Database.Port)
	}
	if cfg.Approval.TimeoutHorizon.Duration != 72*time.Hour {
		t.Errorf("timeout horizon = %s", cfg.Approval.TimeoutHorizon)
	}
	if len(cfg.Pipeline.AllowedImageHosts) != 2 || cfg.Pipeline.AllowedImageHosts[1] != "b.example.com" {
		t.Errorf("allowed image hosts = %v", cfg.Pipeline.AllowedImageHosts)
	}
}
