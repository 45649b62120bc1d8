package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./crate.db" {
			t.Errorf("expected database path ./crate.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}
		if config.Providers.Spotify.BaseURL != "https://api.spotify.com/v1" {
			t.Errorf("unexpected spotify base URL %s", config.Providers.Spotify.BaseURL)
		}
		if config.Enrichment.Delay.Duration != time.Second {
			t.Errorf("expected enrichment delay 1s, got %v", config.Enrichment.Delay.Duration)
		}
		if config.Retry.InitialInterval.Duration != 500*time.Millisecond {
			t.Errorf("expected retry initial interval 500ms, got %v", config.Retry.InitialInterval.Duration)
		}
		if len(config.Pipeline.Strategies) != 3 {
			t.Errorf("expected 3 default strategies, got %v", config.Pipeline.Strategies)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[database]
path = "/custom/path.db"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[policy]
allow_primary = ["Album"]
deny_secondary = ["Live"]

[enrichment]
delay = "250ms"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if len(config.Policy.AllowPrimary) != 1 || config.Policy.AllowPrimary[0] != "Album" {
			t.Errorf("expected allow list [Album], got %v", config.Policy.AllowPrimary)
		}
		if config.Enrichment.Delay.Duration != 250*time.Millisecond {
			t.Errorf("expected delay 250ms, got %v", config.Enrichment.Delay.Duration)
		}
		if config.Server.Port != 3000 {
			t.Errorf("unset values should keep defaults, got port %d", config.Server.Port)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tt := []struct {
			name string
			body string
		}{
			{name: "bad duration", body: "[enrichment]\ndelay = \"soon\"\n"},
			{name: "unknown strategy", body: "[pipeline]\nstrategies = [\"everything\"]\n"},
			{name: "bad coverart entity", body: "[providers.coverart]\nentity = \"recording\"\n"},
			{name: "empty allow list", body: "[policy]\nallow_primary = []\n"},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tc.body), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				if _, err := LoadConfig(configPath); err == nil {
					t.Error("expected an error")
				} else if tc.name != "bad duration" && !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("SaveConfig round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Server.TriggerToken = "secret"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Server.TriggerToken != "secret" {
			t.Errorf("expected trigger token to survive save, got %q", loaded.Server.TriggerToken)
		}
		if loaded.Pipeline.ScheduleInterval.Duration != 24*time.Hour {
			t.Errorf("expected schedule interval 24h, got %v", loaded.Pipeline.ScheduleInterval.Duration)
		}
	})
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")

	t.Run("CredentialError", func(t *testing.T) {
		err := error(&CredentialError{Provider: "spotify", Err: cause})
		if !errors.Is(err, ErrCredential) || !errors.Is(err, cause) {
			t.Errorf("CredentialError should match sentinel and cause: %v", err)
		}
		if !IsCredentialError(err) {
			t.Error("IsCredentialError should report true")
		}
	})

	t.Run("FetchError", func(t *testing.T) {
		err := error(&FetchError{Provider: "coverart", URL: "/x", Status: 404, Err: ErrNotFound})
		if !errors.Is(err, ErrAPIRequest) || !errors.Is(err, ErrNotFound) {
			t.Errorf("FetchError should match sentinel and cause: %v", err)
		}
	})

	t.Run("WriteError", func(t *testing.T) {
		err := error(&WriteError{Entity: "album", Key: "a1", Err: cause})
		if !errors.Is(err, ErrWrite) {
			t.Errorf("WriteError should match ErrWrite: %v", err)
		}
	})
}
