package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Credentials CredentialsConfig `toml:"credentials"`
	Providers   ProvidersConfig   `toml:"providers"`
	Retry       RetryConfig       `toml:"retry"`
	Policy      PolicyConfig      `toml:"policy"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Enrichment  EnrichmentConfig  `toml:"enrichment"`
}

// LogConfig controls logger verbosity.
type LogConfig struct {
	Level string `toml:"level"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyCredentials `toml:"spotify"`
}

// SpotifyCredentials are the client-credentials pair for the streaming catalog.
type SpotifyCredentials struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
}

// Map returns the credentials in the map form accepted by the service constructors.
func (c SpotifyCredentials) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"token_url":     c.TokenURL,
	}
}

// ProvidersConfig groups the upstream metadata providers.
type ProvidersConfig struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
	CoverArt    CoverArtConfig    `toml:"coverart"`
}

// SpotifyConfig describes the streaming catalog endpoints.
type SpotifyConfig struct {
	BaseURL           string   `toml:"base_url"`
	Country           string   `toml:"country"`
	TopTracksPlaylist string   `toml:"top_tracks_playlist"`
	Timeout           Duration `toml:"timeout"`
}

// MusicBrainzConfig describes the community metadata database.
type MusicBrainzConfig struct {
	BaseURL      string   `toml:"base_url"`
	UserAgent    string   `toml:"user_agent"`
	Query        string   `toml:"query"`
	RateInterval Duration `toml:"rate_interval"`
	Timeout      Duration `toml:"timeout"`
}

// CoverArtConfig describes the cover art archive.
type CoverArtConfig struct {
	BaseURL string   `toml:"base_url"`
	Entity  string   `toml:"entity"` // "release-group" or "release"
	Timeout Duration `toml:"timeout"`
}

// RetryConfig bounds retries against providers.
type RetryConfig struct {
	MaxRetries      int      `toml:"max_retries"`
	InitialInterval Duration `toml:"initial_interval"`
	MaxInterval     Duration `toml:"max_interval"`
}

// PolicyConfig holds the release-group inclusion lists.
type PolicyConfig struct {
	AllowPrimary  []string `toml:"allow_primary"`
	DenySecondary []string `toml:"deny_secondary"`
}

// PipelineConfig controls the ingest job.
type PipelineConfig struct {
	Strategies       []string `toml:"strategies"`
	NewReleasesLimit int      `toml:"new_releases_limit"`
	TopTracksLimit   int      `toml:"top_tracks_limit"`
	FeaturedLimit    int      `toml:"featured_limit"`
	MusicBrainzLimit int      `toml:"musicbrainz_limit"`
	WithRecordings   bool     `toml:"with_recordings"`
	FetchConcurrency int      `toml:"fetch_concurrency"`
	LockPath         string   `toml:"lock_path"`
	ScheduleInterval Duration `toml:"schedule_interval"`
}

// EnrichmentConfig controls the cover art pass.
type EnrichmentConfig struct {
	Enabled       bool     `toml:"enabled"`
	Delay         Duration `toml:"delay"`
	Timeout       Duration `toml:"timeout"`
	BatchLimit    int      `toml:"batch_limit"`
	ProgressEvery int      `toml:"progress_every"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the manual trigger.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	TriggerToken string `toml:"trigger_token"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Duration wraps [time.Duration] so it can be written as "1s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Database.Path) == "" {
		problems = append(problems, "database.path is required")
	}
	if len(c.Policy.AllowPrimary) == 0 {
		problems = append(problems, "policy.allow_primary must list at least one type")
	}
	if c.Pipeline.FetchConcurrency < 0 {
		problems = append(problems, "pipeline.fetch_concurrency must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries must not be negative")
	}
	switch c.Providers.CoverArt.Entity {
	case "", "release", "release-group":
	default:
		problems = append(problems, fmt.Sprintf("providers.coverart.entity %q must be release or release-group", c.Providers.CoverArt.Entity))
	}
	for _, name := range c.Pipeline.Strategies {
		if !IsKnownStrategy(name) {
			problems = append(problems, fmt.Sprintf("pipeline.strategies: unknown strategy %q", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Strategy names understood by the pipeline, in run order.
const (
	StrategyNewReleases         = "new-releases"
	StrategyTopTracks           = "top-tracks"
	StrategyFeaturedCollections = "featured-collections"
	StrategyMusicBrainz         = "musicbrainz"
)

// StrategyOrder is the fixed order strategies execute in.
var StrategyOrder = []string{
	StrategyNewReleases,
	StrategyTopTracks,
	StrategyFeaturedCollections,
	StrategyMusicBrainz,
}

// IsKnownStrategy reports whether name is a strategy the pipeline can run.
func IsKnownStrategy(name string) bool {
	for _, s := range StrategyOrder {
		if s == name {
			return true
		}
	}
	return false
}
