// Package config loads ~/.springs/config.toml and overlays the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/springsconnect/springs/internal/auth"
)

// Environment variables that override the active profile.
const (
	EnvAPIURL    = "SPRINGS_API_URL"
	EnvSocketURL = "SPRINGS_SOCKET_URL"
	EnvToken     = "SPRINGS_TOKEN"
	EnvUserID    = "SPRINGS_USER_ID"
)

// Defaults applied to unset profile fields.
const (
	DefaultTypingInterval = time.Second
	DefaultTypingLinger   = 2 * time.Second
	DefaultReadThrottle   = 500 * time.Millisecond
	DefaultRecordingLimit = 60 * time.Second
	DefaultFetchTimeout   = 15 * time.Second
)

// ErrNoToken is returned by Validate when the profile has no bearer token.
var ErrNoToken = errors.New("no token configured")

// Config represents the global ~/.springs/config.toml.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles,omitempty"`
}

// Profile holds the settings of one account.
type Profile struct {
	APIURL         string            `toml:"api_url"`
	SocketURL      string            `toml:"socket_url,omitempty"`
	Token          string            `toml:"token"`
	UserID         string            `toml:"user_id,omitempty"`
	TypingInterval Duration          `toml:"typing_interval,omitempty"`
	TypingLinger   Duration          `toml:"typing_linger,omitempty"`
	ReadThrottle   Duration          `toml:"read_throttle,omitempty"`
	RecordingLimit Duration          `toml:"recording_limit,omitempty"`
	FetchTimeout   Duration          `toml:"fetch_timeout,omitempty"`
	SentCueCommand string            `toml:"sent_cue_command,omitempty"`
	Recorder       map[string]string `toml:"recorder,omitempty"`
}

// Duration is a time.Duration written as "500ms" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Profile returns the named profile with defaults applied. A missing
// profile yields a profile made of defaults only.
func (c *Config) Profile(name string) Profile {
	var p Profile
	if c != nil {
		p = c.Profiles[name]
	}
	p.applyDefaults()
	return p
}

// LoadProfile reads the named profile from path, then overlays dotenv files
// and the process environment. A missing config file is not an error.
func LoadProfile(path, name string, envFiles ...string) (Profile, error) {
	cfg, err := Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Profile{}, fmt.Errorf("load config: %w", err)
	}
	p := cfg.Profile(name)

	// Load never overrides variables already set in the process.
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Profile{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	p.overlayEnv()

	if p.UserID == "" && p.Token != "" {
		id, err := auth.UserID(p.Token)
		if err != nil {
			return Profile{}, fmt.Errorf("derive user id: %w", err)
		}
		p.UserID = id
	}
	return p, nil
}

// Validate reports missing settings the daemon cannot run without.
func (p Profile) Validate() error {
	if p.APIURL == "" {
		return fmt.Errorf("no api_url configured (set it in config.toml or %s)", EnvAPIURL)
	}
	if p.Token == "" {
		return ErrNoToken
	}
	if p.UserID == "" {
		return errors.New("no user id: set user_id or use a token carrying one")
	}
	return nil
}

// SocketEndpoint returns the Socket.IO base URL, falling back to the API URL.
func (p Profile) SocketEndpoint() string {
	if p.SocketURL != "" {
		return p.SocketURL
	}
	return p.APIURL
}

func (p *Profile) applyDefaults() {
	setDefault(&p.TypingInterval, DefaultTypingInterval)
	setDefault(&p.TypingLinger, DefaultTypingLinger)
	setDefault(&p.ReadThrottle, DefaultReadThrottle)
	setDefault(&p.RecordingLimit, DefaultRecordingLimit)
	setDefault(&p.FetchTimeout, DefaultFetchTimeout)
}

func (p *Profile) overlayEnv() {
	for env, dst := range map[string]*string{
		EnvAPIURL:    &p.APIURL,
		EnvSocketURL: &p.SocketURL,
		EnvToken:     &p.Token,
		EnvUserID:    &p.UserID,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func setDefault(d *Duration, v time.Duration) {
	if d.Duration <= 0 {
		d.Duration = v
	}
}
