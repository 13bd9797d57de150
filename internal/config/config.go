// Package config loads and saves the lakecross configuration file.
//
// Values come from the YAML file first, then from LAKECROSS_* environment variables, and the
// result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/divijg19/lakecross/internal/hint"
	"github.com/divijg19/lakecross/internal/puzzle"
)

const (
	DefaultNarrationInterval = 5 * time.Second
	DefaultCacheTTL          = 30 * 24 * time.Hour
	DefaultFetchTimeout      = 10 * time.Second
	DefaultSpeechTimeout     = 30 * time.Second
	DefaultServerAddr        = "127.0.0.1:8080"
)

type Config struct {
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Rules     RulesConfig     `yaml:"rules" envPrefix:"RULES_"`
	Hints     HintsConfig     `yaml:"hints" envPrefix:"HINTS_"`
	Narration NarrationConfig `yaml:"narration" envPrefix:"NARRATION_"`
	Speech    SpeechConfig    `yaml:"speech" envPrefix:"SPEECH_"`
	Cloud     CloudConfig     `yaml:"cloud" envPrefix:"CLOUD_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Editor    string          `yaml:"editor,omitempty" env:"EDITOR"`
}

type StoreConfig struct {
	// Path of the SQLite database. Empty means the XDG data directory.
	Path string `yaml:"path,omitempty" env:"PATH"`
}

type RulesConfig struct {
	Units            int `yaml:"units" env:"UNITS" validate:"gte=1"`
	Capacity         int `yaml:"capacity" env:"CAPACITY" validate:"gte=1"`
	OptimalCrossings int `yaml:"optimal_crossings" env:"OPTIMAL_CROSSINGS" validate:"gte=1"`
}

type HintsConfig struct {
	// APIKey falls back to OPENAI_API_KEY. Without a key only the precomputed table answers.
	APIKey        string `yaml:"api_key,omitempty" env:"API_KEY"`
	Model         string `yaml:"model,omitempty" env:"MODEL"`
	BaseURL       string `yaml:"base_url,omitempty" env:"BASE_URL" validate:"omitempty,url"`
	CacheDir      string `yaml:"cache_dir,omitempty" env:"CACHE_DIR"`
	CacheTTL      string `yaml:"cache_ttl,omitempty" env:"CACHE_TTL" validate:"omitempty,duration"`
	RetryInitial  string `yaml:"retry_initial,omitempty" env:"RETRY_INITIAL" validate:"omitempty,duration"`
	RetryMax      string `yaml:"retry_max,omitempty" env:"RETRY_MAX" validate:"omitempty,duration"`
	RetryDeadline string `yaml:"retry_deadline,omitempty" env:"RETRY_DEADLINE" validate:"omitempty,duration"`
}

type NarrationConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Interval string `yaml:"interval,omitempty" env:"INTERVAL" validate:"omitempty,duration"`
}

type SpeechConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Voice   string `yaml:"voice,omitempty" env:"VOICE"`
	// Player is the command that plays an mp3 file, e.g. "mpg123 -q".
	Player  string `yaml:"player,omitempty" env:"PLAYER"`
	Timeout string `yaml:"timeout,omitempty" env:"TIMEOUT" validate:"omitempty,duration"`
}

type CloudConfig struct {
	Bucket          string `yaml:"bucket,omitempty" env:"BUCKET"`
	Object          string `yaml:"object,omitempty" env:"OBJECT"`
	CredentialsFile string `yaml:"credentials_file,omitempty" env:"CREDENTIALS_FILE"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr,omitempty" env:"ADDR" validate:"omitempty,hostname_port"`
	FetchTimeout string `yaml:"fetch_timeout,omitempty" env:"FETCH_TIMEOUT" validate:"omitempty,duration"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" env:"FORMAT" validate:"omitempty,oneof=text json"`
}

type secrets struct {
	OpenAIKey string `env:"OPENAI_API_KEY"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	rules := puzzle.DefaultRules()
	return Config{
		Rules: RulesConfig{
			Units:            rules.Units,
			Capacity:         rules.Capacity,
			OptimalCrossings: rules.OptimalCrossings,
		},
		Hints: HintsConfig{
			CacheTTL: DefaultCacheTTL.String(),
		},
		Narration: NarrationConfig{Interval: DefaultNarrationInterval.String()},
		Speech:    SpeechConfig{Voice: "alloy", Timeout: DefaultSpeechTimeout.String()},
		Cloud:     CloudConfig{Object: "lakecross/sessions.ndjson"},
		Server:    ServerConfig{Addr: DefaultServerAddr, FetchTimeout: DefaultFetchTimeout.String()},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// ConfigPath returns $XDG_CONFIG_HOME/lakecross/config.yaml, falling back to ~/.config.
func ConfigPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); dir != "" {
		return filepath.Join(dir, "lakecross", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home dir: %w", err)
	}
	return filepath.Join(home, ".config", "lakecross", "config.yaml"), nil
}

// Load reads the file at path (ConfigPath when empty), applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "LAKECROSS_"}); err != nil {
		return cfg, fmt.Errorf("config: env: %w", err)
	}
	if cfg.Hints.APIKey == "" {
		var s secrets
		if err := env.Parse(&s); err != nil {
			return cfg, fmt.Errorf("config: env: %w", err)
		}
		cfg.Hints.APIKey = s.OpenAIKey
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadFile reads the file alone, without environment overrides. Edits go through ReadFile
// so that Save never persists values that only came from the environment.
func ReadFile(path string) (Config, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return Default(), err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Default(), fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Default(), fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// Save validates cfg and writes it to path (ConfigPath when empty).
func Save(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks field constraints and that the rules describe a playable puzzle.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if err := EngineRules(cfg).Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func EngineRules(cfg Config) puzzle.Rules {
	return puzzle.Rules{
		Units:            cfg.Rules.Units,
		Capacity:         cfg.Rules.Capacity,
		OptimalCrossings: cfg.Rules.OptimalCrossings,
	}
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// NarrationInterval is the minimum spacing between narrations. Zero disables the throttle.
func NarrationInterval(cfg Config) time.Duration {
	return durationOr(cfg.Narration.Interval, DefaultNarrationInterval)
}

func CacheTTL(cfg Config) time.Duration { return durationOr(cfg.Hints.CacheTTL, DefaultCacheTTL) }

func FetchTimeout(cfg Config) time.Duration {
	return durationOr(cfg.Server.FetchTimeout, DefaultFetchTimeout)
}

func SpeechTimeout(cfg Config) time.Duration {
	return durationOr(cfg.Speech.Timeout, DefaultSpeechTimeout)
}

// Retry returns the generator retry policy with the configured overrides applied.
func Retry(cfg Config) hint.RetryConfig {
	rc := hint.DefaultRetryConfig()
	rc.InitialBackoff = durationOr(cfg.Hints.RetryInitial, rc.InitialBackoff)
	rc.MaxBackoff = durationOr(cfg.Hints.RetryMax, rc.MaxBackoff)
	rc.Deadline = durationOr(cfg.Hints.RetryDeadline, rc.Deadline)
	return rc
}

// Set assigns value to the dotted key (e.g. "rules.units") and returns the updated config.
// The value is parsed as YAML, so numbers and booleans keep their types.
func Set(cfg Config, key, value string) (Config, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return cfg, err
	}

	parts := strings.Split(strings.TrimSpace(key), ".")
	node := tree
	for i, part := range parts {
		if i == len(parts)-1 {
			if _, ok := node[part]; !ok && !knownKey(key) {
				return cfg, fmt.Errorf("config: unknown key %s", key)
			}
			var parsed any
			if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
				parsed = value
			}
			node[part] = parsed
			break
		}
		child, ok := node[part].(map[string]any)
		if !ok {
			return cfg, fmt.Errorf("config: unknown key %s", key)
		}
		node = child
	}

	data, err := yaml.Marshal(tree)
	if err != nil {
		return cfg, fmt.Errorf("config: marshal: %w", err)
	}
	var next Config
	if err := yaml.Unmarshal(data, &next); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", key, err)
	}
	if err := Validate(next); err != nil {
		return cfg, err
	}
	return next, nil
}

// Entry is one flattened key for display.
type Entry struct {
	Key   string
	Value string
}

// Entries flattens cfg into sorted dotted keys. The API key is masked.
func Entries(cfg Config) ([]Entry, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	var out []Entry
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			val := fmt.Sprint(v)
			if key == "hints.api_key" && val != "" {
				val = "(set)"
			}
			out = append(out, Entry{Key: key, Value: val})
		}
	}
	walk("", tree)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func toTree(cfg Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	tree := map[string]any{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return tree, nil
}

// knownKey accepts omitempty keys that are absent from the marshalled tree.
func knownKey(key string) bool {
	switch key {
	case "editor", "store.path",
		"hints.api_key", "hints.model", "hints.base_url", "hints.cache_dir", "hints.cache_ttl",
		"hints.retry_initial", "hints.retry_max", "hints.retry_deadline",
		"narration.interval",
		"speech.voice", "speech.player", "speech.timeout",
		"cloud.bucket", "cloud.object", "cloud.credentials_file",
		"server.addr", "server.fetch_timeout",
		"log.level", "log.format":
		return true
	}
	return false
}
