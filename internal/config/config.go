package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Config models taskjama.yml.
type Config struct {
	Economy struct {
		InitialPoints int `yaml:"initial_points"`
		TaskGain      int `yaml:"task_gain"`
		JamaCost      int `yaml:"jama_cost"`
	} `yaml:"economy"`
	Mojibake struct {
		Palette     string  `yaml:"palette"`
		Placeholder string  `yaml:"placeholder"`
		Fraction    float64 `yaml:"fraction_per_disruption"`
		MaxCount    int     `yaml:"max_disruptions"`
	} `yaml:"mojibake"`
	Battle struct {
		DurationSeconds int `yaml:"duration_seconds"`
		PenaltySeconds  int `yaml:"penalty_seconds"`
	} `yaml:"battle"`
	Commentary struct {
		BaseURL           string `yaml:"base_url"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
		CriticismFallback string `yaml:"criticism_fallback"`
		InciteFallback    string `yaml:"incite_fallback"`
	} `yaml:"commentary"`
	Payment struct {
		Link string `yaml:"link"`
	} `yaml:"payment"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Economy.InitialPoints < 0 {
		return fmt.Errorf("economy.initial_points must be >= 0")
	}
	if c.Economy.TaskGain <= 0 {
		return fmt.Errorf("economy.task_gain must be > 0")
	}
	if c.Economy.JamaCost <= 0 {
		return fmt.Errorf("economy.jama_cost must be > 0")
	}
	if utf8.RuneCountInString(c.Mojibake.Palette) == 0 {
		return fmt.Errorf("mojibake.palette is required")
	}
	if c.Mojibake.Placeholder == "" {
		return fmt.Errorf("mojibake.placeholder is required")
	}
	if c.Mojibake.Fraction <= 0 || c.Mojibake.Fraction > 1 {
		return fmt.Errorf("mojibake.fraction_per_disruption must be in (0,1]")
	}
	if c.Mojibake.MaxCount <= 0 {
		return fmt.Errorf("mojibake.max_disruptions must be > 0")
	}
	if c.Battle.DurationSeconds <= 0 {
		return fmt.Errorf("battle.duration_seconds must be > 0")
	}
	if c.Battle.PenaltySeconds <= 0 {
		return fmt.Errorf("battle.penalty_seconds must be > 0")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}

// BattleDuration is the length of a battle round.
func (c *Config) BattleDuration() time.Duration {
	return time.Duration(c.Battle.DurationSeconds) * time.Second
}

// PenaltyDuration is how long a jama penalty stays active in a battle.
func (c *Config) PenaltyDuration() time.Duration {
	return time.Duration(c.Battle.PenaltySeconds) * time.Second
}

// CommentaryTimeout bounds a single AI commentary request.
func (c *Config) CommentaryTimeout() time.Duration {
	if c.Commentary.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Commentary.TimeoutSeconds) * time.Second
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskjama.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tj config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the workspace config, or defaults when the file does not exist.
func LoadOrDefault(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `economy:
  initial_points: 100
  task_gain: 10
  jama_cost: 50

mojibake:
  palette: "†‡§¶•¢£¤¥¦§¨©ª«®¯°±²³´µ¶·¸¹º»¼½¾¿€ÆÇÐÑÞßæçðñþ£¥€¿¡™©®¢µ¶•"
  placeholder: "??????????"
  fraction_per_disruption: 0.33
  max_disruptions: 3

battle:
  duration_seconds: 30
  penalty_seconds: 5

commentary:
  base_url: ""
  timeout_seconds: 10
  criticism_fallback: "そんなことやってんの？もっと大事なことあんじゃない？"
  incite_fallback: "その程度の活動で満足なの？もっとやれよ！"

payment:
  link: ""

webhooks: []
`
