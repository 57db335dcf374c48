package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Timezone  string    `yaml:"timezone"`
	Calendar  Calendar  `yaml:"calendar"`
	Catalog   Catalog   `yaml:"catalog"`
	History   History   `yaml:"history"`
	Podcasts  Podcasts  `yaml:"podcasts"`
	Discord   Discord   `yaml:"discord"`
	Synthesis Synthesis `yaml:"synthesis"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Calendar struct {
	CalendarID string `yaml:"calendar_id"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

type Catalog struct {
	APIKeyEnv    string  `yaml:"api_key_env"`
	MaxResults   int     `yaml:"max_results"`
	MinRating    float64 `yaml:"min_rating"`
	FetchDetails bool    `yaml:"fetch_details"`
}

type History struct {
	UserID          string `yaml:"user_id"`
	SessionTokenEnv string `yaml:"session_token_env"`
	Depth           string `yaml:"depth"`
}

type Podcasts struct {
	ClientIDEnv          string      `yaml:"client_id_env"`
	ClientSecretEnv      string      `yaml:"client_secret_env"`
	RefreshTokenEnv      string      `yaml:"refresh_token_env"`
	EpisodesPerShow      int         `yaml:"episodes_per_show"`
	MaxEpisodeCandidates int         `yaml:"max_episode_candidates"`
	Depth                string      `yaml:"depth"`
	ExtraFeeds           []ExtraFeed `yaml:"extra_feeds"`
}

type ExtraFeed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Discord struct {
	BotTokenEnv    string   `yaml:"bot_token_env"`
	ChannelIDEnv   string   `yaml:"channel_id_env"`
	DaysBack       int      `yaml:"days_back"`
	ReactionEmojis []string `yaml:"reaction_emojis"`
}

type Synthesis struct {
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	OllamaURL          string `yaml:"ollama_url"`
	OpenAIModel        string `yaml:"openai_model"`
	APIKeyEnv          string `yaml:"api_key_env"`
	MaxTokens          int    `yaml:"max_tokens"`
	TopRecommendations int    `yaml:"top_recommendations"`
	MinFreeTimeMinutes int    `yaml:"min_free_time_minutes"`
	PlanningDayStartHr int    `yaml:"planning_day_start_hour"`
	PlanningDayEndHr   int    `yaml:"planning_day_end_hour"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for couchpilot.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "couchpilot")
}

// DataDir returns the XDG data directory for couchpilot.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "couchpilot")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/couchpilot/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'couchpilot init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Timezone: "Europe/Berlin",
		Calendar: Calendar{
			APIKeyEnv: "GOOGLE_CALENDAR_API_KEY",
		},
		Catalog: Catalog{
			APIKeyEnv:    "TMDB_API_KEY",
			MaxResults:   20,
			MinRating:    6.0,
			FetchDetails: true,
		},
		History: History{
			SessionTokenEnv: "TMDB_SESSION_TOKEN",
			Depth:           "comprehensive",
		},
		Podcasts: Podcasts{
			ClientIDEnv:          "SPOTIFY_CLIENT_ID",
			ClientSecretEnv:      "SPOTIFY_CLIENT_SECRET",
			RefreshTokenEnv:      "SPOTIFY_REFRESH_TOKEN",
			EpisodesPerShow:      30,
			MaxEpisodeCandidates: 30,
			Depth:                "detailed",
		},
		Discord: Discord{
			BotTokenEnv:    "DISCORD_BOT_TOKEN",
			ChannelIDEnv:   "DISCORD_CHANNEL_ID",
			DaysBack:       7,
			ReactionEmojis: []string{"👍", "👎", "✅", "❌", "⭐", "🕐"},
		},
		Synthesis: Synthesis{
			Provider:           "ollama",
			Model:              "qwen2.5:7b",
			OllamaURL:          "http://localhost:11434",
			OpenAIModel:        "gpt-4o-mini",
			APIKeyEnv:          "OPENAI_API_KEY",
			MaxTokens:          1024,
			TopRecommendations: 6,
			MinFreeTimeMinutes: 10,
			PlanningDayStartHr: 8,
			PlanningDayEndHr:   24,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
