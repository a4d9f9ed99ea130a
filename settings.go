package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds runtime preferences. Schedules live in their own YAML file;
// these values control how the tool runs and presents results.
type Settings struct {
	Addr           string   `mapstructure:"addr"`
	LogLevel       string   `mapstructure:"log_level"`
	Stage          string   `mapstructure:"stage"`
	DefaultYear    string   `mapstructure:"default_year"`
	SchedulesFile  string   `mapstructure:"schedules_file"`
	CurrencySymbol string   `mapstructure:"currency_symbol"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// envPrefix is prepended to every settings key when read from the environment
const envPrefix = "TAXCALC"

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(filename string) error {
	if err := godotenv.Load(filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	return nil
}

// LoadSettings reads settings from file and env. Env var overrides use prefix TAXCALC_.
// An empty filename looks for settings.yaml in the working directory.
func LoadSettings(filename string) (Settings, error) {
	v := viper.New()

	// default values
	v.SetDefault("addr", "localhost:0")
	v.SetDefault("log_level", "info")
	v.SetDefault("stage", "dev")
	v.SetDefault("default_year", "")
	v.SetDefault("schedules_file", "schedules.yaml")
	v.SetDefault("currency_symbol", "$")
	// Empty allows any origin on the JSON API
	v.SetDefault("cors_origins", []string{})

	v.SetConfigType("yaml")
	if filename != "" {
		// A named file that does not exist leaves the defaults in place
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("settings")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}

	origins := make([]string, 0, len(s.CORSOrigins))
	for _, origin := range s.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	s.CORSOrigins = origins
	// cors.New panics on a bad origin, so reject it here
	if err := newCORSConfig(s.CORSOrigins).Validate(); err != nil {
		return Settings{}, fmt.Errorf("cors_origins %q: %w", s.CORSOrigins, err)
	}
	return s, nil
}
