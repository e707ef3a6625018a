package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read when neither --config nor DQSYNC_CONFIG is set.
const DefaultConfigFile = "config.yaml"

// Config holds the global command settings. The integration settings live
// in the file named by ConfigFile.
type Config struct {
	ConfigFile string

	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// LogLevel is the --log-level flag; EnvLogLevel is LOG_LEVEL.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig reads .env files and DQSYNC_* environment variables.
// Flags applied later by UpdateFromFlags take precedence.
func LoadConfig() *Config {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix("dqsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("config", DefaultConfigFile)
	v.SetDefault("format", "")

	return &Config{
		ConfigFile:  v.GetString("config"),
		Format:      v.GetString("format"),
		NoColor:     os.Getenv("NO_COLOR") != "",
		EnvLogLevel: os.Getenv("LOG_LEVEL"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput:   getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}
}

// UpdateFromFlags applies parsed flag values over the environment.
func (c *Config) UpdateFromFlags(configFile string, verbose, quiet, noColor bool, format, logLevel string) {
	if configFile != "" {
		c.ConfigFile = configFile
	}
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	c.LogLevel = logLevel
}

// loadEnvFiles loads .env and then .env.local. Variables already set in the
// environment are never overwritten.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
