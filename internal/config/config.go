// Package config centralizes runtime configuration for sgr. Values come
// from, in increasing precedence: built-in defaults, an optional config file
// (--config or the CONFIG_FILE env var), SGR_-prefixed environment variables
// and command line flags. A .env file in the working directory is loaded
// into the environment first so local development needs no exports.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"socialgraph.relay/sgr/internal/ledger"
)

const (
	EnvPrefix = "SGR"

	LedgerSolana = "solana"
	LedgerMemory = "memory"
)

// Config holds configurable options for the sgr service.
type Config struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	AdminAddr      string   `mapstructure:"admin_addr"` // empty disables the operator listener
	DatabaseFile   string   `mapstructure:"database_file"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
	MaxBackups     int      `mapstructure:"max_backups"`

	Ledger          string        `mapstructure:"ledger"`
	RPCURL          string        `mapstructure:"rpc_url"`
	ProgramID       string        `mapstructure:"program_id"`
	Commitment      string        `mapstructure:"commitment"`
	FinalityTimeout time.Duration `mapstructure:"finality_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`

	LogLevel   string `mapstructure:"log_level"`
	LogConsole bool   `mapstructure:"log_console"`
	LogBuffer  int    `mapstructure:"log_buffer"`

	RequireCredentialForPosts bool `mapstructure:"require_credential_for_posts"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:      ":5001",
		DatabaseFile:    "socialgraph.db",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimit:       10,
		RateBurst:       20,
		MaxBackups:      20,
		Ledger:          LedgerSolana,
		RPCURL:          "https://api.devnet.solana.com",
		Commitment:      "finalized",
		FinalityTimeout: 60 * time.Second,
		PollInterval:    2 * time.Second,
		LogLevel:        "info",
		LogBuffer:       200,
	}
}

// SetDefaults registers every key with v. Keys unknown to v are not read
// from the environment, so this must run before Load.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("admin_addr", d.AdminAddr)
	v.SetDefault("database_file", d.DatabaseFile)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_burst", d.RateBurst)
	v.SetDefault("max_backups", d.MaxBackups)
	v.SetDefault("ledger", d.Ledger)
	v.SetDefault("rpc_url", d.RPCURL)
	v.SetDefault("program_id", d.ProgramID)
	v.SetDefault("commitment", d.Commitment)
	v.SetDefault("finality_timeout", d.FinalityTimeout)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_console", d.LogConsole)
	v.SetDefault("log_buffer", d.LogBuffer)
	v.SetDefault("require_credential_for_posts", d.RequireCredentialForPosts)
}

// LoadDotEnv loads path (".env" when empty) into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the optional config file and the environment into a Config.
// When path is empty CONFIG_FILE is consulted; a missing file leaves the
// defaults in place, a malformed one is an error.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.AllowedOrigins = splitList(c.AllowedOrigins)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects values the service cannot start with.
func (c Config) Validate() error {
	switch c.Ledger {
	case LedgerSolana:
		if c.RPCURL == "" {
			return errors.New("rpc_url is required for the solana ledger")
		}
	case LedgerMemory:
	default:
		return fmt.Errorf("ledger must be %q or %q, got %q", LedgerSolana, LedgerMemory, c.Ledger)
	}
	if _, err := ledger.ParseCommitment(c.Commitment); err != nil {
		return err
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.FinalityTimeout <= 0 {
		return errors.New("finality_timeout must be positive")
	}
	if c.PollInterval <= 0 || c.PollInterval >= c.FinalityTimeout {
		return fmt.Errorf("poll_interval must be positive and below finality_timeout (%s)", c.FinalityTimeout)
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must not be negative")
	}
	if c.AdminAddr != "" && c.AdminAddr == c.ListenAddr {
		return errors.New("admin_addr must differ from listen_addr")
	}
	return nil
}

// Program returns the configured program id; zero when unset.
func (c Config) Program() (solana.PublicKey, error) {
	if c.ProgramID == "" {
		return solana.PublicKey{}, nil
	}
	key, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program_id: %w", err)
	}
	return key, nil
}

// CommitmentState returns the parsed commitment level.
func (c Config) CommitmentState() ledger.State {
	s, err := ledger.ParseCommitment(c.Commitment)
	if err != nil {
		return ledger.StateFinalized
	}
	return s
}

// splitList accepts both list values and a single comma separated string,
// which is how a list arrives from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
