package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph.relay/sgr/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Empty(t, c.AdminAddr, "operator listener is off unless configured")
	assert.Equal(t, ledger.StateFinalized, c.CommitmentState())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":8080"
ledger: memory
commitment: confirmed
finality_timeout: 5s
poll_interval: 250ms
allowed_origins:
  - https://app.example
`), 0o600))

	t.Setenv("SGR_LISTEN_ADDR", ":9090")
	t.Setenv("SGR_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SGR_REQUIRE_CREDENTIAL_FOR_POSTS", "true")
	t.Setenv("SGR_ADMIN_ADDR", "127.0.0.1:5002")

	c, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.ListenAddr, "env beats file")
	assert.Equal(t, LedgerMemory, c.Ledger)
	assert.Equal(t, ledger.StateConfirmed, c.CommitmentState())
	assert.Equal(t, 5*time.Second, c.FinalityTimeout)
	assert.Equal(t, 250*time.Millisecond, c.PollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.True(t, c.RequireCredentialForPosts)
	assert.Equal(t, "127.0.0.1:5002", c.AdminAddr)
}

func TestLoadConfigFileEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"database_file": "/var/lib/sgr/graph.db"}`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sgr/graph.db", c.DatabaseFile)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":5001", c.ListenAddr)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ledger": `), 0o600))

	_, err := Load(viper.New(), path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown ledger":     func(c *Config) { c.Ledger = "ethereum" },
		"missing rpc":        func(c *Config) { c.RPCURL = "" },
		"bad commitment":     func(c *Config) { c.Commitment = "eventually" },
		"bad program id":     func(c *Config) { c.ProgramID = "not-base58!" },
		"zero finality":      func(c *Config) { c.FinalityTimeout = 0 },
		"poll above timeout": func(c *Config) { c.PollInterval = 2 * c.FinalityTimeout },
		"negative rate":      func(c *Config) { c.RateLimit = -1 },
		"admin on public":    func(c *Config) { c.AdminAddr = c.ListenAddr },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	c.Ledger = LedgerMemory
	c.RPCURL = ""
	assert.NoError(t, c.Validate(), "the memory ledger needs no rpc_url")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SGR_TEST_DOTENV_VALUE=from-dotenv\n"), 0o600))
	t.Setenv("SGR_TEST_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("SGR_TEST_DOTENV_VALUE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("SGR_TEST_DOTENV_VALUE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
