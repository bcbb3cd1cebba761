// Package cli implements the sgr command line: the relay server and a
// reference client that builds and signs program transactions locally.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"socialgraph.relay/sgr/internal/config"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"listen":       "listen_addr",
	"admin-listen": "admin_addr",
	"db":           "database_file",
	"ledger":       "ledger",
	"rpc-url":      "rpc_url",
	"program-id":   "program_id",
	"commitment":   "commitment",
	"log-level":    "log_level",
	"log-console":  "log_console",
	"require-cred": "require_credential_for_posts",
}

type app struct {
	v       *viper.Viper
	cfg     config.Config
	cfgFile string
	envFile string
}

// NewRootCommand builds the sgr command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "sgr",
		Short:         "Social graph relay: ledger-confirmed profiles and friendships",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd.Flags())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml); defaults to $CONFIG_FILE")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("rpc-url", "", "Solana RPC endpoint")
	root.PersistentFlags().String("program-id", "", "social graph program id")

	root.AddCommand(
		newServeCommand(a),
		newKeygenCommand(),
		newTxCommand(a),
		newCredentialCommand(a),
		newBackupCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) load(flags *pflag.FlagSet) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
