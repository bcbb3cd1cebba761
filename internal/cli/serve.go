package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"socialgraph.relay/sgr/internal/api"
	"socialgraph.relay/sgr/internal/config"
	"socialgraph.relay/sgr/internal/docs"
	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/ledger"
	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/metrics"
	"socialgraph.relay/sgr/internal/program"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/social"
	"socialgraph.relay/sgr/internal/store"
	"socialgraph.relay/sgr/internal/types"
	"socialgraph.relay/sgr/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().String("listen", ":5001", "address to listen on")
	cmd.Flags().String("admin-listen", "", "operator listener for backups, e.g. 127.0.0.1:5002; off when empty")
	cmd.Flags().String("db", "socialgraph.db", "SQLite database file")
	cmd.Flags().String("ledger", config.LedgerSolana, "ledger backend: solana or memory")
	cmd.Flags().String("commitment", "finalized", "commitment a transaction must reach")
	cmd.Flags().Bool("log-console", false, "human-readable log output")
	cmd.Flags().Bool("require-cred", false, "require the credential flag to post")
	return cmd
}

// newLedger builds the configured ledger client.
func newLedger(cfg config.Config, programID solana.PublicKey, log zerolog.Logger) ledger.Client {
	if cfg.Ledger == config.LedgerMemory {
		log.Warn().Msg("using the in-process ledger; nothing is written to a real cluster")
		return ledger.NewMemory(programID, log)
	}
	log.Info().Str("rpc", cfg.RPCURL).Str("program", programID.String()).Msg("using Solana RPC ledger")
	return ledger.NewRPCClient(cfg.RPCURL, cfg.CommitmentState())
}

func serve(ctx context.Context, cfg config.Config) error {
	log, ring, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Buffer:  cfg.LogBuffer,
		Console: cfg.LogConsole,
		Output:  os.Stderr,
	})
	if err != nil {
		return err
	}
	log.Info().Str("version", types.Version).Msg("sgr starting")

	st, err := store.New(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	log.Info().Str("file", st.File()).Msg("store initialized")

	programID, err := cfg.Program()
	if err != nil {
		return err
	}
	if programID.IsZero() {
		programID = program.DefaultProgramID
	}

	m := metrics.New()
	client := newLedger(cfg, programID, log)
	r := relay.New(client, relay.Config{
		ProgramID:       programID,
		Commitment:      cfg.CommitmentState(),
		FinalityTimeout: cfg.FinalityTimeout,
		PollInterval:    cfg.PollInterval,
	}, relay.WithJournal(st), relay.WithMetrics(m), relay.WithLogger(log))
	defer r.Close()

	hub := events.NewHub(cfg.AllowedOrigins, m, log)
	svc := social.NewService(st, r, hub, social.Options{
		RequireCredentialForPosts: cfg.RequireCredentialForPosts,
	}, log)

	apiService := api.NewService(api.Deps{
		Social:     svc,
		Store:      st,
		Hub:        hub,
		Ledger:     client,
		Docs:       docs.NewService(),
		Activity:   ring,
		Commits:    r,
		MaxBackups: cfg.MaxBackups,
		Logger:     log,
	})

	server := web.NewServer(web.Config{
		Addr:           cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}, apiService, m, ring, log)

	serverErrors := server.Start()

	var admin *web.Server
	var adminErrors <-chan error
	if cfg.AdminAddr != "" {
		admin = web.NewAdminServer(cfg.AdminAddr, apiService, log)
		adminErrors = admin.Start()
	}

	var runErr error
	select {
	case err, ok := <-serverErrors:
		runErr = exited("web server", err, ok)
	case err, ok := <-adminErrors:
		runErr = exited("admin server", err, ok)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("admin shutdown failed")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	return runErr
}

func exited(name string, err error, ok bool) error {
	if ok && err != nil {
		return fmt.Errorf("%s exited: %w", name, err)
	}
	return fmt.Errorf("%s exited", name)
}
