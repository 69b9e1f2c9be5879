package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/creatormatch/backend/match"
	"github.com/creatormatch/backend/realtime"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgFile string

	root := &cobra.Command{
		Use:           app,
		Short:         "creatormatch pairs content creators by compatibility",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfigFile(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is creatormatch.yaml in current directory)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	_ = v.BindPFlag("log.debug", root.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("log.json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		newServeCmd(v),
		newMigrateCmd(v),
		newSeedCmd(v),
		newScoreCmd(v),
		newTailCmd(v),
	)
	return root
}

// setup decodes the config and builds the logger every command shares.
func setup(v *viper.Viper) (*Config, *zap.Logger, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}

func openConfiguredStore(ctx context.Context, cfg *Config) (*store, error) {
	st, err := openStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := st.migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return st, nil
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openConfiguredStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			srv := newServer(cfg, st, newGotrueClient(cfg.Backend.URL, cfg.Backend.AnonKey), cat, log)
			httpSrv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           srv.routes(cfg.CORS.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("starting creatormatch backend", zap.String("listen", cfg.Listen), zap.String("driver", cfg.Database.Driver))
				if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				log.Info("shutting down")
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("listen", "", "address to listen on (default :8080)")
	_ = v.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	return cmd
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the local schema to the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			st, err := openStore(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("schema applied", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func newSeedCmd(v *viper.Viper) *cobra.Command {
	var o seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with deterministic demo creators and matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			st, err := openConfiguredStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			res, err := seedDatabase(cmd.Context(), st, cat, o)
			if err != nil {
				return err
			}
			log.Info("seed complete",
				zap.Int("creators", len(res.Creators)),
				zap.Int("accepted", res.Accepted),
				zap.Int("pending", res.Pending))

			for _, u := range seedTestUsers {
				token, err := signToken([]byte(cfg.Auth.JWTSecret), u.authID, 24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", u.name, token)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&o.Count, "count", 50, "number of creators to create")
	cmd.Flags().Int64Var(&o.Seed, "seed", 42, "RNG seed (deterministic)")
	cmd.Flags().BoolVar(&o.Truncate, "truncate", false, "empty all tables before seeding")
	cmd.Flags().Float64Var(&o.AcceptRate, "accept-rate", 0.05, "proportion of pairs with an accepted match (0..1)")
	cmd.Flags().Float64Var(&o.PendingRate, "pending-rate", 0.03, "proportion of pairs with a pending request (0..1)")
	return cmd
}

type scoreInput struct {
	A match.Profile `json:"a"`
	B match.Profile `json:"b"`
}

func newScoreCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "score <file.json>",
		Short: `Score two profiles given as {"a": {...}, "b": {...}}`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := scoreProfiles(raw, match.NewScorer(cfg.Scoring.Weights()))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	}
}

func scoreProfiles(raw []byte, scorer *match.Scorer) (match.Breakdown, error) {
	var in scoreInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return match.Breakdown{}, fmt.Errorf("decode profiles: %w", err)
	}
	if err := in.A.Validate(); err != nil {
		return match.Breakdown{}, fmt.Errorf("profile a: %w", err)
	}
	if err := in.B.Validate(); err != nil {
		return match.Breakdown{}, fmt.Errorf("profile b: %w", err)
	}
	return scorer.Breakdown(in.A, in.B), nil
}

func newTailCmd(v *viper.Viper) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "tail <matchId>",
		Short: "Follow new chat messages of a match on the backend's realtime feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := &realtime.Client{
				URL:         cfg.Backend.URL,
				APIKey:      cfg.Backend.AnonKey,
				AccessToken: token,
				Logger:      log,
			}
			return client.Subscribe(ctx, args[0], func(m realtime.Message) {
				log.Info("message",
					zap.String("id", m.ID),
					zap.String("sender_id", m.SenderID),
					zap.Time("created_at", m.CreatedAt),
					zap.String("content", m.Content))
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token to subscribe as")
	return cmd
}
