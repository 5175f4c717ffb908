package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/auth"
	"github.com/alfredjeanlab/lensdesk/internal/client"
	"github.com/alfredjeanlab/lensdesk/internal/config"
	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/store/postgres"
	"github.com/alfredjeanlab/lensdesk/internal/ui"
	lensync "github.com/alfredjeanlab/lensdesk/internal/sync"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the lensdesk service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status, err := apiClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		out := map[string]string{"http": status}

		withGRPC, _ := cmd.Flags().GetBool("grpc")
		if withGRPC {
			ac, err := client.NewAccessClient(serverAddr)
			if err != nil {
				return err
			}
			defer ac.Close()
			grpcStatus, err := ac.Health(ctx)
			if err != nil {
				return err
			}
			out["grpc"] = grpcStatus
		}

		if jsonOutput {
			if err := printJSON(out); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stdout, "HTTP: %s\n", status)
			if g, ok := out["grpc"]; ok {
				fmt.Fprintf(stdout, "gRPC: %s\n", g)
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		if g, ok := out["grpc"]; ok && g != "SERVING" {
			return fmt.Errorf("access service not serving: %s", g)
		}
		return nil
	},
}

var accessCmd = &cobra.Command{
	Use:     "access <admin|customer|any>",
	Short:   "Ask the access service whether the current session may open a portal",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var role model.Role
		if args[0] != "any" {
			r, err := model.ParseRole(args[0])
			if err != nil {
				return err
			}
			role = r
		}

		ac, err := client.NewAccessClient(serverAddr)
		if err != nil {
			return err
		}
		defer ac.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d, err := ac.Check(ctx, apiClient.Token(), role)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(d); err != nil {
				return err
			}
		} else {
			printDecision(d)
		}
		if !d.Authorized() {
			return fmt.Errorf("access denied")
		}
		return nil
	},
}

var bootstrapAdminCmd = &cobra.Command{
	Use:               "bootstrap-admin",
	Short:             "Create or promote an administrator directly in the database",
	GroupID:           "system",
	PersistentPreRunE: noClient,
	Long: `Grant the admin role to an account, creating it first when it does not
exist. Talks to the database named by LENSDESK_DATABASE_URL, so it works
before any administrator can sign in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		user, err := st.GetUserByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			pw, err := ui.ReadPassword("New admin password: ")
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			bus := events.NewLocalBus()
			defer bus.Close()
			res, err := auth.New(st, bus, []byte(cfg.JWTSecret)).SignUp(ctx, email, pw)
			if err != nil {
				return fmt.Errorf("creating account: %w", err)
			}
			user = res.User
		} else if err != nil {
			return fmt.Errorf("looking up %s: %w", email, err)
		}

		if err := st.GrantRole(ctx, &model.RoleAssignment{UserID: user.ID, Role: model.RoleAdmin, Email: user.Email}); err != nil {
			return fmt.Errorf("granting admin: %w", err)
		}
		fmt.Fprintf(stdout, "%s (%s) is now an administrator\n", user.Email, user.ID)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:               "backup",
	Short:             "Export the database as JSONL to the configured backup destinations",
	GroupID:           "system",
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		out, _ := cmd.Flags().GetString("out")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		if out != "" {
			return exportToFile(ctx, st, out)
		}

		dests := syncDestinations(ctx, cfg, logger)
		if len(dests) == 0 {
			return fmt.Errorf("no backup destination configured (set LENSDESK_SYNC_S3_BUCKET or LENSDESK_SYNC_GIT_REPO, or pass --out)")
		}
		return lensync.NewScheduler(st, dests, 0, logger).SyncNow(ctx)
	},
}

func exportToFile(ctx context.Context, st *postgres.PostgresStore, path string) error {
	if path == "-" {
		return lensync.ExportJSONL(ctx, st, os.Stdout, time.Now())
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := lensync.ExportJSONL(ctx, st, f, time.Now()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDestinations builds the backup destinations named by cfg. A
// destination that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []lensync.Destination {
	var dests []lensync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := lensync.NewS3Destination(ctx, lensync.S3Config{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, lensync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	return dests
}

func init() {
	healthCmd.Flags().Bool("grpc", false, "also check the gRPC access service")
	bootstrapAdminCmd.Flags().StringP("email", "e", "", "administrator email")
	backupCmd.Flags().StringP("out", "o", "", "write the export to this file (\"-\" for stdout) instead")
}
