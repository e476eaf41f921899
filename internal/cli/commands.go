package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrlokans/annotator/internal/auth"
	"github.com/mrlokans/annotator/internal/config"
	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/dataset"
	"github.com/mrlokans/annotator/internal/entities"
	"github.com/mrlokans/annotator/internal/entrypoint"
	"github.com/mrlokans/annotator/internal/logging"
)

func serveCommand(cfg *config.Config, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(cmd.Context(), cfg, version)
		},
	}
}

// withDataset opens the database for a one-shot command.
func withDataset(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, db *database.DB, svc *dataset.Service) error) error {
	log := entrypoint.NewLogger(cfg)
	log.SetOutput(cmd.ErrOrStderr())

	db, svc, err := entrypoint.OpenDataset(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(cmd.Context(), db, svc)
}

func importCommand(cfg *config.Config) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import images and annotations from CSV",
		Long:  "Import rows from a CSV file. Use - to read standard input. Rows whose image_id already exists are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			return withDataset(cmd, cfg, func(ctx context.Context, _ *database.DB, svc *dataset.Service) error {
				result, err := svc.Import(ctx, in, actor)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "rows: %d, imported: %d, skipped: %d, errors: %d\n",
					result.TotalRows, result.Imported, result.Skipped, result.Errors)
				fmt.Fprintf(out, "labels created: %d, annotations created: %d\n",
					result.LabelsCreated, result.AnnotationsCreated)
				for _, msg := range result.Messages {
					fmt.Fprintf(out, "  %s\n", msg)
				}
				if result.MessagesTruncated {
					fmt.Fprintln(out, "  (further errors omitted)")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Name recorded as creator of imported images")
	return cmd
}

func exportCommand(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDataset(cmd, cfg, func(ctx context.Context, _ *database.DB, svc *dataset.Service) error {
				if output == "" || output == "-" {
					_, err := svc.Export(ctx, cmd.OutOrStdout())
					return err
				}

				// Write next to the target and rename, so a failed export
				// never leaves a truncated file behind.
				tmp, err := os.CreateTemp(filepath.Dir(output), ".export-*.csv")
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer os.Remove(tmp.Name())

				n, err := svc.Export(ctx, tmp)
				if closeErr := tmp.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}
				if err := os.Rename(tmp.Name(), output); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d images to %s\n", n, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default standard output)")
	return cmd
}

func createUserCommand(cfg *config.Config) *cobra.Command {
	var username, email, password, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user for local authentication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := entities.UserRole(strings.ToLower(role))
			if !userRole.Valid() {
				return fmt.Errorf("invalid role %q, expected admin, editor or viewer", role)
			}
			if password == "" {
				password = os.Getenv("ANNOTATOR_PASSWORD")
			}
			if password == "" {
				return errors.New("--password or ANNOTATOR_PASSWORD is required")
			}

			return withDataset(cmd, cfg, func(ctx context.Context, db *database.DB, _ *dataset.Service) error {
				svc := auth.NewService(db.Gorm(), cfg.Auth, logging.Discard())
				if err := svc.Migrate(ctx); err != nil {
					return err
				}
				user, err := svc.CreateUser(ctx, username, email, password, userRole)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 12 characters (or env ANNOTATOR_PASSWORD)")
	cmd.Flags().StringVar(&role, "role", string(entities.UserRoleEditor), "Role: admin, editor or viewer")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func cleanupLabelsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-labels",
		Short: "Delete labels that no image uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDataset(cmd, cfg, func(ctx context.Context, _ *database.DB, svc *dataset.Service) error {
				removed, err := svc.DeleteOrphanLabels(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphan labels\n", removed)
				return nil
			})
		},
	}
}
