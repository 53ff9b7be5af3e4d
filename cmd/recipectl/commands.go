package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/config"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
	"github.com/recipebox/recipebox/internal/repository/memory"
	"github.com/recipebox/recipebox/internal/service"
)

const commandTimeout = 30 * time.Second

// storeOpener connects to the backend named by a DATABASE_URL.
type storeOpener func(ctx context.Context, databaseURL string) (service.Store, error)

func openStore(ctx context.Context, databaseURL string) (service.Store, error) {
	if databaseURL == config.MemoryDatabaseURL {
		return memory.New(), nil
	}
	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

type userOutput struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	Token       string `json:"token,omitempty"`
}

type cli struct {
	open        storeOpener
	params      auth.Params
	databaseURL string
	format      string
	verbose     bool
}

func newRootCmd(open storeOpener, params auth.Params) *cobra.Command {
	c := &cli{open: open, params: params}

	root := &cobra.Command{
		Use:           "recipectl",
		Short:         "Administrative tasks for the recipe API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.databaseURL == "" {
				return errors.New("DATABASE_URL is required (flag --database-url or env)")
			}
			switch c.format {
			case "plain", "json":
				return nil
			default:
				return fmt.Errorf("invalid format %q; use plain or json", c.format)
			}
		},
	}

	root.PersistentFlags().StringVar(&c.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	root.PersistentFlags().StringVar(&c.format, "format", "plain", "Output format: plain or json")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log service events to stderr")

	root.AddCommand(c.createUserCmd(), c.createSuperuserCmd(), c.tokenCmd())
	return root
}

func (c *cli) createUserCmd() *cobra.Command {
	var email, password, name string
	var withToken bool

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a regular user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, users *service.UserService, tokens *service.TokenService) (*userOutput, error) {
				user, err := users.CreateUser(ctx, email, password, name)
				if err != nil {
					return nil, err
				}
				out := &userOutput{ID: user.ID, Email: user.Email, Name: user.Name}
				if withToken {
					if out.Token, err = tokens.IssueToken(ctx, email, password); err != nil {
						return nil, err
					}
				}
				return out, nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&password, "password", "", "User password")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&withToken, "token", false, "Also issue an API token")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) createSuperuserCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff superuser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, users *service.UserService, _ *service.TokenService) (*userOutput, error) {
				user, err := users.CreateSuperuser(ctx, email, password)
				if err != nil {
					return nil, err
				}
				return &userOutput{
					ID:          user.ID,
					Email:       user.Email,
					IsStaff:     user.IsStaff,
					IsSuperuser: user.IsSuperuser,
				}, nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Superuser email")
	cmd.Flags().StringVar(&password, "password", "", "Superuser password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, _ *service.UserService, tokens *service.TokenService) (*userOutput, error) {
				token, err := tokens.IssueToken(ctx, email, password)
				if err != nil {
					return nil, err
				}
				return &userOutput{Email: model.NormalizeEmail(email), Token: token}, nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&password, "password", "", "User password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type action func(ctx context.Context, users *service.UserService, tokens *service.TokenService) (*userOutput, error)

// run opens the store, builds the services and prints the action's result.
func (c *cli) run(cmd *cobra.Command, fn action) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	store, err := c.open(ctx, c.databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	logOut := io.Discard
	if c.verbose {
		logOut = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))
	rec := metrics.NewNoop()

	users := service.NewUserService(store, c.params, rec, logger)
	tokens := service.NewTokenService(store, store, nil, c.params, rec, logger)

	out, err := fn(ctx, users, tokens)
	if err != nil {
		return err
	}
	return c.print(cmd.OutOrStdout(), out)
}

func (c *cli) print(w io.Writer, out *userOutput) error {
	if c.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if out.Token != "" {
		_, err := fmt.Fprintln(w, out.Token)
		return err
	}
	_, err := fmt.Fprintf(w, "created user %d (%s)\n", out.ID, out.Email)
	return err
}
