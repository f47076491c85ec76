package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spec-kit/deal-portal/internal/auth"
	"github.com/spec-kit/deal-portal/internal/config"
	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/observability"
	"github.com/spec-kit/deal-portal/internal/persistence"
	"github.com/spec-kit/deal-portal/internal/repository"
)

type tokenOptions struct {
	email    string
	name     string
	role     string
	approved bool
	upsert   bool
}

// tokenCmd mints access tokens for local development against the shared secret.
func tokenCmd() *cobra.Command {
	var opts tokenOptions

	cmd := &cobra.Command{
		Use:   "token [profile-id]",
		Short: "Issue a development access token for a profile",
		Long: `Issue an access token signed with AUTH_JWT_SECRET.

With --upsert the profile is also written to the profiles table, so the
token is accepted by the API without an identity provider.

Examples:
  deal-portal token 8f0c...
  deal-portal token 8f0c... --upsert --email ops@example.com --role admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := buildProfile(args[0], opts)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if opts.upsert {
				if err := upsertProfile(cmd, cfg, &profile); err != nil {
					return err
				}
			}

			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(profile.ID, profile.Email)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "email claim to embed")
	cmd.Flags().StringVar(&opts.name, "name", "", "full name stored with --upsert")
	cmd.Flags().StringVar(&opts.role, "role", string(domain.RoleBroker), "profile role stored with --upsert (admin or broker)")
	cmd.Flags().BoolVar(&opts.approved, "approved", true, "approval flag stored with --upsert")
	cmd.Flags().BoolVar(&opts.upsert, "upsert", false, "create or update the profile before issuing the token")

	return cmd
}

func buildProfile(id string, opts tokenOptions) (domain.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Profile{}, fmt.Errorf("profile id must be a uuid: %w", err)
	}
	role := domain.Role(strings.ToLower(strings.TrimSpace(opts.role)))
	if role != domain.RoleAdmin && role != domain.RoleBroker {
		return domain.Profile{}, fmt.Errorf("unknown role %q", opts.role)
	}
	email := strings.TrimSpace(opts.email)
	if opts.upsert && email == "" {
		return domain.Profile{}, fmt.Errorf("--email is required with --upsert")
	}
	name := strings.TrimSpace(opts.name)
	if name == "" {
		name = email
	}
	return domain.Profile{
		ID:         id,
		Email:      email,
		FullName:   name,
		Role:       role,
		IsApproved: opts.approved,
	}, nil
}

func upsertProfile(cmd *cobra.Command, cfg *config.Config, profile *domain.Profile) error {
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required with --upsert")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	if err := repository.NewProfileRepository(pg.PoolHandle()).Upsert(cmd.Context(), profile); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
