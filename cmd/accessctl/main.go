package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/access-gate/internal/config"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/utils"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "accessctl",
		Short:         "Operator tool for the access code gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(releaseCmd())
	return rootCmd
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Long: `Hash a password with bcrypt.  Without an argument the password is
read from the first line of standard input, which keeps it out of the
shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			if plain == "" {
				return errors.New("empty password")
			}
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := utils.HashPassword(plain, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", config.Load().BcryptCost, "bcrypt cost")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [email]",
		Short: "Mint an admin token signed with JWT_SECRET",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			email := cfg.AdminEmail
			if len(args) == 1 {
				email = args[0]
			}
			if email == "" {
				return errors.New("no email given and ADMIN_EMAIL is unset")
			}
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = cfg.JWTSecret
			}
			ttl, _ := cmd.Flags().GetInt("ttl")
			if ttl <= 0 {
				ttl = cfg.AdminTokenTTLMin
			}
			tok, err := utils.NewAdminToken(secret, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().Int("ttl", 0, "lifetime in minutes (default ADMIN_TOKEN_TTL_MIN)")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect CODE",
		Short: "Show an access code and the device holding its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, locks, err := openRepos()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			code := repository.NormalizeCode(args[0])
			rec, err := codes.Lookup(ctx, code)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:     %s\n", rec.Code)
			fmt.Fprintf(out, "Session:  %s\n", rec.SessionID)
			fmt.Fprintf(out, "Email:    %s\n", valueOrDefault(rec.Email, "(none)"))
			fmt.Fprintf(out, "Issued:   %s\n", rec.CreatedAt.Format(time.RFC3339))

			lock, ttl, err := locks.Inspect(ctx, code)
			if err != nil {
				return err
			}
			if lock == nil {
				fmt.Fprintln(out, "Lock:     free")
				return nil
			}
			fmt.Fprintf(out, "Lock:     %s (since %s, expires in %s)\n",
				lock.ClientID, lock.AcquiredAt.Format(time.RFC3339), ttl.Round(time.Second))
			return nil
		},
	}
}

func releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release CODE",
		Short: "Drop the session lock of a code regardless of its holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, locks, err := openRepos()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			released, err := locks.ForceRelease(ctx, repository.NormalizeCode(args[0]))
			if err != nil {
				return err
			}
			if released {
				fmt.Fprintln(cmd.OutOrStdout(), "released")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no active session")
			}
			return nil
		},
	}
}

// openRepos connects to the store configured for the server.
func openRepos() (*repository.CodeRepo, *repository.SessionLockRepo, error) {
	cfg := config.Load()
	var rdb *redis.Client
	if cfg.StoreBackend == config.BackendRedis {
		rdb = config.NewRedisClient()
	}
	kv, err := config.NewStore(cfg, rdb)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewCodeRepo(kv, cfg.CodePrefix), repository.NewSessionLockRepo(kv), nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
