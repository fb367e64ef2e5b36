package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/resumerank/internal/adapters/http/api"
	"github.com/okian/resumerank/internal/submitter"
	"github.com/okian/resumerank/pkg/logger"
)

const app = "resumerank-submit"

func newRootCmd() *cobra.Command {
	var (
		cfg      submitter.Config
		descFile string
		jsonLogs bool
		debug    bool
	)

	root := &cobra.Command{
		Use:   app + " [flags] FILE...",
		Short: "Upload resumes against a job description and wait for the ranking",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Files = args
			if cfg.Token == "" {
				cfg.Token = os.Getenv("RESUMERANK_TOKEN")
			}
			if descFile != "" {
				raw, err := os.ReadFile(descFile)
				if err != nil {
					return fmt.Errorf("reading description file: %w", err)
				}
				cfg.JobDescription = strings.TrimSpace(string(raw))
			}

			l, err := newLogger(cmd, jsonLogs, debug)
			if err != nil {
				return err
			}
			_, err = submitter.Run(cmd.Context(), &cfg, cmd.OutOrStdout(), l)
			var apiErr *submitter.APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				return fmt.Errorf("%s", apiErr.Message)
			}
			return err
		},
		SilenceUsage: true,
	}

	f := root.Flags()
	f.StringVarP(&cfg.BaseURL, "url", "u", submitter.DefaultBaseURL, "base URL of the resumerank server")
	f.StringVarP(&cfg.Token, "token", "t", "", "bearer token (default $RESUMERANK_TOKEN)")
	f.StringVar(&cfg.JobTitle, "title", "", "job title")
	f.StringVar(&cfg.JobDescription, "description", "", "job description")
	f.StringVar(&descFile, "description-file", "", "read the job description from a file")
	f.StringVarP(&cfg.IdempotencyKey, "key", "k", "", "idempotency key; resubmitting with the same key returns the first batch")
	f.StringVarP(&cfg.Band, "band", "b", "", "only list candidates in this band: high, mid or low")
	f.DurationVar(&cfg.PollInterval, "poll", submitter.DefaultPollInterval, "delay between batch polls")
	f.DurationVar(&cfg.Wait, "wait", submitter.DefaultWait, "how long to wait for the batch")
	f.DurationVar(&cfg.Timeout, "timeout", submitter.DefaultTimeout, "per-request timeout")
	root.MarkFlagsMutuallyExclusive("description", "description-file")

	root.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")

	root.AddCommand(newTokenCmd())
	return root
}

func newLogger(cmd *cobra.Command, jsonLogs, debug bool) (logger.Logger, error) {
	format := "text"
	if jsonLogs {
		format = "json"
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	if debug {
		_ = logger.SetLevelString("debug")
	}
	return logger.Named("submit"), nil
}

func newTokenCmd() *cobra.Command {
	var (
		owner  string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("RESUMERANK_JWT_SECRET")
			}
			if owner == "" || secret == "" {
				return errors.New("--owner and --secret (or $RESUMERANK_JWT_SECRET) are required")
			}
			tok, exp, err := api.GenerateToken(owner, secret, ttl)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id placed in the token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret of the server (default $RESUMERANK_JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
