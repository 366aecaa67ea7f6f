package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamsync/dreamsync-backend/internal/auth"
	"github.com/dreamsync/dreamsync-backend/internal/config"
	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

func interpretCMD(logFn func() *logger.Logger) *cobra.Command {
	var userID, entryID string
	var regenerate bool
	var interpret = &cobra.Command{
		Use:   "interpret",
		Short: "Generate (or fetch) the interpretation of one entry and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), logFn())
			if err != nil {
				return err
			}
			defer a.Close()

			payload, err := a.interpretations.GenerateInterpretation(cmd.Context(), userID, entryID, regenerate)
			if err != nil {
				return err
			}
			body, err := payload.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
	interpret.Flags().StringVar(&userID, "user", "", "owning user id")
	interpret.Flags().StringVar(&entryID, "entry", "", "entry id")
	interpret.Flags().BoolVar(&regenerate, "regenerate", false, "replace an existing interpretation")
	interpret.MarkFlagRequired("user")
	interpret.MarkFlagRequired("entry")
	return interpret
}

func reindexCMD(logFn func() *logger.Logger) *cobra.Command {
	var userID string
	var reindex = &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed a user's entries into the semantic memory index",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logFn()
			a, err := newApp(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.entries.Reindex(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("reindex failed after %d entries: %w", n, err)
			}
			log.Info("reindex complete", "user_id", userID, "indexed", n)
			return nil
		},
	}
	reindex.Flags().StringVar(&userID, "user", "", "user whose entries are reindexed")
	reindex.MarkFlagRequired("user")
	return reindex
}

func tokenCMD() *cobra.Command {
	var userID string
	var ttl time.Duration
	var token = &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.AppConfig.JWTSecret == "" {
				return errors.New("JWT_SECRET must be set to issue tokens")
			}
			t, err := auth.GenerateJWT(config.AppConfig.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
	token.Flags().StringVar(&userID, "user", "", "subject of the token")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	token.MarkFlagRequired("user")
	return token
}
