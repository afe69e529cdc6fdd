package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/observability"
)

func newExtractCmd() *cobra.Command {
	var (
		username string
		password string
		clubID   int
		clubType string
		clubName string
		include  []string
	)

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Runs a one-shot login and extraction, printing the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := observability.GetLogger()

			if password == "" {
				password = os.Getenv("CLUBAGENT_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("both --username and --password (or CLUBAGENT_PASSWORD) are required")
			}

			svc, manager, err := buildService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer manager.Shutdown(ctx)

			result := svc.Extract(ctx, schemas.ExtractRequest{
				Username: username,
				Password: password,
				Club: schemas.ClubSelector{
					ClubID:   clubID,
					ClubType: clubType,
					ClubName: clubName,
				},
				Include: include,
			})

			blob, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Println(string(blob))

			if !result.Success {
				return errors.New("extraction failed")
			}
			return nil
		},
	}

	extractCmd.Flags().StringVarP(&username, "username", "u", "", "portal username")
	extractCmd.Flags().StringVarP(&password, "password", "p", "", "portal password (or CLUBAGENT_PASSWORD)")
	extractCmd.Flags().IntVar(&clubID, "club-id", 0, "exact club id to select")
	extractCmd.Flags().StringVar(&clubType, "club-type", "", "club category to match (with --club-name)")
	extractCmd.Flags().StringVar(&clubName, "club-name", "", "club name to match (with --club-type)")
	extractCmd.Flags().StringSliceVar(&include, "include", nil, "extractors to run (default: all)")

	return extractCmd
}

func init() {
	rootCmd.AddCommand(newExtractCmd())
}
