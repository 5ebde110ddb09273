package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facekiosk/facekiosk/internal/bridge"
	"github.com/facekiosk/facekiosk/internal/config"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync with the central backend",
	Long: `Push the attendance outbox to the central backend and pull roster
changes down. The kiosk daemon does this on a schedule; this command runs a
single sync immediately.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Central.URL == "" {
		return errors.New("CENTRAL_URL environment variable is required")
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	backend, err := buildBackend(&cfg.Central)
	if err != nil {
		return err
	}

	pending, err := db.ListUnsynced(context.Background(), 0)
	if err != nil {
		return fmt.Errorf("failed to inspect outbox: %w", err)
	}
	fmt.Printf("%d records in the outbox\n", len(pending))

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("syncing with central backend"),
		progressbar.OptionSpinnerType(14),
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				_ = bar.Add(1)
			}
		}
	}()

	b := bridge.New(db, backend, cfg.Bridge.Interval, nil)
	report, runErr := b.RunOnce(context.Background())

	close(done)
	_ = bar.Finish()
	fmt.Println()

	fmt.Printf("Sync %s finished in %s\n", report.ID, report.Duration.Round(time.Millisecond))
	fmt.Printf("  Pushed:   %d\n", report.Pushed)
	fmt.Printf("  Rejected: %d\n", report.Rejected)
	fmt.Printf("  Skipped:  %d\n", report.Skipped)
	fmt.Printf("  Roster:   %d entries seen, %d upserts, %d linked\n",
		report.RosterSeen, report.Upserts, report.Linked)
	fmt.Printf("  Encodings: %d pushed\n", report.Encodings)
	for _, msg := range report.Errors {
		fmt.Printf("  Error: %s\n", msg)
	}

	if runErr != nil {
		return errors.New("sync finished with errors, unacknowledged records stay queued")
	}
	return nil
}
