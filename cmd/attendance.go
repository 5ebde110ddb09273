package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and manage attendance records",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records for one day",
	RunE:  runAttendanceList,
}

var attendanceCloseDayCmd = &cobra.Command{
	Use:   "close-day",
	Short: "Force-close every shift still open for a day",
	Long: `Force-close every shift still open for a day.
Run this at closing time so nobody stays checked in overnight. Closed
records go back into the sync queue.`,
	RunE: runAttendanceCloseDay,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendanceCloseDayCmd)

	attendanceListCmd.Flags().String("day", "", "Day to list (YYYY-MM-DD, defaults to today)")
	attendanceCloseDayCmd.Flags().String("day", "", "Day to close (YYYY-MM-DD, defaults to today)")
}

// resolveDay validates the --day flag, defaulting to today.
func resolveDay(cmd *cobra.Command) (string, error) {
	day := mustGetString(cmd, "day")
	if day == "" {
		return store.DayOf(time.Now()), nil
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return "", fmt.Errorf("invalid day %q, expected YYYY-MM-DD", day)
	}
	return day, nil
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	day, err := resolveDay(cmd)
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	records, err := db.ListAttendanceByDay(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance records for %s\n", day)
		return nil
	}

	fmt.Printf("Attendance for %s:\n", day)
	fmt.Printf("%-6s %-30s %-8s %-8s %-7s %s\n", "STAFF", "NAME", "IN", "OUT", "HOURS", "SYNCED")
	for _, rec := range records {
		name := "?"
		if staff, err := db.GetStaff(ctx, rec.StaffID); err == nil {
			name = staff.Name
		}

		out := "-"
		hours := "-"
		if rec.CheckOut != nil {
			out = rec.CheckOut.Local().Format("15:04")
			hours = fmt.Sprintf("%.1f", rec.Hours())
		}
		synced := "no"
		if rec.Synced {
			synced = "yes"
		}
		fmt.Printf("%-6d %-30s %-8s %-8s %-7s %s\n",
			rec.StaffID, name, rec.CheckIn.Local().Format("15:04"), out, hours, synced)
	}
	return nil
}

func runAttendanceCloseDay(cmd *cobra.Command, args []string) error {
	day, err := resolveDay(cmd)
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	closed, err := db.CloseDay(context.Background(), day, time.Now())
	if err != nil {
		return fmt.Errorf("failed to close day: %w", err)
	}

	if len(closed) == 0 {
		fmt.Printf("No open shifts on %s\n", day)
		return nil
	}

	fmt.Printf("Closed %d shifts on %s:\n", len(closed), day)
	for _, rec := range closed {
		fmt.Printf("  staff %d: %.1f hours\n", rec.StaffID, rec.Hours())
	}
	return nil
}
