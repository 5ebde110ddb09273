package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/facekiosk/facekiosk/internal/config"
	"github.com/facekiosk/facekiosk/internal/embedding"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/facekiosk/facekiosk/internal/store/postgres"
	"github.com/spf13/cobra"
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage the local staff roster",
}

var staffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered staff",
	RunE:  runStaffList,
}

var staffAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a staff member",
	Args:  cobra.ExactArgs(1),
	RunE:  runStaffAdd,
}

var staffEnrollCmd = &cobra.Command{
	Use:   "enroll <id> <photo>",
	Short: "Enroll a staff member's face from a photo",
	Long: `Enroll a staff member's face from a photo file.
The photo must contain exactly one face. It is downscaled before being sent
to the embedding service.`,
	Args: cobra.ExactArgs(2),
	RunE: runStaffEnroll,
}

var staffRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a staff member",
	Args:  cobra.ExactArgs(1),
	RunE:  runStaffRemove,
}

func init() {
	rootCmd.AddCommand(staffCmd)
	staffCmd.AddCommand(staffListCmd)
	staffCmd.AddCommand(staffAddCmd)
	staffCmd.AddCommand(staffEnrollCmd)
	staffCmd.AddCommand(staffRemoveCmd)

	staffAddCmd.Flags().String("central-id", "", "Staff document id in the central backend")
	staffRemoveCmd.Flags().Bool("cascade", false, "Delete attendance history together with the staff row")
}

// openStore connects to the kiosk database using the environment config.
func openStore() (*postgres.Store, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	return postgres.Open(&cfg.Database)
}

func parseStaffID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid staff id %q", arg)
	}
	return id, nil
}

func runStaffList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	staff, err := db.ListStaff(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list staff: %w", err)
	}

	if len(staff) == 0 {
		fmt.Println("No staff registered")
		return nil
	}

	fmt.Printf("%-6s %-30s %-14s %s\n", "ID", "NAME", "CENTRAL ID", "FACE")
	for _, s := range staff {
		face := "-"
		if s.HasEncoding() {
			face = "enrolled"
		}
		centralID := s.CentralID
		if centralID == "" {
			centralID = "-"
		}
		fmt.Printf("%-6d %-30s %-14s %s\n", s.ID, s.Name, centralID, face)
	}
	return nil
}

func runStaffAdd(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	staff := &store.Staff{
		Name:      args[0],
		CentralID: mustGetString(cmd, "central-id"),
	}
	if err := db.CreateStaff(context.Background(), staff); err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}

	fmt.Printf("Created staff %d (%s)\n", staff.ID, staff.Name)
	return nil
}

func runStaffEnroll(cmd *cobra.Command, args []string) error {
	id, err := parseStaffID(args[0])
	if err != nil {
		return err
	}

	photo, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	staff, err := db.GetStaff(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up staff %d: %w", id, err)
	}

	cfg := config.Load()
	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	encoding, err := provider.EncodeOne(ctx, photo)
	if err != nil {
		return fmt.Errorf("failed to encode face: %w", err)
	}

	if err := db.UpdateStaffEncoding(ctx, id, encoding); err != nil {
		return fmt.Errorf("failed to store encoding: %w", err)
	}

	fmt.Printf("Enrolled %s (staff %d)\n", staff.Name, id)
	return nil
}

func runStaffRemove(cmd *cobra.Command, args []string) error {
	id, err := parseStaffID(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	cascade := mustGetBool(cmd, "cascade")
	if err := db.DeleteStaff(context.Background(), id, cascade); err != nil {
		if errors.Is(err, store.ErrStaffHasAttendance) {
			return fmt.Errorf("staff %d has attendance history, rerun with --cascade to delete it too", id)
		}
		return fmt.Errorf("failed to delete staff: %w", err)
	}

	fmt.Printf("Removed staff %d\n", id)
	return nil
}
