package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facekiosk/facekiosk/internal/bridge"
	"github.com/facekiosk/facekiosk/internal/central"
	"github.com/facekiosk/facekiosk/internal/central/mariadb"
	"github.com/facekiosk/facekiosk/internal/config"
	"github.com/facekiosk/facekiosk/internal/embedding"
	"github.com/facekiosk/facekiosk/internal/matcher"
	"github.com/facekiosk/facekiosk/internal/store/postgres"
	"github.com/facekiosk/facekiosk/internal/terminal"
	"github.com/facekiosk/facekiosk/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk",
	Long: `Start the facekiosk terminal.
The kiosk serves the HTTP API, runs the camera capture loop when CAMERA_URL
is set, and syncs attendance with the central backend when CENTRAL_URL is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// buildBackend creates the central backend client, with an optional direct
// MariaDB fallback for roster reads when the HTTP API is down.
func buildBackend(cfg *config.CentralConfig) (bridge.Backend, error) {
	client, err := central.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create central client: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return client, nil
	}

	pool, err := mariadb.NewPool(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to central MariaDB: %w", err)
	}
	fmt.Println("Direct MariaDB roster fallback enabled")
	return &fallbackBackend{client: client, roster: pool}, nil
}

// fallbackBackend pushes attendance over HTTP but falls back to a direct
// database read for the roster when the API is unavailable.
type fallbackBackend struct {
	client *central.Client
	roster *mariadb.Pool
}

func (f *fallbackBackend) FetchRoster(ctx context.Context) ([]central.RosterEntry, error) {
	entries, err := f.client.FetchRoster(ctx)
	if errors.Is(err, central.ErrUnavailable) {
		return f.roster.FetchRoster(ctx)
	}
	return entries, err
}

func (f *fallbackBackend) PushAttendance(ctx context.Context, payload central.AttendancePayload) error {
	return f.client.PushAttendance(ctx, payload)
}

func (f *fallbackBackend) PushEncoding(ctx context.Context, staffID string, encoding []float32) error {
	return f.client.PushEncoding(ctx, staffID, encoding)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL database...")
	db, err := postgres.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer db.Close()

	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	// The capture loop must not start against a dead embedding service.
	// The API stays up either way so manual attendance keeps working.
	captureEnabled := cfg.Terminal.CameraURL != ""
	if err := provider.Ping(context.Background()); err != nil {
		if captureEnabled {
			fmt.Printf("Capture loop disabled: embedding service unreachable: %v\n", err)
			captureEnabled = false
		} else {
			fmt.Printf("Warning: embedding service not reachable: %v\n", err)
		}
	}

	m := matcher.New(cfg.Recognition.Tolerances, cfg.Terminal.IndexThreshold)
	refreshRoster := func() {
		staff, err := db.ListStaffWithEncodings(context.Background())
		if err != nil {
			fmt.Printf("Warning: could not load roster: %v\n", err)
			return
		}
		m.SetRoster(staff)
	}
	refreshRoster()
	fmt.Printf("Loaded %d recognizable staff\n", m.RosterSize())
	if m.IndexEnabled() {
		fmt.Println("HNSW roster index enabled")
	}

	events := &terminal.EventBroadcaster{}
	var frames terminal.FrameSource
	if cfg.Terminal.CameraURL != "" {
		frames = terminal.NewHTTPFrameSource(cfg.Terminal.CameraURL)
	}
	controller := terminal.NewController(&cfg.Terminal, frames, provider, m, db, events)
	controller.SetRosterSizeFunc(m.RosterSize)

	var syncBridge *bridge.Bridge
	if cfg.Central.URL != "" {
		backend, err := buildBackend(&cfg.Central)
		if err != nil {
			return err
		}
		syncBridge = bridge.New(db, backend, cfg.Bridge.Interval, m.SetRoster)
	} else {
		fmt.Println("CENTRAL_URL not set, running standalone")
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, web.Deps{
		Repo:          db,
		Encoder:       provider,
		Matcher:       m,
		Controller:    controller,
		Bridge:        syncBridge,
		RefreshRoster: refreshRoster,
	}, host, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if captureEnabled {
		go controller.Run(ctx)
		fmt.Printf("Capture loop running against %s\n", cfg.Terminal.CameraURL)
	} else if cfg.Terminal.CameraURL == "" {
		fmt.Println("CAMERA_URL not set, capture loop disabled")
	}

	if syncBridge != nil {
		stopSync := syncBridge.Start(ctx)
		defer stopSync()
		fmt.Printf("Sync bridge running every %s\n", cfg.Bridge.Interval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facekiosk API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
