package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inputoverlay/internal/host"
	"inputoverlay/internal/logging"
)

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	fps := fs.Int("fps", 0, "Tick rate (default: preview.fps from the configuration)")
	fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := host.New(ctx, host.Options{
		ConfigPath: resolveConfigPath(*configPath),
		Version:    version,
	})
	if err != nil {
		fatalf("starting overlay: %v", err)
	}
	logging.SetDefaultCrashHandler(h.Crash())
	if err := h.Crash().CleanupOldCrashReports(30 * 24 * time.Hour); err != nil {
		h.Logger().Debug("crash report cleanup failed", "error", err)
	}

	rate := *fps
	if rate <= 0 {
		rate = h.Config().Preview.FPS
	}

	st := h.Status()
	fmt.Printf("inputoverlay %s running (%s mode, %d elements)\n", version, st.Source.Mode, st.Source.Elements)
	if cfg := h.Config(); cfg.Metrics.Enabled {
		fmt.Printf("Status server: http://%s/status\n", cfg.Metrics.Listen)
	}
	fmt.Println("Press Ctrl+C to stop.")

	var runErr error
	h.Crash().RecoverWithContext(map[string]interface{}{"command": "run"}, func() {
		runErr = h.Run(ctx, rate)
	})
	if err := h.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error shutting down: %v\n", err)
	}
	if runErr != nil {
		fatalf("running overlay: %v", runErr)
	}
	fmt.Println("Overlay stopped.")
}
