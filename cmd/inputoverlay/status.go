package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"inputoverlay/internal/config"
	"inputoverlay/internal/hook"
	"inputoverlay/internal/host"
	"inputoverlay/internal/logging"
	"inputoverlay/internal/store"
)

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	fs.Parse(os.Args[2:])

	path := resolveConfigPath(*configPath)

	fmt.Println("=== inputoverlay Status ===")
	fmt.Println()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("Config: %s (not found, using defaults)\n", path)
	} else {
		fmt.Printf("Config: %s\n", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	for _, issue := range config.Check(cfg) {
		fmt.Printf("  %s\n", issue.Error())
	}

	s := cfg.Settings(filepath.Dir(path))
	fmt.Printf("Overlay: %s\n", enabledString(cfg.Overlay.Enabled))
	fmt.Printf("Image:   %s\n", assetState(s.ImageFile))
	fmt.Printf("Layout:  %s\n", assetState(s.LayoutFile))

	fmt.Println()
	fmt.Println("Hooks:")
	hooks := hook.Platform(cfg.HookOptions())
	if len(hooks) == 0 {
		fmt.Println("  none enabled")
	}
	for _, h := range hooks {
		if ok, reason := h.Available(); ok {
			fmt.Printf("  %-10s available\n", h.Name())
		} else {
			fmt.Printf("  %-10s unavailable: %s\n", h.Name(), reason)
		}
	}

	fmt.Println()
	if cfg.History.Enabled {
		printHistoryStatus(cfg.HistoryPath())
	} else {
		fmt.Println("History: disabled")
	}

	fmt.Println()
	if cfg.Metrics.Enabled {
		printRunningStatus(cfg.Metrics.Listen)
	} else {
		fmt.Println("Status server: disabled")
	}

	if reports, err := logging.DefaultCrashHandler().CrashReports(); err == nil && len(reports) > 0 {
		last := reports[len(reports)-1]
		fmt.Printf("\nCrash reports: %d (latest %s: %s)\n",
			len(reports), last.Timestamp.Local().Format(time.RFC3339), last.PanicValue)
	}
}

func enabledString(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func assetState(path string) string {
	if path == "" {
		return "(not set)"
	}
	info, err := os.Stat(path)
	if err != nil {
		return path + " (missing)"
	}
	return fmt.Sprintf("%s (%d bytes)", path, info.Size())
}

func printHistoryStatus(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("History: %s (not created yet)\n", path)
		return
	}
	st, err := store.Open(path)
	if err != nil {
		fmt.Printf("History: %s (error: %v)\n", path, err)
		return
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		fmt.Printf("History: %s (error: %v)\n", path, err)
		return
	}
	fmt.Printf("History: %s\n", path)
	fmt.Printf("  Entries:  %d (%d presses, %d codes)\n", stats.Entries, stats.Presses, stats.Codes)
	fmt.Printf("  Sessions: %d\n", stats.Sessions)
	if stats.Entries > 0 {
		fmt.Printf("  Span:     %s to %s\n", formatNs(stats.OldestNs), formatNs(stats.NewestNs))
	}
}

// printRunningStatus asks a running overlay for its status.
func printRunningStatus(listen string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+listen+"/status", nil)
	if err != nil {
		fmt.Printf("Running overlay: unknown (%v)\n", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Running overlay: not reachable at %s\n", listen)
		return
	}
	defer resp.Body.Close()

	var st host.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Printf("Running overlay: bad status response: %v\n", err)
		return
	}
	fmt.Printf("Running overlay: %s (version %s, up %s)\n", listen, st.Version, st.Uptime)
	fmt.Printf("  Mode:     %s, %d elements, %dx%d\n", st.Source.Mode, st.Source.Elements, st.Source.Width, st.Source.Height)
	for _, h := range st.Source.Hooks {
		state := "stopped"
		if h.Running {
			state = "running"
		}
		fmt.Printf("  Hook %-10s %s\n", h.Name, state)
	}
	if st.Source.Error != "" {
		fmt.Printf("  Error:    %s\n", st.Source.Error)
	}
}

func formatNs(ns int64) string {
	return time.Unix(0, ns).Local().Format("2006-01-02 15:04:05")
}
