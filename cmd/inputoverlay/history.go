package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"inputoverlay/internal/config"
	"inputoverlay/internal/input"
	"inputoverlay/internal/store"
)

func historyUsage() {
	fmt.Fprintln(os.Stderr, `Usage: inputoverlay history <action> [options]

ACTIONS:
    recent [-n 20]          Show the most recent presses and releases
    counts [-n 20]          Show the most pressed codes
    sessions [-n 10]        Show overlay sessions
    stats                   Summarize the database
    prune [-days 30]        Delete history older than the given age
    verify [-fix]           Check press counts against the history
    replay [-n 20] [-speed 0] [-o replay.png]
                            Play the newest presses through the overlay
                            and write the resulting frame
    migrate <status|up|rollback>
                            Inspect or change the database schema

Every action accepts -config and -db to select the database.`)
}

func cmdHistory() {
	if len(os.Args) < 3 {
		historyUsage()
		os.Exit(1)
	}
	action := os.Args[2]

	fs := flag.NewFlagSet("history "+action, flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	dbPath := fs.String("db", "", "History database (default: history.path from the configuration)")
	limit := fs.Int("n", 20, "Number of rows to show")
	days := fs.Int("days", 0, "Age in days (default: history.retention_days)")
	fix := fs.Bool("fix", false, "Rebuild press counts from the history")
	speed := fs.Float64("speed", 0, "Replay speed, 1 is real time (default: as fast as possible)")
	out := fs.String("o", "replay.png", "Output file for replay (.png, .jpg, .bmp, .tif)")
	fs.Parse(os.Args[3:])

	var cfg *config.Config
	cfgPath := resolveConfigPath(*configPath)
	if *dbPath == "" || *days == 0 || action == "replay" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			fatalf("loading config: %v", err)
		}
	}
	path := *dbPath
	if path == "" {
		path = cfg.HistoryPath()
	}

	if action == "migrate" {
		historyMigrate(path, fs.Arg(0))
		return
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fatalf("opening history: %s does not exist (enable history and run the overlay)", path)
	}
	st, err := store.Open(path)
	if err != nil {
		fatalf("opening history: %v", err)
	}
	defer st.Close()

	switch action {
	case "recent":
		entries, err := st.Recent(*limit)
		if err != nil {
			fatalf("reading history: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCODE\tSTATE\tDEVICE\tSESSION")
		for _, e := range entries {
			state := "up"
			if e.Pressed {
				state = "down"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
				time.Unix(0, e.TimestampNs).Local().Format("15:04:05.000"), e.Name, state, e.Device, e.SessionID)
		}
		w.Flush()

	case "counts":
		counts, err := st.Counts(*limit)
		if err != nil {
			fatalf("reading counts: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tPRESSES\tLAST")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%d\t%s\n", c.Name, c.Presses, formatNs(c.LastNs))
		}
		w.Flush()

	case "sessions":
		sessions, err := st.Sessions(*limit)
		if err != nil {
			fatalf("reading sessions: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tLAYOUT")
		for _, s := range sessions {
			duration := "running"
			if s.EndNs != nil {
				duration = time.Duration(*s.EndNs - s.StartNs).Round(time.Second).String()
			}
			layoutFile := s.Layout
			if layoutFile == "" {
				layoutFile = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, formatNs(s.StartNs), duration, layoutFile)
		}
		w.Flush()

	case "stats":
		stats, err := st.Stats()
		if err != nil {
			fatalf("reading stats: %v", err)
		}
		fmt.Printf("Database: %s\n", path)
		fmt.Printf("Entries:  %d\n", stats.Entries)
		fmt.Printf("Presses:  %d across %d codes\n", stats.Presses, stats.Codes)
		fmt.Printf("Sessions: %d\n", stats.Sessions)
		if stats.Entries > 0 {
			fmt.Printf("Oldest:   %s\n", formatNs(stats.OldestNs))
			fmt.Printf("Newest:   %s\n", formatNs(stats.NewestNs))
		}

	case "prune":
		age := *days
		if age == 0 {
			age = cfg.History.RetentionDays
		}
		if age <= 0 {
			fatalf("pruning: no age given and history.retention_days is %d", age)
		}
		n, err := st.Prune(time.Now().AddDate(0, 0, -age))
		if err != nil {
			fatalf("pruning: %v", err)
		}
		fmt.Printf("Deleted %d entries older than %d days (press counts kept)\n", n, age)

	case "verify":
		mismatches, err := st.VerifyCounts()
		if err != nil {
			fatalf("verifying: %v", err)
		}
		if len(mismatches) == 0 {
			fmt.Println("Press counts match the history.")
			return
		}
		fmt.Printf("%d press counts disagree with the history:\n", len(mismatches))
		for _, m := range mismatches {
			fmt.Printf("  %s\n", m)
		}
		if !*fix {
			fmt.Println("Run with -fix to rebuild them.")
			os.Exit(2)
		}
		if err := st.RebuildCounts(); err != nil {
			fatalf("rebuilding counts: %v", err)
		}
		fmt.Println("Press counts rebuilt.")

	case "replay":
		entries, err := st.Recent(*limit)
		if err != nil {
			fatalf("reading history: %v", err)
		}
		if len(entries) == 0 {
			fatalf("replaying: the history is empty")
		}
		events := make([]input.Event, len(entries))
		for i, e := range entries {
			events[len(entries)-1-i] = e.Event()
		}
		historyReplay(cfg, cfgPath, events, *speed, *out)

	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n\n", action)
		historyUsage()
		os.Exit(1)
	}
}

// historyMigrate works on the raw database so that status reports the
// schema as found and rollback is not undone by Open.
func historyMigrate(path, action string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fatalf("opening history: %s does not exist", path)
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		fatalf("opening history: %v", err)
	}
	defer db.Close()

	switch action {
	case "", "status":
		status, err := store.GetMigrationStatus(db)
		if err != nil {
			fatalf("reading migrations: %v", err)
		}
		fmt.Printf("Schema version: %d (latest %d)\n", status.CurrentVersion, status.LatestVersion)
		for _, m := range status.Applied {
			fmt.Printf("  applied  v%d  %s  %s\n", m.Version, m.AppliedAt.Local().Format(time.RFC3339), m.Description)
		}
		for _, m := range status.Pending {
			fmt.Printf("  pending  v%d  %s\n", m.Version, m.Description)
		}
		if len(status.Pending) == 0 {
			if err := store.ValidateSchema(db); err != nil {
				fmt.Printf("Schema check failed: %v\n", err)
				os.Exit(2)
			}
		}
	case "up":
		if err := store.MigrateDB(db); err != nil {
			fatalf("migrating: %v", err)
		}
		fmt.Println("Schema is up to date.")
	case "rollback":
		if err := store.RollbackMigration(db); err != nil {
			fatalf("rolling back: %v", err)
		}
		status, err := store.GetMigrationStatus(db)
		if err != nil {
			fatalf("reading migrations: %v", err)
		}
		fmt.Printf("Rolled back to schema version %d. The overlay re-applies pending migrations on start.\n", status.CurrentVersion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate action: %s (want status, up or rollback)\n", action)
		os.Exit(1)
	}
}

// historyReplay renders the overlay as it looked after events.
func historyReplay(cfg *config.Config, cfgPath string, events []input.Event, speed float64, out string) {
	opts := renderOptions{
		Settings: cfg.Settings(filepath.Dir(cfgPath)),
		Replay:   events,
		Speed:    speed,
	}
	var err error
	if opts.Background, err = config.ParseColor(cfg.Preview.Background); err != nil {
		fatalf("parsing background: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	frame, _, err := renderFrame(ctx, opts)
	if err != nil {
		fatalf("replaying: %v", err)
	}
	if err := writeImage(out, frame); err != nil {
		fatalf("writing %s: %v", out, err)
	}
	first, last := events[0].Timestamp, events[len(events)-1].Timestamp
	fmt.Printf("Replayed %d events from %s to %s into %s\n",
		len(events), first.Local().Format(time.RFC3339), last.Local().Format(time.RFC3339), out)
}
