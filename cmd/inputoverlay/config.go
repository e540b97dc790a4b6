package main

import (
	"flag"
	"fmt"
	"os"

	"inputoverlay/internal/config"
)

func cmdConfig() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, `Usage: inputoverlay config <action> [options]

ACTIONS:
    init [-force] [path]        Write a default configuration
    show [-format toml|json|yaml]
                                Print the effective configuration
    validate                    Check the configuration for problems
    migrate                     Upgrade an older configuration file in place
    path                        Print the configuration file in use`)
		os.Exit(1)
	}
	action := os.Args[2]

	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	force := fs.Bool("force", false, "Overwrite an existing file")
	format := fs.String("format", "toml", "Output format for show")
	fs.Parse(os.Args[3:])

	path := resolveConfigPath(*configPath)

	switch action {
	case "init":
		if fs.NArg() > 0 {
			path = fs.Arg(0)
		} else if *configPath == "" {
			path = config.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !*force {
			fatalf("creating config: %s already exists (use -force to overwrite)", path)
		}
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg, path); err != nil {
			fatalf("creating config: %v", err)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		fmt.Println("Set overlay.image_file and overlay.layout_file, then run 'inputoverlay run'.")

	case "show":
		cfg, err := config.Load(path)
		if err != nil {
			fatalf("loading config: %v", err)
		}
		out, err := cfg.EncodeAs(*format)
		if err != nil {
			fatalf("encoding config: %v", err)
		}
		os.Stdout.Write(out)

	case "validate":
		cfg, err := config.Load(path)
		if err != nil {
			fatalf("loading config: %v", err)
		}
		issues := config.Check(cfg)
		for _, issue := range issues {
			level := "error"
			if issue.IsWarning() {
				level = "warning"
			}
			fmt.Printf("%-8s %s\n", level, issue.Error())
		}
		if issues.HasErrors() {
			fmt.Printf("%s is invalid\n", path)
			os.Exit(2)
		}
		fmt.Printf("%s is valid\n", path)

	case "migrate":
		result, err := config.MigrateFile(path)
		if err != nil {
			fatalf("migrating config: %v", err)
		}
		if result == nil {
			fmt.Printf("%s is already at version %d\n", path, config.Version)
			return
		}
		fmt.Printf("Migrated %s from version %d to %d\n", path, result.FromVersion, result.ToVersion)
		if result.Backup != "" {
			fmt.Printf("Backup: %s\n", result.Backup)
		}
		for _, c := range result.Changes {
			fmt.Printf("  - %s\n", c)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}

	case "path":
		fmt.Println(path)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		os.Exit(1)
	}
}
