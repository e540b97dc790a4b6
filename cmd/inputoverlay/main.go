// inputoverlay - input overlay source for streaming setups
//
// The overlay draws keyboard, mouse and gamepad state from a texture atlas
// and a layout file:
//
//	inputoverlay run            Run the overlay with hooks and hot reload
//	inputoverlay render         Render one frame to an image file
//	inputoverlay layout         Check or convert layout files
//	inputoverlay status         Show configuration, assets and hooks
//	inputoverlay history        Query the input history database
//	inputoverlay config         Create, show, validate or migrate config
package main

import (
	"fmt"
	"os"

	"inputoverlay/internal/config"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "run":
		cmdRun()
	case "render":
		cmdRender()
	case "layout":
		cmdLayout()
	case "status":
		cmdStatus()
	case "history":
		cmdHistory()
	case "config":
		cmdConfig()
	case "version", "-v", "--version":
		fmt.Printf("inputoverlay %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`inputoverlay - Keyboard, mouse and gamepad overlay

USAGE:
    inputoverlay <command> [options]

COMMANDS:
    run                 Run the overlay (hooks, hot reload, status server)
    render              Render a single frame to png, jpg, bmp or tiff
    layout <action>     Check or convert layout files
    status              Show configuration, asset and hook status
    history <action>    Query or maintain the input history database
    config <action>     Create, show, validate or migrate the configuration
    version             Print the version
    help                Show this help message

GETTING STARTED:
    1. inputoverlay config init               # Write a default config
    2. (set overlay.image_file and overlay.layout_file)
    3. inputoverlay layout check layout.toml  # Validate the layout
    4. inputoverlay render -press 17,mouse_left -o preview.png
    5. inputoverlay run                       # Run with live input

Without a layout file the overlay draws the whole atlas unchanged.
Layout and image changes are picked up while running.

The configuration is read from -config, $INPUTOVERLAY_CONFIG or the
platform configuration directory.`)
}

// configFlagUsage is shared by every subcommand taking -config.
const configFlagUsage = "Configuration file (default: search the platform config directory)"

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("INPUTOVERLAY_CONFIG"); env != "" {
		return env
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error "+format+"\n", args...)
	os.Exit(1)
}
