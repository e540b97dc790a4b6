package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"sort"

	"inputoverlay/internal/element"
	"inputoverlay/internal/gfx"
	"inputoverlay/internal/layout"
)

func cmdLayout() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, `Usage: inputoverlay layout <action> [options]

ACTIONS:
    check [-image atlas.png] <file>   Parse and validate a layout
    convert <in> <out>                Rewrite a layout as toml, json or yaml
    types                             List the supported element types`)
		os.Exit(1)
	}

	switch os.Args[2] {
	case "check":
		fs := flag.NewFlagSet("layout check", flag.ExitOnError)
		imageFile := fs.String("image", "", "Texture atlas to check mappings against")
		fs.Parse(os.Args[3:])
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: inputoverlay layout check [-image atlas.png] <file>")
			os.Exit(1)
		}
		report, err := checkLayout(fs.Arg(0), *imageFile)
		if err != nil {
			fatalf("checking layout: %v", err)
		}
		printLayoutReport(fs.Arg(0), report)
		if len(report.Warnings) > 0 {
			os.Exit(2)
		}

	case "convert":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: inputoverlay layout convert <in> <out>")
			os.Exit(1)
		}
		in, out := os.Args[3], os.Args[4]
		l, err := layout.Parse(in)
		if err != nil {
			fatalf("reading layout: %v", err)
		}
		if err := layout.Save(out, l); err != nil {
			fatalf("writing layout: %v", err)
		}
		fmt.Printf("Converted %s (%s) to %s (%s), %d elements\n",
			in, layout.FormatFromPath(in), out, layout.FormatFromPath(out), len(l.Elements))

	case "types":
		for _, t := range layout.Types() {
			fmt.Println(t)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown layout action: %s\n", os.Args[2])
		os.Exit(1)
	}
}

type layoutReport struct {
	Layout     *layout.Layout
	Types      map[layout.Type]int
	Atlas      image.Rectangle
	Visibility layout.Visibility
	Warnings   []string
}

// checkLayout parses path and, with an atlas, builds the element registry
// to report sections the overlay would skip.
func checkLayout(path, imagePath string) (*layoutReport, error) {
	l, err := layout.Parse(path)
	if err != nil {
		return nil, err
	}

	report := &layoutReport{
		Layout:     l,
		Types:      make(map[layout.Type]int),
		Visibility: layout.Visible(l),
	}
	for _, e := range l.Elements {
		report.Types[e.Type]++
	}

	if imagePath == "" {
		return report, nil
	}
	tex, err := gfx.LoadTexture(imagePath)
	if err != nil {
		return nil, fmt.Errorf("load atlas: %w", err)
	}
	report.Atlas = tex.Bounds()
	reg := element.NewRegistry(l, report.Atlas)
	for _, w := range reg.Warnings() {
		report.Warnings = append(report.Warnings, w.Error())
	}
	return report, nil
}

func printLayoutReport(path string, r *layoutReport) {
	fmt.Printf("Layout: %s (%s, version %d)\n", path, layout.FormatFromPath(path), r.Layout.Version)
	if g := r.Layout.Global; g.Width > 0 || g.Height > 0 {
		fmt.Printf("Size: %dx%d\n", g.Width, g.Height)
	}
	if !r.Atlas.Empty() {
		fmt.Printf("Atlas: %dx%d\n", r.Atlas.Dx(), r.Atlas.Dy())
	}

	fmt.Printf("Elements: %d\n", len(r.Layout.Elements))
	types := make([]string, 0, len(r.Types))
	for t := range r.Types {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-16s %d\n", t, r.Types[layout.Type(t)])
	}

	fields := r.Visibility.Fields()
	names := make([]string, 0, len(fields))
	for name, visible := range fields {
		if visible {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	fmt.Printf("Settings shown: %v\n", names)

	if len(r.Warnings) == 0 {
		fmt.Println("OK")
		return
	}
	fmt.Printf("\n%d problems against the atlas:\n", len(r.Warnings))
	for _, w := range r.Warnings {
		fmt.Printf("  - %s\n", w)
	}
}
