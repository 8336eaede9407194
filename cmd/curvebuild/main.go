package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/meenmo/curvekit/cmd/curvebuild/internal/asw"
	"github.com/meenmo/curvekit/cmd/curvebuild/internal/basis"
	"github.com/meenmo/curvekit/cmd/curvebuild/internal/funding"
	"github.com/meenmo/curvekit/cmd/curvebuild/internal/vol"
	"github.com/meenmo/curvekit/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "funding":
		return funding.Run(args[1:], stdin, stdout, stderr)
	case "basis":
		return basis.Run(args[1:], stdout, stderr)
	case "asw":
		return asw.Run(args[1:], stdin, stdout, stderr)
	case "vol":
		return vol.Run(args[1:], stdout, stderr)
	case "config":
		return printConfig(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
}

// printConfig writes the effective configuration (defaults, file, then
// CURVEKIT_* environment) as TOML.
func printConfig(args []string, stdout, stderr io.Writer) int {
	path := ""
	switch {
	case len(args) == 2 && (args[0] == "-config" || args[0] == "--config"):
		path = args[1]
	case len(args) != 0:
		fmt.Fprintln(stderr, "Usage: curvebuild config [-config curvekit.toml]")
		return 2
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	stdout.Write(b)
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: curvebuild <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  funding  Bootstrap a discount curve from a quote ladder")
	fmt.Fprintln(w, "  basis    Implied 3M/6M basis spreads from projection curves")
	fmt.Fprintln(w, "  asw      Par asset swap spreads of bonds against a funding curve")
	fmt.Fprintln(w, "  vol      Black implied volatility from an option price")
	fmt.Fprintln(w, "  config   Print the effective configuration as TOML")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run `curvebuild <command> -h` for command-specific help.")
}
