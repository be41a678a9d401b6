package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/pthm/hxlive/lib/generator"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(args)
	case "clean":
		err = runClean(args)
	case "version":
		fmt.Printf("hxlive version %s\n", version)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `hxlive - server-driven components for htmx

Usage:
  hxlive <command> [flags] [packages]

Commands:
  generate [packages]   Write field handles for //hxlive:state structs (*_hx.go)
  clean [packages]      Remove generated files (*_hx.go)
  version               Print version
  help                  Show this help

Flags:
  --dry-run             Show what would be written or removed
  -q, --quiet           Only log warnings and errors

Examples:
  hxlive generate ./...
  hxlive generate --dry-run ./state
  hxlive clean ./...

Packages default to ./...`)
}

// newGenerator parses the shared flags and returns the generator and the
// package patterns.
func newGenerator(name string, args []string) (*generator.Generator, []string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "show what would be written or removed")
	quiet := fs.BoolP("quiet", "q", false, "only log warnings and errors")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *quiet {
		log.SetLevel(logrus.WarnLevel)
	}

	patterns := fs.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	return generator.New(generator.Options{DryRun: *dryRun, Logger: log}), patterns, nil
}

func runGenerate(args []string) error {
	gen, patterns, err := newGenerator("generate", args)
	if err != nil {
		return err
	}
	return gen.Generate(patterns...)
}

func runClean(args []string) error {
	gen, patterns, err := newGenerator("clean", args)
	if err != nil {
		return err
	}
	return gen.Clean(patterns...)
}
