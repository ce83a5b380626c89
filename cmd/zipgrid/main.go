// zipgrid builds, serves and publishes postal-code grid datasets.
//
// Usage:
//
//	zipgrid build   --records zips.csv [--grid grid.json] --out data
//	zipgrid serve   [--addr :8080] [--data data] [--static www]
//	zipgrid resolve CODE...
//	zipgrid suggest PARTIAL...
//	zipgrid push    DIR REF
//	zipgrid pull    REF DEST
//
// Every command accepts --config, --env-file, --log-level and --log-format.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"build", "build a shard tree from CSV records", runBuild},
	{"serve", "serve a dataset directory and the lookup API", runServe},
	{"resolve", "resolve complete postal codes to grid cells", runResolve},
	{"suggest", "list completions for partial postal codes", runSuggest},
	{"push", "publish a dataset directory to an OCI registry", runPush},
	{"pull", "download a dataset from an OCI registry", runPull},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return errors.New("missing command")
		}
		return pflag.ErrHelp
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, &env{stdout: stdout, stderr: stderr}, args[1:])
		}
	}
	printUsage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: zipgrid <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
}
