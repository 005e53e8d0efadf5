// Command ssvm loads a WebAssembly 1.0 (MVP) binary, instantiates it, and
// invokes one of its exported functions with integer arguments.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/second-state/ssvm-go/api"
	"github.com/second-state/ssvm-go/internal/logging"
	"github.com/second-state/ssvm-go/internal/version"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr, os.Args[1:]))
}

// doMain is the testable entry point: it never calls os.Exit itself, so
// tests can assert on its return code and captured output instead of
// forking a subprocess.
func doMain(stdOut, stdErr io.Writer, args []string) int {
	flags := flag.NewFlagSet("ssvm", flag.ContinueOnError)
	flags.SetOutput(stdErr)
	flags.Usage = func() { printUsage(stdErr) }
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() == 0 {
		printUsage(stdErr)
		return 1
	}

	switch flags.Arg(0) {
	case "run":
		return doRun(stdOut, stdErr, flags.Args()[1:])
	case "version":
		fmt.Fprintln(stdOut, version.Version)
		return 0
	default:
		fmt.Fprintf(stdErr, "ssvm: unknown subcommand %q\n", flags.Arg(0))
		printUsage(stdErr)
		return 1
	}
}

func doRun(stdOut, stdErr io.Writer, args []string) int {
	flags := flag.NewFlagSet("ssvm run", flag.ContinueOnError)
	flags.SetOutput(stdErr)
	var invoke string
	var verbose bool
	flags.StringVar(&invoke, "invoke", "", "exported function to call after instantiation")
	flags.BoolVar(&verbose, "v", false, "log runtime diagnostics to stderr")
	flags.Usage = func() { printRunUsage(stdErr) }
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		printRunUsage(stdErr)
		return 1
	}
	path := flags.Arg(0)
	callArgs, err := parseArgs(flags.Args()[1:])
	if err != nil {
		fmt.Fprintf(stdErr, "ssvm: %v\n", err)
		return 1
	}

	m, err := api.ParseModuleFile(path)
	if err != nil {
		fmt.Fprintf(stdErr, "ssvm: %v\n", err)
		return 1
	}

	rt := api.NewRuntime()
	if verbose {
		log, lerr := logging.NewDevelopment()
		if lerr != nil {
			fmt.Fprintf(stdErr, "ssvm: %v\n", lerr)
			return 1
		}
		rt = rt.WithLogger(log)
	}

	modCfg := api.NewModuleConfig().WithStdin(os.Stdin).WithStdout(stdOut).WithStderr(stdErr)
	if _, err := rt.RegisterImportObject(api.NewEnvModule(modCfg)); err != nil {
		fmt.Fprintf(stdErr, "ssvm: %v\n", err)
		return 1
	}

	inst, err := rt.InstantiateModule(m)
	if err != nil {
		fmt.Fprintf(stdErr, "ssvm: %v\n", err)
		return 1
	}

	if invoke == "" {
		return 0
	}
	results, err := rt.Invoke(inst, invoke, callArgs...)
	if err != nil {
		fmt.Fprintf(stdErr, "ssvm: %v\n", err)
		return 1
	}
	strs := make([]string, len(results))
	for i, r := range results {
		strs[i] = strconv.FormatUint(r, 10)
	}
	fmt.Fprintln(stdOut, strings.Join(strs, " "))
	return 0
}

// parseArgs converts the run subcommand's trailing positional arguments
// into raw 64-bit call arguments; each is parsed as an unsigned integer,
// the same representation the interpreter's value stack uses for every
// value type regardless of its real sign or float-ness.
func parseArgs(raw []string) ([]uint64, error) {
	out := make([]uint64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid call argument %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ssvm - a WebAssembly 1.0 (MVP) interpreter")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "\tssvm run <path.wasm> [args...]\tinstantiate and optionally invoke an export")
	fmt.Fprintln(w, "\tssvm version\t\t\tprint the runtime version")
}

func printRunUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ssvm run [-invoke <name>] [-v] <path.wasm> [args...]")
	fmt.Fprintln(w, "\nFlags:")
	fmt.Fprintln(w, "\t-invoke string\texported function to call after instantiation")
	fmt.Fprintln(w, "\t-v\t\tlog runtime diagnostics to stderr")
}
