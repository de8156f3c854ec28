package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	yasl "github.com/yasl-lang/yaslapi-go"
	"github.com/yasl-lang/yaslapi-go/rt/wazerort"
)

func main() {
	var (
		compileOnly = flag.String("compile", "", "Compile the script at the given path without executing")
		execEcho    = flag.String("e", "", "Execute the given source and print the final expression")
		execQuiet   = flag.String("E", "", "Execute the given source")
		configPath  = flag.String("config", "", "Path to a TOML config file")
		runtimePath = flag.String("runtime", "", "Path to the interpreter wasm build (overrides config)")
		debug       = flag.Bool("debug", false, "Enable development logging")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: yasl [flags] [script.yasl]")
		fmt.Fprintln(os.Stderr, "       yasl -e 'source'   execute and print the final expression")
		fmt.Fprintln(os.Stderr, "       yasl -E 'source'   execute")
		fmt.Fprintln(os.Stderr, "       yasl -compile script.yasl")
		fmt.Fprintln(os.Stderr, "       yasl               start the REPL")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*compileOnly, *execEcho, *execQuiet, *configPath, *runtimePath, *debug, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "yasl: %v\n", err)
		os.Exit(1)
	}
}

func run(compileOnly, execEcho, execQuiet, configPath, runtimePath string, debug bool, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if runtimePath != "" {
		cfg.Runtime.Wasm = runtimePath
	}
	if debug {
		cfg.Logging.Debug = true
	}

	if cfg.Logging.Debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer logger.Sync()
		wazerort.SetLogger(logger)
	}

	ctx := context.Background()

	switch {
	case compileOnly != "":
		return withEngine(ctx, cfg, func() error { return compileScript(compileOnly) })
	case execEcho != "":
		return withEngine(ctx, cfg, func() error { return execSource(execEcho, true) })
	case execQuiet != "":
		return withEngine(ctx, cfg, func() error { return execSource(execQuiet, false) })
	case len(args) > 0:
		return withEngine(ctx, cfg, func() error { return runScript(args[0]) })
	}
	return runREPL(ctx, cfg)
}

// withEngine builds the default engine around fn for the one-shot modes.
// The REPL manages its own engine so it can capture interpreter output.
func withEngine(ctx context.Context, cfg *Config, fn func() error) error {
	eng, err := wazerort.NewFromFile(ctx, cfg.Runtime.Wasm)
	if err != nil {
		return err
	}
	defer eng.Close()
	yasl.SetEngine(eng)
	defer yasl.SetEngine(nil)
	return fn()
}

func compileScript(path string) error {
	s, err := yasl.NewStateFromPath(path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.DeclareLibs(); err != nil {
		return err
	}
	return s.Compile()
}

func execSource(source string, echo bool) error {
	s, err := yasl.NewState(source)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.DeclareLibs(); err != nil {
		return err
	}
	if echo {
		return s.ExecuteREPL()
	}
	return s.Execute()
}

func runScript(path string) error {
	s, err := yasl.NewStateFromPath(path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.DeclareLibs(); err != nil {
		return err
	}
	return s.Execute()
}
