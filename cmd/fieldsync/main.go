// fieldsync replays recorded text field input through the debounced
// transform pipeline and reports the reconciled field.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/host"
	"fieldsync/internal/logging"
	"fieldsync/internal/reconcile"
	"fieldsync/internal/script"
	"fieldsync/internal/session"
)

var (
	configPath = flag.String("config", "", "path to config file")
	watch      = flag.Bool("watch", false, "reload the debounce delay when the config file changes")
	jsonOut    = flag.Bool("json", false, "print the replay result as JSON")
	showStats  = flag.Bool("metrics", false, "print session metrics in Prometheus text format after the replay")
	logLevel   = flag.String("log-level", "", "override the configured log level")
	timeout    = flag.Duration("timeout", 30*time.Second, "maximum replay duration")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	switch cmd := flag.Arg(0); cmd {
	case "replay":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: fieldsync replay <script.yaml|script.json>")
			os.Exit(1)
		}
		os.Exit(cmdReplay(flag.Arg(1)))
	case "check-config":
		os.Exit(cmdCheckConfig())
	case "init-config":
		path := config.ConfigPath()
		if flag.NArg() >= 2 {
			path = flag.Arg(1)
		}
		os.Exit(cmdInitConfig(path))
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `fieldsync - Replay text field input through the transform pipeline

Usage: fieldsync [options] <command> [args]

Commands:
  replay <script>      Play a JSON or YAML input script and print the final field
  check-config         Load and validate the configuration
  init-config [path]   Write the default configuration
  help                 Show this help message

Options:
  -config <path>       Path to config file (default: ./config.* or the platform config dir)
  -watch               Hot-reload the debounce delay while replaying
  -json                Print the replay result as JSON
  -metrics             Print session metrics after the replay
  -log-level <level>   Override the configured log level
  -timeout <duration>  Maximum replay duration (default: 30s)`)
}

func resolveConfigPath() string {
	if *configPath != "" {
		return *configPath
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.Clone().Logging
	if *logLevel != "" {
		lc.Level = *logLevel
	}

	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	lcfg := logging.DefaultConfig()
	lcfg.Level = level
	lcfg.Format = format
	lcfg.Output = lc.Output
	lcfg.FilePath = lc.FilePath
	lcfg.MaxSize = int64(lc.MaxSizeMB)
	lcfg.MaxBackups = lc.MaxBackups
	lcfg.MaxAge = lc.MaxAgeDays
	lcfg.RedactText = level > logging.LevelDebug
	return logging.New(lcfg)
}

func cmdReplay(path string) int {
	sc, err := script.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading script: %v\n", err)
		return 1
	}

	loader := config.NewLoader(resolveConfigPath(), nil)
	defer loader.Close()
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer logger.Close()
	logging.SetDefault(logger)

	opts, err := session.OptionsFromConfig(cfg, logger.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		return 1
	}

	field := host.NewField(sc.InitialText)
	s := session.New(field, opts)
	defer s.Close()

	if *watch {
		s.Follow(loader)
		if err := loader.Watch(); err != nil {
			fmt.Fprintf(os.Stderr, "Error watching config: %v\n", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	runCtx, stopRun := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() {
		err := s.Run(runCtx)
		// A session that stops on its own ends the replay too.
		cancel()
		runErr <- err
	}()

	res, playErr := script.Play(ctx, s, field, sc, logger.Logger)
	stopRun()
	err = <-runErr

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "Session failed: %v\n", err)
		return 1
	}
	if playErr != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", playErr)
		return 1
	}

	if *jsonOut {
		printJSON(sc, res)
	} else {
		printResult(sc, res)
	}
	if *showStats {
		fmt.Println()
		if err := s.Metrics().Registry().WritePrometheus(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing metrics: %v\n", err)
		}
	}

	if err := sc.Check(res); err != nil {
		fmt.Fprintf(os.Stderr, "Expectation failed: %v\n", err)
		return 2
	}
	return 0
}

func printResult(sc *script.Script, res script.Result) {
	name := sc.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Printf("=== Replay: %s ===\n", name)
	fmt.Println()
	fmt.Printf("Steps:      %d\n", len(sc.Steps))
	fmt.Printf("Text:       %q\n", res.Text)
	fmt.Printf("Selection:  [%d, %d]\n", res.SelectionStart, res.SelectionEnd)
	if res.Composing.Present() {
		fmt.Printf("Composing:  [%d, %d]\n", res.Composing.Start, res.Composing.End)
		for _, line := range strings.Split(reconcile.FormatComposing(res.Text, res.Composing), "\n") {
			fmt.Printf("  %s\n", line)
		}
	} else {
		fmt.Println("Composing:  none")
	}
	fmt.Println()

	st := res.Stats
	fmt.Println("Session:")
	fmt.Printf("  User edits:        %d\n", st.UserEdits)
	fmt.Printf("  No-op edits:       %d\n", st.NoopSuppressed)
	fmt.Printf("  Feedback ignored:  %d\n", st.FeedbackIgnored)
	fmt.Printf("  Transformed:       %d\n", st.Transformed)
	fmt.Printf("  Conflated:         %d\n", st.Conflated)
	fmt.Printf("  Applied:           %d\n", st.Applied)
	fmt.Printf("  Stale:             %d\n", st.Stale)
	if st.Failed > 0 || st.Panics > 0 {
		fmt.Printf("  Failed:            %d\n", st.Failed)
		fmt.Printf("  Panics:            %d\n", st.Panics)
	}
}

func printJSON(sc *script.Script, res script.Result) {
	out := map[string]any{
		"name":      sc.Name,
		"text":      res.Text,
		"selection": []int{res.SelectionStart, res.SelectionEnd},
		"composing": []int{res.Composing.Start, res.Composing.End},
		"stats":     res.Stats,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func cmdCheckConfig() int {
	path := resolveConfigPath()
	loader := config.NewLoader(path, nil)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintf(os.Stderr, "Config %s is invalid:\n", path)
			for _, e := range verrs {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", e.Field, e.Message)
			}
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("Config %s not found, using defaults\n", path)
	} else {
		fmt.Printf("Config %s is valid\n", path)
	}
	fmt.Printf("  Debounce:    %v\n", cfg.Debounce())
	fmt.Printf("  Mode:        %s\n", cfg.Pipeline.Mode)
	fmt.Printf("  Transforms:  %s\n", strings.Join(cfg.Pipeline.Transforms, ", "))
	fmt.Printf("  Log level:   %s\n", cfg.Logging.Level)
	return 0
}

func cmdInitConfig(path string) int {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Config %s already exists\n", path)
		return 1
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return 0
}
