package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/runtime"
)

// argList collects repeated -arg flags.
type argList []string

func (a *argList) String() string { return strings.Join(*a, ",") }

func (a *argList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func main() {
	var args argList
	var (
		configFile  = flag.String("config", "", "Path to bridge.yaml (default: search from the working directory)")
		wasmFile    = flag.String("wasm", "", "Guest wasm module to load (optional)")
		module      = flag.String("module", "", "Native module to call, or empty to call the guest")
		funcName    = flag.String("func", "", "Function to call")
		digest      = flag.Int("digest", 0, "Schedule N digest tasks and wait for their results")
		list        = flag.Bool("list", false, "List modules and their exports and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Var(&args, "arg", "Argument to pass (repeatable)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	runtime.SetLogger(log)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "stdout is not a terminal, ignoring -i")
		} else {
			if err := runInteractive(cfg, *wasmFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if !*list && *funcName == "" && *digest == 0 {
		fmt.Fprintln(os.Stderr, "Usage: run [-config bridge.yaml] -module <name> -func <name> [-arg v ...]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -func <export> [-arg number ...]")
		fmt.Fprintln(os.Stderr, "       run -digest <n>")
		fmt.Fprintln(os.Stderr, "       run -list")
		fmt.Fprintln(os.Stderr, "       run -i  (interactive mode)")
		os.Exit(1)
	}

	opts := runOptions{
		wasmFile: *wasmFile,
		module:   *module,
		funcName: *funcName,
		args:     args,
		digest:   *digest,
		list:     *list,
	}
	if err := run(cfg, log, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.Default(), nil
		}
		path = found
	}
	return config.Load(path)
}

type runOptions struct {
	wasmFile string
	module   string
	funcName string
	args     []string
	digest   int
	list     bool
}

// session is a runtime with one isolate and the demo modules bound.
type session struct {
	rt      *runtime.Runtime
	iso     *runtime.Isolate
	results *Results
	guest   *engine.Guest
}

func open(ctx context.Context, cfg *config.Config, wasmFile string) (*session, error) {
	rt, err := runtime.New(ctx, cfg.RuntimeOptions())
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	s := &session{rt: rt, results: NewResults()}
	if err := setup(rt, s.results); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("register modules: %w", err)
	}
	s.iso, err = rt.NewIsolate(ctx)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("create isolate: %w", err)
	}

	if wasmFile != "" {
		data, err := os.ReadFile(wasmFile)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("read file: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(wasmFile), filepath.Ext(wasmFile))
		if s.guest, err = s.iso.LoadGuest(ctx, name, data); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("load guest: %w", err)
		}
	}
	return s, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.rt.Close(ctx)
}

// callGuest calls a guest export. Arguments and results are f64.
func (s *session) callGuest(ctx context.Context, fn string, args []string) ([]float64, error) {
	if s.guest == nil {
		return nil, fmt.Errorf("no guest loaded")
	}
	params := make([]uint64, len(args))
	for k, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", k, err)
		}
		params[k] = api.EncodeF64(f)
	}
	res, err := s.guest.Call(ctx, fn, params...)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(res))
	for k, r := range res {
		out[k] = api.DecodeF64(r)
	}
	return out, nil
}

func run(cfg *config.Config, log *zap.Logger, opts runOptions) error {
	ctx := context.Background()

	s, err := open(ctx, cfg, opts.wasmFile)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if opts.list {
		mods, err := s.iso.Modules(ctx)
		if err != nil {
			return err
		}
		for _, m := range mods {
			exports, err := s.iso.Exports(ctx, m)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", m)
			for _, e := range exports {
				fmt.Printf("  %s\n", e)
			}
		}
		if s.guest != nil {
			fmt.Printf("guest: %s\n", s.guest.Name())
		}
		return nil
	}

	if opts.digest > 0 {
		return runDigests(ctx, s, opts.digest, opts.args)
	}

	if opts.module == "" {
		if s.guest == nil {
			return fmt.Errorf("-module or -wasm is required")
		}
		res, err := s.callGuest(ctx, opts.funcName, opts.args)
		if err != nil {
			return err
		}
		fmt.Printf("Result: %v\n", res)
		return nil
	}

	vals := make([]any, len(opts.args))
	for k, a := range opts.args {
		vals[k] = parseArg(a)
	}
	log.Debug("calling export",
		zap.String("module", opts.module),
		zap.String("func", opts.funcName),
		zap.Int("args", len(vals)))

	res, err := s.iso.Call(ctx, opts.module, opts.funcName, vals...)
	if err != nil {
		return err
	}
	if err := s.iso.Wait(ctx); err != nil {
		return err
	}
	fmt.Printf("Result: %s\n", formatValue(res))
	return nil
}

// runDigests schedules n digest jobs over the given texts, or over
// generated ones, and prints each result.
func runDigests(ctx context.Context, s *session, n int, texts []string) error {
	ids := make([]string, 0, n)
	for k := 0; k < n; k++ {
		text := fmt.Sprintf("input-%d", k)
		if len(texts) > 0 {
			text = texts[k%len(texts)]
		}
		id, err := s.iso.Call(ctx, "jobs", "digest", text, 1000)
		if err != nil {
			return err
		}
		ids = append(ids, id.(string))
	}
	if err := s.iso.Wait(ctx); err != nil {
		return err
	}
	for _, id := range ids {
		v, _ := s.results.Get(id)
		fmt.Printf("%s  %s\n", id, v)
	}
	return nil
}

// parseArg maps a command line argument to a number, boolean, null, or
// string.
func parseArg(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case []byte:
		return fmt.Sprintf("<buffer % x>", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
