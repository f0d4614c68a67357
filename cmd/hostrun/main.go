package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
	"github.com/wippyai/proxywasm-sdk/vmhost"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to plugin wasm file")
		config      = flag.String("config", "", "Plugin configuration (string, or @file)")
		vmConfig    = flag.String("vmconfig", "", "VM configuration (string, or @file)")
		path        = flag.String("path", "/", "Request path for the synthetic request")
		method      = flag.String("method", "GET", "Request method")
		headers     = flag.String("headers", "", "Extra request headers (k=v,k2=v2)")
		body        = flag.String("body", "", "Request body")
		list        = flag.Bool("list", false, "List plugin exports and exit")
		memPages    = flag.Uint("mem", 1024, "Memory limit in 64KB pages")
		interpreter = flag.Bool("interpreter", false, "Force the interpreter backend")
		verbose     = flag.Bool("v", false, "Verbose host logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: hostrun -wasm <plugin.wasm> [-config cfg] [-path /x] [-headers k=v,...]")
		fmt.Fprintln(os.Stderr, "       hostrun -wasm <plugin.wasm> -list")
		fmt.Fprintln(os.Stderr, "       hostrun -wasm <plugin.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*wasmFile, readArg(*config), readArg(*vmConfig)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	opts := runOptions{
		wasmFile:    *wasmFile,
		config:      readArg(*config),
		vmConfig:    readArg(*vmConfig),
		path:        *path,
		method:      *method,
		headers:     parseHeaders(*headers),
		body:        []byte(*body),
		listOnly:    *list,
		memPages:    uint32(*memPages),
		interpreter: *interpreter,
		verbose:     *verbose,
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	wasmFile    string
	config      []byte
	vmConfig    []byte
	path        string
	method      string
	headers     [][2]string
	body        []byte
	listOnly    bool
	memPages    uint32
	interpreter bool
	verbose     bool
}

// readArg resolves a flag value that may reference a file with @path.
func readArg(v string) []byte {
	if v == "" {
		return nil
	}
	if strings.HasPrefix(v, "@") {
		data, err := os.ReadFile(v[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return data
	}
	return []byte(v)
}

func parseHeaders(s string) [][2]string {
	var out [][2]string
	if s == "" {
		return out
	}
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			out = append(out, [2]string{parts[0], parts[1]})
		}
	}
	return out
}

func run(opts runOptions) error {
	ctx := context.Background()

	data, err := os.ReadFile(opts.wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	rt, err := vmhost.New(ctx, vmhost.Config{
		MemoryLimitPages: opts.memPages,
		Interpreter:      opts.interpreter,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	rt.SetVMConfiguration(opts.vmConfig)
	rt.SetPluginConfiguration(opts.config)

	plugin, err := rt.Load(ctx, data)
	if err != nil {
		return fmt.Errorf("load plugin: %w", err)
	}

	fmt.Printf("Plugin: %s\n", opts.wasmFile)
	fmt.Printf("ABI: %s\n", types.ABIVersion)

	if opts.listOnly {
		return nil
	}

	// Boot the plugin.
	const rootID = 1
	if err := plugin.OnContextCreate(ctx, rootID, 0); err != nil {
		return fmt.Errorf("create root context: %w", err)
	}
	ok, err := plugin.OnVMStart(ctx, rootID)
	if err != nil {
		return fmt.Errorf("vm start: %w", err)
	}
	if !ok {
		return fmt.Errorf("plugin rejected vm start")
	}
	ok, err = plugin.OnConfigure(ctx, rootID)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	if !ok {
		return fmt.Errorf("plugin rejected configuration")
	}

	// Drive one synthetic request through the HTTP phases.
	const streamID = 2
	requestHeaders := append([][2]string{
		{":path", opts.path},
		{":method", opts.method},
		{":authority", "localhost"},
	}, opts.headers...)

	plugin.SetHeaderMap(streamID, types.MapTypeHttpRequestHeaders, requestHeaders)
	if err := plugin.OnContextCreate(ctx, streamID, rootID); err != nil {
		return fmt.Errorf("create stream context: %w", err)
	}

	endOfStream := len(opts.body) == 0
	action, err := plugin.OnRequestHeaders(ctx, streamID, endOfStream)
	if err != nil {
		return fmt.Errorf("request headers: %w", err)
	}
	fmt.Printf("\non_request_headers: %s\n", action)

	if len(opts.body) > 0 && action == types.ActionContinue {
		plugin.AppendBuffer(streamID, types.BufferTypeHttpRequestBody, opts.body)
		action, err = plugin.OnRequestBody(ctx, streamID, true)
		if err != nil {
			return fmt.Errorf("request body: %w", err)
		}
		fmt.Printf("on_request_body: %s\n", action)
	}

	fmt.Printf("\nRequest headers after plugin:\n")
	printHeaders(plugin.HeaderMap(streamID, types.MapTypeHttpRequestHeaders))

	if calls := plugin.PendingCalls(); len(calls) > 0 {
		fmt.Printf("\nPending outbound calls:\n")
		for _, c := range calls {
			fmt.Printf("  token=%d upstream=%s timeout=%s\n", c.Token, c.Upstream, c.Timeout)
		}
	}

	if responses := plugin.LocalResponses(); len(responses) > 0 {
		fmt.Printf("\nLocal responses:\n")
		for _, r := range responses {
			fmt.Printf("  %d %s\n", r.StatusCode, r.Body)
			printHeaders(r.Headers)
		}
	}

	// Teardown.
	if err := plugin.OnLog(ctx, streamID); err != nil {
		return fmt.Errorf("log phase: %w", err)
	}
	if _, err := plugin.OnDone(ctx, streamID); err != nil {
		return fmt.Errorf("done: %w", err)
	}
	if err := plugin.OnDelete(ctx, streamID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	plugin.DropContextState(streamID)

	if logs := plugin.Logs(); len(logs) > 0 {
		fmt.Printf("\n--- plugin logs ---\n")
		for _, entry := range logs {
			fmt.Printf("[%s] %s\n", entry.Level, entry.Message)
		}
	}

	return nil
}

func printHeaders(pairs [][2]string) {
	sorted := make([][2]string, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })
	for _, p := range sorted {
		fmt.Printf("  %s: %s\n", p[0], p[1])
	}
}
