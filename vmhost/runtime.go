package vmhost

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// Config holds configuration for runtime creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB
	// each). 0 means the wazero default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// Interpreter forces the interpreter backend instead of the compiler.
	// Slower, but works on platforms without compiler support and keeps
	// instantiation cheap for short-lived plugins.
	Interpreter bool

	// Logger receives host diagnostics and mirrored plugin log output.
	// Nil means no logging.
	Logger *zap.Logger
}

// Runtime hosts one Proxy-Wasm plugin over wazero. The env import module
// binds to the runtime, so each plugin instance gets its own Runtime.
type Runtime struct {
	runtime wazero.Runtime
	logger  *zap.Logger
	state   *hostState
}

// New creates a runtime with the given configuration.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	var runtimeCfg wazero.RuntimeConfig
	if cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	} else {
		runtimeCfg = wazero.NewRuntimeConfig()
	}
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runtime{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:  logger,
		state:   newHostState(logger),
	}
	imports := &envImports{state: r.state, logger: logger}
	if err := imports.register(ctx, r.runtime); err != nil {
		r.runtime.Close(ctx)
		return nil, sdkerrors.Instantiation(err)
	}
	return r, nil
}

// requiredExports are the entry points every plugin binary must carry on
// top of the ABI version marker. Optional handlers (tick, queues, TCP and
// HTTP phases) are probed at call time instead.
var requiredExports = []string{
	"proxy_on_memory_allocate",
	"proxy_on_context_create",
	"proxy_on_done",
	"proxy_on_delete",
}

// Load compiles and instantiates a plugin binary. The binary must be pinned
// to the ABI version this host speaks; anything else is rejected instead of
// being run on a guess.
func (r *Runtime) Load(ctx context.Context, wasmBytes []byte) (*Plugin, error) {
	compiled, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, sdkerrors.Instantiation(err)
	}

	marker := ""
	for name := range compiled.ExportedFunctions() {
		if strings.HasPrefix(name, "proxy_abi_version_") {
			marker = name
			break
		}
	}
	switch marker {
	case types.ABIVersion:
	case "":
		return nil, sdkerrors.ABIMismatch("plugin carries no proxy_abi_version marker")
	default:
		return nil, sdkerrors.ABIMismatch(
			"plugin is pinned to " + marker + ", host speaks " + types.ABIVersion)
	}

	mod, err := r.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("plugin"))
	if err != nil {
		return nil, sdkerrors.Instantiation(err)
	}
	for _, name := range requiredExports {
		if mod.ExportedFunction(name) == nil {
			_ = mod.Close(ctx)
			return nil, sdkerrors.MissingExport(name)
		}
	}

	r.logger.Info("plugin loaded",
		zap.String("abi", marker),
		zap.Int("binary_bytes", len(wasmBytes)))

	return &Plugin{
		module: mod,
		state:  r.state,
		logger: r.logger,
	}, nil
}

// SetVMConfiguration sets the buffer served during the plugin's OnVMStart.
func (r *Runtime) SetVMConfiguration(b []byte) { r.state.vmConfig = b }

// SetPluginConfiguration sets the buffer served during OnConfigure.
func (r *Runtime) SetPluginConfiguration(b []byte) { r.state.pluginConfig = b }

// SetProperty preloads a host property the plugin can read.
func (r *Runtime) SetProperty(path []string, value []byte) {
	r.state.setProperty(propertyKey(path), value)
}

// Close releases the runtime and every module instantiated in it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

func propertyKey(path []string) string {
	return strings.Join(path, "\x00")
}
