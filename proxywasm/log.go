package proxywasm

import (
	"fmt"

	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// Log emits a message through the host's logger at the given level. Log
// output is the only I/O a plugin has besides the ABI itself, so these also
// carry panic reports when a callback fails.
func Log(level types.LogLevel, msg string) {
	internal.ProxyLog(uint32(level), internal.StringPtr(msg), int32(len(msg)))
}

func Logf(level types.LogLevel, format string, args ...any) {
	Log(level, fmt.Sprintf(format, args...))
}

func LogTrace(msg string)    { Log(types.LogLevelTrace, msg) }
func LogDebug(msg string)    { Log(types.LogLevelDebug, msg) }
func LogInfo(msg string)     { Log(types.LogLevelInfo, msg) }
func LogWarn(msg string)     { Log(types.LogLevelWarn, msg) }
func LogError(msg string)    { Log(types.LogLevelError, msg) }
func LogCritical(msg string) { Log(types.LogLevelCritical, msg) }

func LogTracef(format string, args ...any)    { Logf(types.LogLevelTrace, format, args...) }
func LogDebugf(format string, args ...any)    { Logf(types.LogLevelDebug, format, args...) }
func LogInfof(format string, args ...any)     { Logf(types.LogLevelInfo, format, args...) }
func LogWarnf(format string, args ...any)     { Logf(types.LogLevelWarn, format, args...) }
func LogErrorf(format string, args ...any)    { Logf(types.LogLevelError, format, args...) }
func LogCriticalf(format string, args ...any) { Logf(types.LogLevelCritical, format, args...) }
