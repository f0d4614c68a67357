package types

// ABIVersion is the Proxy-Wasm ABI version this SDK pins. The matching
// marker export must be present in every plugin binary; hosts reject
// binaries carrying a different marker instead of assuming compatibility.
const ABIVersion = "proxy_abi_version_0_2_0"

// Action tells the host how to proceed with the current phase.
type Action uint32

const (
	// ActionContinue lets the host move on to the next phase.
	ActionContinue Action = 0
	// ActionPause holds the current phase until the plugin resumes the
	// stream, typically after an out-of-band HTTP call completes.
	ActionPause Action = 1
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "Continue"
	case ActionPause:
		return "Pause"
	}
	return "Unknown"
}

// Status is the raw result code of a host import call. Wrappers translate
// every non-Ok status into a typed error; plugin code never sees Status
// directly.
type Status uint32

const (
	StatusOK                  Status = 0
	StatusNotFound            Status = 1
	StatusBadArgument         Status = 2
	StatusSerializationFail   Status = 3
	StatusParseFail           Status = 4
	StatusBadExpression       Status = 5
	StatusInvalidMemoryAccess Status = 6
	StatusEmpty               Status = 7
	StatusCasMismatch         Status = 8
	StatusResultMismatch      Status = 9
	StatusInternalFailure     Status = 10
	StatusBrokenConnection    Status = 11
	StatusUnimplemented       Status = 12
)

// LogLevel is the severity passed to the host's proxy_log import.
type LogLevel uint32

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelCritical
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "trace"
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelCritical:
		return "critical"
	}
	return "unknown"
}

// BufferType selects which host-owned byte buffer a get/set call addresses.
type BufferType uint32

const (
	BufferTypeHttpRequestBody      BufferType = 0
	BufferTypeHttpResponseBody     BufferType = 1
	BufferTypeDownstreamData       BufferType = 2
	BufferTypeUpstreamData         BufferType = 3
	BufferTypeHttpCallResponseBody BufferType = 4
	BufferTypeGrpcReceiveBuffer    BufferType = 5
	BufferTypeVMConfiguration      BufferType = 6
	BufferTypePluginConfiguration  BufferType = 7
	BufferTypeCallData             BufferType = 8
)

// MapType selects which host-owned header map a map call addresses.
type MapType uint32

const (
	MapTypeHttpRequestHeaders          MapType = 0
	MapTypeHttpRequestTrailers         MapType = 1
	MapTypeHttpResponseHeaders         MapType = 2
	MapTypeHttpResponseTrailers        MapType = 3
	MapTypeGrpcReceiveInitialMetadata  MapType = 4
	MapTypeGrpcReceiveTrailingMetadata MapType = 5
	MapTypeHttpCallResponseHeaders     MapType = 6
	MapTypeHttpCallResponseTrailers    MapType = 7
)

// StreamType names a direction for resume/close calls.
type StreamType uint32

const (
	StreamTypeHttpRequest  StreamType = 0
	StreamTypeHttpResponse StreamType = 1
	StreamTypeDownstream   StreamType = 2
	StreamTypeUpstream     StreamType = 3
)

// PeerType reports which side closed a TCP connection.
type PeerType uint32

const (
	PeerTypeUnknown PeerType = 0
	PeerTypeLocal   PeerType = 1
	PeerTypeRemote  PeerType = 2
)

// MetricType selects the kind of a host-side metric.
type MetricType uint32

const (
	MetricTypeCounter   MetricType = 0
	MetricTypeGauge     MetricType = 1
	MetricTypeHistogram MetricType = 2
)

// ContextKind discriminates registry entries. The dispatcher checks the kind
// before routing a phase callback, so an HTTP phase can never reach a TCP
// context.
type ContextKind uint8

const (
	ContextKindRoot ContextKind = iota
	ContextKindHttpStream
	ContextKindTcpStream
)

func (k ContextKind) String() string {
	switch k {
	case ContextKindRoot:
		return "root"
	case ContextKindHttpStream:
		return "http-stream"
	case ContextKindTcpStream:
		return "tcp-stream"
	}
	return "unknown"
}
