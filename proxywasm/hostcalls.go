package proxywasm

import (
	"time"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// Typed wrappers over the raw host imports. Every wrapper translates a
// non-Ok status into a structured error; callers branch on outcome classes
// with errors.Is against the sentinels in the errors package, for example
// errors.Is(err, sdkerrors.ErrNotFound) after a shared-data lookup.

func statusErr(function string, st types.Status) error {
	if st == types.StatusOK {
		return nil
	}
	return sdkerrors.HostCall(function, uint32(st))
}

// --- time and timers ---

// GetCurrentTime returns the host's clock reading.
func GetCurrentTime() (time.Time, error) {
	var nanos uint64
	if err := statusErr("proxy_get_current_time_nanoseconds",
		internal.ProxyGetCurrentTimeNanoseconds(&nanos)); err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(nanos)), nil
}

// SetTickPeriod arranges for OnTick on the calling root context at the given
// period. Sub-millisecond fractions are truncated; zero disables the timer.
func SetTickPeriod(period time.Duration) error {
	return statusErr("proxy_set_tick_period_milliseconds",
		internal.ProxySetTickPeriodMilliseconds(uint32(period.Milliseconds())))
}

// --- buffers ---

// GetBuffer reads up to maxSize bytes of the given buffer starting at start.
// An empty buffer yields sdkerrors.ErrEmpty, which is distinct from the
// buffer not existing in the current phase (sdkerrors.ErrNotFound).
func GetBuffer(bufferType types.BufferType, start, maxSize int) ([]byte, error) {
	var data *byte
	var size int32
	st := internal.ProxyGetBufferBytes(uint32(bufferType), int32(start), int32(maxSize), &data, &size)
	if err := statusErr("proxy_get_buffer_bytes", st); err != nil {
		return nil, err
	}
	return internal.ConsumeHostBuffer(data, size), nil
}

// SetBuffer replaces the byte range [start, start+length) of the given
// buffer with b. Mutating a read-only buffer fails with ErrBadArgument.
func SetBuffer(bufferType types.BufferType, start, length int, b []byte) error {
	return statusErr("proxy_set_buffer_bytes",
		internal.ProxySetBufferBytes(uint32(bufferType), int32(start), int32(length),
			internal.BytePtr(b), int32(len(b))))
}

// GetVMConfiguration reads the VM configuration during OnVMStart.
func GetVMConfiguration() ([]byte, error) {
	return GetBuffer(types.BufferTypeVMConfiguration, 0, maxReadSize)
}

// GetPluginConfiguration reads the plugin configuration during OnConfigure.
func GetPluginConfiguration() ([]byte, error) {
	return GetBuffer(types.BufferTypePluginConfiguration, 0, maxReadSize)
}

// GetHttpRequestBody reads a slice of the buffered request body.
func GetHttpRequestBody(start, maxSize int) ([]byte, error) {
	return GetBuffer(types.BufferTypeHttpRequestBody, start, maxSize)
}

// GetHttpResponseBody reads a slice of the buffered response body.
func GetHttpResponseBody(start, maxSize int) ([]byte, error) {
	return GetBuffer(types.BufferTypeHttpResponseBody, start, maxSize)
}

// GetHttpCallResponseBody reads the body of a completed outbound call,
// valid inside OnHttpCallResponse.
func GetHttpCallResponseBody(start, maxSize int) ([]byte, error) {
	return GetBuffer(types.BufferTypeHttpCallResponseBody, start, maxSize)
}

// maxReadSize bounds whole-buffer reads. The host clamps to the actual
// buffer size, so this only needs to exceed any plausible payload.
const maxReadSize = 1 << 31 - 1

// --- header maps ---

// GetHeaderMap reads an entire header map as an ordered pair list.
// Duplicate names survive with order preserved.
func GetHeaderMap(mapType types.MapType) ([][2]string, error) {
	var data *byte
	var size int32
	st := internal.ProxyGetHeaderMapPairs(uint32(mapType), &data, &size)
	if err := statusErr("proxy_get_header_map_pairs", st); err != nil {
		return nil, err
	}
	return internal.DeserializeMap(internal.ConsumeHostBuffer(data, size))
}

// SetHeaderMap replaces an entire header map.
func SetHeaderMap(mapType types.MapType, pairs [][2]string) error {
	raw := internal.SerializeMap(pairs)
	return statusErr("proxy_set_header_map_pairs",
		internal.ProxySetHeaderMapPairs(uint32(mapType), internal.BytePtr(raw), int32(len(raw))))
}

// GetHeaderMapValue reads a single value by name. A missing name yields
// sdkerrors.ErrNotFound; a present name with an empty value yields "" and
// no error.
func GetHeaderMapValue(mapType types.MapType, key string) (string, error) {
	var data *byte
	var size int32
	st := internal.ProxyGetHeaderMapValue(uint32(mapType),
		internal.StringPtr(key), int32(len(key)), &data, &size)
	if err := statusErr("proxy_get_header_map_value", st); err != nil {
		return "", err
	}
	return string(internal.ConsumeHostBuffer(data, size)), nil
}

// ReplaceHeaderMapValue sets a name to a single value, replacing any
// existing values for that name.
func ReplaceHeaderMapValue(mapType types.MapType, key, value string) error {
	return statusErr("proxy_replace_header_map_value",
		internal.ProxyReplaceHeaderMapValue(uint32(mapType),
			internal.StringPtr(key), int32(len(key)),
			internal.StringPtr(value), int32(len(value))))
}

// RemoveHeaderMapValue removes every value for a name.
func RemoveHeaderMapValue(mapType types.MapType, key string) error {
	return statusErr("proxy_remove_header_map_value",
		internal.ProxyRemoveHeaderMapValue(uint32(mapType),
			internal.StringPtr(key), int32(len(key))))
}

// AddHeaderMapValue appends a value for a name, keeping existing values.
func AddHeaderMapValue(mapType types.MapType, key, value string) error {
	return statusErr("proxy_add_header_map_value",
		internal.ProxyAddHeaderMapValue(uint32(mapType),
			internal.StringPtr(key), int32(len(key)),
			internal.StringPtr(value), int32(len(value))))
}

// GetHttpRequestHeaders reads the request header map.
func GetHttpRequestHeaders() ([][2]string, error) {
	return GetHeaderMap(types.MapTypeHttpRequestHeaders)
}

// GetHttpResponseHeaders reads the response header map.
func GetHttpResponseHeaders() ([][2]string, error) {
	return GetHeaderMap(types.MapTypeHttpResponseHeaders)
}

// GetHttpCallResponseHeaders reads the headers of a completed outbound call.
func GetHttpCallResponseHeaders() ([][2]string, error) {
	return GetHeaderMap(types.MapTypeHttpCallResponseHeaders)
}

// --- properties ---

// GetProperty reads a host property by path, for example
// []string{"request", "path"}. Missing properties yield ErrNotFound.
func GetProperty(path []string) ([]byte, error) {
	raw := internal.SerializePropertyPath(path)
	var data *byte
	var size int32
	st := internal.ProxyGetProperty(internal.BytePtr(raw), int32(len(raw)), &data, &size)
	if err := statusErr("proxy_get_property", st); err != nil {
		return nil, err
	}
	return internal.ConsumeHostBuffer(data, size), nil
}

// SetProperty writes a host property by path.
func SetProperty(path []string, value []byte) error {
	raw := internal.SerializePropertyPath(path)
	return statusErr("proxy_set_property",
		internal.ProxySetProperty(internal.BytePtr(raw), int32(len(raw)),
			internal.BytePtr(value), int32(len(value))))
}

// --- shared data ---

// GetSharedData reads a key from the VM-wide shared store. The returned cas
// token is the value's version for a later compare-and-swap write.
func GetSharedData(key string) (value []byte, cas uint32, err error) {
	var data *byte
	var size int32
	st := internal.ProxyGetSharedData(internal.StringPtr(key), int32(len(key)), &data, &size, &cas)
	if err := statusErr("proxy_get_shared_data", st); err != nil {
		return nil, 0, err
	}
	return internal.ConsumeHostBuffer(data, size), cas, nil
}

// SetSharedData writes a key to the VM-wide shared store. A nonzero cas must
// match the value's current version or the write fails with ErrCasMismatch;
// cas zero writes unconditionally.
func SetSharedData(key string, value []byte, cas uint32) error {
	return statusErr("proxy_set_shared_data",
		internal.ProxySetSharedData(internal.StringPtr(key), int32(len(key)),
			internal.BytePtr(value), int32(len(value)), cas))
}

// --- shared queues ---

// RegisterSharedQueue creates or attaches to a queue owned by this VM and
// returns its id. The calling root context receives OnQueueReady signals.
func RegisterSharedQueue(name string) (uint32, error) {
	var id uint32
	st := internal.ProxyRegisterSharedQueue(internal.StringPtr(name), int32(len(name)), &id)
	return id, statusErr("proxy_register_shared_queue", st)
}

// ResolveSharedQueue looks up a queue registered by another VM.
func ResolveSharedQueue(vmID, name string) (uint32, error) {
	var id uint32
	st := internal.ProxyResolveSharedQueue(
		internal.StringPtr(vmID), int32(len(vmID)),
		internal.StringPtr(name), int32(len(name)), &id)
	return id, statusErr("proxy_resolve_shared_queue", st)
}

// EnqueueSharedQueue appends a value to a queue.
func EnqueueSharedQueue(queueID uint32, value []byte) error {
	return statusErr("proxy_enqueue_shared_queue",
		internal.ProxyEnqueueSharedQueue(queueID, internal.BytePtr(value), int32(len(value))))
}

// DequeueSharedQueue pops the oldest value from a queue. A drained queue
// yields sdkerrors.ErrEmpty.
func DequeueSharedQueue(queueID uint32) ([]byte, error) {
	var data *byte
	var size int32
	st := internal.ProxyDequeueSharedQueue(queueID, &data, &size)
	if err := statusErr("proxy_dequeue_shared_queue", st); err != nil {
		return nil, err
	}
	return internal.ConsumeHostBuffer(data, size), nil
}

// --- stream control ---

// ContinueStream resumes a direction previously paused by returning
// ActionPause from a phase callback.
func ContinueStream(streamType types.StreamType) error {
	return statusErr("proxy_continue_stream", internal.ProxyContinueStream(uint32(streamType)))
}

// CloseStream closes a direction of the current stream.
func CloseStream(streamType types.StreamType) error {
	return statusErr("proxy_close_stream", internal.ProxyCloseStream(uint32(streamType)))
}

// SendHttpResponse short-circuits the current HTTP stream with a locally
// generated response. Pass grpcStatus -1 for plain HTTP. The stream still
// goes through its log and done callbacks afterwards.
func SendHttpResponse(statusCode uint32, headers [][2]string, body []byte, grpcStatus int32) error {
	raw := internal.SerializeMap(headers)
	return statusErr("proxy_send_local_response",
		internal.ProxySendLocalResponse(statusCode,
			nil, 0,
			internal.BytePtr(body), int32(len(body)),
			internal.BytePtr(raw), int32(len(raw)),
			grpcStatus))
}

// --- outbound calls ---

// DispatchHttpCall starts an HTTP call to the named upstream and returns a
// token. The response arrives on the calling context's OnHttpCallResponse
// with the same token; a stream that pauses while waiting resumes itself
// with ContinueStream from inside that callback.
func DispatchHttpCall(upstream string, headers [][2]string, body []byte,
	trailers [][2]string, timeout time.Duration) (uint32, error) {

	rawHeaders := internal.SerializeMap(headers)
	rawTrailers := internal.SerializeMap(trailers)
	var token uint32
	st := internal.ProxyHttpCall(
		internal.StringPtr(upstream), int32(len(upstream)),
		internal.BytePtr(rawHeaders), int32(len(rawHeaders)),
		internal.BytePtr(body), int32(len(body)),
		internal.BytePtr(rawTrailers), int32(len(rawTrailers)),
		uint32(timeout.Milliseconds()), &token)
	if err := statusErr("proxy_http_call", st); err != nil {
		return 0, err
	}
	internal.RegisterCallout(token)
	return token, nil
}

// SetEffectiveContext redirects subsequent host calls to another live
// context until the current callback returns.
func SetEffectiveContext(contextID uint32) error {
	return statusErr("proxy_set_effective_context", internal.ProxySetEffectiveContext(contextID))
}

// Done signals that a context which returned false from OnDone has finished
// its deferred work and may be deleted.
func Done() error {
	return statusErr("proxy_done", internal.ProxyDone())
}

// --- metrics ---

// DefineMetric creates or looks up a named metric and returns its id.
// Defining the same name and type twice yields the same id.
func DefineMetric(metricType types.MetricType, name string) (uint32, error) {
	var id uint32
	st := internal.ProxyDefineMetric(uint32(metricType),
		internal.StringPtr(name), int32(len(name)), &id)
	return id, statusErr("proxy_define_metric", st)
}

// GetMetric reads a metric's current value.
func GetMetric(metricID uint32) (uint64, error) {
	var value uint64
	st := internal.ProxyGetMetric(metricID, &value)
	return value, statusErr("proxy_get_metric", st)
}

// RecordMetric sets a gauge or records a histogram sample.
func RecordMetric(metricID uint32, value uint64) error {
	return statusErr("proxy_record_metric", internal.ProxyRecordMetric(metricID, value))
}

// IncrementMetric adds a signed offset to a counter or gauge.
func IncrementMetric(metricID uint32, offset int64) error {
	return statusErr("proxy_increment_metric", internal.ProxyIncrementMetric(metricID, offset))
}
