package hostemu

import (
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// LogEntry is one proxy_log call captured by the emulator.
type LogEntry struct {
	Level   types.LogLevel
	Message string
}

// LocalResponse is one proxy_send_local_response call.
type LocalResponse struct {
	ContextID  uint32
	StatusCode uint32
	Details    string
	Body       []byte
	Headers    [][2]string
	GrpcStatus int32
}

// PendingCall is an outbound HTTP call the plugin dispatched and the
// emulator has not yet answered.
type PendingCall struct {
	Token    uint32
	Upstream string
	Headers  [][2]string
	Body     []byte
	Trailers [][2]string
	Timeout  time.Duration
}

type sharedEntry struct {
	value []byte
	cas   uint32
}

type metricEntry struct {
	kind  types.MetricType
	value uint64
}

// streamState is the host-side view of one stream context: its buffers and
// header maps, addressed through the effective context id.
type streamState struct {
	maps    map[types.MapType][][2]string
	buffers map[types.BufferType][]byte
	closed  []types.StreamType
}

func newStreamState() *streamState {
	return &streamState{
		maps:    make(map[types.MapType][][2]string),
		buffers: make(map[types.BufferType][]byte),
	}
}

// Emulator implements the host side of proxy_abi_version_0_2_0 in process,
// which lets plugin logic run under plain go test without a wasm runtime.
// It is not safe for concurrent use; neither is the ABI it emulates.
type Emulator struct {
	logger *zap.Logger
	now    func() time.Time

	vmConfig     []byte
	pluginConfig []byte

	effectiveID uint32
	tickPeriod  time.Duration

	logs           []LogEntry
	localResponses []LocalResponse

	streams    map[uint32]*streamState
	properties map[string][]byte
	shared     map[string]sharedEntry
	casCounter uint32

	queueIDs  map[string]uint32
	queues    map[uint32][][]byte
	nextQueue uint32

	metricIDs  map[string]uint32
	metrics    map[uint32]*metricEntry
	nextMetric uint32

	pendingCalls []PendingCall
	nextToken    uint32

	// callResponse holds the payload of the outbound call currently being
	// delivered; it is only addressable during OnHttpCallResponse.
	callResponse struct {
		active   bool
		headers  [][2]string
		body     []byte
		trailers [][2]string
	}

	nextContextID uint32
	doneSignals   []uint32
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithLogger mirrors captured plugin logs into a zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Emulator) { e.logger = l }
}

// WithClock fixes the time source behind proxy_get_current_time_nanoseconds.
func WithClock(now func() time.Time) Option {
	return func(e *Emulator) { e.now = now }
}

// WithVMConfiguration sets the buffer served during OnVMStart.
func WithVMConfiguration(b []byte) Option {
	return func(e *Emulator) { e.vmConfig = b }
}

// WithPluginConfiguration sets the buffer served during OnConfigure.
func WithPluginConfiguration(b []byte) Option {
	return func(e *Emulator) { e.pluginConfig = b }
}

// WithProperty preloads a host property.
func WithProperty(path []string, value []byte) Option {
	return func(e *Emulator) {
		e.properties[string(internal.SerializePropertyPath(path))] = value
	}
}

// New builds an emulator and installs it as the active host for the raw
// import layer. The dispatcher registry is reset; plugin factories
// registered in init survive.
func New(opts ...Option) *Emulator {
	e := &Emulator{
		logger:        zap.NewNop(),
		now:           time.Now,
		streams:       make(map[uint32]*streamState),
		properties:    make(map[string][]byte),
		shared:        make(map[string]sharedEntry),
		queueIDs:      make(map[string]uint32),
		queues:        make(map[uint32][][]byte),
		metricIDs:     make(map[string]uint32),
		metrics:       make(map[uint32]*metricEntry),
		nextContextID: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	internal.SetHostFunctions(e)
	internal.Reset()
	return e
}

// --- guest memory handshake ---

// readBytes copies a (pointer, size) argument out of the plugin.
func readBytes(data *byte, size int32) []byte {
	if data == nil || size <= 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice(data, size))
	return out
}

// writeBytes hands a result back the way a real host does: ask the module
// to allocate, copy in, report pointer and size through the out params.
func writeBytes(value []byte, returnData **byte, returnSize *int32) {
	if len(value) == 0 {
		*returnData = nil
		*returnSize = 0
		return
	}
	ptr := internal.ProxyOnMemoryAllocate(uint32(len(value)))
	copy(unsafe.Slice(ptr, len(value)), value)
	*returnData = ptr
	*returnSize = int32(len(value))
}

func (e *Emulator) stream(id uint32) *streamState {
	s, ok := e.streams[id]
	if !ok {
		s = newStreamState()
		e.streams[id] = s
	}
	return s
}

// --- HostFunctions implementation ---

var zapLevels = map[types.LogLevel]func(*zap.Logger, string, ...zap.Field){
	types.LogLevelTrace:    (*zap.Logger).Debug,
	types.LogLevelDebug:    (*zap.Logger).Debug,
	types.LogLevelInfo:     (*zap.Logger).Info,
	types.LogLevelWarn:     (*zap.Logger).Warn,
	types.LogLevelError:    (*zap.Logger).Error,
	types.LogLevelCritical: (*zap.Logger).Error,
}

func (e *Emulator) ProxyLog(level uint32, messageData *byte, messageSize int32) types.Status {
	msg := string(readBytes(messageData, messageSize))
	e.logs = append(e.logs, LogEntry{Level: types.LogLevel(level), Message: msg})
	if emit, ok := zapLevels[types.LogLevel(level)]; ok {
		emit(e.logger, msg, zap.Uint32("context_id", e.effectiveID))
	}
	return types.StatusOK
}

func (e *Emulator) ProxyGetCurrentTimeNanoseconds(returnTime *uint64) types.Status {
	*returnTime = uint64(e.now().UnixNano())
	return types.StatusOK
}

func (e *Emulator) ProxySetTickPeriodMilliseconds(period uint32) types.Status {
	e.tickPeriod = time.Duration(period) * time.Millisecond
	return types.StatusOK
}

func (e *Emulator) bufferFor(bufferType types.BufferType) ([]byte, types.Status) {
	switch bufferType {
	case types.BufferTypeVMConfiguration:
		return e.vmConfig, types.StatusOK
	case types.BufferTypePluginConfiguration:
		return e.pluginConfig, types.StatusOK
	case types.BufferTypeHttpCallResponseBody:
		if !e.callResponse.active {
			return nil, types.StatusNotFound
		}
		return e.callResponse.body, types.StatusOK
	}
	buf, ok := e.stream(e.effectiveID).buffers[bufferType]
	if !ok {
		return nil, types.StatusNotFound
	}
	return buf, types.StatusOK
}

func (e *Emulator) ProxyGetBufferBytes(bufferType uint32, start, maxSize int32, returnBufferData **byte, returnBufferSize *int32) types.Status {
	buf, st := e.bufferFor(types.BufferType(bufferType))
	if st != types.StatusOK {
		return st
	}
	if len(buf) == 0 {
		return types.StatusEmpty
	}
	if start < 0 || int(start) > len(buf) {
		return types.StatusBadArgument
	}
	end := len(buf)
	if maxSize >= 0 && int(start)+int(maxSize) < end {
		end = int(start) + int(maxSize)
	}
	writeBytes(buf[start:end], returnBufferData, returnBufferSize)
	return types.StatusOK
}

func (e *Emulator) ProxySetBufferBytes(bufferType uint32, start, size int32, bufferData *byte, bufferSize int32) types.Status {
	bt := types.BufferType(bufferType)
	if bt == types.BufferTypeVMConfiguration || bt == types.BufferTypePluginConfiguration {
		return types.StatusBadArgument
	}
	s := e.stream(e.effectiveID)
	buf := s.buffers[bt]
	if start < 0 || size < 0 || int(start) > len(buf) {
		return types.StatusBadArgument
	}
	end := int(start) + int(size)
	if end > len(buf) {
		end = len(buf)
	}
	replacement := readBytes(bufferData, bufferSize)
	next := make([]byte, 0, int(start)+len(replacement)+len(buf)-end)
	next = append(next, buf[:start]...)
	next = append(next, replacement...)
	next = append(next, buf[end:]...)
	s.buffers[bt] = next
	return types.StatusOK
}

func (e *Emulator) callResponseMap(mapType types.MapType) ([][2]string, bool) {
	if !e.callResponse.active {
		return nil, false
	}
	switch mapType {
	case types.MapTypeHttpCallResponseHeaders:
		return e.callResponse.headers, true
	case types.MapTypeHttpCallResponseTrailers:
		return e.callResponse.trailers, true
	}
	return nil, false
}

func (e *Emulator) lookupMap(mapType types.MapType) ([][2]string, bool) {
	if pairs, ok := e.callResponseMap(mapType); ok {
		return pairs, true
	}
	pairs, ok := e.stream(e.effectiveID).maps[mapType]
	return pairs, ok
}

func (e *Emulator) ProxyGetHeaderMapPairs(mapType uint32, returnMapData **byte, returnMapSize *int32) types.Status {
	pairs, ok := e.lookupMap(types.MapType(mapType))
	if !ok {
		return types.StatusNotFound
	}
	writeBytes(internal.SerializeMap(pairs), returnMapData, returnMapSize)
	return types.StatusOK
}

func (e *Emulator) ProxySetHeaderMapPairs(mapType uint32, mapData *byte, mapSize int32) types.Status {
	pairs, err := internal.DeserializeMap(readBytes(mapData, mapSize))
	if err != nil {
		return types.StatusSerializationFail
	}
	e.stream(e.effectiveID).maps[types.MapType(mapType)] = pairs
	return types.StatusOK
}

func (e *Emulator) ProxyGetHeaderMapValue(mapType uint32, keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32) types.Status {
	key := string(readBytes(keyData, keySize))
	pairs, ok := e.lookupMap(types.MapType(mapType))
	if !ok {
		return types.StatusNotFound
	}
	for _, p := range pairs {
		if p[0] == key {
			writeBytes([]byte(p[1]), returnValueData, returnValueSize)
			return types.StatusOK
		}
	}
	return types.StatusNotFound
}

func (e *Emulator) ProxyReplaceHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status {
	key := string(readBytes(keyData, keySize))
	value := string(readBytes(valueData, valueSize))
	s := e.stream(e.effectiveID)
	mt := types.MapType(mapType)
	kept := make([][2]string, 0, len(s.maps[mt])+1)
	for _, p := range s.maps[mt] {
		if p[0] != key {
			kept = append(kept, p)
		}
	}
	s.maps[mt] = append(kept, [2]string{key, value})
	return types.StatusOK
}

func (e *Emulator) ProxyRemoveHeaderMapValue(mapType uint32, keyData *byte, keySize int32) types.Status {
	key := string(readBytes(keyData, keySize))
	s := e.stream(e.effectiveID)
	mt := types.MapType(mapType)
	kept := s.maps[mt][:0]
	for _, p := range s.maps[mt] {
		if p[0] != key {
			kept = append(kept, p)
		}
	}
	s.maps[mt] = kept
	return types.StatusOK
}

func (e *Emulator) ProxyAddHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status {
	key := string(readBytes(keyData, keySize))
	value := string(readBytes(valueData, valueSize))
	s := e.stream(e.effectiveID)
	mt := types.MapType(mapType)
	s.maps[mt] = append(s.maps[mt], [2]string{key, value})
	return types.StatusOK
}

func (e *Emulator) ProxyGetProperty(pathData *byte, pathSize int32, returnValueData **byte, returnValueSize *int32) types.Status {
	value, ok := e.properties[string(readBytes(pathData, pathSize))]
	if !ok {
		return types.StatusNotFound
	}
	writeBytes(value, returnValueData, returnValueSize)
	return types.StatusOK
}

func (e *Emulator) ProxySetProperty(pathData *byte, pathSize int32, valueData *byte, valueSize int32) types.Status {
	e.properties[string(readBytes(pathData, pathSize))] = readBytes(valueData, valueSize)
	return types.StatusOK
}

func (e *Emulator) ProxyGetSharedData(keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32, returnCas *uint32) types.Status {
	entry, ok := e.shared[string(readBytes(keyData, keySize))]
	if !ok {
		return types.StatusNotFound
	}
	writeBytes(entry.value, returnValueData, returnValueSize)
	*returnCas = entry.cas
	return types.StatusOK
}

func (e *Emulator) ProxySetSharedData(keyData *byte, keySize int32, valueData *byte, valueSize int32, cas uint32) types.Status {
	key := string(readBytes(keyData, keySize))
	if cas != 0 {
		current, ok := e.shared[key]
		if !ok || current.cas != cas {
			return types.StatusCasMismatch
		}
	}
	e.casCounter++
	e.shared[key] = sharedEntry{value: readBytes(valueData, valueSize), cas: e.casCounter}
	return types.StatusOK
}

func (e *Emulator) ProxyRegisterSharedQueue(nameData *byte, nameSize int32, returnID *uint32) types.Status {
	name := string(readBytes(nameData, nameSize))
	id, ok := e.queueIDs[name]
	if !ok {
		e.nextQueue++
		id = e.nextQueue
		e.queueIDs[name] = id
		e.queues[id] = nil
	}
	*returnID = id
	return types.StatusOK
}

func (e *Emulator) ProxyResolveSharedQueue(_ *byte, _ int32, nameData *byte, nameSize int32, returnID *uint32) types.Status {
	id, ok := e.queueIDs[string(readBytes(nameData, nameSize))]
	if !ok {
		return types.StatusNotFound
	}
	*returnID = id
	return types.StatusOK
}

func (e *Emulator) ProxyDequeueSharedQueue(queueID uint32, returnValueData **byte, returnValueSize *int32) types.Status {
	q, ok := e.queues[queueID]
	if !ok {
		return types.StatusNotFound
	}
	if len(q) == 0 {
		return types.StatusEmpty
	}
	head := q[0]
	e.queues[queueID] = q[1:]
	writeBytes(head, returnValueData, returnValueSize)
	return types.StatusOK
}

func (e *Emulator) ProxyEnqueueSharedQueue(queueID uint32, valueData *byte, valueSize int32) types.Status {
	if _, ok := e.queues[queueID]; !ok {
		return types.StatusNotFound
	}
	e.queues[queueID] = append(e.queues[queueID], readBytes(valueData, valueSize))
	return types.StatusOK
}

func (e *Emulator) ProxyContinueStream(uint32) types.Status { return types.StatusOK }

func (e *Emulator) ProxyCloseStream(streamType uint32) types.Status {
	s := e.stream(e.effectiveID)
	s.closed = append(s.closed, types.StreamType(streamType))
	return types.StatusOK
}

func (e *Emulator) ProxySendLocalResponse(statusCode uint32, detailsData *byte, detailsSize int32, bodyData *byte, bodySize int32, headersData *byte, headersSize int32, grpcStatus int32) types.Status {
	headers, err := internal.DeserializeMap(readBytes(headersData, headersSize))
	if err != nil {
		return types.StatusSerializationFail
	}
	e.localResponses = append(e.localResponses, LocalResponse{
		ContextID:  e.effectiveID,
		StatusCode: statusCode,
		Details:    string(readBytes(detailsData, detailsSize)),
		Body:       readBytes(bodyData, bodySize),
		Headers:    headers,
		GrpcStatus: grpcStatus,
	})
	return types.StatusOK
}

func (e *Emulator) ProxyHttpCall(upstreamData *byte, upstreamSize int32, headersData *byte, headersSize int32, bodyData *byte, bodySize int32, trailersData *byte, trailersSize int32, timeoutMs uint32, returnToken *uint32) types.Status {
	headers, err := internal.DeserializeMap(readBytes(headersData, headersSize))
	if err != nil {
		return types.StatusSerializationFail
	}
	trailers, err := internal.DeserializeMap(readBytes(trailersData, trailersSize))
	if err != nil {
		return types.StatusSerializationFail
	}
	e.nextToken++
	e.pendingCalls = append(e.pendingCalls, PendingCall{
		Token:    e.nextToken,
		Upstream: string(readBytes(upstreamData, upstreamSize)),
		Headers:  headers,
		Body:     readBytes(bodyData, bodySize),
		Trailers: trailers,
		Timeout:  time.Duration(timeoutMs) * time.Millisecond,
	})
	*returnToken = e.nextToken
	return types.StatusOK
}

func (e *Emulator) ProxySetEffectiveContext(contextID uint32) types.Status {
	e.effectiveID = contextID
	return types.StatusOK
}

func (e *Emulator) ProxyDone() types.Status {
	e.doneSignals = append(e.doneSignals, e.effectiveID)
	return types.StatusOK
}

func (e *Emulator) ProxyDefineMetric(metricType uint32, nameData *byte, nameSize int32, returnID *uint32) types.Status {
	name := string(readBytes(nameData, nameSize))
	if id, ok := e.metricIDs[name]; ok {
		if e.metrics[id].kind != types.MetricType(metricType) {
			return types.StatusBadArgument
		}
		*returnID = id
		return types.StatusOK
	}
	e.nextMetric++
	e.metricIDs[name] = e.nextMetric
	e.metrics[e.nextMetric] = &metricEntry{kind: types.MetricType(metricType)}
	*returnID = e.nextMetric
	return types.StatusOK
}

func (e *Emulator) ProxyGetMetric(metricID uint32, returnValue *uint64) types.Status {
	m, ok := e.metrics[metricID]
	if !ok {
		return types.StatusNotFound
	}
	*returnValue = m.value
	return types.StatusOK
}

func (e *Emulator) ProxyRecordMetric(metricID uint32, value uint64) types.Status {
	m, ok := e.metrics[metricID]
	if !ok {
		return types.StatusNotFound
	}
	m.value = value
	return types.StatusOK
}

func (e *Emulator) ProxyIncrementMetric(metricID uint32, offset int64) types.Status {
	m, ok := e.metrics[metricID]
	if !ok {
		return types.StatusNotFound
	}
	if offset < 0 && uint64(-offset) > m.value {
		if m.kind == types.MetricTypeCounter {
			return types.StatusBadArgument
		}
		m.value = 0
		return types.StatusOK
	}
	m.value = uint64(int64(m.value) + offset)
	return types.StatusOK
}

var _ internal.HostFunctions = (*Emulator)(nil)
