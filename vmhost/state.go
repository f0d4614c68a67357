package vmhost

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// LogEntry is one proxy_log call received from the plugin.
type LogEntry struct {
	ContextID uint32
	Level     types.LogLevel
	Message   string
}

// LocalResponse is a locally generated response the plugin requested with
// proxy_send_local_response.
type LocalResponse struct {
	ContextID  uint32
	StatusCode uint32
	Details    string
	Body       []byte
	Headers    [][2]string
	GrpcStatus int32
}

// PendingCall is an outbound HTTP call the plugin dispatched. The embedder
// performs the actual request and answers through Plugin.OnHttpCallResponse.
// ContextID records which context issued the call; the response callback is
// delivered on its behalf.
type PendingCall struct {
	Token     uint32
	ContextID uint32
	Upstream  string
	Headers   [][2]string
	Body      []byte
	Trailers  [][2]string
	Timeout   time.Duration
}

type sharedEntry struct {
	value []byte
	cas   uint32
}

type metricEntry struct {
	kind  types.MetricType
	value uint64
}

type contextState struct {
	maps    map[types.MapType][][2]string
	buffers map[types.BufferType][]byte
}

func newContextState() *contextState {
	return &contextState{
		maps:    make(map[types.MapType][][2]string),
		buffers: make(map[types.BufferType][]byte),
	}
}

// hostState is the host-side data model behind the env imports: everything
// the ABI lets a plugin read or write, keyed by effective context where the
// ABI scopes it that way. Methods operate on Go values; the import layer
// does all guest-memory marshaling.
type hostState struct {
	logger *zap.Logger
	now    func() time.Time

	vmConfig     []byte
	pluginConfig []byte

	effectiveID uint32
	tickPeriod  time.Duration

	logs           []LogEntry
	localResponses []LocalResponse
	pendingCalls   []PendingCall
	nextToken      uint32

	contexts   map[uint32]*contextState
	properties map[string][]byte
	shared     map[string]sharedEntry
	casCounter uint32

	queueIDs  map[string]uint32
	queues    map[uint32][][]byte
	nextQueue uint32

	metricIDs  map[string]uint32
	metrics    map[uint32]*metricEntry
	nextMetric uint32

	doneContexts []uint32

	// callResponse holds the payload of the outbound call currently being
	// delivered; it is only addressable during the response callback.
	callResponse struct {
		active   bool
		headers  [][2]string
		body     []byte
		trailers [][2]string
	}
}

func millis(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func newHostState(logger *zap.Logger) *hostState {
	return &hostState{
		logger:     logger,
		now:        time.Now,
		contexts:   make(map[uint32]*contextState),
		properties: make(map[string][]byte),
		shared:     make(map[string]sharedEntry),
		queueIDs:   make(map[string]uint32),
		queues:     make(map[uint32][][]byte),
		metricIDs:  make(map[string]uint32),
		metrics:    make(map[uint32]*metricEntry),
	}
}

func (s *hostState) context(id uint32) *contextState {
	c, ok := s.contexts[id]
	if !ok {
		c = newContextState()
		s.contexts[id] = c
	}
	return c
}

var zapLevels = map[types.LogLevel]func(*zap.Logger, string, ...zap.Field){
	types.LogLevelTrace:    (*zap.Logger).Debug,
	types.LogLevelDebug:    (*zap.Logger).Debug,
	types.LogLevelInfo:     (*zap.Logger).Info,
	types.LogLevelWarn:     (*zap.Logger).Warn,
	types.LogLevelError:    (*zap.Logger).Error,
	types.LogLevelCritical: (*zap.Logger).Error,
}

func (s *hostState) log(level types.LogLevel, msg string) types.Status {
	s.logs = append(s.logs, LogEntry{ContextID: s.effectiveID, Level: level, Message: msg})
	if emit, ok := zapLevels[level]; ok {
		emit(s.logger, msg,
			zap.String("source", "plugin"),
			zap.Uint32("context_id", s.effectiveID))
	}
	return types.StatusOK
}

func (s *hostState) setTickPeriod(ms uint32) types.Status {
	s.tickPeriod = time.Duration(ms) * time.Millisecond
	return types.StatusOK
}

func (s *hostState) getBuffer(bt types.BufferType, start, maxSize int32) ([]byte, types.Status) {
	var buf []byte
	switch bt {
	case types.BufferTypeVMConfiguration:
		buf = s.vmConfig
	case types.BufferTypePluginConfiguration:
		buf = s.pluginConfig
	case types.BufferTypeHttpCallResponseBody:
		if !s.callResponse.active {
			return nil, types.StatusNotFound
		}
		buf = s.callResponse.body
	default:
		var ok bool
		buf, ok = s.context(s.effectiveID).buffers[bt]
		if !ok {
			return nil, types.StatusNotFound
		}
	}
	if len(buf) == 0 {
		return nil, types.StatusEmpty
	}
	if start < 0 || int(start) > len(buf) {
		return nil, types.StatusBadArgument
	}
	end := len(buf)
	if maxSize >= 0 && int(start)+int(maxSize) < end {
		end = int(start) + int(maxSize)
	}
	return buf[start:end], types.StatusOK
}

func (s *hostState) setBuffer(bt types.BufferType, start, size int32, data []byte) types.Status {
	if bt == types.BufferTypeVMConfiguration || bt == types.BufferTypePluginConfiguration {
		return types.StatusBadArgument
	}
	c := s.context(s.effectiveID)
	buf := c.buffers[bt]
	if start < 0 || size < 0 || int(start) > len(buf) {
		return types.StatusBadArgument
	}
	end := int(start) + int(size)
	if end > len(buf) {
		end = len(buf)
	}
	next := make([]byte, 0, int(start)+len(data)+len(buf)-end)
	next = append(next, buf[:start]...)
	next = append(next, data...)
	next = append(next, buf[end:]...)
	c.buffers[bt] = next
	return types.StatusOK
}

func (s *hostState) getMap(mt types.MapType) ([][2]string, types.Status) {
	if s.callResponse.active {
		switch mt {
		case types.MapTypeHttpCallResponseHeaders:
			return s.callResponse.headers, types.StatusOK
		case types.MapTypeHttpCallResponseTrailers:
			return s.callResponse.trailers, types.StatusOK
		}
	}
	pairs, ok := s.context(s.effectiveID).maps[mt]
	if !ok {
		return nil, types.StatusNotFound
	}
	return pairs, types.StatusOK
}

func (s *hostState) setMap(mt types.MapType, raw []byte) types.Status {
	pairs, err := internal.DeserializeMap(raw)
	if err != nil {
		return types.StatusSerializationFail
	}
	s.context(s.effectiveID).maps[mt] = pairs
	return types.StatusOK
}

func (s *hostState) getMapValue(mt types.MapType, key string) (string, types.Status) {
	pairs, st := s.getMap(mt)
	if st != types.StatusOK {
		return "", st
	}
	for _, p := range pairs {
		if p[0] == key {
			return p[1], types.StatusOK
		}
	}
	return "", types.StatusNotFound
}

func (s *hostState) replaceMapValue(mt types.MapType, key, value string) types.Status {
	c := s.context(s.effectiveID)
	kept := make([][2]string, 0, len(c.maps[mt])+1)
	for _, p := range c.maps[mt] {
		if p[0] != key {
			kept = append(kept, p)
		}
	}
	c.maps[mt] = append(kept, [2]string{key, value})
	return types.StatusOK
}

func (s *hostState) removeMapValue(mt types.MapType, key string) types.Status {
	c := s.context(s.effectiveID)
	kept := c.maps[mt][:0]
	for _, p := range c.maps[mt] {
		if p[0] != key {
			kept = append(kept, p)
		}
	}
	c.maps[mt] = kept
	return types.StatusOK
}

func (s *hostState) addMapValue(mt types.MapType, key, value string) types.Status {
	c := s.context(s.effectiveID)
	c.maps[mt] = append(c.maps[mt], [2]string{key, value})
	return types.StatusOK
}

func (s *hostState) getProperty(path string) ([]byte, types.Status) {
	value, ok := s.properties[path]
	if !ok {
		return nil, types.StatusNotFound
	}
	return value, types.StatusOK
}

func (s *hostState) setProperty(path string, value []byte) types.Status {
	s.properties[path] = value
	return types.StatusOK
}

func (s *hostState) getSharedData(key string) ([]byte, uint32, types.Status) {
	entry, ok := s.shared[key]
	if !ok {
		return nil, 0, types.StatusNotFound
	}
	return entry.value, entry.cas, types.StatusOK
}

func (s *hostState) setSharedData(key string, value []byte, cas uint32) types.Status {
	if cas != 0 {
		current, ok := s.shared[key]
		if !ok || current.cas != cas {
			return types.StatusCasMismatch
		}
	}
	s.casCounter++
	s.shared[key] = sharedEntry{value: value, cas: s.casCounter}
	return types.StatusOK
}

func (s *hostState) registerQueue(name string) (uint32, types.Status) {
	id, ok := s.queueIDs[name]
	if !ok {
		s.nextQueue++
		id = s.nextQueue
		s.queueIDs[name] = id
		s.queues[id] = nil
	}
	return id, types.StatusOK
}

func (s *hostState) resolveQueue(name string) (uint32, types.Status) {
	id, ok := s.queueIDs[name]
	if !ok {
		return 0, types.StatusNotFound
	}
	return id, types.StatusOK
}

func (s *hostState) dequeue(queueID uint32) ([]byte, types.Status) {
	q, ok := s.queues[queueID]
	if !ok {
		return nil, types.StatusNotFound
	}
	if len(q) == 0 {
		return nil, types.StatusEmpty
	}
	head := q[0]
	s.queues[queueID] = q[1:]
	return head, types.StatusOK
}

func (s *hostState) enqueue(queueID uint32, value []byte) types.Status {
	if _, ok := s.queues[queueID]; !ok {
		return types.StatusNotFound
	}
	s.queues[queueID] = append(s.queues[queueID], value)
	return types.StatusOK
}

func (s *hostState) sendLocalResponse(r LocalResponse) types.Status {
	r.ContextID = s.effectiveID
	s.localResponses = append(s.localResponses, r)
	return types.StatusOK
}

func (s *hostState) httpCall(call PendingCall) (uint32, types.Status) {
	s.nextToken++
	call.Token = s.nextToken
	call.ContextID = s.effectiveID
	s.pendingCalls = append(s.pendingCalls, call)
	return call.Token, types.StatusOK
}

func (s *hostState) takePendingCall(token uint32) (PendingCall, bool) {
	for i, c := range s.pendingCalls {
		if c.Token == token {
			s.pendingCalls = append(s.pendingCalls[:i], s.pendingCalls[i+1:]...)
			return c, true
		}
	}
	return PendingCall{}, false
}

func (s *hostState) defineMetric(kind types.MetricType, name string) (uint32, types.Status) {
	if id, ok := s.metricIDs[name]; ok {
		if s.metrics[id].kind != kind {
			return 0, types.StatusBadArgument
		}
		return id, types.StatusOK
	}
	s.nextMetric++
	s.metricIDs[name] = s.nextMetric
	s.metrics[s.nextMetric] = &metricEntry{kind: kind}
	return s.nextMetric, types.StatusOK
}

func (s *hostState) getMetric(id uint32) (uint64, types.Status) {
	m, ok := s.metrics[id]
	if !ok {
		return 0, types.StatusNotFound
	}
	return m.value, types.StatusOK
}

func (s *hostState) recordMetric(id uint32, value uint64) types.Status {
	m, ok := s.metrics[id]
	if !ok {
		return types.StatusNotFound
	}
	m.value = value
	return types.StatusOK
}

func (s *hostState) incrementMetric(id uint32, offset int64) types.Status {
	m, ok := s.metrics[id]
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
