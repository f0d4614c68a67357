package vmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	proxywasmsdk "github.com/wippyai/proxywasm-sdk"
	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// envImports registers the host side of proxy_abi_version_0_2_0 as the env
// module. Each shim decodes arguments out of the calling module's linear
// memory, delegates to the host state, and writes results back through the
// guest's boundary allocator.
type envImports struct {
	state  *hostState
	logger *zap.Logger
}

func (e *envImports) register(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("env")

	export := func(name string, fn any) {
		b.NewFunctionBuilder().WithFunc(fn).Export(name)
	}

	export("proxy_log", e.proxyLog)
	export("proxy_get_current_time_nanoseconds", e.proxyGetCurrentTimeNanoseconds)
	export("proxy_set_tick_period_milliseconds", e.proxySetTickPeriodMilliseconds)

	export("proxy_get_buffer_bytes", e.proxyGetBufferBytes)
	export("proxy_set_buffer_bytes", e.proxySetBufferBytes)

	export("proxy_get_header_map_pairs", e.proxyGetHeaderMapPairs)
	export("proxy_set_header_map_pairs", e.proxySetHeaderMapPairs)
	export("proxy_get_header_map_value", e.proxyGetHeaderMapValue)
	export("proxy_replace_header_map_value", e.proxyReplaceHeaderMapValue)
	export("proxy_remove_header_map_value", e.proxyRemoveHeaderMapValue)
	export("proxy_add_header_map_value", e.proxyAddHeaderMapValue)

	export("proxy_get_property", e.proxyGetProperty)
	export("proxy_set_property", e.proxySetProperty)

	export("proxy_get_shared_data", e.proxyGetSharedData)
	export("proxy_set_shared_data", e.proxySetSharedData)

	export("proxy_register_shared_queue", e.proxyRegisterSharedQueue)
	export("proxy_resolve_shared_queue", e.proxyResolveSharedQueue)
	export("proxy_dequeue_shared_queue", e.proxyDequeueSharedQueue)
	export("proxy_enqueue_shared_queue", e.proxyEnqueueSharedQueue)

	export("proxy_continue_stream", e.proxyContinueStream)
	export("proxy_close_stream", e.proxyCloseStream)
	export("proxy_send_local_response", e.proxySendLocalResponse)

	export("proxy_http_call", e.proxyHttpCall)

	export("proxy_set_effective_context", e.proxySetEffectiveContext)
	export("proxy_done", e.proxyDone)

	export("proxy_define_metric", e.proxyDefineMetric)
	export("proxy_get_metric", e.proxyGetMetric)
	export("proxy_record_metric", e.proxyRecordMetric)
	export("proxy_increment_metric", e.proxyIncrementMetric)

	_, err := b.Instantiate(ctx)
	return err
}

func mem(mod api.Module) proxywasmsdk.Memory {
	return guestMemory{mem: mod.Memory()}
}

func alloc(ctx context.Context, mod api.Module) proxywasmsdk.Allocator {
	return guestAllocator{ctx: ctx, allocate: mod.ExportedFunction("proxy_on_memory_allocate")}
}

// readGuest copies a (pointer, size) argument out of guest memory. A zero
// pointer with zero size is a legal empty argument.
func (e *envImports) readGuest(mod api.Module, ptr, size uint32, what string) ([]byte, bool) {
	if size == 0 {
		return nil, true
	}
	data, err := mem(mod).Read(ptr, size)
	if err != nil {
		e.logger.Error("guest passed an out-of-bounds argument",
			zap.String("argument", what), zap.Uint32("ptr", ptr), zap.Uint32("size", size))
		return nil, false
	}
	return data, true
}

// reply writes a variable-length result into the guest.
func (e *envImports) reply(ctx context.Context, mod api.Module, value []byte, retData, retSize uint32) uint32 {
	if err := writeResult(mem(mod), alloc(ctx, mod), value, retData, retSize); err != nil {
		e.logger.Error("result write-back failed", zap.Error(err))
		return uint32(types.StatusInternalFailure)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxyLog(_ context.Context, mod api.Module, level, msgData, msgSize uint32) uint32 {
	msg, ok := e.readGuest(mod, msgData, msgSize, "log message")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.log(types.LogLevel(level), string(msg)))
}

func (e *envImports) proxyGetCurrentTimeNanoseconds(_ context.Context, mod api.Module, retTime uint32) uint32 {
	if err := mem(mod).WriteU64(retTime, uint64(e.state.now().UnixNano())); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxySetTickPeriodMilliseconds(_ context.Context, _ api.Module, period uint32) uint32 {
	return uint32(e.state.setTickPeriod(period))
}

func (e *envImports) proxyGetBufferBytes(ctx context.Context, mod api.Module, bufferType, start, maxSize, retData, retSize uint32) uint32 {
	buf, st := e.state.getBuffer(types.BufferType(bufferType), int32(start), int32(maxSize))
	if st != types.StatusOK {
		return uint32(st)
	}
	return e.reply(ctx, mod, buf, retData, retSize)
}

func (e *envImports) proxySetBufferBytes(_ context.Context, mod api.Module, bufferType, start, size, bufData, bufSize uint32) uint32 {
	data, ok := e.readGuest(mod, bufData, bufSize, "buffer data")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.setBuffer(types.BufferType(bufferType), int32(start), int32(size), data))
}

func (e *envImports) proxyGetHeaderMapPairs(ctx context.Context, mod api.Module, mapType, retData, retSize uint32) uint32 {
	pairs, st := e.state.getMap(types.MapType(mapType))
	if st != types.StatusOK {
		return uint32(st)
	}
	return e.reply(ctx, mod, internal.SerializeMap(pairs), retData, retSize)
}

func (e *envImports) proxySetHeaderMapPairs(_ context.Context, mod api.Module, mapType, mapData, mapSize uint32) uint32 {
	raw, ok := e.readGuest(mod, mapData, mapSize, "header map")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.setMap(types.MapType(mapType), raw))
}

func (e *envImports) proxyGetHeaderMapValue(ctx context.Context, mod api.Module, mapType, keyData, keySize, retData, retSize uint32) uint32 {
	key, ok := e.readGuest(mod, keyData, keySize, "header name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, st := e.state.getMapValue(types.MapType(mapType), string(key))
	if st != types.StatusOK {
		return uint32(st)
	}
	return e.reply(ctx, mod, []byte(value), retData, retSize)
}

func (e *envImports) proxyReplaceHeaderMapValue(_ context.Context, mod api.Module, mapType, keyData, keySize, valueData, valueSize uint32) uint32 {
	key, ok := e.readGuest(mod, keyData, keySize, "header name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, ok := e.readGuest(mod, valueData, valueSize, "header value")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.replaceMapValue(types.MapType(mapType), string(key), string(value)))
}

func (e *envImports) proxyRemoveHeaderMapValue(_ context.Context, mod api.Module, mapType, keyData, keySize uint32) uint32 {
	key, ok := e.readGuest(mod, keyData, keySize, "header name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.removeMapValue(types.MapType(mapType), string(key)))
}

func (e *envImports) proxyAddHeaderMapValue(_ context.Context, mod api.Module, mapType, keyData, keySize, valueData, valueSize uint32) uint32 {
	key, ok := e.readGuest(mod, keyData, keySize, "header name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, ok := e.readGuest(mod, valueData, valueSize, "header value")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.addMapValue(types.MapType(mapType), string(key), string(value)))
}

func (e *envImports) proxyGetProperty(ctx context.Context, mod api.Module, pathData, pathSize, retData, retSize uint32) uint32 {
	path, ok := e.readGuest(mod, pathData, pathSize, "property path")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, st := e.state.getProperty(string(path))
	if st != types.StatusOK {
		return uint32(st)
	}
	return e.reply(ctx, mod, value, retData, retSize)
}

func (e *envImports) proxySetProperty(_ context.Context, mod api.Module, pathData, pathSize, valueData, valueSize uint32) uint32 {
	path, ok := e.readGuest(mod, pathData, pathSize, "property path")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, ok := e.readGuest(mod, valueData, valueSize, "property value")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.setProperty(string(path), value))
}

func (e *envImports) proxyGetSharedData(ctx context.Context, mod api.Module, keyData, keySize, retData, retSize, retCas uint32) uint32 {
	key, ok := e.readGuest(mod, keyData, keySize, "shared data key")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, cas, st := e.state.getSharedData(string(key))
	if st != types.StatusOK {
		return uint32(st)
	}
	if err := mem(mod).WriteU32(retCas, cas); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return e.reply(ctx, mod, value, retData, retSize)
}

func (e *envImports) proxySetSharedData(_ context.Context, mod api.Module, keyData, keySize, valueData, valueSize, cas uint32) uint32 {
	key, ok := e.readGuest(mod, keyData, keySize, "shared data key")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	value, ok := e.readGuest(mod, valueData, valueSize, "shared data value")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.setSharedData(string(key), value, cas))
}

func (e *envImports) proxyRegisterSharedQueue(_ context.Context, mod api.Module, nameData, nameSize, retID uint32) uint32 {
	name, ok := e.readGuest(mod, nameData, nameSize, "queue name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	id, st := e.state.registerQueue(string(name))
	if st != types.StatusOK {
		return uint32(st)
	}
	if err := mem(mod).WriteU32(retID, id); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxyResolveSharedQueue(_ context.Context, mod api.Module, vmIDData, vmIDSize, nameData, nameSize, retID uint32) uint32 {
	if _, ok := e.readGuest(mod, vmIDData, vmIDSize, "vm id"); !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	name, ok := e.readGuest(mod, nameData, nameSize, "queue name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	id, st := e.state.resolveQueue(string(name))
	if st != types.StatusOK {
		return uint32(st)
	}
	if err := mem(mod).WriteU32(retID, id); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxyDequeueSharedQueue(ctx context.Context, mod api.Module, queueID, retData, retSize uint32) uint32 {
	value, st := e.state.dequeue(queueID)
	if st != types.StatusOK {
		return uint32(st)
	}
	return e.reply(ctx, mod, value, retData, retSize)
}

func (e *envImports) proxyEnqueueSharedQueue(_ context.Context, mod api.Module, queueID, valueData, valueSize uint32) uint32 {
	value, ok := e.readGuest(mod, valueData, valueSize, "queue value")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(e.state.enqueue(queueID, value))
}

func (e *envImports) proxyContinueStream(_ context.Context, _ api.Module, _ uint32) uint32 {
	return uint32(types.StatusOK)
}

func (e *envImports) proxyCloseStream(_ context.Context, _ api.Module, _ uint32) uint32 {
	return uint32(types.StatusOK)
}

func (e *envImports) proxySendLocalResponse(_ context.Context, mod api.Module, statusCode, detailsData, detailsSize, bodyData, bodySize, headersData, headersSize uint32, grpcStatus int32) uint32 {
	details, ok := e.readGuest(mod, detailsData, detailsSize, "response details")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	body, ok := e.readGuest(mod, bodyData, bodySize, "response body")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	rawHeaders, ok := e.readGuest(mod, headersData, headersSize, "response headers")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	headers, err := internal.DeserializeMap(rawHeaders)
	if err != nil {
		return uint32(types.StatusSerializationFail)
	}
	return uint32(e.state.sendLocalResponse(LocalResponse{
		StatusCode: statusCode,
		Details:    string(details),
		Body:       body,
		Headers:    headers,
		GrpcStatus: grpcStatus,
	}))
}

func (e *envImports) proxyHttpCall(_ context.Context, mod api.Module, upstreamData, upstreamSize, headersData, headersSize, bodyData, bodySize, trailersData, trailersSize, timeoutMs, retToken uint32) uint32 {
	upstream, ok := e.readGuest(mod, upstreamData, upstreamSize, "upstream")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	rawHeaders, ok := e.readGuest(mod, headersData, headersSize, "call headers")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	body, ok := e.readGuest(mod, bodyData, bodySize, "call body")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	rawTrailers, ok := e.readGuest(mod, trailersData, trailersSize, "call trailers")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	headers, err := internal.DeserializeMap(rawHeaders)
	if err != nil {
		return uint32(types.StatusSerializationFail)
	}
	trailers, err := internal.DeserializeMap(rawTrailers)
	if err != nil {
		return uint32(types.StatusSerializationFail)
	}
	token, st := e.state.httpCall(PendingCall{
		Upstream: string(upstream),
		Headers:  headers,
		Body:     body,
		Trailers: trailers,
		Timeout:  millis(timeoutMs),
	})
	if st != types.StatusOK {
		return uint32(st)
	}
	if err := mem(mod).WriteU32(retToken, token); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxySetEffectiveContext(_ context.Context, _ api.Module, contextID uint32) uint32 {
	e.state.effectiveID = contextID
	return uint32(types.StatusOK)
}

func (e *envImports) proxyDone(_ context.Context, _ api.Module) uint32 {
	e.state.doneContexts = append(e.state.doneContexts, e.state.effectiveID)
	return uint32(types.StatusOK)
}

func (e *envImports) proxyDefineMetric(_ context.Context, mod api.Module, metricType, nameData, nameSize, retID uint32) uint32 {
	name, ok := e.readGuest(mod, nameData, nameSize, "metric name")
	if !ok {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	id, st := e.state.defineMetric(types.MetricType(metricType), string(name))
	if st != types.StatusOK {
		return uint32(st)
	}
	if err := mem(mod).WriteU32(retID, id); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxyGetMetric(_ context.Context, mod api.Module, metricID, retValue uint32) uint32 {
	value, st := e.state.getMetric(metricID)
	if st != types.StatusOK {
		return uint32(st)
	}
	if err := mem(mod).WriteU64(retValue, value); err != nil {
		return uint32(types.StatusInvalidMemoryAccess)
	}
	return uint32(types.StatusOK)
}

func (e *envImports) proxyRecordMetric(_ context.Context, _ api.Module, metricID uint32, value uint64) uint32 {
	return uint32(e.state.recordMetric(metricID, value))
}

func (e *envImports) proxyIncrementMetric(_ context.Context, _ api.Module, metricID uint32, offset int64) uint32 {
	return uint32(e.state.incrementMetric(metricID, offset))
}
