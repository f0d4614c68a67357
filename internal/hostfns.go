package internal

import "github.com/wippyai/proxywasm-sdk/proxywasm/types"

// HostFunctions is the raw import surface of proxy_abi_version_0_2_0 as seen
// from inside the module. Signatures mirror the wasm imports exactly:
// variable-length data travels as (pointer, size), results come back through
// pointer-out parameters, and every call returns a raw Status.
//
// In a TinyGo wasm build these functions resolve to the host's env module.
// In the default build they route to a registered implementation, which is
// how plugins get unit tested natively against hostemu.
type HostFunctions interface {
	ProxyLog(level uint32, messageData *byte, messageSize int32) types.Status
	ProxyGetCurrentTimeNanoseconds(returnTime *uint64) types.Status
	ProxySetTickPeriodMilliseconds(period uint32) types.Status

	ProxyGetBufferBytes(bufferType uint32, start, maxSize int32, returnBufferData **byte, returnBufferSize *int32) types.Status
	ProxySetBufferBytes(bufferType uint32, start, size int32, bufferData *byte, bufferSize int32) types.Status

	ProxyGetHeaderMapPairs(mapType uint32, returnMapData **byte, returnMapSize *int32) types.Status
	ProxySetHeaderMapPairs(mapType uint32, mapData *byte, mapSize int32) types.Status
	ProxyGetHeaderMapValue(mapType uint32, keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32) types.Status
	ProxyReplaceHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status
	ProxyRemoveHeaderMapValue(mapType uint32, keyData *byte, keySize int32) types.Status
	ProxyAddHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status

	ProxyGetProperty(pathData *byte, pathSize int32, returnValueData **byte, returnValueSize *int32) types.Status
	ProxySetProperty(pathData *byte, pathSize int32, valueData *byte, valueSize int32) types.Status

	ProxyGetSharedData(keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32, returnCas *uint32) types.Status
	ProxySetSharedData(keyData *byte, keySize int32, valueData *byte, valueSize int32, cas uint32) types.Status

	ProxyRegisterSharedQueue(nameData *byte, nameSize int32, returnID *uint32) types.Status
	ProxyResolveSharedQueue(vmIDData *byte, vmIDSize int32, nameData *byte, nameSize int32, returnID *uint32) types.Status
	ProxyDequeueSharedQueue(queueID uint32, returnValueData **byte, returnValueSize *int32) types.Status
	ProxyEnqueueSharedQueue(queueID uint32, valueData *byte, valueSize int32) types.Status

	ProxyContinueStream(streamType uint32) types.Status
	ProxyCloseStream(streamType uint32) types.Status
	ProxySendLocalResponse(statusCode uint32, detailsData *byte, detailsSize int32, bodyData *byte, bodySize int32, headersData *byte, headersSize int32, grpcStatus int32) types.Status

	ProxyHttpCall(upstreamData *byte, upstreamSize int32, headersData *byte, headersSize int32, bodyData *byte, bodySize int32, trailersData *byte, trailersSize int32, timeoutMs uint32, returnToken *uint32) types.Status

	ProxySetEffectiveContext(contextID uint32) types.Status
	ProxyDone() types.Status

	ProxyDefineMetric(metricType uint32, nameData *byte, nameSize int32, returnID *uint32) types.Status
	ProxyGetMetric(metricID uint32, returnValue *uint64) types.Status
	ProxyRecordMetric(metricID uint32, value uint64) types.Status
	ProxyIncrementMetric(metricID uint32, offset int64) types.Status
}
