//go:build !tinygo

package internal

import "github.com/wippyai/proxywasm-sdk/proxywasm/types"

// currentHost backs the raw import surface in native builds. hostemu
// registers itself here before driving any entry point.
var currentHost HostFunctions

// SetHostFunctions installs the host implementation raw imports route to.
func SetHostFunctions(h HostFunctions) {
	currentHost = h
}

func host() HostFunctions {
	if currentHost == nil {
		panic("proxywasm: no host registered; native builds must install one via hostemu")
	}
	return currentHost
}

func ProxyLog(level uint32, messageData *byte, messageSize int32) types.Status {
	return host().ProxyLog(level, messageData, messageSize)
}

func ProxyGetCurrentTimeNanoseconds(returnTime *uint64) types.Status {
	return host().ProxyGetCurrentTimeNanoseconds(returnTime)
}

func ProxySetTickPeriodMilliseconds(period uint32) types.Status {
	return host().ProxySetTickPeriodMilliseconds(period)
}

func ProxyGetBufferBytes(bufferType uint32, start, maxSize int32, returnBufferData **byte, returnBufferSize *int32) types.Status {
	return host().ProxyGetBufferBytes(bufferType, start, maxSize, returnBufferData, returnBufferSize)
}

func ProxySetBufferBytes(bufferType uint32, start, size int32, bufferData *byte, bufferSize int32) types.Status {
	return host().ProxySetBufferBytes(bufferType, start, size, bufferData, bufferSize)
}

func ProxyGetHeaderMapPairs(mapType uint32, returnMapData **byte, returnMapSize *int32) types.Status {
	return host().ProxyGetHeaderMapPairs(mapType, returnMapData, returnMapSize)
}

func ProxySetHeaderMapPairs(mapType uint32, mapData *byte, mapSize int32) types.Status {
	return host().ProxySetHeaderMapPairs(mapType, mapData, mapSize)
}

func ProxyGetHeaderMapValue(mapType uint32, keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32) types.Status {
	return host().ProxyGetHeaderMapValue(mapType, keyData, keySize, returnValueData, returnValueSize)
}

func ProxyReplaceHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status {
	return host().ProxyReplaceHeaderMapValue(mapType, keyData, keySize, valueData, valueSize)
}

func ProxyRemoveHeaderMapValue(mapType uint32, keyData *byte, keySize int32) types.Status {
	return host().ProxyRemoveHeaderMapValue(mapType, keyData, keySize)
}

func ProxyAddHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status {
	return host().ProxyAddHeaderMapValue(mapType, keyData, keySize, valueData, valueSize)
}

func ProxyGetProperty(pathData *byte, pathSize int32, returnValueData **byte, returnValueSize *int32) types.Status {
	return host().ProxyGetProperty(pathData, pathSize, returnValueData, returnValueSize)
}

func ProxySetProperty(pathData *byte, pathSize int32, valueData *byte, valueSize int32) types.Status {
	return host().ProxySetProperty(pathData, pathSize, valueData, valueSize)
}

func ProxyGetSharedData(keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32, returnCas *uint32) types.Status {
	return host().ProxyGetSharedData(keyData, keySize, returnValueData, returnValueSize, returnCas)
}

func ProxySetSharedData(keyData *byte, keySize int32, valueData *byte, valueSize int32, cas uint32) types.Status {
	return host().ProxySetSharedData(keyData, keySize, valueData, valueSize, cas)
}

func ProxyRegisterSharedQueue(nameData *byte, nameSize int32, returnID *uint32) types.Status {
	return host().ProxyRegisterSharedQueue(nameData, nameSize, returnID)
}

func ProxyResolveSharedQueue(vmIDData *byte, vmIDSize int32, nameData *byte, nameSize int32, returnID *uint32) types.Status {
	return host().ProxyResolveSharedQueue(vmIDData, vmIDSize, nameData, nameSize, returnID)
}

func ProxyDequeueSharedQueue(queueID uint32, returnValueData **byte, returnValueSize *int32) types.Status {
	return host().ProxyDequeueSharedQueue(queueID, returnValueData, returnValueSize)
}

func ProxyEnqueueSharedQueue(queueID uint32, valueData *byte, valueSize int32) types.Status {
	return host().ProxyEnqueueSharedQueue(queueID, valueData, valueSize)
}

func ProxyContinueStream(streamType uint32) types.Status {
	return host().ProxyContinueStream(streamType)
}

func ProxyCloseStream(streamType uint32) types.Status {
	return host().ProxyCloseStream(streamType)
}

func ProxySendLocalResponse(statusCode uint32, detailsData *byte, detailsSize int32, bodyData *byte, bodySize int32, headersData *byte, headersSize int32, grpcStatus int32) types.Status {
	return host().ProxySendLocalResponse(statusCode, detailsData, detailsSize, bodyData, bodySize, headersData, headersSize, grpcStatus)
}

func ProxyHttpCall(upstreamData *byte, upstreamSize int32, headersData *byte, headersSize int32, bodyData *byte, bodySize int32, trailersData *byte, trailersSize int32, timeoutMs uint32, returnToken *uint32) types.Status {
	return host().ProxyHttpCall(upstreamData, upstreamSize, headersData, headersSize, bodyData, bodySize, trailersData, trailersSize, timeoutMs, returnToken)
}

func ProxySetEffectiveContext(contextID uint32) types.Status {
	return host().ProxySetEffectiveContext(contextID)
}

func ProxyDone() types.Status {
	return host().ProxyDone()
}

func ProxyDefineMetric(metricType uint32, nameData *byte, nameSize int32, returnID *uint32) types.Status {
	return host().ProxyDefineMetric(metricType, nameData, nameSize, returnID)
}

func ProxyGetMetric(metricID uint32, returnValue *uint64) types.Status {
	return host().ProxyGetMetric(metricID, returnValue)
}

func ProxyRecordMetric(metricID uint32, value uint64) types.Status {
	return host().ProxyRecordMetric(metricID, value)
}

func ProxyIncrementMetric(metricID uint32, offset int64) types.Status {
	return host().ProxyIncrementMetric(metricID, offset)
}
