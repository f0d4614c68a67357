//go:build tinygo

package internal

import "github.com/wippyai/proxywasm-sdk/proxywasm/types"

// Raw imports from the host's env module. One declaration per ABI function;
// signatures are fixed by proxy_abi_version_0_2_0.

//go:wasmimport env proxy_log
func ProxyLog(level uint32, messageData *byte, messageSize int32) types.Status

//go:wasmimport env proxy_get_current_time_nanoseconds
func ProxyGetCurrentTimeNanoseconds(returnTime *uint64) types.Status

//go:wasmimport env proxy_set_tick_period_milliseconds
func ProxySetTickPeriodMilliseconds(period uint32) types.Status

//go:wasmimport env proxy_get_buffer_bytes
func ProxyGetBufferBytes(bufferType uint32, start, maxSize int32, returnBufferData **byte, returnBufferSize *int32) types.Status

//go:wasmimport env proxy_set_buffer_bytes
func ProxySetBufferBytes(bufferType uint32, start, size int32, bufferData *byte, bufferSize int32) types.Status

//go:wasmimport env proxy_get_header_map_pairs
func ProxyGetHeaderMapPairs(mapType uint32, returnMapData **byte, returnMapSize *int32) types.Status

//go:wasmimport env proxy_set_header_map_pairs
func ProxySetHeaderMapPairs(mapType uint32, mapData *byte, mapSize int32) types.Status

//go:wasmimport env proxy_get_header_map_value
func ProxyGetHeaderMapValue(mapType uint32, keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32) types.Status

//go:wasmimport env proxy_replace_header_map_value
func ProxyReplaceHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status

//go:wasmimport env proxy_remove_header_map_value
func ProxyRemoveHeaderMapValue(mapType uint32, keyData *byte, keySize int32) types.Status

//go:wasmimport env proxy_add_header_map_value
func ProxyAddHeaderMapValue(mapType uint32, keyData *byte, keySize int32, valueData *byte, valueSize int32) types.Status

//go:wasmimport env proxy_get_property
func ProxyGetProperty(pathData *byte, pathSize int32, returnValueData **byte, returnValueSize *int32) types.Status

//go:wasmimport env proxy_set_property
func ProxySetProperty(pathData *byte, pathSize int32, valueData *byte, valueSize int32) types.Status

//go:wasmimport env proxy_get_shared_data
func ProxyGetSharedData(keyData *byte, keySize int32, returnValueData **byte, returnValueSize *int32, returnCas *uint32) types.Status

//go:wasmimport env proxy_set_shared_data
func ProxySetSharedData(keyData *byte, keySize int32, valueData *byte, valueSize int32, cas uint32) types.Status

//go:wasmimport env proxy_register_shared_queue
func ProxyRegisterSharedQueue(nameData *byte, nameSize int32, returnID *uint32) types.Status

//go:wasmimport env proxy_resolve_shared_queue
func ProxyResolveSharedQueue(vmIDData *byte, vmIDSize int32, nameData *byte, nameSize int32, returnID *uint32) types.Status

//go:wasmimport env proxy_dequeue_shared_queue
func ProxyDequeueSharedQueue(queueID uint32, returnValueData **byte, returnValueSize *int32) types.Status

//go:wasmimport env proxy_enqueue_shared_queue
func ProxyEnqueueSharedQueue(queueID uint32, valueData *byte, valueSize int32) types.Status

//go:wasmimport env proxy_continue_stream
func ProxyContinueStream(streamType uint32) types.Status

//go:wasmimport env proxy_close_stream
func ProxyCloseStream(streamType uint32) types.Status

//go:wasmimport env proxy_send_local_response
func ProxySendLocalResponse(statusCode uint32, detailsData *byte, detailsSize int32, bodyData *byte, bodySize int32, headersData *byte, headersSize int32, grpcStatus int32) types.Status

//go:wasmimport env proxy_http_call
func ProxyHttpCall(upstreamData *byte, upstreamSize int32, headersData *byte, headersSize int32, bodyData *byte, bodySize int32, trailersData *byte, trailersSize int32, timeoutMs uint32, returnToken *uint32) types.Status

//go:wasmimport env proxy_set_effective_context
func ProxySetEffectiveContext(contextID uint32) types.Status

//go:wasmimport env proxy_done
func ProxyDone() types.Status

//go:wasmimport env proxy_define_metric
func ProxyDefineMetric(metricType uint32, nameData *byte, nameSize int32, returnID *uint32) types.Status

//go:wasmimport env proxy_get_metric
func ProxyGetMetric(metricID uint32, returnValue *uint64) types.Status

//go:wasmimport env proxy_record_metric
func ProxyRecordMetric(metricID uint32, value uint64) types.Status

//go:wasmimport env proxy_increment_metric
func ProxyIncrementMetric(metricID uint32, offset int64) types.Status
