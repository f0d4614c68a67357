//go:build tinygo

package internal

import "github.com/wippyai/proxywasm-sdk/proxywasm/types"

// Exported entry points of proxy_abi_version_0_2_0. These are thin shims:
// they convert raw wasm integers to the dispatcher's types and nothing else.
// Native builds call the dispatcher functions directly instead.

//go:wasmexport proxy_abi_version_0_2_0
func proxyABIVersion020() {}

//go:wasmexport proxy_on_memory_allocate
func proxyOnMemoryAllocate(size uint32) *byte {
	return ProxyOnMemoryAllocate(size)
}

//go:wasmexport proxy_on_context_create
func proxyOnContextCreate(contextID, rootContextID uint32) {
	ProxyOnContextCreate(contextID, rootContextID)
}

//go:wasmexport proxy_on_vm_start
func proxyOnVMStart(contextID, vmConfigurationSize uint32) uint32 {
	if ProxyOnVMStart(contextID, int(vmConfigurationSize)) {
		return 1
	}
	return 0
}

//go:wasmexport proxy_on_configure
func proxyOnConfigure(contextID, pluginConfigurationSize uint32) uint32 {
	if ProxyOnConfigure(contextID, int(pluginConfigurationSize)) {
		return 1
	}
	return 0
}

//go:wasmexport proxy_on_tick
func proxyOnTick(contextID uint32) {
	ProxyOnTick(contextID)
}

//go:wasmexport proxy_on_queue_ready
func proxyOnQueueReady(contextID, queueID uint32) {
	ProxyOnQueueReady(contextID, queueID)
}

//go:wasmexport proxy_on_new_connection
func proxyOnNewConnection(contextID uint32) uint32 {
	return uint32(ProxyOnNewConnection(contextID))
}

//go:wasmexport proxy_on_downstream_data
func proxyOnDownstreamData(contextID, dataSize, endOfStream uint32) uint32 {
	return uint32(ProxyOnDownstreamData(contextID, int(dataSize), endOfStream != 0))
}

//go:wasmexport proxy_on_downstream_connection_close
func proxyOnDownstreamConnectionClose(contextID, peerType uint32) {
	ProxyOnDownstreamConnectionClose(contextID, types.PeerType(peerType))
}

//go:wasmexport proxy_on_upstream_data
func proxyOnUpstreamData(contextID, dataSize, endOfStream uint32) uint32 {
	return uint32(ProxyOnUpstreamData(contextID, int(dataSize), endOfStream != 0))
}

//go:wasmexport proxy_on_upstream_connection_close
func proxyOnUpstreamConnectionClose(contextID, peerType uint32) {
	ProxyOnUpstreamConnectionClose(contextID, types.PeerType(peerType))
}

//go:wasmexport proxy_on_request_headers
func proxyOnRequestHeaders(contextID, numHeaders, endOfStream uint32) uint32 {
	return uint32(ProxyOnRequestHeaders(contextID, int(numHeaders), endOfStream != 0))
}

//go:wasmexport proxy_on_request_body
func proxyOnRequestBody(contextID, bodySize, endOfStream uint32) uint32 {
	return uint32(ProxyOnRequestBody(contextID, int(bodySize), endOfStream != 0))
}

//go:wasmexport proxy_on_request_trailers
func proxyOnRequestTrailers(contextID, numTrailers uint32) uint32 {
	return uint32(ProxyOnRequestTrailers(contextID, int(numTrailers)))
}

//go:wasmexport proxy_on_response_headers
func proxyOnResponseHeaders(contextID, numHeaders, endOfStream uint32) uint32 {
	return uint32(ProxyOnResponseHeaders(contextID, int(numHeaders), endOfStream != 0))
}

//go:wasmexport proxy_on_response_body
func proxyOnResponseBody(contextID, bodySize, endOfStream uint32) uint32 {
	return uint32(ProxyOnResponseBody(contextID, int(bodySize), endOfStream != 0))
}

//go:wasmexport proxy_on_response_trailers
func proxyOnResponseTrailers(contextID, numTrailers uint32) uint32 {
	return uint32(ProxyOnResponseTrailers(contextID, int(numTrailers)))
}

//go:wasmexport proxy_on_http_call_response
func proxyOnHttpCallResponse(contextID, token, numHeaders, bodySize, numTrailers uint32) {
	ProxyOnHttpCallResponse(contextID, token, int(numHeaders), int(bodySize), int(numTrailers))
}

//go:wasmexport proxy_on_log
func proxyOnLog(contextID uint32) {
	ProxyOnLog(contextID)
}

//go:wasmexport proxy_on_done
func proxyOnDone(contextID uint32) uint32 {
	if ProxyOnDone(contextID) {
		return 1
	}
	return 0
}

//go:wasmexport proxy_on_delete
func proxyOnDelete(contextID uint32) {
	ProxyOnDelete(contextID)
}
