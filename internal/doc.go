// Package internal holds the machinery beneath the public SDK surface: the
// context dispatcher, the raw host import bindings, the scratch-memory
// allocator the host writes results into, and the wire codecs for header
// maps and property paths.
//
// The package has two build flavors. Under the tinygo tag the raw imports
// bind directly to the host's env module and the entry points are exported
// from the wasm binary. In the default build the same functions route
// through a registered HostFunctions implementation, which is what lets
// plugin logic run under the native emulator in ordinary Go tests.
//
// Nothing here is part of the supported API. Plugins use package proxywasm.
package internal
