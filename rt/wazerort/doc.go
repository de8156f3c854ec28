// Package wazerort executes the YASL interpreter core, compiled from C to
// a WebAssembly core module, inside the process through wazero. No cgo is
// involved; the C ABI crossing becomes a wasm function-table crossing.
//
// The wasm build of the core is the stock interpreter plus a small glue
// layer. The glue exports host-friendly entry points (YASLX_pushhostfunction,
// YASLX_pushhostuserdata, YASLX_peeklstr and friends) and imports two
// functions from the "env" module:
//
//	yaslx_hostcall(state, id) -> i32    invoke the Go closure behind id
//	yaslx_userdata_free(handle)         host value became unreachable
//
// Foreign functions and user-data values therefore live entirely on the Go
// side; the guest holds integer ids and handles. Interned global names are
// written into guest memory once and never freed, so the pointer the core
// captured at declaration time stays valid for the life of the engine.
package wazerort
