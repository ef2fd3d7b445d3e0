// Package wasmtest hand-encodes a handful of minimal WASM binaries for
// adapter-level smoke tests of runtime/wazeroengine. The real guest fixture
// (the Rust test_wasm crate) is an external collaborator out of scope for
// this module, so these fixtures stand in for it: small enough to verify
// byte-by-byte against the WASM binary format, just large enough to exercise
// compile/instantiate/call/trap behavior against a real engine.
package wasmtest

// ConstFortyTwo returns a module exporting a zero-argument function
// "const42" that returns the i32 constant 42.
func ConstFortyTwo() []byte {
	return concat(
		header(),
		section(1, []byte{0x01, 0x60, 0x00, 0x01, 0x7F}),             // type: () -> i32
		section(3, []byte{0x01, 0x00}),                                // func 0 uses type 0
		section(7, []byte{0x01, 0x07, 'c', 'o', 'n', 's', 't', '4', '2', 0x00, 0x00}), // export "const42" -> func 0
		section(10, []byte{0x01, 0x04, 0x00, 0x41, 0x2A, 0x0B}), // code: i32.const 42; end
	)
}

// Add returns a module exporting "add", a two-i32-argument function that
// returns their i32 sum.
func Add() []byte {
	return concat(
		header(),
		section(1, []byte{0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F}), // type: (i32,i32) -> i32
		section(3, []byte{0x01, 0x00}),
		section(7, []byte{0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00}),
		section(10, []byte{0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6A, 0x0B}), // local.get 0; local.get 1; i32.add; end
	)
}

// Unreachable returns a module exporting "crash", a zero-argument,
// zero-result function that immediately traps via the unreachable
// instruction.
func Unreachable() []byte {
	return concat(
		header(),
		section(1, []byte{0x01, 0x60, 0x00, 0x00}), // type: () -> ()
		section(3, []byte{0x01, 0x00}),
		section(7, []byte{0x01, 0x05, 'c', 'r', 'a', 's', 'h', 0x00, 0x00}),
		section(10, []byte{0x01, 0x03, 0x00, 0x00, 0x0B}), // code: unreachable; end
	)
}

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
}

// section wraps body in a WASM section with the given id, prefixed by its
// ULEB128-encoded byte length (every body here is short enough to fit in one
// length byte).
func section(id byte, body []byte) []byte {
	if len(body) > 0x7F {
		panic("wasmtest: section body too long for single-byte LEB128 length")
	}
	out := make([]byte, 0, len(body)+2)
	out = append(out, id, byte(len(body)))
	return append(out, body...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
