// Package hostfn assembles the guest's import namespace from a granted
// capability set. It is engine-neutral: the Runtime Adapter (package
// runtime/wazeroengine) is responsible for translating a Table into its
// concrete engine's native host-function binding.
package hostfn

import "context"

// ValType is a WASM value type used in host-function signatures. The core
// only needs the two integer types the spec's fixed export table uses.
type ValType uint8

const (
	I32 ValType = iota
	I64
)

// Signature describes a host function's parameter and result types.
type Signature struct {
	Params  []ValType
	Results []ValType
}

// Memory is the minimal read access a host function needs into the calling
// instance's linear memory, for functions like log_* that take a
// (ptr, len) pair.
type Memory interface {
	// Read returns the length bytes of memory starting at offset, and
	// whether the read was in bounds.
	Read(offset, length uint32) ([]byte, bool)
}

// Func is an engine-neutral host function implementation. args and the
// returned slice are raw WASM values (i32/i64), matching wazero's stack
// convention, which keeps the adapter's translation mechanical.
type Func func(ctx context.Context, mem Memory, args []uint64) ([]uint64, error)

// Export is a single host function offered under a namespace.
type Export struct {
	Name      string
	Signature Signature
	Call      Func
}

// Table is the import table offered to a guest: module_name ->
// function_name -> Export.
type Table map[string]map[string][]Export

// add inserts an export under namespace/name. Table values are slices only
// to keep the zero-value ergonomic; Build always produces exactly one
// Export per name.
func (t Table) add(namespace string, e Export) {
	if t[namespace] == nil {
		t[namespace] = make(map[string][]Export)
	}
	t[namespace][e.Name] = append(t[namespace][e.Name], e)
}

// Lookup returns the export registered under namespace/name, if any.
func (t Table) Lookup(namespace, name string) (Export, bool) {
	fns, ok := t[namespace]
	if !ok {
		return Export{}, false
	}
	list, ok := fns[name]
	if !ok || len(list) == 0 {
		return Export{}, false
	}
	return list[0], true
}
