package gcheap

import (
	"reflect"
	"sync"
	"unsafe"
)

// TypeInfo is the per-type descriptor: a statically registered record of a
// managed type's size, its evacuation and reference-visiting thunks, and its
// optional finalizer. One TypeInfo exists per managed Go type, obtained
// through TypeInfoFor.
type TypeInfo struct {
	// Name identifies the type in diagnostics and heap snapshots.
	Name string

	// Size is the total footprint of an allocation of this type, header
	// included, and must never change after registration.
	Size uintptr

	// VisitPointers is called once per live object of this type during the
	// Cheney scan. It must invoke VisitHandle on every managed-reference
	// field transitively owned by the payload at payload.
	VisitPointers func(payload unsafe.Pointer, h *Heap)

	// Relocate moves the payload's bytes from src to dst, both of length
	// Size-headerSize, leaving src in a safe state afterwards. A nil
	// Relocate defaults to a bitwise copy, which is correct for any type
	// with no managed-reference fields that alias themselves.
	Relocate func(src, dst unsafe.Pointer)

	// Finalize runs user cleanup for an object not retained across a
	// collection. Nil for types that need no cleanup.
	Finalize func(payload unsafe.Pointer)

	// Kind defaults to RefStrong. RefWeak is reserved; Register rejects it.
	Kind RefKind

	// evacuateRoot is filled in by Register; it knows how to interpret a
	// root-set slot as *Handle[T] for the type this TypeInfo was registered
	// for.
	evacuateRoot func(rootSlot unsafe.Pointer, h *Heap)
}

func (ti *TypeInfo) relocate(src, dst unsafe.Pointer) {
	if ti.Relocate != nil {
		ti.Relocate(src, dst)
		return
	}
	payloadSize := ti.Size - headerSize
	copy(unsafe.Slice((*byte)(dst), payloadSize), unsafe.Slice((*byte)(src), payloadSize))
}

var registry sync.Map // map[reflect.Type]*TypeInfo

// Register installs the descriptor for T, computing the evacuation thunk
// for root-set entries of type Handle[T]. It is idempotent: registering the
// same type twice simply replaces the stored descriptor, which is useful in
// tests that tweak a Finalize hook between cases.
func Register[T any](info TypeInfo) *TypeInfo {
	assertStrong(info.Kind)
	stored := info
	stored.evacuateRoot = func(rootSlot unsafe.Pointer, h *Heap) {
		(*Handle[T])(rootSlot).evacuate(h)
	}
	ptr := &stored
	registry.Store(reflect.TypeOf((*T)(nil)).Elem(), ptr)
	return ptr
}

// TypeInfoFor returns the registered descriptor for T, panicking if none was
// registered. Managed types must be registered (directly, by a generated
// VisitPointers, or via Leaf) before the first Allocate[T] call.
func TypeInfoFor[T any]() *TypeInfo {
	var zero T
	v, ok := registry.Load(reflect.TypeOf(zero))
	if !ok {
		panic("gcheap: type " + reflect.TypeOf(zero).String() + " was never registered (call gcheap.Register or gcheap.Leaf)")
	}
	return v.(*TypeInfo)
}

// SizeOf returns the total allocation footprint of T, header included —
// the value a caller registering its own TypeInfo with a custom
// VisitPointers should put in TypeInfo.Size.
func SizeOf[T any]() uintptr {
	var zero T
	return headerSize + unsafe.Sizeof(zero)
}

// Leaf registers and returns the default descriptor for a type with no
// managed-reference fields. It never visits any pointers and uses a bitwise
// copy on evacuation.
func Leaf[T any](name string) *TypeInfo {
	var zero T
	return Register[T](TypeInfo{
		Name:          name,
		Size:          headerSize + unsafe.Sizeof(zero),
		VisitPointers: func(unsafe.Pointer, *Heap) {},
	})
}
