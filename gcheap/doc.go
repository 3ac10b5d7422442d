// Package gcheap implements a moving, copying garbage collector over a
// fixed-size managed heap: a variant of Cheney's semispace algorithm
// extended with object pinning and exactly-once finalization.
//
// The header, forwarding pointer, and payload of every managed object are
// laid out directly in one of two equal semispaces, which flip on each
// collection. Heap.bytes is a single page-backed allocation split into
// "from" and "to" halves. Root registration uses an explicit NewRoot/
// release pair rather than constructor/destructor lifetimes, since Go has
// no destructors (see DESIGN.md, Open Question resolutions).
package gcheap
