package gcheap

// RefKind distinguishes strong references, which Handle[T] always
// implements, from weak references, which are reserved but not yet
// implemented. Constructing one panics rather than silently behaving like
// a strong reference.
type RefKind int

const (
	RefStrong RefKind = iota
	RefWeak
)

func assertStrong(k RefKind) {
	if k == RefWeak {
		panic("gcheap: weak references are reserved but not implemented")
	}
}
