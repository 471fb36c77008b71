// Package pool provides sync.Pool wrappers for reducing GC pressure.
package pool

import (
	"sync"
)

// PathBuilder builds resolved element paths such as
// "Observation.component.value(Quantity)". Its buffer is reused via sync.Pool.
type PathBuilder struct {
	buf []byte
}

var pathBuilderPool = sync.Pool{
	New: func() any {
		return &PathBuilder{
			buf: make([]byte, 0, 128),
		}
	},
}

// AcquirePathBuilder gets a PathBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquirePathBuilder() *PathBuilder {
	pb := pathBuilderPool.Get().(*PathBuilder)
	pb.Reset()
	return pb
}

// Release returns the PathBuilder to the pool.
func (b *PathBuilder) Release() {
	if b == nil {
		return
	}
	// Don't return oversized buffers to the pool
	if cap(b.buf) <= 4096 {
		pathBuilderPool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *PathBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length of the path.
func (b *PathBuilder) Len() int {
	return len(b.buf)
}

// WriteString appends a string to the path.
func (b *PathBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// Append appends multiple path segments joined by '.'.
func (b *PathBuilder) Append(parts ...string) {
	for _, part := range parts {
		b.AppendWithDot(part)
	}
}

// AppendWithDot appends a segment with a leading dot if buffer is not empty.
func (b *PathBuilder) AppendWithDot(part string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, '.')
	}
	b.buf = append(b.buf, part...)
}

// AppendTypes appends a parenthesised, comma separated type list:
// "value" + AppendTypes("Quantity", "string") -> "value(Quantity,string)".
// Nothing is written for an empty list.
func (b *PathBuilder) AppendTypes(names ...string) {
	if len(names) == 0 {
		return
	}
	b.buf = append(b.buf, '(')
	for i, name := range names {
		if i > 0 {
			b.buf = append(b.buf, ',')
		}
		b.buf = append(b.buf, name...)
	}
	b.buf = append(b.buf, ')')
}

// String returns the built path as a string.
func (b *PathBuilder) String() string {
	return string(b.buf)
}

// BuildPath builds a path using a callback; the PathBuilder is returned to
// the pool afterwards.
//
//	path := pool.BuildPath(func(b *pool.PathBuilder) {
//	    b.Append("Observation", "value")
//	    b.AppendTypes("Quantity", "string")
//	})
func BuildPath(fn func(*PathBuilder)) string {
	pb := AcquirePathBuilder()
	defer pb.Release()
	fn(pb)
	return pb.String()
}

// JoinPath joins path segments with dots.
func JoinPath(segments ...string) string {
	switch len(segments) {
	case 0:
		return ""
	case 1:
		return segments[0]
	}
	return BuildPath(func(b *PathBuilder) { b.Append(segments...) })
}
