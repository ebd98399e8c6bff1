//go:build !debug

package channel

// New creates a buffered channel of the given size. Builds tagged debug
// return an unbuffered one instead, so producers stay in lockstep with the
// consumer.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
