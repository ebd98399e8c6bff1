package channel

import "sync"

// Buffered is a buffered channel implementation
type Buffered[T any] struct {
	ch   chan T
	once sync.Once
}

// NewBuffered creates a new buffered channel with the given size
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// Send blocks while the buffer is full.
func (b *Buffered[T]) Send(v T) {
	b.ch <- v
}

func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

func (b *Buffered[T]) TryReceive() (T, bool) {
	return tryReceive(b.ch)
}

// Len returns the number of items currently in the buffer
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

func (b *Buffered[T]) Close() {
	b.once.Do(func() { close(b.ch) })
}
