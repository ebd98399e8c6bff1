// Package channel provides generic channel wrappers shared between a
// producing goroutine and the goroutine that drives the worlds.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	// TryReceive returns the next value without blocking. ok is false when
	// nothing is pending or the channel is closed.
	TryReceive() (v T, ok bool)
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
}

// Channel combines read and write access. Close may be called more than
// once.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

func tryReceive[T any](ch <-chan T) (T, bool) {
	select {
	case v, ok := <-ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}
