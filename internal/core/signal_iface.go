package core

// Frame is a raw serialized payload pushed to a client.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
