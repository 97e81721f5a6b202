// Package ingest owns the producer side of the pipeline: the transport
// receive endpoint, the sequencer, and the push end of the event ring. Its
// loop busy-polls the transport, timestamps arrivals, sequences them, parses
// released packets into events, and pushes them to the consumer core —
// without blocking, allocating, or entering the kernel on the packet path.
package ingest

// Transport is a non-blocking datagram receive endpoint. The production
// implementation is a multicast UDP socket; tests script one in memory.
type Transport interface {
	// Recv copies the next available datagram into buf and returns its
	// length. It must not block: n == 0 with a nil error means no data is
	// ready. A non-nil error is fatal and terminates the ingest loop.
	Recv(buf []byte) (int, error)

	Close() error
}
