package realtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrTransport marks a push that could not reach one client. It is never
	// surfaced as the failure of the mutation that triggered the push.
	ErrTransport = errors.New("realtime: transport failure")

	// ErrSendBufferFull is returned when a slow client's queue is saturated.
	ErrSendBufferFull = fmt.Errorf("%w: send buffer full", ErrTransport)

	// ErrClientClosed is returned when the client disconnected mid-send.
	ErrClientClosed = fmt.Errorf("%w: client closed", ErrTransport)
)

// Client is one connected handle. Frames queued on it are written in order by
// a single writer goroutine.
type Client struct {
	ID     string
	UserID int64

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a handle with a bounded outbound queue.
func NewClient(userID int64, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Enqueue queues a frame without blocking the caller. A client whose queue is
// full is closed; it must reconnect and reload state.
func (c *Client) Enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.Close()
		return ErrSendBufferFull
	}
}

// Outbound is drained by the writer goroutine.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client as gone. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
