package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MessageChannel is the bidirectional transport a Session owns. Requests are
// asynchronous: Call registers completion callbacks and returns immediately.
// Once a channel is closed, callbacks for still-pending requests are dropped,
// never invoked with an error.
type MessageChannel interface {
	// Call issues a request. onResult receives the raw result on success;
	// onError receives the server's error. Either may be nil.
	Call(method string, params any, onResult func(json.RawMessage), onError func(*RPCError)) error

	// Notify sends a notification (no response expected).
	Notify(method string, params any) error

	// Reply answers a server-initiated request by ID.
	Reply(id int64, result any) error

	// OnNotification registers a handler for a server notification method.
	OnNotification(method string, handler NotificationHandler)

	// OnRequest registers a handler for a server-initiated request method.
	OnRequest(method string, handler RequestHandler)

	// Close releases the transport. Idempotent.
	Close() error

	// Closed reports whether the channel has been released.
	Closed() bool
}

// NotificationHandler handles an incoming notification.
type NotificationHandler func(params json.RawMessage)

// RequestHandler handles a server-initiated request. The handler replies via
// MessageChannel.Reply using the given ID, or never replies at all.
type RequestHandler func(params json.RawMessage, id int64)

// request is an outgoing JSON-RPC message.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method,omitempty"`
	Params  any    `json:"params,omitempty"`
}

// response is an outgoing JSON-RPC reply to a server-initiated request.
type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result"`
}

// pendingCall holds the completion callbacks of one in-flight request.
type pendingCall struct {
	onResult func(json.RawMessage)
	onError  func(*RPCError)
}

// Channel implements MessageChannel over a reader/writer pair using the LSP
// base protocol (Content-Length framed JSON-RPC 2.0). A single read loop
// delivers completion callbacks in response-arrival order.
type Channel struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu         sync.Mutex
	nextID     atomic.Int64
	pending    map[int64]pendingCall
	notifyFns  map[string]NotificationHandler
	requestFns map[string]RequestHandler

	closed atomic.Bool
	done   chan struct{}
}

// NewChannel creates a channel over the given connection and starts its read
// loop. closer may be nil.
func NewChannel(r io.Reader, w io.Writer, c io.Closer) *Channel {
	ch := &Channel{
		reader:     bufio.NewReaderSize(r, 64*1024),
		writer:     w,
		closer:     c,
		pending:    make(map[int64]pendingCall),
		notifyFns:  make(map[string]NotificationHandler),
		requestFns: make(map[string]RequestHandler),
		done:       make(chan struct{}),
	}
	go ch.readLoop()
	return ch
}

// Call sends a request and registers its completion callbacks.
func (c *Channel) Call(method string, params any, onResult func(json.RawMessage), onError func(*RPCError)) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	id := c.nextID.Add(1)

	c.mu.Lock()
	c.pending[id] = pendingCall{onResult: onResult, onError: onError}
	c.mu.Unlock()

	err := c.send(&request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// Notify sends a notification.
func (c *Channel) Notify(method string, params any) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	return c.send(&request{JSONRPC: "2.0", Method: method, Params: params})
}

// Reply answers a server-initiated request.
func (c *Channel) Reply(id int64, result any) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	return c.send(&response{JSONRPC: "2.0", ID: id, Result: result})
}

// OnNotification registers a notification handler.
func (c *Channel) OnNotification(method string, handler NotificationHandler) {
	c.mu.Lock()
	c.notifyFns[method] = handler
	c.mu.Unlock()
}

// OnRequest registers a server-initiated request handler.
func (c *Channel) OnRequest(method string, handler RequestHandler) {
	c.mu.Lock()
	c.requestFns[method] = handler
	c.mu.Unlock()
}

// Close releases the transport. Pending request callbacks are dropped.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.mu.Lock()
	c.pending = make(map[int64]pendingCall)
	c.mu.Unlock()

	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Closed reports whether the channel has been released.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// send writes one framed message.
func (c *Channel) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readLoop reads messages until the transport fails or the channel closes.
func (c *Channel) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		msg, err := c.readMessage()
		if err != nil {
			if c.closed.Load() || err == io.EOF || err == io.ErrClosedPipe {
				return
			}
			continue
		}

		c.dispatch(msg)
	}
}

// readMessage reads one Content-Length framed message.
func (c *Channel) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
					contentLength = n
				}
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// dispatch routes one inbound message: a response to a pending call, a
// server-initiated request, or a notification. Unregistered methods are
// ignored.
func (c *Channel) dispatch(data json.RawMessage) {
	var probe struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return
	}

	switch {
	case probe.ID != nil && probe.Method == "":
		c.completeCall(*probe.ID, probe.Result, probe.Error)

	case probe.ID != nil:
		c.mu.Lock()
		handler := c.requestFns[probe.Method]
		c.mu.Unlock()
		if handler != nil {
			handler(probe.Params, *probe.ID)
		}

	case probe.Method != "":
		c.mu.Lock()
		handler := c.notifyFns[probe.Method]
		c.mu.Unlock()
		if handler != nil {
			handler(probe.Params)
		}
	}
}

// completeCall fires the callbacks of a pending request. Responses arriving
// after Close find no pending entry and are dropped.
func (c *Channel) completeCall(id int64, result json.RawMessage, rpcErr *RPCError) {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	if rpcErr != nil {
		if call.onError != nil {
			call.onError(rpcErr)
		}
		return
	}
	if call.onResult != nil {
		call.onResult(result)
	}
}
