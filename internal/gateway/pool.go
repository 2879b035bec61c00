package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/kapu/arena-live-go/internal/fanout"
	"github.com/kapu/arena-live-go/pkg/arenadto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// liveConn is one accepted socket. Writes are serialized per connection;
// wsjson.Write is not safe for concurrent use on one conn.
type liveConn struct {
	id     string
	userID string
	conn   *websocket.Conn
	writeM sync.Mutex
}

// Pool owns the process-local map of live sockets and implements
// fanout.Pusher against them. A connection id absent from the pool is a
// gone connection by definition: the registry is process-local, so every
// subscribed id was accepted by this process.
type Pool struct {
	mu          sync.RWMutex
	conns       map[string]*liveConn
	pushTimeout time.Duration
}

func NewPool(pushTimeout time.Duration) *Pool {
	if pushTimeout <= 0 {
		pushTimeout = 5 * time.Second
	}
	return &Pool{conns: make(map[string]*liveConn), pushTimeout: pushTimeout}
}

func (p *Pool) add(c *liveConn) {
	p.mu.Lock()
	p.conns[c.id] = c
	p.mu.Unlock()
}

func (p *Pool) remove(id string) {
	p.mu.Lock()
	delete(p.conns, id)
	p.mu.Unlock()
}

func (p *Pool) get(id string) *liveConn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns[id]
}

// Len reports the number of live sockets.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// PushSnapshot delivers one snapshot frame to one socket.
func (p *Pool) PushSnapshot(ctx context.Context, connectionID string, snap *arenadto.Snapshot) error {
	return p.writeJSON(ctx, connectionID, snap)
}

func (p *Pool) writeJSON(ctx context.Context, connectionID string, v any) error {
	c := p.get(connectionID)
	if c == nil {
		return fanout.ErrConnectionGone
	}
	wctx, cancel := context.WithTimeout(ctx, p.pushTimeout)
	defer cancel()

	c.writeM.Lock()
	err := wsjson.Write(wctx, c.conn, v)
	c.writeM.Unlock()
	if err == nil {
		return nil
	}
	// A closed socket reports a close status; anything else (timeout,
	// transient I/O) is an ordinary delivery failure.
	if websocket.CloseStatus(err) != -1 {
		return fanout.ErrConnectionGone
	}
	return err
}
