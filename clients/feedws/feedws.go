// Package feedws consumes chat log lines from a remote watcher daemon over
// websocket, for setups where the game runs on a different machine.
package feedws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tradewatch/clients/logwatcher"
)

const pingInterval = 10 * time.Second

var ErrNotConnected = errors.New("feedws: not connected")

type controlMessage struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

type frame struct {
	Type  string            `json:"type"`
	Lines []logwatcher.Line `json:"lines,omitempty"`
}

// Client is a websocket line-feed consumer. It implements the same watch
// contract as the local tailer so the monitor can use either.
type Client struct {
	logger *zap.Logger
	url    string
	dialer *websocket.Dialer

	connMu  sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	closeCh chan struct{}

	subMu     sync.Mutex
	subs      map[int]chan []logwatcher.Line
	nextSubID int

	msgCount        int64
	lastMsgUnixNano int64
}

func NewClient(logger *zap.Logger, url string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:  logger,
		url:     url,
		dialer:  websocket.DefaultDialer,
		closeCh: make(chan struct{}),
		subs:    make(map[int]chan []logwatcher.Line),
	}
}

// StartWatch connects to the daemon and asks it to watch path. Line batches
// stream in until StopWatch or context cancellation.
func (c *Client) StartWatch(ctx context.Context, path string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return errors.New("feedws: already watching")
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to watcher daemon: %w", err)
	}
	c.conn = conn
	c.closeCh = make(chan struct{})

	if err := c.writeConn(conn, controlMessage{Type: "watch", Path: path}); err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("failed to send watch request: %w", err)
	}

	c.logger.Info("connected to watcher daemon",
		zap.String("url", c.url),
		zap.String("path", path))

	go c.readLoop(conn)
	go c.pingLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.StopWatch()
		case <-c.closeCh:
		}
	}()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.logger.Warn("watcher daemon connection lost", zap.Error(err))
			}
			return
		}
		atomic.AddInt64(&c.msgCount, 1)
		atomic.StoreInt64(&c.lastMsgUnixNano, time.Now().UnixNano())

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("unparseable feed frame", zap.Error(err))
			continue
		}
		switch f.Type {
		case "PING", "PONG", "ping", "pong":
			continue
		case "lines":
			if len(f.Lines) > 0 {
				c.publish(f.Lines)
			}
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			if err := c.writeJSON(controlMessage{Type: "ping"}); err != nil {
				c.logger.Warn("failed to ping watcher daemon", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeConn(conn, v)
}

func (c *Client) writeConn(conn *websocket.Conn, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// StopWatch tells the daemon to stop and closes the connection.
func (c *Client) StopWatch() error {
	if err := c.writeJSON(controlMessage{Type: "unwatch"}); err != nil && !errors.Is(err, ErrNotConnected) {
		c.logger.Warn("failed to send unwatch request", zap.Error(err))
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	close(c.closeCh)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Subscribe registers a batch consumer, mirroring the local tailer API.
func (c *Client) Subscribe() (<-chan []logwatcher.Line, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan []logwatcher.Line, 64)
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Client) publish(batch []logwatcher.Line) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- batch:
		default:
			c.logger.Warn("dropping batch for slow subscriber", zap.Int("subscriber", id))
		}
	}
}

// Stats reports how many frames have arrived and when the last one did.
func (c *Client) Stats() (count int64, last time.Time) {
	count = atomic.LoadInt64(&c.msgCount)
	if nanos := atomic.LoadInt64(&c.lastMsgUnixNano); nanos > 0 {
		last = time.Unix(0, nanos)
	}
	return count, last
}
