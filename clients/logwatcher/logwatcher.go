// Package logwatcher tails a game chat log file and emits parsed line
// batches to subscribers.
package logwatcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Line is one chat log line split into its timestamp, speaker and message.
type Line struct {
	Timestamp string `json:"timestamp"`
	Nick      string `json:"nick"`
	Message   string `json:"message"`
}

var lineRE = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\]\s+<([^>]+)>\s+(.+)`)

// ParseLine splits a raw chat log line. Returns false for lines that do not
// match the `[HH:MM:SS] <nick> message` shape (system messages, emotes).
func ParseLine(raw string) (Line, bool) {
	m := lineRE.FindStringSubmatch(raw)
	if m == nil {
		return Line{}, false
	}
	return Line{Timestamp: m[1], Nick: m[2], Message: m[3]}, true
}

const (
	// initialScanBytes bounds how far back the tailer reads on start.
	initialScanBytes = 5000
	// initialScanLines bounds how many trailing lines are replayed.
	initialScanLines = 10

	batchDelay   = 100 * time.Millisecond
	pollInterval = 200 * time.Millisecond
	subBuffer    = 64
)

var ErrAlreadyWatching = errors.New("logwatcher: already watching a file")

// Client tails one log file at a time. New content is batched with a short
// debounce and fanned out to subscribers.
type Client struct {
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	subs      map[int]chan []Line
	nextSubID int
}

func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger: logger,
		subs:   make(map[int]chan []Line),
	}
}

// StartWatch begins tailing path. The trailing lines already in the file
// are replayed as the first batch so a freshly attached consumer sees
// recent context. Returns ErrAlreadyWatching if a watch is active.
func (c *Client) StartWatch(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyWatching
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	size := info.Size()

	pending := c.initialTail(f, size)
	f.Close()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	c.logger.Info("watching log file",
		zap.String("path", path),
		zap.Int("replayed_lines", len(pending)))

	go c.run(watchCtx, done, fsw, path, size, pending)
	return nil
}

// initialTail reads the trailing window of the file and returns the last
// parseable lines. The first line of a mid-file seek is dropped since it
// is usually partial.
func (c *Client) initialTail(f *os.File, size int64) []Line {
	offset := size - initialScanBytes
	partial := offset > 0
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil
	}

	var lines []Line
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			if partial {
				continue
			}
		}
		if line, ok := ParseLine(scanner.Text()); ok {
			lines = append(lines, line)
		}
	}
	if len(lines) > initialScanLines {
		lines = lines[len(lines)-initialScanLines:]
	}
	return lines
}

func (c *Client) run(ctx context.Context, done chan struct{}, fsw *fsnotify.Watcher, path string, offset int64, pending []Line) {
	defer close(done)
	defer fsw.Close()

	// Poll ticker backstops fsnotify on filesystems with unreliable events.
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	flush := time.NewTicker(batchDelay)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				offset = c.consume(path, offset, &pending)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			c.logger.Warn("file watcher error", zap.Error(err))
		case <-poll.C:
			offset = c.consume(path, offset, &pending)
		case <-flush.C:
			if len(pending) > 0 {
				c.publish(pending)
				pending = nil
			}
		}
	}
}

// consume reads new content past offset into pending and returns the new
// offset. Truncation (log rotation) resets to the start of the file.
func (c *Client) consume(path string, offset int64, pending *[]Line) int64 {
	f, err := os.Open(path)
	if err != nil {
		c.logger.Warn("failed to reopen log file", zap.Error(err))
		return offset
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset
	}
	size := info.Size()
	if size < offset {
		c.logger.Info("log file truncated, restarting from top")
		offset = 0
	}
	if size == offset {
		return offset
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line, ok := ParseLine(scanner.Text()); ok {
			*pending = append(*pending, line)
		}
	}
	return size
}

// StopWatch ends the active watch and waits for the tail goroutine to exit.
func (c *Client) StopWatch() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Subscribe registers a batch consumer. The returned func unregisters it;
// calling it more than once is safe.
func (c *Client) Subscribe() (<-chan []Line, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan []Line, subBuffer)
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Client) publish(batch []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- batch:
		default:
			c.logger.Warn("dropping batch for slow subscriber", zap.Int("subscriber", id))
		}
	}
}
