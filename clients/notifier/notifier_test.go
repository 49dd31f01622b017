package notifier

import (
	"errors"
	"sync"
	"testing"
)

type recordingNotifier struct {
	mu       sync.Mutex
	received [][2]string
	closeErr error
	closed   bool
}

func (r *recordingNotifier) Notify(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, [2]string{title, body})
}

func (r *recordingNotifier) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMultiNotifierFansOut(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	multi := NewMultiNotifier(a, nil, b)

	if multi.Count() != 2 {
		t.Fatalf("count = %d, want 2 (nil skipped)", multi.Count())
	}

	multi.Notify("title", "body")
	for i, n := range []*recordingNotifier{a, b} {
		if len(n.received) != 1 || n.received[0] != [2]string{"title", "body"} {
			t.Errorf("notifier %d received %v", i, n.received)
		}
	}
}

func TestMultiNotifierCloseReturnsFirstError(t *testing.T) {
	first := &recordingNotifier{closeErr: errors.New("first")}
	second := &recordingNotifier{closeErr: errors.New("second")}
	third := &recordingNotifier{}
	multi := NewMultiNotifier(first, second, third)

	err := multi.Close()
	if err == nil || err.Error() != "first" {
		t.Fatalf("err = %v, want first", err)
	}
	for i, n := range []*recordingNotifier{first, second, third} {
		if !n.closed {
			t.Errorf("notifier %d not closed", i)
		}
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil)
	n.Notify("title", "body")
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
}
