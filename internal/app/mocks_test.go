package app

import (
	"context"
	"encoding/json"
	"sync"

	"tradewatch/clients/logwatcher"
	"tradewatch/clients/tradeapi"
)

// MockStorage is an in-memory Storage for tests.
type MockStorage struct {
	mu        sync.Mutex
	data      map[string]string
	enabled   bool
	loadError error
	saveError error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{data: make(map[string]string), enabled: true}
}

func (m *MockStorage) IsEnabled() bool { return m.enabled }

func (m *MockStorage) SetEnabled(enabled bool) { m.enabled = enabled }

func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadError != nil {
		return "", m.loadError
	}
	return m.data[key], nil
}

func (m *MockStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.data[key] = value
	return nil
}

func (m *MockStorage) LoadJSON(ctx context.Context, key string, dest interface{}) error {
	content, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}
	return json.Unmarshal([]byte(content), dest)
}

func (m *MockStorage) SaveJSON(ctx context.Context, key string, data interface{}) error {
	content, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(content))
}

func (m *MockStorage) GetContent(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu            sync.Mutex
	notifications [][2]string
}

func (m *MockNotifier) Notify(title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, [2]string{title, body})
}

func (m *MockNotifier) Close() error { return nil }

func (m *MockNotifier) Notifications() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]string, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// MockSound records played sound IDs.
type MockSound struct {
	mu     sync.Mutex
	played []string
}

func (m *MockSound) Play(soundID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, soundID)
}

func (m *MockSound) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	copy(out, m.played)
	return out
}

// MockWatcher records watch lifecycle calls and lets tests inject batches.
type MockWatcher struct {
	mu         sync.Mutex
	startCalls []string
	startErr   error
	stopErr    error
	events     []string
	subs       []chan []logwatcher.Line
}

func NewMockWatcher() *MockWatcher { return &MockWatcher{} }

func (m *MockWatcher) SetStartError(err error) { m.startErr = err }
func (m *MockWatcher) SetStopError(err error)  { m.stopErr = err }

func (m *MockWatcher) StartWatch(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.startCalls = append(m.startCalls, path)
	m.events = append(m.events, "start")
	return nil
}

func (m *MockWatcher) StopWatch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "stop")
	return m.stopErr
}

func (m *MockWatcher) Subscribe() (<-chan []logwatcher.Line, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []logwatcher.Line, 16)
	m.subs = append(m.subs, ch)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.events = append(m.events, "unsubscribe")
			close(ch)
		})
	}
}

// Emit pushes a batch to every live subscriber.
func (m *MockWatcher) Emit(batch []logwatcher.Line) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- batch:
		default:
		}
	}
}

func (m *MockWatcher) StartCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.startCalls))
	copy(out, m.startCalls)
	return out
}

func (m *MockWatcher) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

// MockIdentity returns a fixed user.
type MockIdentity struct {
	mu    sync.Mutex
	user  *tradeapi.User
	err   error
	calls int
}

func (m *MockIdentity) SetUser(user *tradeapi.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
}

func (m *MockIdentity) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockIdentity) CurrentUser(context.Context) (*tradeapi.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.user, m.err
}

func (m *MockIdentity) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockDeliver counts delivery attempts and fails the first failures calls.
type mockDeliver struct {
	mu       sync.Mutex
	calls    []QueuedTrade
	failures int
	err      error
}

func (d *mockDeliver) fn(_ context.Context, trade QueuedTrade) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, trade)
	if d.failures > 0 {
		d.failures--
		return d.err
	}
	return nil
}

func (d *mockDeliver) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *mockDeliver) call(i int) QueuedTrade {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[i]
}
