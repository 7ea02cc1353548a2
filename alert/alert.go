package alert

import (
	"fmt"
	"sync"
	"time"
)

// Level grades an alert for routing and display.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Alert is one operator-facing notification.
type Alert struct {
	Level   Level          `json:"level"`
	Message string         `json:"message"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Channel delivers alerts to one destination.
type Channel interface {
	Send(a Alert) error
	Name() string
}

// Manager fans alerts out to every channel, throttling repeats so a
// flapping connection cannot flood the operator.
type Manager struct {
	mu       sync.RWMutex
	channels []Channel
	throttle *throttler
}

func NewManager(throttleInterval time.Duration, channels ...Channel) *Manager {
	return &Manager{
		channels: channels,
		throttle: newThrottler(throttleInterval),
	}
}

// Send delivers the alert to all channels. Repeats of the same level and
// message inside the throttle interval are dropped silently. Delivery
// errors are collected; an error is returned only when every channel
// failed.
func (m *Manager) Send(a Alert) error {
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	if !m.throttle.allow(string(a.Level) + ":" + a.Message) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			lastErr = fmt.Errorf("channel %s: %w", ch.Name(), err)
		} else {
			delivered++
		}
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

func (m *Manager) Info(message string, fields map[string]any) error {
	return m.Send(Alert{Level: LevelInfo, Message: message, Fields: fields})
}

func (m *Manager) Warning(message string, fields map[string]any) error {
	return m.Send(Alert{Level: LevelWarning, Message: message, Fields: fields})
}

func (m *Manager) Error(message string, fields map[string]any) error {
	return m.Send(Alert{Level: LevelError, Message: message, Fields: fields})
}

func (m *Manager) Critical(message string, fields map[string]any) error {
	return m.Send(Alert{Level: LevelCritical, Message: message, Fields: fields})
}

// AddChannel attaches another destination.
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// throttler remembers when each alert key was last delivered.
type throttler struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	interval time.Duration
}

func newThrottler(interval time.Duration) *throttler {
	return &throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

func (t *throttler) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSent[key] = now
	return true
}
