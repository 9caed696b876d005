package mail

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory keeps sent mail in process. It backs dev mode and tests, and
// implements ThreadReader.
type Memory struct {
	From string
	Now  func() time.Time

	mu      sync.Mutex
	seq     int
	threads map[string][]ThreadMessage
	sent    []Message
	failing error
}

func NewMemory(from string) *Memory {
	return &Memory{From: from, threads: map[string][]ThreadMessage{}}
}

// FailWith makes subsequent sends return err. nil restores delivery.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.failing = err
	m.mu.Unlock()
}

func (m *Memory) Send(_ context.Context, msg Message) (Sent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return Sent{}, m.failing
	}
	if len(msg.To) == 0 {
		return Sent{}, fmt.Errorf("no recipients")
	}
	if msg.ThreadID != "" {
		if _, ok := m.threads[msg.ThreadID]; !ok {
			return Sent{}, fmt.Errorf("unknown thread %s", msg.ThreadID)
		}
	}
	m.seq++
	id := fmt.Sprintf("msg-%d@memory", m.seq)
	thread := msg.ThreadID
	if thread == "" {
		thread = fmt.Sprintf("thread-%d", m.seq)
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	m.threads[thread] = append(m.threads[thread], ThreadMessage{
		MessageID: id,
		From:      m.From,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Date:      now,
	})
	m.sent = append(m.sent, msg)
	return Sent{MessageID: id, ThreadID: thread}, nil
}

// Receive appends an inbound message to a thread.
func (m *Memory) Receive(threadID string, tm ThreadMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = append(m.threads[threadID], tm)
}

func (m *Memory) Thread(_ context.Context, threadID string) ([]ThreadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	return append([]ThreadMessage(nil), msgs...), nil
}

func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func (m *Memory) SentTo(addr string) int {
	n := 0
	for _, msg := range m.Sent() {
		for _, to := range msg.To {
			if strings.EqualFold(to, addr) {
				n++
			}
		}
	}
	return n
}
