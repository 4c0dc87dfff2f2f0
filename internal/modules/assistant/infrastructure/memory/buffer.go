package memory

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 一条会话消息
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Buffer 进程内会话记忆，只保留最近 capacity 条消息
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	turns    []Turn
	now      func() time.Time
}

// NewBuffer capacity <= 0 时不限制条数
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity, now: time.Now}
}

func (b *Buffer) AddUser(content string) {
	b.add(RoleUser, content)
}

func (b *Buffer) AddAssistant(content string) {
	b.add(RoleAssistant, content)
}

func (b *Buffer) add(role Role, content string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, Turn{Role: role, Content: content, At: b.now()})
	if b.capacity > 0 && len(b.turns) > b.capacity {
		drop := len(b.turns) - b.capacity
		b.turns = append(b.turns[:0:0], b.turns[drop:]...)
	}
}

// Turns 返回副本，按写入顺序
func (b *Buffer) Turns() []Turn {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.turns = nil
	b.mu.Unlock()
}
