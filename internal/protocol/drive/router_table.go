package drive

import "sync"

// Handler 处理器函数类型
type Handler func(p *Packet) error

// Table 路由表（CommandType -> handler）
type Table struct {
	mu       sync.RWMutex
	handlers map[CommandType]Handler
	fallback Handler
}

func NewTable() *Table { return &Table{handlers: make(map[CommandType]Handler)} }

func (t *Table) Register(cmd CommandType, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[cmd] = h
}

// SetFallback 未注册类型时使用的处理器
func (t *Table) SetFallback(h Handler) {
	t.mu.Lock()
	t.fallback = h
	t.mu.Unlock()
}

func (t *Table) Route(p *Packet) error {
	t.mu.RLock()
	h, ok := t.handlers[p.CommandType()]
	if !ok {
		h = t.fallback
	}
	t.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(p)
}
