// Package desensitize 在日志写出前屏蔽 token、密码、验证码和邮箱。
package desensitize

import (
	"io"
	"slices"
	"sync"
)

// Hook 规则集合，按添加顺序执行，可以单独停用
type Hook struct {
	mu       sync.RWMutex
	rules    []Rule
	disabled map[string]bool
}

func NewHook(rules ...Rule) *Hook {
	h := &Hook{disabled: make(map[string]bool)}
	h.Add(rules...)
	return h
}

// Add 同名规则原地替换
func (h *Hook) Add(rules ...Rule) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rules {
		if r == nil {
			continue
		}
		if i := slices.IndexFunc(h.rules, func(x Rule) bool { return x.Name() == r.Name() }); i >= 0 {
			h.rules[i] = r
			continue
		}
		h.rules = append(h.rules, r)
	}
}

func (h *Hook) Remove(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.rules)
	h.rules = slices.DeleteFunc(h.rules, func(r Rule) bool { return r.Name() == name })
	delete(h.disabled, name)
	return len(h.rules) != n
}

func (h *Hook) SetEnabled(name string, enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if enabled {
		delete(h.disabled, name)
	} else {
		h.disabled[name] = true
	}
}

func (h *Hook) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, len(h.rules))
	for i, r := range h.rules {
		names[i] = r.Name()
	}
	return names
}

func (h *Hook) Apply(s string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.rules {
		if !h.disabled[r.Name()] {
			s = r.Apply(s)
		}
	}
	return s
}

// Writer 包装 w，每次 Write 是 zerolog 的一整行
func (h *Hook) Writer(w io.Writer) io.Writer {
	return &writer{out: w, hook: h}
}

type writer struct {
	out  io.Writer
	hook *Hook
}

func (w *writer) Write(p []byte) (int, error) {
	masked := w.hook.Apply(string(p))
	if len(masked) == len(p) && masked == string(p) {
		return w.out.Write(p)
	}
	if _, err := io.WriteString(w.out, masked); err != nil {
		return 0, err
	}
	// zerolog 按原长度校验
	return len(p), nil
}
