package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"contactdesk/internal/controller"
	"contactdesk/internal/session"
)

// confirmMsg asks the user a question on behalf of a running operation.
type confirmMsg struct {
	prompt string
	reply  chan<- bool
}

// sessionMsg carries a session transition.
type sessionMsg session.Event

// Bridge connects controller callbacks, which run inside tea.Cmd goroutines,
// to the event loop. Confirm blocks its caller until the dialog is answered.
type Bridge struct {
	confirms chan confirmMsg
	events   chan session.Event
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	pending []controller.Notice
}

// NewBridge creates a bridge.
func NewBridge() *Bridge {
	return &Bridge{
		confirms: make(chan confirmMsg),
		events:   make(chan session.Event, 8),
		done:     make(chan struct{}),
	}
}

// Confirm implements controller.Confirmer. It answers false once the bridge
// is closed.
func (b *Bridge) Confirm(prompt string) bool {
	reply := make(chan bool, 1)
	select {
	case b.confirms <- confirmMsg{prompt: prompt, reply: reply}:
	case <-b.done:
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-b.done:
		return false
	}
}

// Notify implements controller.Notifier. Notices are queued until the
// operation that raised them completes.
func (b *Bridge) Notify(n controller.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, n)
}

// Drain returns and clears the queued notices.
func (b *Bridge) Drain() []controller.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// Watch forwards session transitions into the event loop.
func (b *Bridge) Watch(m *session.Manager) (cancel func()) {
	return m.Subscribe(func(ev session.Event) {
		select {
		case b.events <- ev:
		default:
		}
	})
}

// Close releases any blocked Confirm and stops the listeners.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) waitForConfirm() tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-b.confirms:
			return req
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) waitForSession() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-b.events:
			return sessionMsg(ev)
		case <-b.done:
			return nil
		}
	}
}
