package app

import (
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/ui/toast"
)

// Sender forwards events from background goroutines (deliveries, the
// session manager, the cart store) into the running program. Messages
// sent before Attach or after the program exits are dropped.
//
// Send blocks until the program reads the message, so it must never be
// called from inside Update.
type Sender struct {
	mu gosync.RWMutex
	p  *tea.Program
}

// NewSender creates a detached sender.
func NewSender() *Sender {
	return &Sender{}
}

// Attach connects the sender to p.
func (s *Sender) Attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

// Send delivers msg to the program.
func (s *Sender) Send(msg tea.Msg) {
	s.mu.RLock()
	p := s.p
	s.mu.RUnlock()

	if p != nil {
		p.Send(msg)
	}
}

// Alert implements notify.Alerter by pushing the alert onto the toast stack.
func (s *Sender) Alert(a notify.Alert) {
	s.Send(toast.ShowMsg{Alert: a})
}
