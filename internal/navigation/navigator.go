package navigation

import (
	"log/slog"
	"sync"

	"github.com/agro-insight/agroinsight/internal/logging"
)

// Navigator keeps the back stack, the pending request of the screen about
// to mount and the drawer overlay. It is safe for concurrent use.
type Navigator struct {
	logger *slog.Logger

	mu       sync.Mutex
	stack    []Request
	pending  *Request
	consumed bool
	drawer   bool
}

// NewNavigator builds an empty navigator.
func NewNavigator(logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Navigator{logger: logger}
}

// Navigate pushes a typed route.
func (n *Navigator) Navigate(r Route) {
	n.Push(NewRequest(r))
}

// Push pushes a raw request. Destinations still validate it on mount.
func (n *Navigator) Push(req Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = append(n.stack, req)
	n.arm(req)
	n.logger.Debug("navigate", "screen", string(req.Target), "params", req.Params, "depth", len(n.stack))
}

// Replace swaps the current screen.
func (n *Navigator) Replace(r Route) {
	req := NewRequest(r)
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) > 0 {
		n.stack = n.stack[:len(n.stack)-1]
	}
	n.stack = append(n.stack, req)
	n.arm(req)
}

// Reset clears history and starts from r.
func (n *Navigator) Reset(r Route) {
	req := NewRequest(r)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = []Request{req}
	n.arm(req)
	n.logger.Debug("navigation reset", "screen", string(req.Target))
}

// Back pops the current screen and re-arms the previous one with its
// original parameters. It reports false at the root.
func (n *Navigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) < 2 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	n.arm(n.stack[len(n.stack)-1])
	return true
}

func (n *Navigator) arm(req Request) {
	cp := Request{Target: req.Target, Params: req.Params.Clone()}
	n.pending = &cp
	n.consumed = false
	n.drawer = false
}

// Mount hands the pending request to the destination exactly once.
func (n *Navigator) Mount() (Request, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		if n.consumed {
			return Request{}, ErrAlreadyConsumed
		}
		return Request{}, ErrNoRequest
	}
	req := *n.pending
	n.pending = nil
	n.consumed = true
	return req, nil
}

// Current returns the top of the stack.
func (n *Navigator) Current() (Screen, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) == 0 {
		return "", false
	}
	return n.stack[len(n.stack)-1].Target, true
}

// Depth is the number of screens on the stack.
func (n *Navigator) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack)
}

// OpenDrawer shows the account menu.
func (n *Navigator) OpenDrawer() {
	n.mu.Lock()
	n.drawer = true
	n.mu.Unlock()
}

// CloseDrawer hides the account menu.
func (n *Navigator) CloseDrawer() {
	n.mu.Lock()
	n.drawer = false
	n.mu.Unlock()
}

// ToggleDrawer flips the account menu.
func (n *Navigator) ToggleDrawer() {
	n.mu.Lock()
	n.drawer = !n.drawer
	n.mu.Unlock()
}

// DrawerOpen reports the overlay visibility.
func (n *Navigator) DrawerOpen() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drawer
}
