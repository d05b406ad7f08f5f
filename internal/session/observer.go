package session

// Event describes one state change. Err carries the cause of a failed step
// or of a forced sign-out.
type Event struct {
	From    State
	To      State
	Session Session
	Err     error
}

// Observer is notified after every transition, outside the controller's
// locks.
type Observer interface {
	SessionChanged(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) SessionChanged(e Event) { f(e) }

// Subscribe registers o and returns the function that removes it.
func (c *Controller) Subscribe(o Observer) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) emit(e Event) {
	c.obsMu.Lock()
	obs := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		obs = append(obs, o)
	}
	c.obsMu.Unlock()

	for _, o := range obs {
		o.SessionChanged(e)
	}
}
