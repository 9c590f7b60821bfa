package clk

// RateChange describes a pending or committed rate change of one clock.
type RateChange struct {
	Clock   *Node
	OldRate uint64
	NewRate uint64

	// Transients are the intermediate rates the clock sees while safe
	// divisors are in place, in order. Empty when the change is direct.
	Transients []uint64
}

// Rates returns every rate the clock will run at, in order, ending with
// NewRate.
func (rc RateChange) Rates() []uint64 {
	out := make([]uint64, 0, len(rc.Transients)+1)
	out = append(out, rc.Transients...)
	return append(out, rc.NewRate)
}

// Notifier is told about rate changes of a clock it subscribed to.
//
// Callbacks run with the controller lock held and must not call back into
// the Controller.
type Notifier interface {
	// PreRateChange is offered the forecast before any register is written.
	// Returning an error vetoes the transition.
	PreRateChange(rc RateChange) error

	// PostRateChange reports the committed rate.
	PostRateChange(rc RateChange)
}

// NotifierFuncs adapts plain functions to Notifier. Nil functions are
// skipped.
type NotifierFuncs struct {
	Pre  func(RateChange) error
	Post func(RateChange)
}

func (f NotifierFuncs) PreRateChange(rc RateChange) error {
	if f.Pre == nil {
		return nil
	}
	return f.Pre(rc)
}

func (f NotifierFuncs) PostRateChange(rc RateChange) {
	if f.Post != nil {
		f.Post(rc)
	}
}

type subscription struct {
	id       uint64
	notifier Notifier
}

// Subscribe registers nf for rate changes of n. The returned function
// removes the subscription.
func (c *Controller) Subscribe(n *Node, nf Notifier) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subs[n] = append(c.subs[n], subscription{id: id, notifier: nf})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		subs := c.subs[n]
		for i, s := range subs {
			if s.id == id {
				c.subs[n] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Compile-time interface satisfaction check.
var _ Notifier = NotifierFuncs{}
