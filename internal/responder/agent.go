package responder

import (
	"time"

	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
)

// Hooks receive the agent's output on the scheduler loop.
type Hooks struct {
	Typing func(on bool)
	Reply  func(text string)
}

// Agent schedules at most one outstanding reply at a time. All methods must
// be called on the scheduler loop.
type Agent struct {
	sched     scheduler.Scheduler
	responder *Responder
	hooks     Hooks

	pending bool
	task    scheduler.TaskID
}

func NewAgent(sched scheduler.Scheduler, r *Responder, hooks Hooks) *Agent {
	if r == nil {
		r = New()
	}
	return &Agent{sched: sched, responder: r, hooks: hooks}
}

// Pending reports whether a reply is scheduled.
func (a *Agent) Pending() bool {
	return a.pending
}

// RespondText schedules a reply to text. It returns false when a reply is
// already pending; the message then gets no reply of its own.
func (a *Agent) RespondText(text string, min, max time.Duration) bool {
	return a.respond(min, max, func() string { return a.responder.Text(text) })
}

// RespondImage schedules an image acknowledgement.
func (a *Agent) RespondImage(min, max time.Duration) bool {
	return a.respond(min, max, a.responder.Image)
}

// Stop cancels a pending reply and clears the typing indicator.
func (a *Agent) Stop() {
	if !a.pending {
		return
	}
	a.sched.Cancel(a.task)
	a.pending = false
	a.task = 0
	a.typing(false)
}

func (a *Agent) respond(min, max time.Duration, text func() string) bool {
	if a.pending {
		return false
	}
	a.pending = true
	a.typing(true)
	a.task = a.sched.After(a.responder.Delay(min, max), func() {
		a.typing(false)
		reply := text()
		a.pending = false
		a.task = 0
		if a.hooks.Reply != nil {
			a.hooks.Reply(reply)
		}
	})
	return true
}

func (a *Agent) typing(on bool) {
	if a.hooks.Typing != nil {
		a.hooks.Typing(on)
	}
}
