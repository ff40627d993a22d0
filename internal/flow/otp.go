package flow

import (
	"strings"
	"time"

	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
)

const (
	CodeLength        = 6
	CountdownSeconds  = 60
	countdownTick     = time.Second
	autoSubmitDelay   = 300 * time.Millisecond
	submitDelay       = 1500 * time.Millisecond
	registrationDelay = submitDelay
)

// code holds the six input slots. Slots are 1-based in the API.
type code struct {
	values [CodeLength]string
	filled [CodeLength]bool
}

func (c *code) set(slot int, digit string) {
	c.values[slot-1] = digit
	c.filled[slot-1] = digit != ""
}

func (c *code) unmark(slot int) {
	c.filled[slot-1] = false
}

func (c *code) reset() {
	*c = code{}
}

func (c *code) String() string {
	return strings.Join(c.values[:], "")
}

func (c *code) complete() bool {
	return len(c.String()) == CodeLength
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// countdown owns at most one live tick task.
type countdown struct {
	sched     scheduler.Scheduler
	remaining int
	task      scheduler.TaskID
	onTick    func(remaining int, running bool)
}

func (c *countdown) start() {
	c.stop()
	c.remaining = CountdownSeconds
	c.notify(true)
	c.schedule()
}

func (c *countdown) stop() {
	if c.task != 0 {
		c.sched.Cancel(c.task)
		c.task = 0
	}
}

func (c *countdown) running() bool {
	return c.task != 0
}

func (c *countdown) schedule() {
	c.task = c.sched.After(countdownTick, c.tick)
}

func (c *countdown) tick() {
	c.task = 0
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.notify(false)
		return
	}
	c.notify(true)
	c.schedule()
}

func (c *countdown) notify(running bool) {
	if c.onTick != nil {
		c.onTick(c.remaining, running)
	}
}

// maskPhone hides every character except the last four.
func maskPhone(phone string) string {
	r := []rune(phone)
	if len(r) < 4 {
		return phone
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
