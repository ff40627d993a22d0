package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Fake is a Scheduler on a virtual clock. Tasks only run from Advance or
// RunPending, on the calling goroutine.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID TaskID
	seq    uint64
	tasks  map[TaskID]*fakeTask
}

type fakeTask struct {
	id  TaskID
	due time.Time
	seq uint64
	fn  func()
}

// NewFake starts the virtual clock at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, tasks: make(map[TaskID]*fakeTask)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration, fn func()) TaskID {
	if fn == nil {
		return 0
	}
	if d < 0 {
		d = 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.seq++
	id := f.nextID
	f.tasks[id] = &fakeTask{id: id, due: f.now.Add(d), seq: f.seq, fn: fn}
	return id
}

func (f *Fake) Post(fn func()) {
	f.After(0, fn)
}

func (f *Fake) Cancel(id TaskID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return false
	}
	delete(f.tasks, id)
	return true
}

// Advance moves the clock forward by d, running every task that falls due in
// due-time order. Tasks scheduled by those tasks run too when they fall inside
// the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		task := f.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// RunPending runs the tasks already due without moving the clock.
func (f *Fake) RunPending() {
	f.Advance(0)
}

// Pending reports how many tasks are waiting.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// NextDue returns the due time of the earliest task.
func (f *Fake) NextDue() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ordered := f.ordered()
	if len(ordered) == 0 {
		return time.Time{}, false
	}
	return ordered[0].due, true
}

func (f *Fake) popDue(target time.Time) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	ordered := f.ordered()
	if len(ordered) == 0 || ordered[0].due.After(target) {
		return nil
	}
	task := ordered[0]
	delete(f.tasks, task.id)
	if task.due.After(f.now) {
		f.now = task.due
	}
	return task
}

func (f *Fake) ordered() []*fakeTask {
	out := make([]*fakeTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].due.Equal(out[j].due) {
			return out[i].seq < out[j].seq
		}
		return out[i].due.Before(out[j].due)
	})
	return out
}
