package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

var ErrInvalidProgress = errors.New("invalid progress shape")

// TaskProgress is the binary completion state of one task on one day.
type TaskProgress struct {
	completed   bool
	completedAt *time.Time
}

func NewTaskProgress(completed bool, now time.Time) TaskProgress {
	if !completed {
		return TaskProgress{}
	}
	at := now
	return TaskProgress{completed: true, completedAt: &at}
}

func (t TaskProgress) Completed() bool { return t.completed }

func (t TaskProgress) CompletedAt() *time.Time { return cloneTime(t.completedAt) }

func (t TaskProgress) Progress() int {
	if t.completed {
		return 100
	}
	return 0
}

type taskProgressJSON struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	Progress    int        `json:"progress"`
}

func (t TaskProgress) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskProgressJSON{
		Completed:   t.completed,
		CompletedAt: t.completedAt,
		Progress:    t.Progress(),
	})
}

func (t *TaskProgress) UnmarshalJSON(data []byte) error {
	var raw taskProgressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if (raw.Completed && raw.Progress != 100) || (!raw.Completed && raw.Progress != 0) {
		return fmt.Errorf("%w: task progress %d does not match completed=%t", ErrInvalidProgress, raw.Progress, raw.Completed)
	}
	t.completed = raw.Completed
	t.completedAt = nil
	if raw.Completed {
		t.completedAt = raw.CompletedAt
	}
	return nil
}

// DayProgress is the per-calendar-day record of one challenge. The completed
// count is always derived from the task entries.
type DayProgress struct {
	date        string
	tasks       map[string]TaskProgress
	totalTasks  int
	lastUpdated time.Time
}

// NewDayProgress creates an empty record for date with totalTasks frozen.
func NewDayProgress(date string, totalTasks int, now time.Time) (*DayProgress, error) {
	if _, err := ParseDateKey(date); err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrInvalidProgress, date)
	}
	if totalTasks < 0 {
		return nil, fmt.Errorf("%w: negative total tasks", ErrInvalidProgress)
	}
	return &DayProgress{
		date:        date,
		tasks:       make(map[string]TaskProgress),
		totalTasks:  totalTasks,
		lastUpdated: now,
	}, nil
}

func (d *DayProgress) Date() string { return d.date }

func (d *DayProgress) TotalTasks() int { return d.totalTasks }

func (d *DayProgress) LastUpdated() time.Time { return d.lastUpdated }

func (d *DayProgress) CompletedTasks() int {
	n := 0
	for _, t := range d.tasks {
		if t.completed {
			n++
		}
	}
	return n
}

func (d *DayProgress) Task(id string) (TaskProgress, bool) {
	t, ok := d.tasks[id]
	return t, ok
}

// Tasks returns a copy of the task entries.
func (d *DayProgress) Tasks() map[string]TaskProgress {
	out := make(map[string]TaskProgress, len(d.tasks))
	for k, v := range d.tasks {
		out[k] = v
	}
	return out
}

// AnyCompleted reports whether at least one task was completed that day.
func (d *DayProgress) AnyCompleted() bool {
	for _, t := range d.tasks {
		if t.completed {
			return true
		}
	}
	return false
}

func (d *DayProgress) SetTask(id string, completed bool, now time.Time) {
	d.tasks[id] = NewTaskProgress(completed, now)
	d.lastUpdated = now
}

func (d *DayProgress) Clone() *DayProgress {
	if d == nil {
		return nil
	}
	out := *d
	out.tasks = d.Tasks()
	return &out
}

type dayProgressJSON struct {
	Date           string                  `json:"date"`
	Tasks          map[string]TaskProgress `json:"tasks"`
	CompletedTasks int                     `json:"completedTasks"`
	TotalTasks     int                     `json:"totalTasks"`
	LastUpdated    time.Time               `json:"lastUpdated"`
}

func (d *DayProgress) MarshalJSON() ([]byte, error) {
	return json.Marshal(dayProgressJSON{
		Date:           d.date,
		Tasks:          d.tasks,
		CompletedTasks: d.CompletedTasks(),
		TotalTasks:     d.totalTasks,
		LastUpdated:    d.lastUpdated,
	})
}

func (d *DayProgress) UnmarshalJSON(data []byte) error {
	var raw dayProgressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	dp, err := NewDayProgress(raw.Date, raw.TotalTasks, raw.LastUpdated)
	if err != nil {
		return err
	}
	for id, t := range raw.Tasks {
		dp.tasks[id] = t
	}
	if dp.CompletedTasks() != raw.CompletedTasks {
		return fmt.Errorf("%w: completedTasks %d, counted %d on %s",
			ErrInvalidProgress, raw.CompletedTasks, dp.CompletedTasks(), raw.Date)
	}

	*d = *dp
	return nil
}

// Validate checks the parts of a challenge that JSON decoding cannot enforce.
func (c *Challenge) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty challenge id", ErrInvalidProgress)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProgress, c.Status)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidProgress)
	}
	for key, dp := range c.Progress {
		if dp == nil {
			return fmt.Errorf("%w: nil day progress for %s", ErrInvalidProgress, key)
		}
		if dp.date != key {
			return fmt.Errorf("%w: progress key %s holds date %s", ErrInvalidProgress, key, dp.date)
		}
	}
	return nil
}
