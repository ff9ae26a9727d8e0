package model

import (
	"time"
)

type ChallengeStatus string

const (
	StatusAvailable ChallengeStatus = "available"
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
	StatusFailed    ChallengeStatus = "failed"
)

func (s ChallengeStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

const Day = 24 * time.Hour

type Challenge struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Duration        int                     `json:"duration"`
	Difficulty      int                     `json:"difficulty"`
	DifficultyLevel int                     `json:"difficultyLevel"`
	Tasks           []Task                  `json:"tasks"`
	Status          ChallengeStatus         `json:"status"`
	StartDate       *time.Time              `json:"startDate,omitempty"`
	EndDate         *time.Time              `json:"endDate,omitempty"`
	CompletedDate   *time.Time              `json:"completedDate,omitempty"`
	Progress        map[string]*DayProgress `json:"progress"`
	Rewards         Rewards                 `json:"rewards"`
	Phases          []ChallengePhase        `json:"phases,omitempty"`
	CurrentDay      int                     `json:"currentDay,omitempty"`
}

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Completed   bool   `json:"completed"`
	Progress    int    `json:"progress"`
}

type ChallengePhase struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Tasks     []Task     `json:"tasks"`
	Days      int        `json:"days,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type Rewards struct {
	Points    int        `json:"points"`
	Discounts []Discount `json:"discounts"`
}

type Discount struct {
	Brand  string `json:"brand"`
	Amount int    `json:"amount"`
}

// DateKey formats t as the YYYY-MM-DD key used by Challenge.Progress.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, key, time.UTC)
}

// DaysBetween returns ceil(|to - from| / 24h).
func DaysBetween(from, to time.Time) int {
	diff := to.Sub(from)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff / Day)
	if diff%Day != 0 {
		days++
	}
	return days
}

// CurrentDayAt is the 1-based day of an active challenge, clamped to [1, Duration].
func (c *Challenge) CurrentDayAt(now time.Time) int {
	if c.StartDate == nil {
		return 1
	}
	day := DaysBetween(*c.StartDate, now)
	if c.Duration > 0 && day > c.Duration {
		day = c.Duration
	}
	if day < 1 {
		day = 1
	}
	return day
}

// Activate moves the challenge into the active state starting at now.
func (c *Challenge) Activate(now time.Time) {
	start := now
	end := now.Add(time.Duration(c.Duration) * Day)
	c.Status = StatusActive
	c.StartDate = &start
	c.EndDate = &end
	c.CompletedDate = nil
	c.Progress = map[string]*DayProgress{}
	c.LayoutPhases(start)
}

// Deactivate returns an active challenge to the catalog.
func (c *Challenge) Deactivate() {
	c.Status = StatusAvailable
	c.StartDate = nil
	c.EndDate = nil
	c.CurrentDay = 0
	c.Progress = map[string]*DayProgress{}
}

// LayoutPhases dates consecutive phases with a day count from start.
func (c *Challenge) LayoutPhases(start time.Time) {
	cursor := start
	for i := range c.Phases {
		p := &c.Phases[i]
		if p.Days <= 0 {
			continue
		}
		from := cursor
		to := cursor.Add(time.Duration(p.Days) * Day)
		p.StartDate = &from
		p.EndDate = &to
		cursor = to
	}
}

// HasTask reports whether id names a task of the challenge or of one of its phases.
func (c *Challenge) HasTask(id string) bool {
	for _, t := range c.Tasks {
		if t.ID == id {
			return true
		}
	}
	for _, p := range c.Phases {
		for _, t := range p.Tasks {
			if t.ID == id {
				return true
			}
		}
	}
	return false
}

func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	out := *c
	out.Tasks = append([]Task(nil), c.Tasks...)
	out.Rewards.Discounts = append([]Discount(nil), c.Rewards.Discounts...)
	out.StartDate = cloneTime(c.StartDate)
	out.EndDate = cloneTime(c.EndDate)
	out.CompletedDate = cloneTime(c.CompletedDate)
	if c.Phases != nil {
		out.Phases = make([]ChallengePhase, len(c.Phases))
		for i, p := range c.Phases {
			p.Tasks = append([]Task(nil), p.Tasks...)
			p.StartDate = cloneTime(p.StartDate)
			p.EndDate = cloneTime(p.EndDate)
			out.Phases[i] = p
		}
	}
	if c.Progress != nil {
		out.Progress = make(map[string]*DayProgress, len(c.Progress))
		for k, v := range c.Progress {
			out.Progress[k] = v.Clone()
		}
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
