package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"mentalgoals/internal/model"
	"mentalgoals/pkg/logger"

	"go.uber.org/zap"
)

// RetentionDays is how long per-day progress is kept.
const RetentionDays = 30

type ProgressResult struct {
	Completed bool    `json:"completed"`
	Progress  float64 `json:"progress"`
	Points    int     `json:"points"`
}

type DayStats struct {
	Date       string  `json:"date"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type CleanupReport struct {
	Failed []string `json:"failed"`
	Pruned int      `json:"pruned"`
}

type ProgressService struct {
	challenges *ChallengeService
}

func NewProgressService(challenges *ChallengeService) *ProgressService {
	return &ProgressService{
		challenges: challenges,
	}
}

func (s *ProgressService) now() time.Time {
	return s.challenges.clock.Now()
}

func (s *ProgressService) dateOrToday(date string) (string, error) {
	if date == "" {
		return model.DateKey(s.now()), nil
	}
	if _, err := model.ParseDateKey(date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return date, nil
}

// GetTodayProgress returns task completion for date (today when empty). A
// day without any record yields an empty map.
func (s *ProgressService) GetTodayProgress(ctx context.Context, owner, id, date string) (map[string]bool, error) {
	key, err := s.dateOrToday(date)
	if err != nil {
		return nil, err
	}

	challenges, err := s.challenges.load(ctx, owner)
	if err != nil {
		logger.Logger().Error("failed to read progress", zap.String("owner", owner), zap.Error(err))
		return map[string]bool{}, nil
	}

	i := indexOf(challenges, id)
	if i < 0 {
		return nil, ErrChallengeNotFound
	}

	out := make(map[string]bool)
	dp := challenges[i].Progress[key]
	if dp == nil {
		return out, nil
	}
	for taskID, t := range dp.Tasks() {
		out[taskID] = t.Completed()
	}
	return out, nil
}

// UpdateTodayProgress records completion of one task for today. The day
// record is created on first write with the challenge's current task count.
func (s *ProgressService) UpdateTodayProgress(ctx context.Context, owner, id, taskID string, completed bool) (*model.DayProgress, error) {
	var updated *model.DayProgress

	_, err := s.challenges.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		i := indexOf(challenges, id)
		if i < 0 {
			return nil, false, ErrChallengeNotFound
		}
		c := challenges[i]
		if !c.HasTask(taskID) {
			return nil, false, ErrTaskNotFound
		}

		now := s.now()
		key := model.DateKey(now)
		if c.Progress == nil {
			c.Progress = map[string]*model.DayProgress{}
		}
		dp := c.Progress[key]
		if dp == nil {
			var err error
			dp, err = model.NewDayProgress(key, len(c.Tasks), now)
			if err != nil {
				return nil, false, err
			}
			c.Progress[key] = dp
		}
		dp.SetTask(taskID, completed, now)
		updated = dp.Clone()
		return challenges, true, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetCurrentPhase picks the phase that covers the challenge's current day.
// Inactive challenges preview their first phase.
func (s *ProgressService) GetCurrentPhase(ctx context.Context, owner, id string) (*model.ChallengePhase, error) {
	c, err := s.challenges.GetChallenge(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return currentPhase(c, s.now()), nil
}

func currentPhase(c *model.Challenge, now time.Time) *model.ChallengePhase {
	if len(c.Phases) == 0 {
		return nil
	}
	if c.Status != model.StatusActive {
		p := c.Phases[0]
		return &p
	}

	day := c.CurrentDayAt(now)
	total := 0
	for _, p := range c.Phases {
		total += phaseSpan(p)
		if total >= day {
			return &p
		}
	}
	p := c.Phases[len(c.Phases)-1]
	return &p
}

func phaseSpan(p model.ChallengePhase) int {
	if p.StartDate != nil && p.EndDate != nil {
		return model.DaysBetween(*p.StartDate, *p.EndDate)
	}
	return p.Days
}

// CheckChallengeProgress evaluates a challenge whose end date has passed. A
// day counts as completed when at least one task was completed on it.
func (s *ProgressService) CheckChallengeProgress(c *model.Challenge) ProgressResult {
	if c == nil || c.StartDate == nil || c.EndDate == nil || !s.now().After(*c.EndDate) {
		return ProgressResult{}
	}

	start, _ := model.ParseDateKey(model.DateKey(*c.StartDate))
	end, _ := model.ParseDateKey(model.DateKey(*c.EndDate))

	totalDays, completedDays := 0, 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		totalDays++
		if dp := c.Progress[model.DateKey(d)]; dp != nil && dp.AnyCompleted() {
			completedDays++
		}
	}

	progress := 0.0
	if totalDays > 0 {
		progress = float64(completedDays) / float64(totalDays) * 100
	}

	return ProgressResult{
		Completed: true,
		Progress:  progress,
		Points:    int(math.Round(float64(c.Rewards.Points) * progress / 100)),
	}
}

// GetDayStats reports the strict completion ratio of a single day.
func (s *ProgressService) GetDayStats(ctx context.Context, owner, id, date string) (DayStats, error) {
	key, err := s.dateOrToday(date)
	if err != nil {
		return DayStats{}, err
	}

	c, err := s.challenges.GetChallenge(ctx, owner, id)
	if err != nil {
		return DayStats{}, err
	}

	stats := DayStats{Date: key, Total: len(c.Tasks)}
	if dp := c.Progress[key]; dp != nil {
		stats.Completed = dp.CompletedTasks()
		stats.Total = dp.TotalTasks()
	}
	if stats.Total > 0 {
		stats.Percentage = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}

// FinalizeChallenge evaluates an active challenge and, once its end date has
// passed, persists the completed state.
func (s *ProgressService) FinalizeChallenge(ctx context.Context, owner, id string) (ProgressResult, error) {
	c, err := s.challenges.GetChallenge(ctx, owner, id)
	if err != nil {
		return ProgressResult{}, err
	}
	if c.Status != model.StatusActive {
		return ProgressResult{}, ErrChallengeNotActive
	}

	result := s.CheckChallengeProgress(c)
	if !result.Completed {
		return result, nil
	}

	if _, err := s.challenges.UpdateChallengeStatus(ctx, owner, id, model.StatusCompleted); err != nil {
		return ProgressResult{}, err
	}

	s.challenges.notify(ctx, owner,
		fmt.Sprintf("You earned %d points for %q", result.Points, c.Title), NotifySuccess)
	return result, nil
}

// Cleanup fails active challenges whose end date has passed and drops
// progress older than RetentionDays.
func (s *ProgressService) Cleanup(ctx context.Context, owner string) (CleanupReport, error) {
	report := CleanupReport{Failed: []string{}}
	var failedTitles []string

	_, err := s.challenges.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		now := s.now()
		cutoff := model.DateKey(now.AddDate(0, 0, -RetentionDays))

		for _, c := range challenges {
			if c.Status == model.StatusActive && c.EndDate != nil && now.After(*c.EndDate) {
				c.Status = model.StatusFailed
				report.Failed = append(report.Failed, c.ID)
				failedTitles = append(failedTitles, c.Title)
			}
			for date := range c.Progress {
				if date < cutoff {
					delete(c.Progress, date)
					report.Pruned++
				}
			}
		}
		return challenges, len(report.Failed) > 0 || report.Pruned > 0, nil
	})
	if err != nil {
		return CleanupReport{}, err
	}

	for _, title := range failedTitles {
		s.challenges.notify(ctx, owner, fmt.Sprintf("Challenge %q ended without completion", title), NotifyDanger)
	}
	return report, nil
}
