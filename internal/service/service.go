package service

import (
	"context"
	"errors"

	"mentalgoals/internal/model"
)

var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeExists    = errors.New("challenge already exists")
	ErrChallengeFinished  = errors.New("challenge is already finished")
	ErrChallengeNotActive = errors.New("challenge is not active")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidStatus      = errors.New("invalid challenge status")
	ErrInvalidDate        = errors.New("invalid date, want YYYY-MM-DD")
	ErrInvalidProgress    = model.ErrInvalidProgress
	ErrStoreNotReady      = errors.New("challenge storage is not ready")
)

type Service struct {
	*ChallengeService
	*ProgressService
}

func NewService(challengeService *ChallengeService, progressService *ProgressService) *Service {
	return &Service{
		ChallengeService: challengeService,
		ProgressService:  progressService,
	}
}

type ChallengeServiceI interface {
	EnsureDefaults(ctx context.Context, owner string) error
	ListChallenges(ctx context.Context, owner string) ([]*model.Challenge, error)
	GetChallenge(ctx context.Context, owner, id string) (*model.Challenge, error)
	AddChallenge(ctx context.Context, owner string, c *model.Challenge) (*model.Challenge, error)
	UpdateChallenge(ctx context.Context, owner string, c *model.Challenge) (*model.Challenge, error)
	DeleteChallenge(ctx context.Context, owner, id string) error
	ActivateChallenge(ctx context.Context, owner, id string) (*model.Challenge, error)
	DeactivateAllChallenges(ctx context.Context, owner string) error
	QuitChallenge(ctx context.Context, owner, id string) (*model.Challenge, error)
	CompleteChallenge(ctx context.Context, owner, id string) (*model.Challenge, error)
	UpdateChallengeStatus(ctx context.Context, owner, id string, status model.ChallengeStatus) (*model.Challenge, error)
	ActiveChallenge(ctx context.Context, owner string) (*model.Challenge, error)
	SubscribeActive(owner string, fn func(*model.Challenge)) (unsubscribe func())
}

type ProgressServiceI interface {
	GetTodayProgress(ctx context.Context, owner, id, date string) (map[string]bool, error)
	UpdateTodayProgress(ctx context.Context, owner, id, taskID string, completed bool) (*model.DayProgress, error)
	GetCurrentPhase(ctx context.Context, owner, id string) (*model.ChallengePhase, error)
	GetDayStats(ctx context.Context, owner, id, date string) (DayStats, error)
	CheckChallengeProgress(c *model.Challenge) ProgressResult
	FinalizeChallenge(ctx context.Context, owner, id string) (ProgressResult, error)
	Cleanup(ctx context.Context, owner string) (CleanupReport, error)
}

type ChallengeRepository interface {
	LoadChallenges(ctx context.Context, owner string) ([]*model.Challenge, error)
	SaveChallenges(ctx context.Context, owner string, challenges []*model.Challenge) error
	Owners(ctx context.Context) ([]string, error)
}

type NotificationKind = model.NotificationKind

const (
	NotifySuccess = model.NotifySuccess
	NotifyWarning = model.NotifyWarning
	NotifyDanger  = model.NotifyDanger
)

// Notifier surfaces user-visible messages. Implementations must not block
// the caller on delivery and never report failures back.
type Notifier interface {
	Notify(ctx context.Context, owner, message string, kind NotificationKind)
}
