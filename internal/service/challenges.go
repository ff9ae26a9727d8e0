package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mentalgoals/internal/model"
	"mentalgoals/internal/repository"
	"mentalgoals/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type ChallengeService struct {
	repo     ChallengeRepository
	clock    clockwork.Clock
	notifier Notifier
	feed     *ActiveFeed

	// Every mutation rewrites the whole list of an owner.
	mu  sync.Mutex
	seq uint64
}

func NewChallengeService(repo ChallengeRepository, clock clockwork.Clock, notifier Notifier) *ChallengeService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &ChallengeService{
		repo:     repo,
		clock:    clock,
		notifier: notifier,
		feed:     NewActiveFeed(),
	}
}

func (s *ChallengeService) load(ctx context.Context, owner string) ([]*model.Challenge, error) {
	challenges, err := s.repo.LoadChallenges(ctx, owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotReady) {
			return nil, fmt.Errorf("%w: %v", ErrStoreNotReady, err)
		}
		return nil, fmt.Errorf("failed to load challenges: %w", err)
	}
	return challenges, nil
}

func (s *ChallengeService) save(ctx context.Context, owner string, challenges []*model.Challenge) error {
	for _, c := range challenges {
		if err := c.Validate(); err != nil {
			logger.Logger().Warn("rejected challenge save",
				zap.String("owner", owner),
				zap.String("challenge_id", c.ID),
				zap.Error(err))
			return err
		}
	}

	err := s.repo.SaveChallenges(ctx, owner, challenges)
	if err != nil {
		if errors.Is(err, repository.ErrNotReady) {
			return fmt.Errorf("%w: %v", ErrStoreNotReady, err)
		}
		return fmt.Errorf("failed to save challenges: %w", err)
	}
	return nil
}

// mutate runs a read-modify-write cycle over the owner's list. fn reports
// whether it changed anything; unchanged lists are not written back.
// Subscribers of the active feed are called after the lock is released.
func (s *ChallengeService) mutate(ctx context.Context, owner string, fn func([]*model.Challenge) ([]*model.Challenge, bool, error)) ([]*model.Challenge, error) {
	challenges, change, err := s.mutateLocked(ctx, owner, fn)
	if err != nil {
		return nil, err
	}
	if change != nil {
		s.feed.publish(owner, change.seq, change.active)
	}
	return challenges, nil
}

type activeChange struct {
	seq    uint64
	active *model.Challenge
}

func (s *ChallengeService) mutateLocked(ctx context.Context, owner string, fn func([]*model.Challenge) ([]*model.Challenge, bool, error)) ([]*model.Challenge, *activeChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenges, err := s.load(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	before := activeOf(challenges)

	challenges, changed, err := fn(challenges)
	if err != nil {
		return nil, nil, err
	}
	if !changed {
		return challenges, nil, nil
	}

	if err := s.save(ctx, owner, challenges); err != nil {
		return nil, nil, err
	}

	after := activeOf(challenges)
	if before == nil && after == nil {
		return challenges, nil, nil
	}
	s.seq++
	return challenges, &activeChange{seq: s.seq, active: s.withCurrentDay(after)}, nil
}

func (s *ChallengeService) notify(ctx context.Context, owner, message string, kind NotificationKind) {
	s.notifier.Notify(ctx, owner, message, kind)
}

func (s *ChallengeService) withCurrentDay(c *model.Challenge) *model.Challenge {
	if c == nil {
		return nil
	}
	out := c.Clone()
	if out.Status == model.StatusActive {
		out.CurrentDay = out.CurrentDayAt(s.clock.Now())
	}
	return out
}

func activeOf(challenges []*model.Challenge) *model.Challenge {
	for _, c := range challenges {
		if c.Status == model.StatusActive {
			return c
		}
	}
	return nil
}

func indexOf(challenges []*model.Challenge, id string) int {
	for i, c := range challenges {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// demoteIfAnotherActive keeps at most one active challenge by returning
// challenges[keep] to the catalog when another one is already active.
func demoteIfAnotherActive(challenges []*model.Challenge, keep int) {
	if challenges[keep].Status != model.StatusActive {
		return
	}
	for i, c := range challenges {
		if i != keep && c.Status == model.StatusActive {
			challenges[keep].Deactivate()
			return
		}
	}
}

// EnsureDefaults seeds the default catalog into an empty store and appends
// default challenges that are missing from a stored one.
func (s *ChallengeService) EnsureDefaults(ctx context.Context, owner string) error {
	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		defaults := DefaultCatalog(s.clock.Now())
		if len(challenges) == 0 {
			logger.Logger().Info("seeding default challenges", zap.String("owner", owner))
			return defaults, true, nil
		}

		changed := false
		for _, d := range defaults {
			if indexOf(challenges, d.ID) >= 0 {
				continue
			}
			d.Deactivate()
			challenges = append(challenges, d)
			changed = true
			logger.Logger().Info("restored missing default challenge",
				zap.String("owner", owner),
				zap.String("challenge_id", d.ID))
		}
		return challenges, changed, nil
	})
	return err
}

// ListChallenges never fails on storage errors; an empty list is returned
// instead.
func (s *ChallengeService) ListChallenges(ctx context.Context, owner string) ([]*model.Challenge, error) {
	challenges, err := s.load(ctx, owner)
	if err != nil {
		logger.Logger().Error("failed to list challenges", zap.String("owner", owner), zap.Error(err))
		return []*model.Challenge{}, nil
	}
	return challenges, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, owner, id string) (*model.Challenge, error) {
	challenges, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	i := indexOf(challenges, id)
	if i < 0 {
		return nil, ErrChallengeNotFound
	}
	return s.withCurrentDay(challenges[i]), nil
}

func (s *ChallengeService) AddChallenge(ctx context.Context, owner string, c *model.Challenge) (*model.Challenge, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: empty challenge", ErrInvalidProgress)
	}

	added := c.Clone()
	if added.ID == "" {
		added.ID = uuid.NewString()
	}
	if added.Status == "" {
		added.Status = model.StatusAvailable
	}
	if added.Progress == nil {
		added.Progress = map[string]*model.DayProgress{}
	}
	added.CurrentDay = 0

	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		if indexOf(challenges, added.ID) >= 0 {
			return nil, false, ErrChallengeExists
		}
		if added.Status == model.StatusActive && added.StartDate == nil {
			added.Activate(s.clock.Now())
		}
		challenges = append(challenges, added)
		demoteIfAnotherActive(challenges, len(challenges)-1)
		return challenges, true, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateChallenge replaces the editable fields of a stored challenge. Status,
// dates and progress are kept; they only change through the lifecycle
// operations.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, owner string, c *model.Challenge) (*model.Challenge, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: empty challenge", ErrInvalidProgress)
	}

	var updated *model.Challenge

	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		i := indexOf(challenges, c.ID)
		if i < 0 {
			return nil, false, ErrChallengeNotFound
		}
		stored := challenges[i]

		next := c.Clone()
		next.Status = stored.Status
		next.StartDate = stored.StartDate
		next.EndDate = stored.EndDate
		next.CompletedDate = stored.CompletedDate
		next.Progress = stored.Progress
		next.CurrentDay = 0
		if next.Status == model.StatusActive && next.StartDate != nil {
			next.LayoutPhases(*next.StartDate)
		}

		challenges[i] = next
		updated = next
		return challenges, true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.withCurrentDay(updated), nil
}

func (s *ChallengeService) DeleteChallenge(ctx context.Context, owner, id string) error {
	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		i := indexOf(challenges, id)
		if i < 0 {
			return nil, false, ErrChallengeNotFound
		}
		return append(challenges[:i], challenges[i+1:]...), true, nil
	})
	return err
}

// ActivateChallenge is the only path that turns a challenge active. All
// other active challenges are returned to the catalog first.
func (s *ChallengeService) ActivateChallenge(ctx context.Context, owner, id string) (*model.Challenge, error) {
	var activated *model.Challenge

	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		i := indexOf(challenges, id)
		if i < 0 {
			return nil, false, ErrChallengeNotFound
		}
		target := challenges[i]
		if target.Status == model.StatusCompleted || target.Status == model.StatusFailed {
			return nil, false, ErrChallengeFinished
		}

		for _, c := range challenges {
			if c.Status == model.StatusActive {
				c.Deactivate()
			}
		}
		target.Activate(s.clock.Now())
		activated = target
		return challenges, true, nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, owner, fmt.Sprintf("Challenge %q started", activated.Title), NotifySuccess)
	return s.withCurrentDay(activated), nil
}

func (s *ChallengeService) DeactivateAllChallenges(ctx context.Context, owner string) error {
	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		changed := false
		for _, c := range challenges {
			if c.Status == model.StatusActive {
				c.Deactivate()
				changed = true
			}
		}
		return challenges, changed, nil
	})
	return err
}

// QuitChallenge fails the challenge immediately. No partial rewards are
// computed.
func (s *ChallengeService) QuitChallenge(ctx context.Context, owner, id string) (*model.Challenge, error) {
	c, err := s.setStatus(ctx, owner, id, func(c *model.Challenge) {
		c.Status = model.StatusFailed
		c.CurrentDay = 0
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, owner, fmt.Sprintf("Challenge %q was stopped", c.Title), NotifyWarning)
	return c, nil
}

func (s *ChallengeService) CompleteChallenge(ctx context.Context, owner, id string) (*model.Challenge, error) {
	c, err := s.setStatus(ctx, owner, id, func(c *model.Challenge) {
		now := s.clock.Now()
		c.Status = model.StatusCompleted
		c.CompletedDate = &now
		c.CurrentDay = 0
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, owner, fmt.Sprintf("Challenge %q completed", c.Title), NotifySuccess)
	return c, nil
}

func (s *ChallengeService) setStatus(ctx context.Context, owner, id string, apply func(*model.Challenge)) (*model.Challenge, error) {
	var changed *model.Challenge

	_, err := s.mutate(ctx, owner, func(challenges []*model.Challenge) ([]*model.Challenge, bool, error) {
		i := indexOf(challenges, id)
		if i < 0 {
			return nil, false, ErrChallengeNotFound
		}
		apply(challenges[i])
		changed = challenges[i]
		return challenges, true, nil
	})
	if err != nil {
		return nil, err
	}
	return changed.Clone(), nil
}

// UpdateChallengeStatus moves a challenge to status through the matching
// lifecycle operation.
func (s *ChallengeService) UpdateChallengeStatus(ctx context.Context, owner, id string, status model.ChallengeStatus) (*model.Challenge, error) {
	switch status {
	case model.StatusActive:
		return s.ActivateChallenge(ctx, owner, id)
	case model.StatusCompleted:
		return s.CompleteChallenge(ctx, owner, id)
	case model.StatusFailed:
		return s.QuitChallenge(ctx, owner, id)
	case model.StatusAvailable:
		return s.setStatus(ctx, owner, id, func(c *model.Challenge) {
			c.Deactivate()
			c.CompletedDate = nil
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

// ActiveChallenge returns the owner's active challenge, or nil when there
// is none.
func (s *ChallengeService) ActiveChallenge(ctx context.Context, owner string) (*model.Challenge, error) {
	challenges, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.withCurrentDay(activeOf(challenges)), nil
}

// SubscribeActive registers fn for active challenge changes of owner. fn
// receives nil when no challenge is active anymore. fn runs on the mutating
// goroutine and may call back into the service.
func (s *ChallengeService) SubscribeActive(owner string, fn func(*model.Challenge)) func() {
	return s.feed.Subscribe(owner, fn)
}
