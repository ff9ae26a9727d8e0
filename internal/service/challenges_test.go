package service

import (
	"context"
	"testing"
	"time"

	"mentalgoals/internal/model"
	"mentalgoals/internal/repository"
	"mentalgoals/internal/service/mocks"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOwner = "5060715466"

var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newTestServices(t *testing.T) (*ChallengeService, *ProgressService, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testNow)
	repo := repository.NewChallengeStore(repository.NewMemoryStore())
	cs := NewChallengeService(repo, clock, LogNotifier{})
	return cs, NewProgressService(cs), clock
}

func seeded(t *testing.T) (*ChallengeService, *ProgressService, *clockwork.FakeClock) {
	t.Helper()

	cs, ps, clock := newTestServices(t)
	require.NoError(t, cs.EnsureDefaults(context.Background(), testOwner))
	return cs, ps, clock
}

func activeCount(challenges []*model.Challenge) int {
	n := 0
	for _, c := range challenges {
		if c.Status == model.StatusActive {
			n++
		}
	}
	return n
}

func byID(t *testing.T, challenges []*model.Challenge, id string) *model.Challenge {
	t.Helper()

	for _, c := range challenges {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("challenge %s not in list", id)
	return nil
}

func statuses(challenges []*model.Challenge) map[string]model.ChallengeStatus {
	out := make(map[string]model.ChallengeStatus, len(challenges))
	for _, c := range challenges {
		out[c.ID] = c.Status
	}
	return out
}

func TestChallengeService_EnsureDefaults(t *testing.T) {
	ctx := context.Background()

	t.Run("Seeds empty store", func(t *testing.T) {
		cs, _, _ := seeded(t)

		challenges, err := cs.ListChallenges(ctx, testOwner)
		assert.NoError(t, err)
		assert.Len(t, challenges, 7)
		assert.Equal(t, 1, activeCount(challenges))

		active := byID(t, challenges, DefaultActiveChallengeID)
		assert.Equal(t, model.StatusActive, active.Status)
		require.NotNil(t, active.StartDate)
		assert.True(t, active.StartDate.Equal(testNow))
	})

	t.Run("Idempotent", func(t *testing.T) {
		cs, _, _ := seeded(t)

		first, err := cs.ListChallenges(ctx, testOwner)
		require.NoError(t, err)

		require.NoError(t, cs.EnsureDefaults(ctx, testOwner))
		second, err := cs.ListChallenges(ctx, testOwner)
		require.NoError(t, err)

		assert.Equal(t, statuses(first), statuses(second))
	})

	t.Run("Restores missing default as available", func(t *testing.T) {
		cs, _, _ := seeded(t)

		require.NoError(t, cs.DeleteChallenge(ctx, testOwner, "challenge-gratitude"))
		require.NoError(t, cs.DeleteChallenge(ctx, testOwner, DefaultActiveChallengeID))
		_, err := cs.ActivateChallenge(ctx, testOwner, "challenge-sleep")
		require.NoError(t, err)

		require.NoError(t, cs.EnsureDefaults(ctx, testOwner))

		challenges, err := cs.ListChallenges(ctx, testOwner)
		require.NoError(t, err)
		assert.Len(t, challenges, 7)
		assert.Equal(t, 1, activeCount(challenges))
		assert.Equal(t, model.StatusAvailable, byID(t, challenges, "challenge-gratitude").Status)
		assert.Equal(t, model.StatusAvailable, byID(t, challenges, DefaultActiveChallengeID).Status)
		assert.Equal(t, model.StatusActive, byID(t, challenges, "challenge-sleep").Status)
	})
}

func TestChallengeService_ActivateChallenge(t *testing.T) {
	ctx := context.Background()
	cs, ps, _ := seeded(t)

	_, err := ps.UpdateTodayProgress(ctx, testOwner, DefaultActiveChallengeID, "mood-check-in", true)
	require.NoError(t, err)

	activated, err := cs.ActivateChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, activated.Status)
	assert.Equal(t, 1, activated.CurrentDay)

	challenges, err := cs.ListChallenges(ctx, testOwner)
	require.NoError(t, err)

	previous := byID(t, challenges, DefaultActiveChallengeID)
	assert.Equal(t, model.StatusAvailable, previous.Status)
	assert.Empty(t, previous.Progress)
	assert.Nil(t, previous.StartDate)
	assert.Nil(t, previous.EndDate)

	gratitude := byID(t, challenges, "challenge-gratitude")
	assert.Equal(t, model.StatusActive, gratitude.Status)
	require.NotNil(t, gratitude.StartDate)
	require.NotNil(t, gratitude.EndDate)
	assert.True(t, gratitude.StartDate.Equal(testNow))
	assert.True(t, gratitude.EndDate.Equal(testNow.Add(7*24*time.Hour)))
	assert.Empty(t, gratitude.Progress)
}

func TestChallengeService_SingleActive(t *testing.T) {
	ctx := context.Background()
	cs, _, clock := seeded(t)

	sequence := []string{
		"challenge-gratitude",
		"challenge-hydration",
		"challenge-hydration",
		DefaultActiveChallengeID,
		"challenge-movement",
		"challenge-self-care",
	}

	for _, id := range sequence {
		clock.Advance(time.Hour)

		_, err := cs.ActivateChallenge(ctx, testOwner, id)
		require.NoError(t, err)

		challenges, err := cs.ListChallenges(ctx, testOwner)
		require.NoError(t, err)
		assert.Equal(t, 1, activeCount(challenges), "after activating %s", id)
		assert.Equal(t, model.StatusActive, byID(t, challenges, id).Status)
	}
}

func TestChallengeService_ActivateChallengeErrors(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := seeded(t)

	_, err := cs.QuitChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)

	tests := []struct {
		name          string
		id            string
		expectedError error
	}{
		{
			name:          "Unknown challenge",
			id:            "challenge-unknown",
			expectedError: ErrChallengeNotFound,
		},
		{
			name:          "Failed challenge is never reactivated",
			id:            "challenge-gratitude",
			expectedError: ErrChallengeFinished,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cs.ActivateChallenge(ctx, testOwner, tt.id)
			assert.ErrorIs(t, err, tt.expectedError)

			challenges, err := cs.ListChallenges(ctx, testOwner)
			require.NoError(t, err)
			assert.Equal(t, model.StatusActive, byID(t, challenges, DefaultActiveChallengeID).Status)
		})
	}
}

func TestChallengeService_DeactivateAllChallenges(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := seeded(t)

	require.NoError(t, cs.DeactivateAllChallenges(ctx, testOwner))

	challenges, err := cs.ListChallenges(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, 0, activeCount(challenges))

	active, err := cs.ActiveChallenge(ctx, testOwner)
	assert.NoError(t, err)
	assert.Nil(t, active)

	assert.NoError(t, cs.DeactivateAllChallenges(ctx, testOwner))
}

func TestChallengeService_QuitChallenge(t *testing.T) {
	ctx := context.Background()
	cs, ps, clock := seeded(t)

	_, err := cs.ActivateChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)
	_, err = ps.UpdateTodayProgress(ctx, testOwner, "challenge-gratitude", "gratitude-list", true)
	require.NoError(t, err)

	var published []*model.Challenge
	unsubscribe := cs.SubscribeActive(testOwner, func(c *model.Challenge) {
		published = append(published, c)
	})
	defer unsubscribe()

	clock.Advance(48 * time.Hour)
	quit, err := cs.QuitChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, quit.Status)
	assert.Nil(t, quit.CompletedDate)

	require.Len(t, published, 1)
	assert.Nil(t, published[0])

	active, err := cs.ActiveChallenge(ctx, testOwner)
	assert.NoError(t, err)
	assert.Nil(t, active)
}

func TestChallengeService_CompleteChallenge(t *testing.T) {
	ctx := context.Background()
	cs, _, clock := seeded(t)

	clock.Advance(21 * 24 * time.Hour)
	completed, err := cs.CompleteChallenge(ctx, testOwner, DefaultActiveChallengeID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedDate)
	assert.True(t, completed.CompletedDate.Equal(clock.Now()))

	_, err = cs.CompleteChallenge(ctx, testOwner, "missing")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeService_GetChallengeCurrentDay(t *testing.T) {
	ctx := context.Background()
	cs, _, clock := seeded(t)

	tests := []struct {
		name     string
		advance  time.Duration
		expected int
	}{
		{name: "Activation instant", advance: 0, expected: 1},
		{name: "One minute later", advance: time.Minute, expected: 1},
		{name: "Three days and an hour", advance: 3*24*time.Hour + time.Hour - time.Minute, expected: 4},
		{name: "Past the end", advance: 40 * 24 * time.Hour, expected: 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)

			c, err := cs.GetChallenge(ctx, testOwner, DefaultActiveChallengeID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.CurrentDay)
		})
	}

	available, err := cs.GetChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)
	assert.Zero(t, available.CurrentDay)

	_, err = cs.GetChallenge(ctx, testOwner, "missing")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeService_AddUpdateDelete(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := seeded(t)

	added, err := cs.AddChallenge(ctx, testOwner, &model.Challenge{
		Title:    "Journal",
		Duration: 5,
		Tasks:    []model.Task{{ID: "journal", Title: "Write"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, model.StatusAvailable, added.Status)

	_, err = cs.AddChallenge(ctx, testOwner, &model.Challenge{ID: added.ID, Title: "Again"})
	assert.ErrorIs(t, err, ErrChallengeExists)

	forced, err := cs.AddChallenge(ctx, testOwner, &model.Challenge{
		ID:       "challenge-custom",
		Title:    "Custom",
		Duration: 3,
		Status:   model.StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, forced.Status)

	added.Title = "Daily journal"
	updated, err := cs.UpdateChallenge(ctx, testOwner, added)
	require.NoError(t, err)
	assert.Equal(t, "Daily journal", updated.Title)

	_, err = cs.UpdateChallenge(ctx, testOwner, &model.Challenge{ID: "missing", Status: model.StatusAvailable})
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	require.NoError(t, cs.DeleteChallenge(ctx, testOwner, added.ID))
	assert.ErrorIs(t, cs.DeleteChallenge(ctx, testOwner, added.ID), ErrChallengeNotFound)

	challenges, err := cs.ListChallenges(ctx, testOwner)
	require.NoError(t, err)
	assert.Len(t, challenges, 8)
	assert.Equal(t, 1, activeCount(challenges))
}

func TestChallengeService_UpdateChallengeStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		id            string
		status        model.ChallengeStatus
		expected      model.ChallengeStatus
		expectedError error
	}{
		{name: "Activate", id: "challenge-gratitude", status: model.StatusActive, expected: model.StatusActive},
		{name: "Complete", id: DefaultActiveChallengeID, status: model.StatusCompleted, expected: model.StatusCompleted},
		{name: "Fail", id: DefaultActiveChallengeID, status: model.StatusFailed, expected: model.StatusFailed},
		{name: "Return to catalog", id: DefaultActiveChallengeID, status: model.StatusAvailable, expected: model.StatusAvailable},
		{name: "Unknown status", id: DefaultActiveChallengeID, status: "paused", expectedError: ErrInvalidStatus},
		{name: "Unknown challenge", id: "missing", status: model.StatusCompleted, expectedError: ErrChallengeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, _, _ := seeded(t)

			c, err := cs.UpdateChallengeStatus(ctx, testOwner, tt.id, tt.status)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Status)
		})
	}
}

func TestChallengeService_StorageFailures(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)

	t.Run("List degrades to empty", func(t *testing.T) {
		mockRepo := &mocks.MockChallengeRepository{}
		cs := NewChallengeService(mockRepo, clock, nil)

		mockRepo.On("LoadChallenges", mock.Anything, testOwner).Return(nil, assert.AnError)

		challenges, err := cs.ListChallenges(ctx, testOwner)
		assert.NoError(t, err)
		assert.Empty(t, challenges)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Store not ready", func(t *testing.T) {
		mockRepo := &mocks.MockChallengeRepository{}
		cs := NewChallengeService(mockRepo, clock, nil)

		mockRepo.On("LoadChallenges", mock.Anything, testOwner).Return(nil, repository.ErrNotReady)

		_, err := cs.ActivateChallenge(ctx, testOwner, DefaultActiveChallengeID)
		assert.ErrorIs(t, err, ErrStoreNotReady)
		mockRepo.AssertNotCalled(t, "SaveChallenges", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Save error propagates", func(t *testing.T) {
		mockRepo := &mocks.MockChallengeRepository{}
		mockNotifier := &mocks.MockNotifier{}
		cs := NewChallengeService(mockRepo, clock, mockNotifier)

		mockRepo.On("LoadChallenges", mock.Anything, testOwner).Return(DefaultCatalog(testNow), nil)
		mockRepo.On("SaveChallenges", mock.Anything, testOwner, mock.Anything).Return(assert.AnError)

		_, err := cs.ActivateChallenge(ctx, testOwner, "challenge-gratitude")
		assert.ErrorIs(t, err, assert.AnError)
		mockRepo.AssertExpectations(t)
		mockNotifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid record is rejected before save", func(t *testing.T) {
		mockRepo := &mocks.MockChallengeRepository{}
		cs := NewChallengeService(mockRepo, clock, nil)

		mockRepo.On("LoadChallenges", mock.Anything, testOwner).Return(DefaultCatalog(testNow), nil)

		_, err := cs.UpdateChallenge(ctx, testOwner, &model.Challenge{ID: "challenge-gratitude", Status: "bogus"})
		assert.ErrorIs(t, err, ErrInvalidProgress)
		mockRepo.AssertNotCalled(t, "SaveChallenges", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestChallengeService_Notifications(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	mockNotifier := &mocks.MockNotifier{}
	repo := repository.NewChallengeStore(repository.NewMemoryStore())
	cs := NewChallengeService(repo, clock, mockNotifier)

	mockNotifier.On("Notify", mock.Anything, testOwner, mock.Anything, model.NotifySuccess).Return().Once()
	mockNotifier.On("Notify", mock.Anything, testOwner, mock.Anything, model.NotifyWarning).Return().Once()

	require.NoError(t, cs.EnsureDefaults(ctx, testOwner))
	_, err := cs.ActivateChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)
	_, err = cs.QuitChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)

	mockNotifier.AssertExpectations(t)
}
