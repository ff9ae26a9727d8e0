package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentalgoals/internal/model"
	"mentalgoals/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend is down")

// flakyStore fails the next failGets reads and failSets writes.
type flakyStore struct {
	*repository.MemoryStore
	failGets int
	failSets int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGets > 0 {
		f.failGets--
		return nil, false, errBackendDown
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSets > 0 {
		f.failSets--
		return errBackendDown
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func dualService(document, kv repository.KeyValueStore) *ChallengeService {
	store := repository.NewDualStore(
		func(context.Context) (repository.KeyValueStore, error) { return document, nil },
		func(context.Context) (repository.KeyValueStore, error) { return kv, nil },
	)
	return NewChallengeService(repository.NewChallengeStore(store), clockwork.NewFakeClockAt(testNow), LogNotifier{})
}

func TestChallengeService_EnsureDefaultsKeepsDataOnReadError(t *testing.T) {
	ctx := context.Background()
	document := &flakyStore{MemoryStore: repository.NewMemoryStore()}

	cs := dualService(document, repository.NewMemoryStore())
	require.NoError(t, cs.EnsureDefaults(ctx, testOwner))
	_, err := cs.AddChallenge(ctx, testOwner, &model.Challenge{ID: "my-custom", Title: "Mine", Duration: 3})
	require.NoError(t, err)

	// The key/value copy is gone and the document store hiccups once.
	cs = dualService(document, repository.NewMemoryStore())
	document.failGets = 1

	err = cs.EnsureDefaults(ctx, testOwner)
	assert.ErrorIs(t, err, errBackendDown)

	challenges, err := cs.ListChallenges(ctx, testOwner)
	require.NoError(t, err)
	assert.Len(t, challenges, 8)
	byID(t, challenges, "my-custom")
}

func TestChallengeService_WriteSurvivesDocumentFailure(t *testing.T) {
	ctx := context.Background()
	document := &flakyStore{MemoryStore: repository.NewMemoryStore()}

	cs := dualService(document, repository.NewMemoryStore())
	require.NoError(t, cs.EnsureDefaults(ctx, testOwner))

	document.failSets = 1
	_, err := cs.ActivateChallenge(ctx, testOwner, "challenge-gratitude")
	require.NoError(t, err)

	active, err := cs.ActiveChallenge(ctx, testOwner)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "challenge-gratitude", active.ID)
}

func TestChallengeService_UpdateKeepsLifecycleState(t *testing.T) {
	ctx := context.Background()
	cs, ps, _ := seeded(t)

	t.Run("Finished challenge stays finished", func(t *testing.T) {
		_, err := cs.CompleteChallenge(ctx, testOwner, "challenge-hydration")
		require.NoError(t, err)

		updated, err := cs.UpdateChallenge(ctx, testOwner, &model.Challenge{
			ID:       "challenge-hydration",
			Title:    "Hydration, again",
			Duration: 14,
			Status:   model.StatusActive,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, updated.Status)
		assert.NotNil(t, updated.CompletedDate)

		challenges, err := cs.ListChallenges(ctx, testOwner)
		require.NoError(t, err)
		assert.Equal(t, 1, activeCount(challenges))
		assert.Equal(t, "Hydration, again", byID(t, challenges, "challenge-hydration").Title)
	})

	t.Run("Available challenge is not activated", func(t *testing.T) {
		updated, err := cs.UpdateChallenge(ctx, testOwner, &model.Challenge{
			ID:       "challenge-sleep",
			Title:    "Sleep",
			Duration: 21,
			Status:   model.StatusActive,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusAvailable, updated.Status)
		assert.Nil(t, updated.StartDate)
		assert.Nil(t, updated.EndDate)
	})

	t.Run("Active challenge keeps dates and progress", func(t *testing.T) {
		_, err := ps.UpdateTodayProgress(ctx, testOwner, DefaultActiveChallengeID, "mood-check-in", true)
		require.NoError(t, err)

		before, err := cs.GetChallenge(ctx, testOwner, DefaultActiveChallengeID)
		require.NoError(t, err)

		edited := before.Clone()
		edited.Title = "Mindful Start, revised"
		edited.Progress = nil
		edited.StartDate = nil
		edited.EndDate = nil

		updated, err := cs.UpdateChallenge(ctx, testOwner, edited)
		require.NoError(t, err)
		assert.Equal(t, model.StatusActive, updated.Status)
		require.NotNil(t, updated.EndDate)
		assert.True(t, updated.EndDate.Equal(*before.EndDate))
		assert.Equal(t, 1, updated.CurrentDay)
		require.Contains(t, updated.Progress, model.DateKey(testNow))
		assert.Equal(t, 1, updated.Progress[model.DateKey(testNow)].CompletedTasks())
	})
}

func TestChallengeService_SubscriberMayMutate(t *testing.T) {
	ctx := context.Background()
	cs, _, _ := seeded(t)

	unsubscribe := cs.SubscribeActive(testOwner, func(c *model.Challenge) {
		if c != nil && c.ID == "challenge-gratitude" {
			assert.NoError(t, cs.DeactivateAllChallenges(ctx, testOwner))
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		_, err := cs.ActivateChallenge(ctx, testOwner, "challenge-gratitude")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("activation blocked on its own subscriber")
	}

	active, err := cs.ActiveChallenge(ctx, testOwner)
	require.NoError(t, err)
	assert.Nil(t, active)
}
