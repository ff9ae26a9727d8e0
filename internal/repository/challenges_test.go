package repository

import (
	"context"
	"testing"
	"time"

	"mentalgoals/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	store := NewChallengeStore(kv)

	empty, err := store.LoadChallenges(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	c := &model.Challenge{
		ID:       "challenge-gratitude",
		Title:    "Week of Gratitude",
		Duration: 7,
		Status:   model.StatusAvailable,
		Tasks:    []model.Task{{ID: "gratitude-list"}},
	}
	c.Activate(now)
	dp, err := model.NewDayProgress(model.DateKey(now), 1, now)
	require.NoError(t, err)
	dp.SetTask("gratitude-list", true, now)
	c.Progress[dp.Date()] = dp

	require.NoError(t, store.SaveChallenges(ctx, "42", []*model.Challenge{c}))

	_, found, err := kv.Get(ctx, "challenges:42")
	require.NoError(t, err)
	assert.True(t, found)

	loaded, err := store.LoadChallenges(ctx, "42")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, model.StatusActive, loaded[0].Status)
	assert.True(t, loaded[0].EndDate.Equal(now.Add(7*model.Day)))
	require.Contains(t, loaded[0].Progress, "2026-10-14")
	assert.Equal(t, 1, loaded[0].Progress["2026-10-14"].CompletedTasks())
}

func TestChallengeStore_LoadRejectsCorruptProgress(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	store := NewChallengeStore(kv)

	raw := `[{"id":"c","status":"active","progress":{"2026-10-14":{"date":"2026-10-14","tasks":{},"completedTasks":3,"totalTasks":1,"lastUpdated":"2026-10-14T09:30:00Z"}}}]`
	require.NoError(t, kv.Set(ctx, ChallengesKey, []byte(raw)))

	_, err := store.LoadChallenges(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidProgress)
}

func TestChallengeStore_Owners(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	store := NewChallengeStore(kv)

	for _, key := range []string{"challenges", "challenges:1", "challenges:2", "challengesbackup", "settings"} {
		require.NoError(t, kv.Set(ctx, key, []byte(`[]`)))
	}

	owners, err := store.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "1", "2"}, owners)
}
