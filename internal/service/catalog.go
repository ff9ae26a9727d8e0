package service

import (
	"time"

	"mentalgoals/internal/model"
)

const DefaultActiveChallengeID = "challenge-default-1"

// DefaultCatalog is the built-in list of challenge templates. IDs are stable
// because stored catalogs are reconciled against them. The first template
// starts active at now.
func DefaultCatalog(now time.Time) []*model.Challenge {
	catalog := []*model.Challenge{
		{
			ID:              DefaultActiveChallengeID,
			Title:           "Mindful Start",
			Description:     "Three weeks of small daily steps towards a calmer mind",
			Duration:        21,
			Difficulty:      2,
			DifficultyLevel: 2,
			Tasks: []model.Task{
				{ID: "morning-meditation", Title: "Morning meditation", Description: "Meditate for 5 minutes after waking up", Icon: "leaf"},
				{ID: "mood-check-in", Title: "Mood check-in", Description: "Log how you feel in the journal", Icon: "happy"},
				{ID: "evening-reflection", Title: "Evening reflection", Description: "Write down one thing that went well", Icon: "moon"},
			},
			Rewards: model.Rewards{
				Points:    100,
				Discounts: []model.Discount{{Brand: "Calmly", Amount: 10}},
			},
			Phases: []model.ChallengePhase{
				{
					ID: "awareness", Title: "Awareness", Days: 7,
					Tasks: []model.Task{
						{ID: "morning-meditation", Title: "Morning meditation", Icon: "leaf"},
						{ID: "mood-check-in", Title: "Mood check-in", Icon: "happy"},
					},
				},
				{
					ID: "practice", Title: "Practice", Days: 7,
					Tasks: []model.Task{
						{ID: "morning-meditation", Title: "Morning meditation", Icon: "leaf"},
						{ID: "evening-reflection", Title: "Evening reflection", Icon: "moon"},
					},
				},
				{
					ID: "habit", Title: "Habit", Days: 7,
					Tasks: []model.Task{
						{ID: "morning-meditation", Title: "Morning meditation", Icon: "leaf"},
						{ID: "mood-check-in", Title: "Mood check-in", Icon: "happy"},
						{ID: "evening-reflection", Title: "Evening reflection", Icon: "moon"},
					},
				},
			},
		},
		{
			ID:              "challenge-gratitude",
			Title:           "Week of Gratitude",
			Description:     "List three things you are grateful for every day",
			Duration:        7,
			Difficulty:      1,
			DifficultyLevel: 1,
			Tasks: []model.Task{
				{ID: "gratitude-list", Title: "Gratitude list", Description: "Write three things you are grateful for", Icon: "heart"},
			},
			Rewards: model.Rewards{Points: 10, Discounts: []model.Discount{}},
		},
		{
			ID:              "challenge-hydration",
			Title:           "Hydration Habit",
			Description:     "Drink enough water and notice how your energy changes",
			Duration:        14,
			Difficulty:      1,
			DifficultyLevel: 1,
			Tasks: []model.Task{
				{ID: "water-morning", Title: "Glass of water after waking", Icon: "water"},
				{ID: "water-goal", Title: "Reach 2 liters", Icon: "trophy"},
			},
			Rewards: model.Rewards{Points: 30, Discounts: []model.Discount{}},
		},
		{
			ID:              "challenge-digital-detox",
			Title:           "Digital Detox",
			Description:     "Spend the first and last hour of the day without screens",
			Duration:        7,
			Difficulty:      3,
			DifficultyLevel: 3,
			Tasks: []model.Task{
				{ID: "screen-free-morning", Title: "Screen-free morning hour", Icon: "sunny"},
				{ID: "screen-free-evening", Title: "Screen-free evening hour", Icon: "phone-off"},
			},
			Rewards: model.Rewards{Points: 40, Discounts: []model.Discount{{Brand: "PaperNotes", Amount: 15}}},
		},
		{
			ID:              "challenge-sleep",
			Title:           "Better Sleep",
			Description:     "Keep a regular bedtime and a calm evening routine",
			Duration:        21,
			Difficulty:      3,
			DifficultyLevel: 3,
			Tasks: []model.Task{
				{ID: "fixed-bedtime", Title: "Go to bed before 23:00", Icon: "bed"},
				{ID: "no-caffeine", Title: "No caffeine after 15:00", Icon: "cafe"},
			},
			Rewards: model.Rewards{Points: 80, Discounts: []model.Discount{}},
		},
		{
			ID:              "challenge-movement",
			Title:           "Move Every Day",
			Description:     "At least 20 minutes of walking, stretching or sport",
			Duration:        30,
			Difficulty:      4,
			DifficultyLevel: 4,
			Tasks: []model.Task{
				{ID: "daily-movement", Title: "20 minutes of movement", Icon: "walk"},
			},
			Rewards: model.Rewards{Points: 120, Discounts: []model.Discount{{Brand: "FitBox", Amount: 20}}},
		},
		{
			ID:              "challenge-self-care",
			Title:           "Self-care Sprint",
			Description:     "Do one kind thing for yourself every day",
			Duration:        14,
			Difficulty:      2,
			DifficultyLevel: 2,
			Tasks: []model.Task{
				{ID: "self-care-act", Title: "One act of self-care", Icon: "flower"},
				{ID: "breathing", Title: "Breathing exercise", Icon: "cloud"},
			},
			Rewards: model.Rewards{Points: 50, Discounts: []model.Discount{}},
		},
	}

	for _, c := range catalog {
		c.Status = model.StatusAvailable
		c.Progress = map[string]*model.DayProgress{}
	}
	catalog[0].Activate(now)

	return catalog
}
