package repository

import (
	"context"
	"fmt"
	"strings"

	"mentalgoals/internal/model"

	"github.com/goccy/go-json"
)

const ChallengesKey = "challenges"

// ChallengeStore persists an owner's whole challenge list as one JSON record.
type ChallengeStore struct {
	kv KeyValueStore
}

func NewChallengeStore(kv KeyValueStore) *ChallengeStore {
	return &ChallengeStore{kv: kv}
}

func ChallengesKeyFor(owner string) string {
	if owner == "" {
		return ChallengesKey
	}
	return ChallengesKey + ":" + owner
}

func (s *ChallengeStore) LoadChallenges(ctx context.Context, owner string) ([]*model.Challenge, error) {
	raw, found, err := s.kv.Get(ctx, ChallengesKeyFor(owner))
	if err != nil {
		return nil, err
	}
	if !found || len(raw) == 0 {
		return []*model.Challenge{}, nil
	}

	var challenges []*model.Challenge
	if err := json.Unmarshal(raw, &challenges); err != nil {
		return nil, fmt.Errorf("failed to decode challenges of %q: %w", owner, err)
	}

	out := challenges[:0]
	for _, c := range challenges {
		if c == nil {
			continue
		}
		if c.Progress == nil {
			c.Progress = map[string]*model.DayProgress{}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *ChallengeStore) SaveChallenges(ctx context.Context, owner string, challenges []*model.Challenge) error {
	raw, err := json.Marshal(challenges)
	if err != nil {
		return fmt.Errorf("failed to encode challenges of %q: %w", owner, err)
	}
	return s.kv.Set(ctx, ChallengesKeyFor(owner), raw)
}

// Owners lists every owner that has a stored challenge list.
func (s *ChallengeStore) Owners(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, ChallengesKey)
	if err != nil {
		return nil, err
	}

	var owners []string
	for _, k := range keys {
		switch {
		case k == ChallengesKey:
			owners = append(owners, "")
		case strings.HasPrefix(k, ChallengesKey+":"):
			owners = append(owners, strings.TrimPrefix(k, ChallengesKey+":"))
		}
	}
	return owners, nil
}
