package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/rueidis"

	"github.com/grouptask/taskflow/internal/clock"
	"github.com/grouptask/taskflow/internal/constants"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	repository "github.com/grouptask/taskflow/internal/repositories"
)

// Period is a half-open window [Start, End).
type Period struct {
	Name  constants.PeriodName `json:"name"`
	Start time.Time            `json:"start"`
	End   time.Time            `json:"end"`
}

type UserScore struct {
	UserID          string     `json:"user_id"`
	Points          int        `json:"points"`
	CompletedTasks  int        `json:"completed_tasks"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	Rank            int        `json:"rank"`
}

type LeaderboardService struct {
	kpis     *repository.KPIRepository
	members  *repository.MemberRepository
	clk      clock.Clock
	redis    rueidis.Client
	cacheTTL time.Duration
}

// NewLeaderboardService builds the aggregator. The redis client is optional;
// without it every call recomputes from the KPI table.
func NewLeaderboardService(
	kpis *repository.KPIRepository,
	members *repository.MemberRepository,
	clk clock.Clock,
	redis rueidis.Client,
	cacheTTL time.Duration,
) *LeaderboardService {
	return &LeaderboardService{
		kpis:     kpis,
		members:  members,
		clk:      clk,
		redis:    redis,
		cacheTTL: cacheTTL,
	}
}

// ResolvePeriod turns a named period into a calendar window relative to the
// clock, or validates an explicit custom range.
func (s *LeaderboardService) ResolvePeriod(name constants.PeriodName, start, end time.Time) (Period, error) {
	now := s.clk.Now()

	switch name {
	case constants.PeriodWeekly:
		// Monday 00:00 of the current week.
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -daysSinceMonday)
		return Period{Name: name, Start: monday, End: monday.AddDate(0, 0, 7)}, nil
	case constants.PeriodMonthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Period{Name: name, Start: first, End: first.AddDate(0, 1, 0)}, nil
	case constants.PeriodCustom:
		if start.IsZero() || end.IsZero() || !end.After(start) {
			return Period{}, apperrors.NewValidation("custom period needs start < end")
		}
		return Period{Name: name, Start: start, End: end}, nil
	default:
		return Period{}, apperrors.NewValidation(fmt.Sprintf("unknown period %q", name))
	}
}

// Aggregate folds the group's KPI records inside the window into a ranked
// list. Members with no records rank last with zero points; an empty group
// yields an empty list.
func (s *LeaderboardService) Aggregate(ctx context.Context, groupID string, period Period) ([]UserScore, error) {
	if cached, ok := s.cacheGet(ctx, groupID, period); ok {
		return cached, nil
	}

	records, err := s.kpis.ListByGroupWindow(ctx, groupID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*UserScore)
	for i := range records {
		rec := &records[i]
		score, ok := byUser[rec.UserID]
		if !ok {
			score = &UserScore{UserID: rec.UserID}
			byUser[rec.UserID] = score
		}
		score.Points += rec.Points
		if rec.Kind != constants.KPIOverdue {
			score.CompletedTasks++
			at := rec.RecordedAt
			if score.LastCompletedAt == nil || at.After(*score.LastCompletedAt) {
				score.LastCompletedAt = &at
			}
		}
	}

	memberIDs, err := s.members.ListUserIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, id := range memberIDs {
		if _, ok := byUser[id]; !ok {
			byUser[id] = &UserScore{UserID: id}
		}
	}

	ranked := make([]UserScore, 0, len(byUser))
	for _, score := range byUser {
		ranked = append(ranked, *score)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		// Tie: the user who reached their latest completion earlier wins.
		li, lj := ranked[i].LastCompletedAt, ranked[j].LastCompletedAt
		switch {
		case li == nil && lj == nil:
			return ranked[i].UserID < ranked[j].UserID
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.Before(*lj)
		}
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	s.cacheSet(ctx, groupID, period, ranked)
	return ranked, nil
}

func (s *LeaderboardService) cacheKey(groupID string, period Period) string {
	return fmt.Sprintf("leaderboard:%s:%s:%d:%d",
		groupID, period.Name, period.Start.Unix(), period.End.Unix())
}

func (s *LeaderboardService) cacheGet(ctx context.Context, groupID string, period Period) ([]UserScore, bool) {
	if s.redis == nil {
		return nil, false
	}

	cmd := s.redis.B().Get().Key(s.cacheKey(groupID, period)).Build()
	raw, err := s.redis.Do(ctx, cmd).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			log.Printf("leaderboard cache read failed: %v", err)
		}
		return nil, false
	}

	var ranked []UserScore
	if err := json.Unmarshal(raw, &ranked); err != nil {
		return nil, false
	}
	return ranked, true
}

func (s *LeaderboardService) cacheSet(ctx context.Context, groupID string, period Period, ranked []UserScore) {
	if s.redis == nil {
		return
	}

	raw, err := json.Marshal(ranked)
	if err != nil {
		return
	}

	cmd := s.redis.B().Set().
		Key(s.cacheKey(groupID, period)).
		Value(rueidis.BinaryString(raw)).
		Ex(s.cacheTTL).
		Build()
	if err := s.redis.Do(ctx, cmd).Error(); err != nil {
		log.Printf("leaderboard cache write failed: %v", err)
	}
}
