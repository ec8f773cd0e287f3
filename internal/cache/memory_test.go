package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"prioritizer/internal/task"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	now   time.Time
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s.store = NewMemory(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func sampleResult(id string) task.PriorityResult {
	return task.PriorityResult{
		RequestID:         id,
		UrgencyLevel:      task.UrgencyHigh,
		Reasoning:         "sample",
		AIConfidence:      0.9,
		SuggestedSLAHours: 4,
		ProcessedAt:       time.Date(2025, 6, 2, 8, 59, 0, 0, time.UTC),
	}
}

func (s *MemoryStoreSuite) TestResultRoundTrip() {
	res := sampleResult("t-1")
	s.Require().NoError(s.store.SetPriorityResult(s.ctx, "t-1", res, time.Hour))

	got, err := s.store.GetPriorityResult(s.ctx, "t-1")
	s.Require().NoError(err)
	s.Equal(res, *got)
}

func (s *MemoryStoreSuite) TestMissReturnsErrNotFound() {
	_, err := s.store.GetPriorityResult(s.ctx, "absent")
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *MemoryStoreSuite) TestTTLExpiry() {
	s.Require().NoError(s.store.SetPriorityResult(s.ctx, "t-1", sampleResult("t-1"), time.Hour))

	s.advance(59 * time.Minute)
	_, err := s.store.GetPriorityResult(s.ctx, "t-1")
	s.Require().NoError(err, "entry alive within TTL")

	s.advance(2 * time.Minute)
	_, err = s.store.GetPriorityResult(s.ctx, "t-1")
	s.Require().ErrorIs(err, ErrNotFound, "entry gone after TTL")
}

func (s *MemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.SetPriorityResult(s.ctx, "t-1", sampleResult("t-1"), time.Hour))
	s.Require().NoError(s.store.DeletePriorityResult(s.ctx, "t-1"))

	_, err := s.store.GetPriorityResult(s.ctx, "t-1")
	s.Require().ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.store.DeletePriorityResult(s.ctx, "t-1"), "deleting absent key is a no-op")
}

func (s *MemoryStoreSuite) TestSuggestionsRoundTrip() {
	in := []task.Suggestion{{Title: "Restart", Category: task.SuggestionSelfHelp, Confidence: 0.7}}
	s.Require().NoError(s.store.SetSuggestions(s.ctx, "hash-1", in, time.Hour))

	got, err := s.store.GetSuggestions(s.ctx, "hash-1")
	s.Require().NoError(err)
	s.Equal(in, got)
}

func (s *MemoryStoreSuite) TestRateLimit() {
	s.Run("denies once the window fills", func() {
		var last RateLimitResult
		for i := 0; i < 10; i++ {
			res, err := s.store.CheckRateLimit(s.ctx, "client-a", 10, time.Minute)
			s.Require().NoError(err)
			s.True(res.Allowed, "request %d should be allowed", i+1)
			last = res
		}
		s.Equal(0, last.Remaining)

		res, err := s.store.CheckRateLimit(s.ctx, "client-a", 10, time.Minute)
		s.Require().NoError(err)
		s.False(res.Allowed, "11th request in the window is denied")
	})

	s.Run("window slides", func() {
		for i := 0; i < 10; i++ {
			_, err := s.store.CheckRateLimit(s.ctx, "client-b", 10, time.Minute)
			s.Require().NoError(err)
		}
		s.advance(61 * time.Second)

		res, err := s.store.CheckRateLimit(s.ctx, "client-b", 10, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed, "old attempts aged out of the window")
	})

	s.Run("identifiers are independent", func() {
		for i := 0; i < 11; i++ {
			_, err := s.store.CheckRateLimit(s.ctx, "client-c", 10, time.Minute)
			s.Require().NoError(err)
		}
		res, err := s.store.CheckRateLimit(s.ctx, "client-d", 10, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *MemoryStoreSuite) TestStats() {
	stats := Stats{ProcessedTasks: 12, BypassedTasks: 3, UpdatedAt: s.now}
	s.Require().NoError(s.store.SetStats(s.ctx, stats, time.Hour))

	got, err := s.store.GetStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(stats, *got)
}

func (s *MemoryStoreSuite) TestPurgePrefix() {
	s.Require().NoError(s.store.SetPriorityResult(s.ctx, "t-1", sampleResult("t-1"), time.Hour))
	s.Require().NoError(s.store.SetPriorityResult(s.ctx, "t-2", sampleResult("t-2"), time.Hour))
	s.Require().NoError(s.store.SetSuggestions(s.ctx, "hash-1", nil, time.Hour))

	deleted, err := s.store.PurgePrefix(s.ctx, PrefixPriorityResult)
	s.Require().NoError(err)
	s.Equal(2, deleted)

	_, err = s.store.GetPriorityResult(s.ctx, "t-1")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.GetSuggestions(s.ctx, "hash-1")
	s.NoError(err, "other prefixes untouched")
}

func (s *MemoryStoreSuite) TestHealthCountsHitsAndMisses() {
	s.Require().NoError(s.store.SetPriorityResult(s.ctx, "t-1", sampleResult("t-1"), time.Hour))

	_, _ = s.store.GetPriorityResult(s.ctx, "t-1")
	_, _ = s.store.GetPriorityResult(s.ctx, "absent")

	h := s.store.Health(s.ctx)
	s.True(h.Healthy)
	s.Equal(uint64(1), h.Hits)
	s.Equal(uint64(1), h.Misses)
}
