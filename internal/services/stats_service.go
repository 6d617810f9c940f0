// Package services – course statistics
//
// GetCourseStats answers the instructor analytics endpoint. Counts come from
// aggregate queries, so a course with thousands of discussions never loads
// them all. Results are cached per course when a StatsCache is configured;
// every successful mutation moves the course to a new cache generation.
package services

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/lecture-discussions/internal/domain"
	"github.com/tbourn/lecture-discussions/internal/policy"
	"github.com/tbourn/lecture-discussions/internal/repo"
)

// mostActiveLimit caps CourseStats.MostActiveDiscussions.
const mostActiveLimit = 5

// CourseStats summarizes engagement for one course.
type CourseStats struct {
	TotalDiscussions      int64               `json:"totalDiscussions"`
	ResolvedDiscussions   int64               `json:"resolvedDiscussions"`
	UnresolvedDiscussions int64               `json:"unresolvedDiscussions"`
	PinnedDiscussions     int64               `json:"pinnedDiscussions"`
	EngagementRate        float64             `json:"engagementRate"`
	MostActiveDiscussions []domain.Discussion `json:"mostActiveDiscussions"`
}

// GetCourseStats computes the engagement summary of a course. Instructors
// only. A course without discussions yields zeros and an empty list.
func (s *DiscussionService) GetCourseStats(ctx context.Context, actor domain.Actor, courseID string) (out *CourseStats, err error) {
	ctx, finish := startOp(ctx, "GetCourseStats", append(actorAttrs(actor), attribute.String("course.id", courseID))...)
	defer func() { finish(err) }()

	if err = s.authorize(policy.ActionViewCourse, actor, nil); err != nil {
		return nil, err
	}

	// The generation is read before the store so a mutation that commits
	// while we compute moves readers to a key this snapshot never reaches.
	var (
		gen      int64
		useCache = s.Cache != nil
	)
	if useCache {
		var cerr error
		if gen, cerr = s.Cache.Generation(ctx, courseID); cerr != nil {
			zerolog.Ctx(ctx).Warn().Err(cerr).Str("course_id", courseID).Msg("stats cache generation read failed")
			useCache = false
		}
	}
	if useCache {
		cached, ok, cerr := s.Cache.Get(ctx, courseID, gen)
		if cerr != nil {
			zerolog.Ctx(ctx).Warn().Err(cerr).Str("course_id", courseID).Msg("stats cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	out, err = computeCourseStats(ctx, s.DB, courseID)
	if err != nil {
		return nil, classify("GetCourseStats", err)
	}

	if useCache {
		if cerr := s.Cache.Set(ctx, courseID, gen, out); cerr != nil {
			zerolog.Ctx(ctx).Warn().Err(cerr).Str("course_id", courseID).Msg("stats cache write failed")
		}
	}
	return out, nil
}

func computeCourseStats(ctx context.Context, db *gorm.DB, courseID string) (*CourseStats, error) {
	counts, err := repo.CountCourseDiscussions(ctx, db, courseID)
	if err != nil {
		return nil, err
	}
	st := &CourseStats{
		TotalDiscussions:      counts.Total,
		ResolvedDiscussions:   counts.Resolved,
		UnresolvedDiscussions: counts.Total - counts.Resolved,
		PinnedDiscussions:     counts.Pinned,
		MostActiveDiscussions: []domain.Discussion{},
	}
	if counts.Total == 0 {
		return st, nil
	}
	st.EngagementRate = float64(counts.Resolved) / float64(counts.Total) * 100

	ids, err := repo.MostActiveIDs(ctx, db, courseID, mostActiveLimit)
	if err != nil {
		return nil, err
	}
	if st.MostActiveDiscussions, err = repo.ListDiscussionsByIDs(ctx, db, ids); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *DiscussionService) invalidateStats(ctx context.Context, courseID string) {
	if s.Cache == nil || courseID == "" {
		return
	}
	if err := s.Cache.Invalidate(ctx, courseID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("course_id", courseID).Msg("stats cache invalidate failed")
	}
}
