// Package repo implements the data persistence layer for discussions,
// backed by GORM. This file holds the aggregate queries behind course
// statistics and the metadata used for weak ETags in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// CourseCounts holds the raw counters of a course.
type CourseCounts struct {
	Total    int64
	Resolved int64
	Pinned   int64
}

// CountCourseDiscussions returns total, resolved and pinned counts for a
// course. The three counters come from one statement so they describe the
// same snapshot: Resolved and Pinned never exceed Total. A course without
// discussions yields all zeros.
func CountCourseDiscussions(ctx context.Context, db *gorm.DB, courseID string) (CourseCounts, error) {
	var c CourseCounts
	err := db.WithContext(ctx).
		Model(&domain.Discussion{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_resolved THEN 1 ELSE 0 END), 0) AS resolved,
			COALESCE(SUM(CASE WHEN is_pinned THEN 1 ELSE 0 END), 0) AS pinned`).
		Where("course_id = ?", courseID).
		Scan(&c).Error
	if err != nil {
		return CourseCounts{}, err
	}
	return c, nil
}

// MostActiveIDs returns up to limit discussion ids of a course ordered by
// reply count descending. Ties go to the newer discussion, then to the
// lexicographically smaller id.
func MostActiveIDs(ctx context.Context, db *gorm.DB, courseID string, limit int) ([]string, error) {
	var rows []struct {
		ID         string
		ReplyCount int64
	}
	err := db.WithContext(ctx).
		Table("discussions AS d").
		Select("d.id AS id, COUNT(r.id) AS reply_count").
		Joins("LEFT JOIN discussion_replies AS r ON r.discussion_id = d.id").
		Where("d.course_id = ?", courseID).
		Group("d.id, d.created_at").
		Order("reply_count DESC").Order("d.created_at DESC").Order("d.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// DiscussionsStats returns the number of discussions matching courseID (and
// lectureID when non-empty) together with the greatest updated_at among
// them. maxUpdatedAt is nil when there are no rows.
func DiscussionsStats(ctx context.Context, db *gorm.DB, courseID, lectureID string) (count int64, maxUpdatedAt *time.Time, err error) {
	scope := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&domain.Discussion{}).Where("course_id = ?", courseID)
		if lectureID != "" {
			q = q.Where("lecture_id = ?", lectureID)
		}
		return q
	}

	if err = scope().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at via ORDER BY (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = scope().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ListStamps exposes DiscussionsStats as an ETag source.
type ListStamps struct {
	DB *gorm.DB
}

// Stamp returns the row count and latest update of a lecture's (or, with an
// empty lectureID, a course's) discussions.
func (s ListStamps) Stamp(ctx context.Context, courseID, lectureID string) (int64, *time.Time, error) {
	return DiscussionsStats(ctx, s.DB, courseID, lectureID)
}
