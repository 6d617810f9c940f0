// Package repo implements the data persistence layer for discussions,
// backed by GORM.
//
// All functions are context-aware and accept a *gorm.DB handle, so callers
// can run them inside a transaction. They follow the "thin repository"
// approach: no authorization or validation, only persistence and query
// composition.
//
// Error semantics:
//   - When a discussion or reply is missing, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - Concurrent duplicate likes are absorbed by ON CONFLICT DO NOTHING.
//   - Other DB errors are propagated unchanged.
//
// Functions:
//
//   - CreateDiscussion(ctx, db, d) -> error
//   - GetDiscussion(ctx, db, id) -> *domain.Discussion, error
//   - ListLectureDiscussions(ctx, db, courseID, lectureID) -> []domain.Discussion, error
//     Pinned first, then newest first.
//   - ListCourseDiscussions(ctx, db, courseID) -> []domain.Discussion, error
//     Newest first.
//   - AppendReply(ctx, db, discussionID, r, now) -> error
//   - ToggleFlag(ctx, db, id, flag, now) -> error
//   - ToggleDiscussionLike / ToggleReplyLike -> liked bool, error
//   - DeleteDiscussion(ctx, db, id) -> error
//
// Aggregates are always loaded with their replies (ordered by position) and
// all like rows, then hydrated via domain.Discussion.Hydrate.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// Flag names a boolean moderation column of the discussions table.
type Flag string

const (
	FlagPinned   Flag = "is_pinned"
	FlagResolved Flag = "is_resolved"
	FlagFlagged  Flag = "is_flagged"
)

func (f Flag) valid() bool {
	switch f {
	case FlagPinned, FlagResolved, FlagFlagged:
		return true
	}
	return false
}

// withAggregate preloads everything a Discussion owns.
func withAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Replies", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Replies.LikeRows").
		Preload("LikeRows")
}

func hydrateAll(ds []domain.Discussion) []domain.Discussion {
	if ds == nil {
		return []domain.Discussion{}
	}
	for i := range ds {
		ds[i].Hydrate()
	}
	return ds
}

// CreateDiscussion inserts d without touching associations. The caller
// assigns ID and timestamps.
func CreateDiscussion(ctx context.Context, db *gorm.DB, d *domain.Discussion) error {
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(d).Error; err != nil {
		return err
	}
	d.Hydrate()
	return nil
}

// GetDiscussion loads a full discussion aggregate by id.
func GetDiscussion(ctx context.Context, db *gorm.DB, id string) (*domain.Discussion, error) {
	var d domain.Discussion
	if err := withAggregate(db.WithContext(ctx)).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	d.Hydrate()
	return &d, nil
}

// ListLectureDiscussions returns the discussions of one lecture, pinned
// first, then by creation time descending. id breaks remaining ties so the
// order is deterministic.
func ListLectureDiscussions(ctx context.Context, db *gorm.DB, courseID, lectureID string) ([]domain.Discussion, error) {
	var out []domain.Discussion
	err := withAggregate(db.WithContext(ctx)).
		Where("course_id = ? AND lecture_id = ?", courseID, lectureID).
		Order("is_pinned DESC").Order("created_at DESC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return hydrateAll(out), nil
}

// ListCourseDiscussions returns every discussion of a course, newest first.
func ListCourseDiscussions(ctx context.Context, db *gorm.DB, courseID string) ([]domain.Discussion, error) {
	var out []domain.Discussion
	err := withAggregate(db.WithContext(ctx)).
		Where("course_id = ?", courseID).
		Order("created_at DESC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return hydrateAll(out), nil
}

// ListDiscussionsByIDs loads the given discussions and returns them in the
// order of ids. Unknown ids are skipped.
func ListDiscussionsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Discussion, error) {
	if len(ids) == 0 {
		return []domain.Discussion{}, nil
	}
	var rows []domain.Discussion
	if err := withAggregate(db.WithContext(ctx)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Discussion, len(rows))
	for _, d := range rows {
		d.Hydrate()
		byID[d.ID] = d
	}
	out := make([]domain.Discussion, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Touch sets updated_at on a discussion. Returns ErrNotFound if no row matched.
func Touch(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Discussion{}).
		Where("id = ?", id).
		Update("updated_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendReply stores r as the last reply of discussionID and refreshes the
// parent's updated_at. Run it inside a transaction so the position lookup
// and the insert stay consistent.
func AppendReply(ctx context.Context, db *gorm.DB, discussionID string, r *domain.Reply, now time.Time) error {
	var last struct{ Max int }
	if err := db.WithContext(ctx).Model(&domain.Reply{}).
		Select("COALESCE(MAX(position), 0) AS max").
		Where("discussion_id = ?", discussionID).
		Scan(&last).Error; err != nil {
		return err
	}
	r.DiscussionID = discussionID
	r.Position = last.Max + 1
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(r).Error; err != nil {
		return err
	}
	return Touch(ctx, db, discussionID, now)
}

// ToggleFlag flips one moderation flag with a single UPDATE so concurrent
// toggles never lose an update.
func ToggleFlag(ctx context.Context, db *gorm.DB, id string, flag Flag, now time.Time) error {
	if !flag.valid() {
		return fmt.Errorf("unknown flag %q", flag)
	}
	col := string(flag)
	res := db.WithContext(ctx).Model(&domain.Discussion{}).
		Where("id = ?", id).
		Updates(map[string]any{
			col:          gorm.Expr("NOT " + col),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleDiscussionLike removes userID's like if present, otherwise adds it.
// The insert is ON CONFLICT DO NOTHING: if a concurrent request added the
// like first, the result is still "liked".
func ToggleDiscussionLike(ctx context.Context, db *gorm.DB, discussionID, userID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("discussion_id = ? AND user_id = ?", discussionID, userID).
		Delete(&domain.DiscussionLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	err := db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.DiscussionLike{DiscussionID: discussionID, UserID: userID}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// ToggleReplyLike is ToggleDiscussionLike for a reply.
func ToggleReplyLike(ctx context.Context, db *gorm.DB, discussionID, replyID, userID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("reply_id = ? AND user_id = ?", replyID, userID).
		Delete(&domain.ReplyLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	err := db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ReplyLike{ReplyID: replyID, DiscussionID: discussionID, UserID: userID}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReplyExists reports whether replyID belongs to discussionID.
func ReplyExists(ctx context.Context, db *gorm.DB, discussionID, replyID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Reply{}).
		Where("id = ? AND discussion_id = ?", replyID, discussionID).
		Count(&n).Error
	return n > 0, err
}

// DeleteDiscussion removes a discussion together with its replies and like
// rows. Children are deleted explicitly so the cascade does not depend on
// the driver enforcing foreign keys.
func DeleteDiscussion(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("discussion_id = ?", id).Delete(&domain.ReplyLike{}).Error; err != nil {
		return err
	}
	if err := tx.Where("discussion_id = ?", id).Delete(&domain.DiscussionLike{}).Error; err != nil {
		return err
	}
	if err := tx.Where("discussion_id = ?", id).Delete(&domain.Reply{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&domain.Discussion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsUniqueViolation detects unique-constraint errors across drivers.
// glebarez/sqlite often returns plain-text errors, Postgres uses SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "sqlstate 23505")
}
