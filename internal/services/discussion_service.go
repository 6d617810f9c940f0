// Package services – DiscussionService
//
// This file implements DiscussionService, the single entry point for every
// state transition on a discussion. Each operation receives the acting
// identity explicitly, consults the authorization policy before writing,
// and runs its reads and writes for one discussion inside one transaction.
//
// After a successful mutation the service invalidates the course's cached
// statistics and mirrors the discussion into the search index. Both side
// effects are best effort.
//
// Error semantics:
//   - *ValidationError (wraps ErrValidation) for missing or oversized input;
//     nothing is written.
//   - ErrDiscussionNotFound / ErrReplyNotFound when the target is missing.
//     Existence is checked before authorization, so a missing discussion is
//     reported as such to every caller.
//   - *AuthorizationError when the policy denies the action.
//   - *PersistenceError wrapping the store error for anything else.
//
// Usage:
//
//	svc := &services.DiscussionService{DB: db, Policy: pol, Cache: cache}
//	d, err := svc.CreateDiscussion(ctx, actor, "cs101", "lec-3", title, body)
//	var ve *services.ValidationError
//	switch {
//	case errors.As(err, &ve):
//	    // 400
//	case err != nil:
//	    // 500
//	}
//
// Observability: every public method opens an OpenTelemetry span and
// increments discussion_actions_total{action,outcome}.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/lecture-discussions/internal/domain"
	"github.com/tbourn/lecture-discussions/internal/policy"
	"github.com/tbourn/lecture-discussions/internal/repo"
)

// DiscussionService coordinates persistence and authorization for
// discussions. The zero Policy is the strict one (instructor-only flagging);
// DB is the only required field.
type DiscussionService struct {
	DB     *gorm.DB
	Policy policy.Policy

	// Optional collaborators; nil disables them.
	Cache   StatsCache
	Indexer Indexer

	// Optional guards. MaxContentRunes <= 0 means unlimited; titles are
	// always capped at domain.MaxTitleLen, the column width.
	MaxTitleRunes   int
	MaxContentRunes int

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (s *DiscussionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// reservedCourseIDs are path segments of the course-level routes. A course
// named like one of them could never list its lectures: GET
// /discussions/course/<lecture> would hit the course listing instead.
var reservedCourseIDs = map[string]struct{}{
	"course": {},
	"stats":  {},
}

func (s *DiscussionService) titleLimit() int {
	if s.MaxTitleRunes <= 0 || s.MaxTitleRunes > domain.MaxTitleLen {
		return domain.MaxTitleLen
	}
	return s.MaxTitleRunes
}

func actorAttrs(actor domain.Actor) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("user.id", actor.UserID),
		attribute.String("user.role", string(actor.Role)),
	}
}

func (s *DiscussionService) authorize(action policy.Action, actor domain.Actor, d *domain.Discussion) error {
	if err := s.Policy.Authorize(action, actor, d); err != nil {
		return &AuthorizationError{Action: action}
	}
	return nil
}

// load fetches a discussion aggregate and maps a miss to ErrDiscussionNotFound.
func load(ctx context.Context, db *gorm.DB, id string) (*domain.Discussion, error) {
	d, err := repo.GetDiscussion(ctx, db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDiscussionNotFound
	}
	return d, err
}

// CreateDiscussion stores a new discussion authored by actor on the given
// lecture.
//
// Input rules:
//   - courseId and lectureId are trimmed, required and at most
//     domain.MaxIDLen characters; "course" and "stats" are reserved course
//     ids because they name course-level routes.
//   - title and content are trimmed, required and otherwise stored
//     verbatim. Titles are capped by MaxTitleRunes (never above
//     domain.MaxTitleLen); content by MaxContentRunes when set.
//
// The new discussion starts unpinned, unresolved and unflagged with no
// likes or replies. AuthorName falls back to the user id when the actor has
// no display name.
func (s *DiscussionService) CreateDiscussion(ctx context.Context, actor domain.Actor, courseID, lectureID, title, content string) (out *domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "CreateDiscussion", append(actorAttrs(actor),
		attribute.String("course.id", courseID),
		attribute.String("lecture.id", lectureID))...)
	defer func() { finish(err) }()

	if courseID, err = cleanField("courseId", courseID, domain.MaxIDLen); err != nil {
		return nil, err
	}
	if _, ok := reservedCourseIDs[courseID]; ok {
		return nil, &ValidationError{Field: "courseId", Reason: "is reserved"}
	}
	if lectureID, err = cleanField("lectureId", lectureID, domain.MaxIDLen); err != nil {
		return nil, err
	}
	if title, err = cleanField("title", title, s.titleLimit()); err != nil {
		return nil, err
	}
	if content, err = cleanField("content", content, s.MaxContentRunes); err != nil {
		return nil, err
	}
	if err = s.authorize(policy.ActionCreate, actor, nil); err != nil {
		return nil, err
	}

	now := s.now()
	d := &domain.Discussion{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		LectureID:  lectureID,
		AuthorID:   actor.UserID,
		AuthorName: displayName(actor),
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = repo.CreateDiscussion(ctx, s.DB, d); err != nil {
		return nil, classify("CreateDiscussion", err)
	}
	s.afterWrite(ctx, d)
	return d, nil
}

// ListLectureDiscussions returns the lecture's discussions, pinned first,
// then newest first. Any authenticated participant may list.
func (s *DiscussionService) ListLectureDiscussions(ctx context.Context, courseID, lectureID string) (out []domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "ListLectureDiscussions",
		attribute.String("course.id", courseID),
		attribute.String("lecture.id", lectureID))
	defer func() { finish(err) }()

	out, err = repo.ListLectureDiscussions(ctx, s.DB, courseID, lectureID)
	if err != nil {
		return nil, classify("ListLectureDiscussions", err)
	}
	return out, nil
}

// ListCourseDiscussions returns every discussion of a course, newest first.
// Instructors only.
func (s *DiscussionService) ListCourseDiscussions(ctx context.Context, actor domain.Actor, courseID string) (out []domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "ListCourseDiscussions", append(actorAttrs(actor), attribute.String("course.id", courseID))...)
	defer func() { finish(err) }()

	if err = s.authorize(policy.ActionViewCourse, actor, nil); err != nil {
		return nil, err
	}
	out, err = repo.ListCourseDiscussions(ctx, s.DB, courseID)
	if err != nil {
		return nil, classify("ListCourseDiscussions", err)
	}
	return out, nil
}

// Get returns one discussion aggregate.
func (s *DiscussionService) Get(ctx context.Context, discussionID string) (out *domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "Get", attribute.String("discussion.id", discussionID))
	defer func() { finish(err) }()

	out, err = load(ctx, s.DB, discussionID)
	if err != nil {
		return nil, classify("Get", err)
	}
	return out, nil
}

// AddReply appends a reply by actor to the end of the discussion's replies
// and refreshes the discussion's UpdatedAt. Replies keep insertion order
// through a per-discussion position assigned inside the transaction, so two
// concurrent replies never share a slot.
//
// Returns ErrDiscussionNotFound for an unknown id and a *ValidationError
// for blank or oversized content. Any role may reply.
func (s *DiscussionService) AddReply(ctx context.Context, actor domain.Actor, discussionID, content string) (out *domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "AddReply", append(actorAttrs(actor), attribute.String("discussion.id", discussionID))...)
	defer func() { finish(err) }()

	if content, err = cleanField("content", content, s.MaxContentRunes); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := load(ctx, tx, discussionID)
		if err != nil {
			return err
		}
		if err := s.authorize(policy.ActionReply, actor, d); err != nil {
			return err
		}
		now := s.now()
		r := &domain.Reply{
			ID:         uuid.NewString(),
			AuthorID:   actor.UserID,
			AuthorName: displayName(actor),
			Content:    content,
			CreatedAt:  now,
		}
		if err := repo.AppendReply(ctx, tx, discussionID, r, now); err != nil {
			return err
		}
		out, err = load(ctx, tx, discussionID)
		return err
	})
	if err != nil {
		return nil, classify("AddReply", err)
	}
	s.afterWrite(ctx, out)
	return out, nil
}

// ToggleLike adds actor to the discussion's likes, or removes them if
// already present. Likes are a set: a unique (discussion, user) index makes
// a racing double like collapse into one row. Any role may like.
func (s *DiscussionService) ToggleLike(ctx context.Context, actor domain.Actor, discussionID string) (out *domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "ToggleLike", append(actorAttrs(actor), attribute.String("discussion.id", discussionID))...)
	defer func() { finish(err) }()

	out, err = s.mutate(ctx, actor, discussionID, policy.ActionLike, func(tx *gorm.DB, _ *domain.Discussion, now time.Time) error {
		if _, err := repo.ToggleDiscussionLike(ctx, tx, discussionID, actor.UserID); err != nil {
			return err
		}
		return repo.Touch(ctx, tx, discussionID, now)
	})
	return out, classify("ToggleLike", err)
}

// ToggleReplyLike toggles actor's like on one reply of the discussion.
func (s *DiscussionService) ToggleReplyLike(ctx context.Context, actor domain.Actor, discussionID, replyID string) (out *domain.Discussion, err error) {
	ctx, finish := startOp(ctx, "ToggleReplyLike", append(actorAttrs(actor),
		attribute.String("discussion.id", discussionID),
		attribute.String("reply.id", replyID))...)
	defer func() { finish(err) }()

	out, err = s.mutate(ctx, actor, discussionID, policy.ActionLike, func(tx *gorm.DB, d *domain.Discussion, now time.Time) error {
		if d.FindReply(replyID) == nil {
			return ErrReplyNotFound
		}
		if _, err := repo.ToggleReplyLike(ctx, tx, discussionID, replyID, actor.UserID); err != nil {
			return err
		}
		return repo.Touch(ctx, tx, discussionID, now)
	})
	return out, classify("ToggleReplyLike", err)
}

// TogglePin flips isPinned. Instructors only.
func (s *DiscussionService) TogglePin(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error) {
	return s.toggleFlag(ctx, "TogglePin", policy.ActionPin, repo.FlagPinned, actor, discussionID)
}

// ToggleResolved flips isResolved. The author or an instructor may resolve.
func (s *DiscussionService) ToggleResolved(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error) {
	return s.toggleFlag(ctx, "ToggleResolved", policy.ActionResolve, repo.FlagResolved, actor, discussionID)
}

// ToggleFlagged flips isFlagged, subject to the configured flag policy.
func (s *DiscussionService) ToggleFlagged(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error) {
	return s.toggleFlag(ctx, "ToggleFlagged", policy.ActionFlag, repo.FlagFlagged, actor, discussionID)
}

func (s *DiscussionService) toggleFlag(ctx context.Context, op string, action policy.Action, flag repo.Flag, actor domain.Actor, discussionID string) (out *domain.Discussion, err error) {
	ctx, finish := startOp(ctx, op, append(actorAttrs(actor), attribute.String("discussion.id", discussionID))...)
	defer func() { finish(err) }()

	out, err = s.mutate(ctx, actor, discussionID, action, func(tx *gorm.DB, _ *domain.Discussion, now time.Time) error {
		return repo.ToggleFlag(ctx, tx, discussionID, flag, now)
	})
	return out, classify(op, err)
}

// mutate loads the discussion, authorizes action, applies write and reloads
// the aggregate, all in one transaction. A denied call writes nothing.
func (s *DiscussionService) mutate(ctx context.Context, actor domain.Actor, discussionID string, action policy.Action,
	write func(tx *gorm.DB, d *domain.Discussion, now time.Time) error) (*domain.Discussion, error) {
	var out *domain.Discussion
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := load(ctx, tx, discussionID)
		if err != nil {
			return err
		}
		if err := s.authorize(action, actor, d); err != nil {
			return err
		}
		if err := write(tx, d, s.now()); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return err
		}
		out, err = load(ctx, tx, discussionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, out)
	return out, nil
}

// DeleteDiscussion removes a discussion together with its replies and like
// rows in one transaction. Instructors only. The search document is removed
// afterwards on a best-effort basis; a second delete reports
// ErrDiscussionNotFound.
func (s *DiscussionService) DeleteDiscussion(ctx context.Context, actor domain.Actor, discussionID string) (err error) {
	ctx, finish := startOp(ctx, "DeleteDiscussion", append(actorAttrs(actor), attribute.String("discussion.id", discussionID))...)
	defer func() { finish(err) }()

	var courseID string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := load(ctx, tx, discussionID)
		if err != nil {
			return err
		}
		if err := s.authorize(policy.ActionDelete, actor, d); err != nil {
			return err
		}
		courseID = d.CourseID
		if err := repo.DeleteDiscussion(ctx, tx, discussionID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return classify("DeleteDiscussion", err)
	}

	s.invalidateStats(ctx, courseID)
	if s.Indexer != nil {
		if ierr := s.Indexer.DeleteDiscussion(ctx, discussionID); ierr != nil {
			zerolog.Ctx(ctx).Warn().Err(ierr).Str("discussion_id", discussionID).Msg("search index delete failed")
		}
	}
	return nil
}

// afterWrite runs the best-effort side effects of a successful mutation.
func (s *DiscussionService) afterWrite(ctx context.Context, d *domain.Discussion) {
	if d == nil {
		return
	}
	s.invalidateStats(ctx, d.CourseID)
	if s.Indexer != nil {
		if err := s.Indexer.IndexDiscussion(ctx, d); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("discussion_id", d.ID).Msg("search index update failed")
		}
	}
}

func displayName(a domain.Actor) string {
	if n := strings.TrimSpace(a.UserName); n != "" {
		return n
	}
	return a.UserID
}
