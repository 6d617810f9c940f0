// Discussion HTTP handlers.
//
// This file exposes the REST endpoints of the discussions API:
//   - POST   /discussions                                       (create)
//   - GET    /discussions/{courseId}/{lectureId}                (lecture list)
//   - POST   /discussions/{discussionId}/reply                  (reply)
//   - POST   /discussions/{discussionId}/like                   (toggle like)
//   - POST   /discussions/{discussionId}/replies/{replyId}/like (toggle reply like)
//   - PATCH  /discussions/{discussionId}/pin|resolve|flag       (moderation)
//   - DELETE /discussions/{discussionId}                        (delete)
//   - GET    /discussions/course/{courseId}[/summary]           (instructor views)
//   - GET    /discussions/stats/{courseId}                      (instructor analytics)
//
// Handlers are transport-thin: they bind and validate input, read the actor
// placed in the context by middleware.Authenticate, call the
// DiscussionService and render the envelope. Authorization decisions belong
// to the service; the handlers only translate its error taxonomy into
// status codes (see respondError).
//
// Idempotency:
// POST /discussions and POST /discussions/:discussionId/reply honour an
// Idempotency-Key. When middleware.IdempotencyValidator marks a request as a
// replay, the stored discussion is served with `Idempotency-Replayed: true`
// and nothing is written.
//
// Caching:
// The list endpoints emit a weak ETag derived from the row count and latest
// update of the listed discussions plus the query controls, and answer 304
// when If-None-Match matches.

package handlers

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/lecture-discussions/internal/domain"
	"github.com/tbourn/lecture-discussions/internal/http/middleware"
	"github.com/tbourn/lecture-discussions/internal/listview"
	"github.com/tbourn/lecture-discussions/internal/services"
)

// DiscussionService is the subset of services.DiscussionService used here.
type DiscussionService interface {
	CreateDiscussion(ctx context.Context, actor domain.Actor, courseID, lectureID, title, content string) (*domain.Discussion, error)
	ListLectureDiscussions(ctx context.Context, courseID, lectureID string) ([]domain.Discussion, error)
	ListCourseDiscussions(ctx context.Context, actor domain.Actor, courseID string) ([]domain.Discussion, error)
	Get(ctx context.Context, discussionID string) (*domain.Discussion, error)
	AddReply(ctx context.Context, actor domain.Actor, discussionID, content string) (*domain.Discussion, error)
	ToggleLike(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error)
	ToggleReplyLike(ctx context.Context, actor domain.Actor, discussionID, replyID string) (*domain.Discussion, error)
	TogglePin(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error)
	ToggleResolved(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error)
	ToggleFlagged(ctx context.Context, actor domain.Actor, discussionID string) (*domain.Discussion, error)
	DeleteDiscussion(ctx context.Context, actor domain.Actor, discussionID string) error
	GetCourseStats(ctx context.Context, actor domain.Actor, courseID string) (*services.CourseStats, error)
}

// IdempotencyStore persists outcomes of keyed POST requests.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

// ListStamper reports the count and latest update of a discussion list.
// An empty lectureID means the whole course.
type ListStamper interface {
	Stamp(ctx context.Context, courseID, lectureID string) (int64, *time.Time, error)
}

// Handlers groups the discussion endpoints. Idem and Stamps are optional.
type Handlers struct {
	svc    DiscussionService
	idem   IdempotencyStore
	stamps ListStamper
}

// New wires handlers to the service. idem and stamps may be nil, which
// disables replays and ETags respectively.
func New(svc DiscussionService, idem IdempotencyStore, stamps ListStamper) *Handlers {
	return &Handlers{svc: svc, idem: idem, stamps: stamps}
}

//
// DTOs
//

// CreateDiscussionRequest is the body of POST /discussions.
//
// Binding checks presence and the id widths; the service trims every field
// and applies the title and content limits, so whitespace-only values are
// rejected there with the same 400 envelope.
type CreateDiscussionRequest struct {
	CourseID  string `json:"courseId" binding:"required,max=64" example:"course-101"`
	LectureID string `json:"lectureId" binding:"required,max=64" example:"lecture-3"`
	Title     string `json:"title" binding:"required" example:"Why does the loop terminate?"`
	Content   string `json:"content" binding:"required" example:"In slide 12 the invariant..."`
}

// AddReplyRequest is the body of POST /discussions/:discussionId/reply.
type AddReplyRequest struct {
	Content string `json:"content" binding:"required" example:"Because the variant decreases."`
}

// DiscussionResponse documents a single-discussion envelope.
type DiscussionResponse struct {
	Success bool              `json:"success" example:"true"`
	Message string            `json:"message,omitempty" example:"Discussion updated"`
	Data    domain.Discussion `json:"data"`
}

// DiscussionListResponse documents a list envelope.
type DiscussionListResponse struct {
	Success bool                `json:"success" example:"true"`
	Data    []domain.Discussion `json:"data"`
}

// CourseStatsResponse documents the stats envelope.
type CourseStatsResponse struct {
	Success bool                 `json:"success" example:"true"`
	Data    services.CourseStats `json:"data"`
}

// SummaryResponse documents the course summary envelope.
type SummaryResponse struct {
	Success bool             `json:"success" example:"true"`
	Data    listview.Summary `json:"data"`
}

//
// Helpers
//

// actor returns the authenticated caller or aborts with 401.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, found := middleware.ActorFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return a, found
}

// listQuery parses q, status and sort. Invalid values abort with 400.
func listQuery(c *gin.Context) (listview.Query, bool) {
	st, err := listview.ParseStatus(c.Query("status"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return listview.Query{}, false
	}
	order, err := listview.ParseSort(c.Query("sort"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return listview.Query{}, false
	}
	return listview.Query{Search: c.Query("q"), Status: st, Sort: order}, true
}

// listETag computes a weak validator for a list.
//
// The tag combines the number of listed discussions, the latest UpdatedAt
// among them and an FNV-64a hash of the course, lecture and query controls.
// Every mutation bumps UpdatedAt and every delete drops the count, so a
// stale tag never matches; two different filters over the same rows get
// different tags because the hash covers them.
//
// ok is false when no stamp source is configured or the lookup failed;
// ETags are best effort and the caller then serves a plain 200.
func (h *Handlers) listETag(c *gin.Context, courseID, lectureID string, q listview.Query) (string, bool) {
	if h.stamps == nil {
		return "", false
	}
	count, latest, err := h.stamps.Stamp(c.Request.Context(), courseID, lectureID)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("etag stamp failed")
		return "", false
	}
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	f := fnv.New64a()
	_, _ = fmt.Fprintf(f, "%s\x00%s\x00%s\x00%s\x00%s", courseID, lectureID, q.Search, q.Status, q.Sort)
	return fmt.Sprintf(`W/"discussions-%d-%d-%x"`, count, ts, f.Sum64()), true
}

// notModified writes the ETag and reports whether a 304 was sent.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// replay serves a stored outcome for a keyed retry. It reports whether the
// response was written.
//
// The stored record only names the discussion, so the current state is
// served with the original status code. A discussion deleted since the
// first call yields the usual 404 envelope.
func (h *Handlers) replay(c *gin.Context, a domain.Actor) bool {
	if h.idem == nil || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	ctx := c.Request.Context()
	rec, err := h.idem.Lookup(ctx, a.UserID, middleware.IdempotencyScope(c), key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	d, err := h.svc.Get(ctx, rec.ResourceID)
	if err != nil {
		respondError(c, err)
		return true
	}
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
	ok(c, rec.Status, "Request already processed", d)
	return true
}

// remember stores the outcome of a keyed request. Failures only cost the
// ability to replay, so they are logged.
func (h *Handlers) remember(c *gin.Context, a domain.Actor, resourceID string, status int) {
	if h.idem == nil {
		return
	}
	key, has := middleware.GetIdempotencyKey(c)
	if !has {
		return
	}
	if err := h.idem.Save(c.Request.Context(), a.UserID, middleware.IdempotencyScope(c), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("discussion_id", resourceID).Msg("idempotency save failed")
	}
}

//
// Handlers
//

// CreateDiscussion godoc
// @ID          createDiscussion
// @Summary     Create a discussion
// @Description Opens a discussion on a lecture. Any authenticated role may create. Supports Idempotency-Key.
// @Tags        Discussions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateDiscussionRequest  true  "Discussion"
// @Success     201  {object}  handlers.DiscussionResponse
// @Failure     400  {object}  handlers.Envelope  "Validation failed"
// @Failure     401  {object}  handlers.Envelope  "Missing or invalid identity"
// @Failure     429  {object}  handlers.Envelope  "Rate limited"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions [post]
func (h *Handlers) CreateDiscussion(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if h.replay(c, a) {
		return
	}

	var req CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, formatBindError(err))
		return
	}

	d, err := h.svc.CreateDiscussion(c.Request.Context(), a, req.CourseID, req.LectureID, req.Title, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	h.remember(c, a, d.ID, http.StatusCreated)
	ok(c, http.StatusCreated, "Discussion created", d)
}

// ListLectureDiscussions godoc
// @ID          listLectureDiscussions
// @Summary     List a lecture's discussions
// @Description Pinned first, then newest first, unless sort is given. Supports weak ETags.
// @Tags        Discussions
// @Produce     json
// @Security    BearerAuth
// @Param       courseId       path    string  true   "Course ID"
// @Param       lectureId      path    string  true   "Lecture ID"
// @Param       q              query   string  false  "Case-insensitive search in title or content"
// @Param       status         query   string  false  "all|resolved|unresolved|pinned"
// @Param       sort           query   string  false  "recent|oldest|mostReplies|leastReplies"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.DiscussionListResponse
// @Header      200  {string}  ETag  "Weak ETag for the current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.Envelope  "Invalid query"
// @Failure     401  {object}  handlers.Envelope  "Missing or invalid identity"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{courseId}/{lectureId} [get]
func (h *Handlers) ListLectureDiscussions(c *gin.Context) {
	if _, found := actor(c); !found {
		return
	}
	q, valid := listQuery(c)
	if !valid {
		return
	}
	courseID, lectureID := c.Param("courseId"), c.Param("lectureId")

	if etag, has := h.listETag(c, courseID, lectureID, q); has && notModified(c, etag) {
		return
	}

	ds, err := h.svc.ListLectureDiscussions(c.Request.Context(), courseID, lectureID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "", listview.Apply(ds, q))
}

// ListCourseDiscussions godoc
// @ID          listCourseDiscussions
// @Summary     List a course's discussions
// @Description Every discussion of the course, newest first unless sort is given. Instructors only.
// @Tags        Discussions
// @Produce     json
// @Security    BearerAuth
// @Param       courseId       path    string  true   "Course ID"
// @Param       q              query   string  false  "Case-insensitive search in title or content"
// @Param       status         query   string  false  "all|resolved|unresolved|pinned"
// @Param       sort           query   string  false  "recent|oldest|mostReplies|leastReplies"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.DiscussionListResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.Envelope  "Invalid query"
// @Failure     401  {object}  handlers.Envelope  "Missing or invalid identity"
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/course/{courseId} [get]
func (h *Handlers) ListCourseDiscussions(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	q, valid := listQuery(c)
	if !valid {
		return
	}
	courseID := c.Param("courseId")

	// Stamp before reading so a concurrent write yields a stale tag, never a
	// stale body. The 304 check waits until the service has authorized.
	etag, hasTag := h.listETag(c, courseID, "", q)

	ds, err := h.svc.ListCourseDiscussions(c.Request.Context(), a, courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	if hasTag && notModified(c, etag) {
		return
	}
	ok(c, http.StatusOK, "", listview.Apply(ds, q))
}

// CourseSummary godoc
// @ID          courseSummary
// @Summary     Summarize a course's discussions
// @Description Counts by status, replies and likes over the (optionally searched and filtered) course list. Instructors only.
// @Tags        Discussions
// @Produce     json
// @Security    BearerAuth
// @Param       courseId  path   string  true   "Course ID"
// @Param       q         query  string  false  "Case-insensitive search in title or content"
// @Param       status    query  string  false  "all|resolved|unresolved|pinned"
// @Success     200  {object}  handlers.SummaryResponse
// @Failure     400  {object}  handlers.Envelope  "Invalid query"
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/course/{courseId}/summary [get]
func (h *Handlers) CourseSummary(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	q, valid := listQuery(c)
	if !valid {
		return
	}
	ds, err := h.svc.ListCourseDiscussions(c.Request.Context(), a, c.Param("courseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "", listview.Summarize(listview.Apply(ds, q)))
}

// AddReply godoc
// @ID          addReply
// @Summary     Reply to a discussion
// @Description Appends a reply. Supports Idempotency-Key (scoped to the discussion).
// @Tags        Discussions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId     path    string  true   "Discussion ID"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"
// @Param       body             body    handlers.AddReplyRequest  true  "Reply"
// @Success     201  {object}  handlers.DiscussionResponse
// @Failure     400  {object}  handlers.Envelope  "Validation failed"
// @Failure     401  {object}  handlers.Envelope  "Missing or invalid identity"
// @Failure     404  {object}  handlers.Envelope  "Discussion not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId}/reply [post]
func (h *Handlers) AddReply(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if h.replay(c, a) {
		return
	}

	var req AddReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, formatBindError(err))
		return
	}

	d, err := h.svc.AddReply(c.Request.Context(), a, c.Param("discussionId"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	h.remember(c, a, d.ID, http.StatusCreated)
	ok(c, http.StatusCreated, "Reply added", d)
}

// toggle adapts the single-id toggle operations.
func (h *Handlers) toggle(msg string, op func(context.Context, domain.Actor, string) (*domain.Discussion, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, found := actor(c)
		if !found {
			return
		}
		d, err := op(c.Request.Context(), a, c.Param("discussionId"))
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, msg, d)
	}
}

// ToggleLike godoc
// @ID          toggleLike
// @Summary     Like or unlike a discussion
// @Tags        Discussions
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId  path  string  true  "Discussion ID"  format(uuid)
// @Success     200  {object}  handlers.DiscussionResponse
// @Failure     401  {object}  handlers.Envelope  "Missing or invalid identity"
// @Failure     404  {object}  handlers.Envelope  "Discussion not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId}/like [post]
func (h *Handlers) ToggleLike(c *gin.Context) {
	h.toggle("Like toggled", h.svc.ToggleLike)(c)
}

// ToggleReplyLike godoc
// @ID          toggleReplyLike
// @Summary     Like or unlike a reply
// @Tags        Discussions
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId  path  string  true  "Discussion ID"  format(uuid)
// @Param       replyId       path  string  true  "Reply ID"       format(uuid)
// @Success     200  {object}  handlers.DiscussionResponse
// @Failure     401  {object}  handlers.Envelope  "Missing or invalid identity"
// @Failure     404  {object}  handlers.Envelope  "Discussion or reply not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId}/replies/{replyId}/like [post]
func (h *Handlers) ToggleReplyLike(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	d, err := h.svc.ToggleReplyLike(c.Request.Context(), a, c.Param("discussionId"), c.Param("replyId"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Like toggled", d)
}

// TogglePin godoc
// @ID          togglePin
// @Summary     Pin or unpin a discussion
// @Description Instructors only.
// @Tags        Moderation
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId  path  string  true  "Discussion ID"  format(uuid)
// @Success     200  {object}  handlers.DiscussionResponse
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     404  {object}  handlers.Envelope  "Discussion not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId}/pin [patch]
func (h *Handlers) TogglePin(c *gin.Context) {
	h.toggle("Pin toggled", h.svc.TogglePin)(c)
}

// ToggleResolved godoc
// @ID          toggleResolved
// @Summary     Mark a discussion resolved or unresolved
// @Description The author or an instructor.
// @Tags        Moderation
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId  path  string  true  "Discussion ID"  format(uuid)
// @Success     200  {object}  handlers.DiscussionResponse
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     404  {object}  handlers.Envelope  "Discussion not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId}/resolve [patch]
func (h *Handlers) ToggleResolved(c *gin.Context) {
	h.toggle("Resolution toggled", h.svc.ToggleResolved)(c)
}

// ToggleFlagged godoc
// @ID          toggleFlagged
// @Summary     Flag or unflag a discussion
// @Description Instructors only by default; anyone when FLAG_POLICY=open.
// @Tags        Moderation
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId  path  string  true  "Discussion ID"  format(uuid)
// @Success     200  {object}  handlers.DiscussionResponse
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     404  {object}  handlers.Envelope  "Discussion not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId}/flag [patch]
func (h *Handlers) ToggleFlagged(c *gin.Context) {
	h.toggle("Flag toggled", h.svc.ToggleFlagged)(c)
}

// DeleteDiscussion godoc
// @ID          deleteDiscussion
// @Summary     Delete a discussion
// @Description Removes the discussion with its replies and likes. Instructors only.
// @Tags        Moderation
// @Produce     json
// @Security    BearerAuth
// @Param       discussionId  path  string  true  "Discussion ID"  format(uuid)
// @Success     200  {object}  handlers.Envelope
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     404  {object}  handlers.Envelope  "Discussion not found"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/{discussionId} [delete]
func (h *Handlers) DeleteDiscussion(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if err := h.svc.DeleteDiscussion(c.Request.Context(), a, c.Param("discussionId")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "Discussion deleted", nil)
}

// CourseStats godoc
// @ID          courseStats
// @Summary     Course engagement statistics
// @Description Totals, engagement rate and the five most active discussions. Instructors only.
// @Tags        Analytics
// @Produce     json
// @Security    BearerAuth
// @Param       courseId  path  string  true  "Course ID"
// @Success     200  {object}  handlers.CourseStatsResponse
// @Failure     403  {object}  handlers.Envelope  "Forbidden"
// @Failure     500  {object}  handlers.Envelope  "Internal error"
// @Router      /discussions/stats/{courseId} [get]
func (h *Handlers) CourseStats(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	st, err := h.svc.GetCourseStats(c.Request.Context(), a, c.Param("courseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "", st)
}
