// Package domain defines the persistence models for lecture discussions,
// their replies and likes. These types are mapped with GORM and shared by
// the repository, service and transport layers.
package domain

import (
	"sort"
	"time"
)

// Discussion is a question or comment thread attached to a single lecture
// of a course. It exclusively owns its replies and like rows; deleting a
// discussion removes them in the same transaction.
//
// Fields:
//   - ID: UUID primary key, generated at creation and never changed.
//   - CourseID / LectureID: the owning lecture (immutable).
//   - AuthorID / AuthorName: creator identity (immutable).
//   - Title / Content: trimmed free text stored verbatim, never empty.
//   - IsPinned / IsResolved / IsFlagged: independent moderation flags.
//   - Likes: ids of users who liked the discussion, hydrated from LikeRows.
//   - Replies: ordered by Position (insertion order).
//   - CreatedAt / UpdatedAt: UpdatedAt is refreshed by every mutation.
type Discussion struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	CourseID   string    `json:"courseId"   gorm:"type:varchar(64);not null;index:idx_course_lecture,priority:1"`
	LectureID  string    `json:"lectureId"  gorm:"type:varchar(64);not null;index:idx_course_lecture,priority:2"`
	AuthorID   string    `json:"authorId"   gorm:"type:varchar(64);not null"`
	AuthorName string    `json:"authorName" gorm:"type:varchar(255);not null"`
	Title      string    `json:"title"      gorm:"type:varchar(255);not null"`
	Content    string    `json:"content"    gorm:"type:text;not null"`
	IsPinned   bool      `json:"isPinned"   gorm:"not null;default:false"`
	IsResolved bool      `json:"isResolved" gorm:"not null;default:false"`
	IsFlagged  bool      `json:"isFlagged"  gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"createdAt"  gorm:"index"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Likes   []string `json:"likes"   gorm:"-"`
	Replies []Reply  `json:"replies" gorm:"foreignKey:DiscussionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	LikeRows []DiscussionLike `json:"-" gorm:"foreignKey:DiscussionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Discussion.
func (Discussion) TableName() string { return "discussions" }

// Reply is an answer appended to a discussion. Position is a per-discussion
// sequence number that preserves insertion order.
type Reply struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	DiscussionID string    `json:"-"          gorm:"type:char(36);not null;uniqueIndex:ux_reply_position,priority:1"`
	Position     int       `json:"-"          gorm:"not null;uniqueIndex:ux_reply_position,priority:2"`
	AuthorID     string    `json:"authorId"   gorm:"type:varchar(64);not null"`
	AuthorName   string    `json:"authorName" gorm:"type:varchar(255);not null"`
	Content      string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"createdAt"`

	Likes    []string    `json:"likes" gorm:"-"`
	LikeRows []ReplyLike `json:"-"     gorm:"foreignKey:ReplyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Discussion *Discussion `json:"-" gorm:"foreignKey:DiscussionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Reply.
func (Reply) TableName() string { return "discussion_replies" }

// DiscussionLike records that a user liked a discussion. The unique index
// keeps the like set free of duplicates.
type DiscussionLike struct {
	DiscussionID string    `gorm:"type:char(36);primaryKey;uniqueIndex:ux_discussion_like_user,priority:1"`
	UserID       string    `gorm:"type:varchar(64);primaryKey;uniqueIndex:ux_discussion_like_user,priority:2"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	Discussion *Discussion `gorm:"foreignKey:DiscussionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DiscussionLike.
func (DiscussionLike) TableName() string { return "discussion_likes" }

// ReplyLike records that a user liked a reply.
type ReplyLike struct {
	ReplyID      string    `gorm:"type:char(36);primaryKey;uniqueIndex:ux_reply_like_user,priority:1"`
	UserID       string    `gorm:"type:varchar(64);primaryKey;uniqueIndex:ux_reply_like_user,priority:2"`
	DiscussionID string    `gorm:"type:char(36);not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	Reply *Reply `gorm:"foreignKey:ReplyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReplyLike.
func (ReplyLike) TableName() string { return "reply_likes" }

// Hydrate copies the loaded like rows into the Likes slices of the
// discussion and each reply, and orders replies by Position. Slices are
// always non-nil so they encode as [] rather than null.
func (d *Discussion) Hydrate() {
	d.Likes = likeIDs(d.LikeRows, func(l DiscussionLike) string { return l.UserID })
	if d.Replies == nil {
		d.Replies = []Reply{}
	}
	sort.SliceStable(d.Replies, func(i, j int) bool { return d.Replies[i].Position < d.Replies[j].Position })
	for i := range d.Replies {
		r := &d.Replies[i]
		r.Likes = likeIDs(r.LikeRows, func(l ReplyLike) string { return l.UserID })
	}
}

// LikedBy reports whether userID is in the discussion's like set.
func (d *Discussion) LikedBy(userID string) bool {
	for _, id := range d.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ReplyCount returns the number of replies.
func (d *Discussion) ReplyCount() int { return len(d.Replies) }

// FindReply returns the reply with the given id, or nil.
func (d *Discussion) FindReply(replyID string) *Reply {
	for i := range d.Replies {
		if d.Replies[i].ID == replyID {
			return &d.Replies[i]
		}
	}
	return nil
}

func likeIDs[T any](rows []T, id func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, id(r))
	}
	sort.Strings(out)
	return out
}
