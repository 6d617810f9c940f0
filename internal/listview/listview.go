// Package listview implements the presentation transforms applied to a
// discussion list: free-text search, status filtering, sorting and a
// summary for instructor dashboards.
//
// Every function is pure. Inputs are never mutated, results are fresh
// slices, and empty or nil input yields an empty, non-nil result.
package listview

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// Status selects discussions by moderation state.
type Status string

const (
	StatusAll        Status = "all"
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusPinned     Status = "pinned"
)

// SortOrder selects the ordering of the result.
type SortOrder string

const (
	// SortNone keeps the order the service returned.
	SortNone         SortOrder = ""
	SortRecent       SortOrder = "recent"
	SortOldest       SortOrder = "oldest"
	SortMostReplies  SortOrder = "mostReplies"
	SortLeastReplies SortOrder = "leastReplies"
)

// ParseStatus maps a query value to a Status. Empty means StatusAll.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case "":
		return StatusAll, nil
	case StatusAll, StatusResolved, StatusUnresolved, StatusPinned:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q (want all|resolved|unresolved|pinned)", s)
}

// ParseSort maps a query value to a SortOrder. Empty means SortNone.
func ParseSort(s string) (SortOrder, error) {
	switch o := SortOrder(strings.TrimSpace(s)); o {
	case SortNone, SortRecent, SortOldest, SortMostReplies, SortLeastReplies:
		return o, nil
	}
	return "", fmt.Errorf("invalid sort %q (want recent|oldest|mostReplies|leastReplies)", s)
}

// Query bundles the three list controls.
type Query struct {
	Search string
	Status Status
	Sort   SortOrder
}

// Apply runs search, then the status filter, then the sort.
func Apply(ds []domain.Discussion, q Query) []domain.Discussion {
	out := Search(ds, q.Search)
	out = FilterStatus(out, q.Status)
	return Sort(out, q.Sort)
}

// Search keeps discussions whose title or content contains term, compared
// with Unicode case folding. A blank term keeps everything.
func Search(ds []domain.Discussion, term string) []domain.Discussion {
	term = strings.TrimSpace(term)
	if term == "" {
		return clone(ds)
	}
	fold := cases.Fold()
	needle := fold.String(term)
	out := make([]domain.Discussion, 0, len(ds))
	for _, d := range ds {
		if strings.Contains(fold.String(d.Title), needle) || strings.Contains(fold.String(d.Content), needle) {
			out = append(out, d)
		}
	}
	return out
}

// FilterStatus keeps discussions matching st. Unknown values behave as all.
func FilterStatus(ds []domain.Discussion, st Status) []domain.Discussion {
	keep := func(domain.Discussion) bool { return true }
	switch st {
	case StatusResolved:
		keep = func(d domain.Discussion) bool { return d.IsResolved }
	case StatusUnresolved:
		keep = func(d domain.Discussion) bool { return !d.IsResolved }
	case StatusPinned:
		keep = func(d domain.Discussion) bool { return d.IsPinned }
	}
	out := make([]domain.Discussion, 0, len(ds))
	for _, d := range ds {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Sort returns a stably sorted copy. Ties keep their input order.
func Sort(ds []domain.Discussion, order SortOrder) []domain.Discussion {
	out := clone(ds)
	var less func(a, b domain.Discussion) bool
	switch order {
	case SortRecent:
		less = func(a, b domain.Discussion) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortOldest:
		less = func(a, b domain.Discussion) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortMostReplies:
		less = func(a, b domain.Discussion) bool { return len(a.Replies) > len(b.Replies) }
	case SortLeastReplies:
		less = func(a, b domain.Discussion) bool { return len(a.Replies) < len(b.Replies) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Summary is the headline block of the instructor analytics view.
type Summary struct {
	Total          int     `json:"total"`
	Resolved       int     `json:"resolved"`
	Unresolved     int     `json:"unresolved"`
	Pinned         int     `json:"pinned"`
	Flagged        int     `json:"flagged"`
	Replies        int     `json:"replies"`
	Likes          int     `json:"likes"`
	ResolutionRate float64 `json:"resolutionRate"`
}

// Summarize counts ds. ResolutionRate is a percentage, 0 for an empty list.
func Summarize(ds []domain.Discussion) Summary {
	var s Summary
	for _, d := range ds {
		s.Total++
		if d.IsResolved {
			s.Resolved++
		} else {
			s.Unresolved++
		}
		if d.IsPinned {
			s.Pinned++
		}
		if d.IsFlagged {
			s.Flagged++
		}
		s.Replies += len(d.Replies)
		s.Likes += len(d.Likes)
	}
	if s.Total > 0 {
		s.ResolutionRate = float64(s.Resolved) / float64(s.Total) * 100
	}
	return s
}

func clone(ds []domain.Discussion) []domain.Discussion {
	out := make([]domain.Discussion, len(ds))
	copy(out, ds)
	return out
}
