package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"

	"github.com/tbourn/lecture-discussions/internal/domain"
)

// Indexer mirrors discussions into an external full-text search engine.
// Calls are best effort: failures are logged and never undo the write.
type Indexer interface {
	IndexDiscussion(ctx context.Context, d *domain.Discussion) error
	DeleteDiscussion(ctx context.Context, id string) error
}

// DefaultSearchIndex is the Meilisearch index uid used when none is configured.
const DefaultSearchIndex = "discussions"

// searchPolicy strips every HTML element from indexed text so search hits
// never carry markup. bluemonday policies are safe for concurrent use.
var searchPolicy = bluemonday.StrictPolicy()

// searchText is the indexed form of a title, body or reply. Only text that
// actually looks like markup goes through the policy; plain text such as
// "if (i<n)" would otherwise lose everything after the "<".
func searchText(s string) string {
	if !strings.Contains(s, "</") && !strings.Contains(s, "/>") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(searchPolicy.Sanitize(s)))
}

// MeiliIndexer pushes discussion documents into a Meilisearch index.
type MeiliIndexer struct {
	Client meilisearch.ServiceManager
	Index  string
}

// NewMeiliIndexer connects to host. An empty host disables indexing and
// returns nil; callers must not store that nil in an Indexer interface.
func NewMeiliIndexer(host, apiKey, index string) *MeiliIndexer {
	if host == "" {
		return nil
	}
	if index == "" {
		index = DefaultSearchIndex
	}
	return &MeiliIndexer{
		Client: meilisearch.New(host, meilisearch.WithAPIKey(apiKey)),
		Index:  index,
	}
}

type meiliDiscussionDoc struct {
	ID         string   `json:"id"`
	CourseID   string   `json:"courseId"`
	LectureID  string   `json:"lectureId"`
	AuthorName string   `json:"authorName"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Replies    []string `json:"replies"`
	IsResolved bool     `json:"isResolved"`
	IsPinned   bool     `json:"isPinned"`
	CreatedAt  int64    `json:"createdAt"`
}

// Configure declares the filterable and sortable attributes. Safe to call
// repeatedly; Meilisearch applies settings asynchronously.
func (m *MeiliIndexer) Configure() error {
	filterable := []any{"courseId", "lectureId", "isResolved", "isPinned"}
	if _, err := m.Client.Index(m.Index).UpdateFilterableAttributes(&filterable); err != nil {
		return fmt.Errorf("meilisearch filterable attributes: %w", err)
	}
	sortable := []string{"createdAt"}
	if _, err := m.Client.Index(m.Index).UpdateSortableAttributes(&sortable); err != nil {
		return fmt.Errorf("meilisearch sortable attributes: %w", err)
	}
	return nil
}

func (m *MeiliIndexer) IndexDiscussion(_ context.Context, d *domain.Discussion) error {
	doc := meiliDiscussionDoc{
		ID:         d.ID,
		CourseID:   d.CourseID,
		LectureID:  d.LectureID,
		AuthorName: d.AuthorName,
		Title:      searchText(d.Title),
		Content:    searchText(d.Content),
		Replies:    make([]string, 0, len(d.Replies)),
		IsResolved: d.IsResolved,
		IsPinned:   d.IsPinned,
		CreatedAt:  d.CreatedAt.Unix(),
	}
	for _, r := range d.Replies {
		doc.Replies = append(doc.Replies, searchText(r.Content))
	}
	primaryKey := "id"
	if _, err := m.Client.Index(m.Index).AddDocuments([]meiliDiscussionDoc{doc}, &primaryKey); err != nil {
		return fmt.Errorf("meilisearch index %s: %w", d.ID, err)
	}
	return nil
}

func (m *MeiliIndexer) DeleteDiscussion(_ context.Context, id string) error {
	if _, err := m.Client.Index(m.Index).DeleteDocument(id); err != nil {
		return fmt.Errorf("meilisearch delete %s: %w", id, err)
	}
	return nil
}
