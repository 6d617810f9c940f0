package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/lecture-discussions/internal/domain"
	"github.com/tbourn/lecture-discussions/internal/policy"
	"github.com/tbourn/lecture-discussions/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:discussionsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var (
	studentA   = domain.Actor{UserID: "stu-a", UserName: "Alice", Role: domain.RoleStudent}
	studentB   = domain.Actor{UserID: "stu-b", UserName: "Bob", Role: domain.RoleStudent}
	parent     = domain.Actor{UserID: "par-1", UserName: "Pat", Role: domain.RoleParent}
	admin      = domain.Actor{UserID: "adm-1", UserName: "Ada", Role: domain.RoleAdmin}
	instructor = domain.Actor{UserID: "ins-1", UserName: "Prof", Role: domain.RoleInstructor}
)

// stepClock returns strictly increasing timestamps so ordering by
// created_at is deterministic.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func newService(t *testing.T) *DiscussionService {
	t.Helper()
	return &DiscussionService{
		DB:  newTestDB(t),
		Now: stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func mustCreate(t *testing.T, s *DiscussionService, a domain.Actor, course, lecture, title string) *domain.Discussion {
	t.Helper()
	d, err := s.CreateDiscussion(context.Background(), a, course, lecture, title, "body of "+title)
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return d
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	var ae *AuthorizationError
	if !errors.As(err, &ae) || !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if ae.Error() != "Forbidden" {
		t.Fatalf("message = %q", ae.Error())
	}
}

func TestCreateDiscussion_Validation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	cases := []struct {
		name, course, lecture, title, content, field string
	}{
		{"empty title", "c1", "l1", "   ", "x", "title"},
		{"empty content", "c1", "l1", "t", "", "content"},
		{"markup only", "c1", "l1", "<b></b>", "x", "title"},
		{"missing course", "", "l1", "t", "x", "courseId"},
		{"missing lecture", "c1", " ", "t", "x", "lectureId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateDiscussion(ctx, studentA, tc.course, tc.lecture, tc.title, tc.content)
			var ve *ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q; want %q", ve.Field, tc.field)
			}
		})
	}

	var n int64
	s.DB.Model(&domain.Discussion{}).Count(&n)
	if n != 0 {
		t.Fatalf("invalid creates must not persist, got %d rows", n)
	}
}

func TestCreateDiscussion_LengthLimits(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	long := func(n int) string { return strings.Repeat("a", n) }

	s.MaxTitleRunes = 5
	cases := []struct {
		name, courseID, lectureID, title, field string
	}{
		{"title over configured limit", "c1", "l1", "123456", "title"},
		{"course id over column width", long(domain.MaxIDLen + 1), "l1", "t", "courseId"},
		{"lecture id over column width", "c1", long(domain.MaxIDLen + 1), "t", "lectureId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateDiscussion(ctx, studentA, tc.courseID, tc.lectureID, tc.title, "ok")
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Reason != "is too long" || ve.Field != tc.field {
				t.Fatalf("expected too-long ValidationError on %s, got %v", tc.field, err)
			}
		})
	}

	// Without a configured limit titles still fit the column.
	s.MaxTitleRunes = 0
	if _, err := s.CreateDiscussion(ctx, studentA, "c1", "l1", long(domain.MaxTitleLen+1), "ok"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for oversized title, got %v", err)
	}
	if _, err := s.CreateDiscussion(ctx, studentA, "c1", "l1", long(domain.MaxTitleLen), "ok"); err != nil {
		t.Fatalf("title at the column width rejected: %v", err)
	}
}

func TestCreateDiscussion_RejectsReservedCourseIDs(t *testing.T) {
	s := newService(t)
	for _, id := range []string{"course", "stats", " stats "} {
		_, err := s.CreateDiscussion(context.Background(), studentA, id, "l1", "t", "c")
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "courseId" || ve.Reason != "is reserved" {
			t.Fatalf("courseId %q: expected reserved ValidationError, got %v", id, err)
		}
	}
	if _, err := s.CreateDiscussion(context.Background(), studentA, "courseware", "l1", "t", "c"); err != nil {
		t.Fatalf("courseware must be accepted: %v", err)
	}
}

func TestCreateDiscussion_TrimsAndDefaults(t *testing.T) {
	s := newService(t)
	d, err := s.CreateDiscussion(context.Background(), studentA, "c1", "l1",
		"  Why mod?  ", "\n explain A & B\t")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Title != "Why mod?" {
		t.Fatalf("title = %q", d.Title)
	}
	if d.Content != "explain A & B" {
		t.Fatalf("content = %q", d.Content)
	}
	if d.AuthorID != studentA.UserID || d.AuthorName != "Alice" {
		t.Fatalf("author = %s/%s", d.AuthorID, d.AuthorName)
	}
	if d.IsPinned || d.IsResolved || d.IsFlagged || len(d.Likes) != 0 || len(d.Replies) != 0 {
		t.Fatalf("defaults not applied: %+v", d)
	}
	if _, err := uuid.Parse(d.ID); err != nil {
		t.Fatalf("id is not a uuid: %q", d.ID)
	}

	// Any role may create.
	for _, a := range []domain.Actor{parent, admin, instructor} {
		mustCreate(t, s, a, "c1", "l1", "by "+string(a.Role))
	}
}

func TestCreateDiscussion_KeepsCodeAndComparisons(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	texts := []string{
		"Why is a<b and c>d true?",
		"Use vector<int> v; in C++",
		"if (i<n) i++",
		"<b>bold</b> & <script>x</script>",
	}
	for _, text := range texts {
		d, err := s.CreateDiscussion(ctx, studentA, "c1", "l1", text, text)
		if err != nil {
			t.Fatalf("create %q: %v", text, err)
		}
		if d.Title != text || d.Content != text {
			t.Fatalf("stored %q / %q; want %q", d.Title, d.Content, text)
		}
		got, err := s.AddReply(ctx, studentB, d.ID, text)
		if err != nil {
			t.Fatalf("reply %q: %v", text, err)
		}
		if got.Replies[0].Content != text {
			t.Fatalf("reply stored %q; want %q", got.Replies[0].Content, text)
		}
	}
}

func TestAddReply_AppendsInOrderAndTouchesUpdatedAt(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	d, err := s.CreateDiscussion(ctx, studentA, "c1", "L", "Why mod?", "explain")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.AddReply(ctx, studentB, d.ID, "because X")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if len(got.Replies) != 1 || got.Replies[0].Content != "because X" {
		t.Fatalf("replies = %+v", got.Replies)
	}
	if got.Replies[0].AuthorID != studentB.UserID {
		t.Fatalf("reply author = %s", got.Replies[0].AuthorID)
	}
	if !got.UpdatedAt.After(d.UpdatedAt) {
		t.Fatalf("updatedAt not refreshed")
	}

	got, _ = s.AddReply(ctx, studentA, d.ID, "thanks")
	if got.Replies[1].Content != "thanks" {
		t.Fatalf("insertion order not preserved: %+v", got.Replies)
	}
}

func TestAddReply_Errors(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	if _, err := s.AddReply(ctx, studentB, "missing", "x"); !errors.Is(err, ErrDiscussionNotFound) {
		t.Fatalf("expected ErrDiscussionNotFound, got %v", err)
	}
	if _, err := s.AddReply(ctx, studentB, d.ID, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestToggleLike_Involution(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	once, err := s.ToggleLike(ctx, studentB, d.ID)
	if err != nil || !once.LikedBy(studentB.UserID) || len(once.Likes) != 1 {
		t.Fatalf("first toggle = %+v, %v", once, err)
	}
	// a second user's like is independent
	if _, err := s.ToggleLike(ctx, studentA, d.ID); err != nil {
		t.Fatalf("second user: %v", err)
	}
	twice, err := s.ToggleLike(ctx, studentB, d.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if twice.LikedBy(studentB.UserID) || !twice.LikedBy(studentA.UserID) || len(twice.Likes) != 1 {
		t.Fatalf("likes after involution = %v", twice.Likes)
	}

	if _, err := s.ToggleLike(ctx, studentB, "missing"); !errors.Is(err, ErrDiscussionNotFound) {
		t.Fatalf("expected ErrDiscussionNotFound, got %v", err)
	}
}

func TestToggleReplyLike(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")
	d, _ = s.AddReply(ctx, studentB, d.ID, "answer")
	rid := d.Replies[0].ID

	got, err := s.ToggleReplyLike(ctx, studentA, d.ID, rid)
	if err != nil || len(got.Replies[0].Likes) != 1 {
		t.Fatalf("reply like = %+v, %v", got, err)
	}
	got, _ = s.ToggleReplyLike(ctx, studentA, d.ID, rid)
	if len(got.Replies[0].Likes) != 0 {
		t.Fatalf("reply unlike failed: %v", got.Replies[0].Likes)
	}

	if _, err := s.ToggleReplyLike(ctx, studentA, d.ID, "nope"); !errors.Is(err, ErrReplyNotFound) {
		t.Fatalf("expected ErrReplyNotFound, got %v", err)
	}
}

func TestToggles_AreInvolutions(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	toggles := map[string]struct {
		fn  func(context.Context, domain.Actor, string) (*domain.Discussion, error)
		get func(*domain.Discussion) bool
	}{
		"pin":     {s.TogglePin, func(d *domain.Discussion) bool { return d.IsPinned }},
		"resolve": {s.ToggleResolved, func(d *domain.Discussion) bool { return d.IsResolved }},
		"flag":    {s.ToggleFlagged, func(d *domain.Discussion) bool { return d.IsFlagged }},
	}
	for name, tg := range toggles {
		first, err := tg.fn(ctx, instructor, d.ID)
		if err != nil || !tg.get(first) {
			t.Fatalf("%s first toggle = %v, %v", name, first, err)
		}
		second, err := tg.fn(ctx, instructor, d.ID)
		if err != nil || tg.get(second) {
			t.Fatalf("%s second toggle = %v, %v", name, second, err)
		}
		if !second.UpdatedAt.After(first.UpdatedAt) {
			t.Fatalf("%s: updatedAt not refreshed", name)
		}
	}
}

func TestTogglePin_NonInstructorForbidden_StateUnchanged(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	for _, a := range []domain.Actor{studentA, parent, admin} {
		_, err := s.TogglePin(ctx, a, d.ID)
		assertForbidden(t, err)
	}
	got, _ := s.Get(ctx, d.ID)
	if got.IsPinned || !got.UpdatedAt.Equal(d.UpdatedAt) {
		t.Fatalf("denied pin must not write: %+v", got)
	}
}

func TestToggleResolved_Authorization(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	_, err := s.ToggleResolved(ctx, studentB, d.ID)
	assertForbidden(t, err)
	got, _ := s.Get(ctx, d.ID)
	if got.IsResolved {
		t.Fatalf("denied resolve must leave isResolved unchanged")
	}

	got, err = s.ToggleResolved(ctx, studentA, d.ID)
	if err != nil || !got.IsResolved {
		t.Fatalf("author resolve = %v, %v", got, err)
	}
	got, err = s.ToggleResolved(ctx, instructor, d.ID)
	if err != nil || got.IsResolved {
		t.Fatalf("instructor unresolve = %v, %v", got, err)
	}
}

func TestToggleFlagged_Policy(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	_, err := s.ToggleFlagged(ctx, studentB, d.ID)
	assertForbidden(t, err)

	s.Policy = policy.Policy{Flag: policy.FlagOpen}
	got, err := s.ToggleFlagged(ctx, studentB, d.ID)
	if err != nil || !got.IsFlagged {
		t.Fatalf("open policy flag = %v, %v", got, err)
	}
}

func TestDeleteDiscussion(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	d := mustCreate(t, s, studentA, "c1", "l1", "t")
	_, _ = s.AddReply(ctx, studentB, d.ID, "r")

	assertForbidden(t, s.DeleteDiscussion(ctx, studentA, d.ID))
	if _, err := s.Get(ctx, d.ID); err != nil {
		t.Fatalf("discussion must remain after denied delete: %v", err)
	}

	if err := s.DeleteDiscussion(ctx, instructor, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, d.ID); !errors.Is(err, ErrDiscussionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := s.DeleteDiscussion(ctx, instructor, d.ID); !errors.Is(err, ErrDiscussionNotFound) {
		t.Fatalf("second delete: expected ErrDiscussionNotFound, got %v", err)
	}
}

func TestListLectureDiscussions_PinnedFirst(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	old := mustCreate(t, s, studentA, "c1", "L", "old")
	mid := mustCreate(t, s, studentA, "c1", "L", "mid")
	newest := mustCreate(t, s, studentA, "c1", "L", "new")
	mustCreate(t, s, studentA, "c1", "other", "elsewhere")

	if _, err := s.TogglePin(ctx, instructor, old.ID); err != nil {
		t.Fatalf("pin: %v", err)
	}

	out, err := s.ListLectureDiscussions(ctx, "c1", "L")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{old.ID, newest.ID, mid.ID}
	if len(out) != len(want) {
		t.Fatalf("len = %d", len(out))
	}
	for i := range want {
		if out[i].ID != want[i] {
			t.Fatalf("pos %d = %s (%s); want %s", i, out[i].ID, out[i].Title, want[i])
		}
	}
	seenUnpinned := false
	for _, d := range out {
		if !d.IsPinned {
			seenUnpinned = true
		} else if seenUnpinned {
			t.Fatalf("pinned entry after unpinned one")
		}
	}
}

func TestListCourseDiscussions(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	a := mustCreate(t, s, studentA, "c1", "l1", "a")
	b := mustCreate(t, s, studentA, "c1", "l2", "b")

	_, err := s.ListCourseDiscussions(ctx, studentA, "c1")
	assertForbidden(t, err)

	out, err := s.ListCourseDiscussions(ctx, instructor, "c1")
	if err != nil || len(out) != 2 || out[0].ID != b.ID || out[1].ID != a.ID {
		t.Fatalf("course list = %+v, %v", out, err)
	}
}

func TestGetCourseStats(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	empty, err := s.GetCourseStats(ctx, instructor, "c1")
	if err != nil {
		t.Fatalf("empty stats: %v", err)
	}
	if empty.TotalDiscussions != 0 || empty.EngagementRate != 0 || empty.MostActiveDiscussions == nil || len(empty.MostActiveDiscussions) != 0 {
		t.Fatalf("empty stats = %+v", empty)
	}

	ds := make([]*domain.Discussion, 4)
	for i := range ds {
		ds[i] = mustCreate(t, s, studentA, "c1", "l1", fmt.Sprintf("d%d", i))
	}
	_, _ = s.ToggleResolved(ctx, instructor, ds[0].ID)
	_, _ = s.ToggleResolved(ctx, instructor, ds[1].ID)
	_, _ = s.TogglePin(ctx, instructor, ds[2].ID)
	for i := 0; i < 3; i++ {
		_, _ = s.AddReply(ctx, studentB, ds[1].ID, "r")
	}
	_, _ = s.AddReply(ctx, studentB, ds[3].ID, "r")

	st, err := s.GetCourseStats(ctx, instructor, "c1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalDiscussions != 4 || st.ResolvedDiscussions != 2 || st.UnresolvedDiscussions != 2 || st.PinnedDiscussions != 1 {
		t.Fatalf("counts = %+v", st)
	}
	if st.EngagementRate != 50 {
		t.Fatalf("engagementRate = %v; want 50", st.EngagementRate)
	}
	// d1 (3 replies), d3 (1), then zero-reply ones newest first: d2, d0
	want := []string{ds[1].ID, ds[3].ID, ds[2].ID, ds[0].ID}
	if len(st.MostActiveDiscussions) != len(want) {
		t.Fatalf("most active len = %d", len(st.MostActiveDiscussions))
	}
	for i := range want {
		if st.MostActiveDiscussions[i].ID != want[i] {
			t.Fatalf("most active pos %d = %s; want %s", i, st.MostActiveDiscussions[i].Title, want[i])
		}
	}

	_, err = s.GetCourseStats(ctx, studentA, "c1")
	assertForbidden(t, err)
}

func TestGetCourseStats_CapsMostActiveAtFive(t *testing.T) {
	s := newService(t)
	for i := 0; i < 7; i++ {
		mustCreate(t, s, studentA, "c1", "l1", fmt.Sprintf("d%d", i))
	}
	st, err := s.GetCourseStats(context.Background(), instructor, "c1")
	if err != nil || len(st.MostActiveDiscussions) != 5 {
		t.Fatalf("stats = %+v, %v", st, err)
	}
}

// memCache is an in-memory StatsCache that counts calls. beforeSet, when
// set, runs just before a snapshot is stored.
type memCache struct {
	mu          sync.Mutex
	data        map[string]*CourseStats
	gens        map[string]int64
	gets, sets  int
	invalidated []string
	failGet     bool
	failGen     bool
	beforeSet   func()
}

func newMemCache() *memCache {
	return &memCache{data: map[string]*CourseStats{}, gens: map[string]int64{}}
}

func memKey(id string, gen int64) string { return fmt.Sprintf("%s:%d", id, gen) }

func (m *memCache) Generation(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGen {
		return 0, errors.New("cache down")
	}
	return m.gens[id], nil
}

func (m *memCache) Get(_ context.Context, id string, gen int64) (*CourseStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	st, ok := m.data[memKey(id, gen)]
	return st, ok, nil
}

func (m *memCache) Set(_ context.Context, id string, gen int64, st *CourseStats) error {
	if m.beforeSet != nil {
		hook := m.beforeSet
		m.beforeSet = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[memKey(id, gen)] = st
	return nil
}

func (m *memCache) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[id]++
	m.invalidated = append(m.invalidated, id)
	return nil
}

func TestGetCourseStats_UsesAndInvalidatesCache(t *testing.T) {
	s := newService(t)
	cache := newMemCache()
	s.Cache = cache
	ctx := context.Background()

	d := mustCreate(t, s, studentA, "c1", "l1", "t")
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "c1" {
		t.Fatalf("create should invalidate c1, got %v", cache.invalidated)
	}

	first, _ := s.GetCourseStats(ctx, instructor, "c1")
	second, _ := s.GetCourseStats(ctx, instructor, "c1")
	if cache.sets != 1 || first.TotalDiscussions != 1 || second != first {
		t.Fatalf("second read should be served from cache (sets=%d)", cache.sets)
	}

	if _, err := s.ToggleResolved(ctx, studentA, d.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	third, _ := s.GetCourseStats(ctx, instructor, "c1")
	if third.ResolvedDiscussions != 1 || cache.sets != 2 {
		t.Fatalf("mutation must invalidate cached stats: %+v", third)
	}

	if err := s.DeleteDiscussion(ctx, instructor, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after, _ := s.GetCourseStats(ctx, instructor, "c1")
	if after.TotalDiscussions != 0 || cache.sets != 3 {
		t.Fatalf("delete must invalidate cached stats: %+v", after)
	}
}

func TestGetCourseStats_MutationDuringComputeIsNotServedStale(t *testing.T) {
	s := newService(t)
	cache := newMemCache()
	s.Cache = cache
	ctx := context.Background()

	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	// A resolve commits after the snapshot was computed but before it is
	// written back.
	cache.beforeSet = func() {
		if _, err := s.ToggleResolved(ctx, studentA, d.ID); err != nil {
			t.Errorf("resolve: %v", err)
		}
	}
	first, err := s.GetCourseStats(ctx, instructor, "c1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if first.ResolvedDiscussions != 0 {
		t.Fatalf("first snapshot predates the resolve: %+v", first)
	}

	next, err := s.GetCourseStats(ctx, instructor, "c1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if next.ResolvedDiscussions != 1 || next.EngagementRate != 100 {
		t.Fatalf("stale snapshot served after mutation: %+v", next)
	}
}

func TestGetCourseStats_CacheFailureFallsBackToStore(t *testing.T) {
	s := newService(t)
	cache := newMemCache()
	cache.failGet = true
	s.Cache = cache
	mustCreate(t, s, studentA, "c1", "l1", "t")

	st, err := s.GetCourseStats(context.Background(), instructor, "c1")
	if err != nil || st.TotalDiscussions != 1 {
		t.Fatalf("stats = %+v, %v", st, err)
	}

	cache.failGet = false
	cache.failGen = true
	sets := cache.sets
	st, err = s.GetCourseStats(context.Background(), instructor, "c1")
	if err != nil || st.TotalDiscussions != 1 {
		t.Fatalf("stats = %+v, %v", st, err)
	}
	if cache.sets != sets {
		t.Fatalf("snapshot written without a known generation")
	}
}

// recIndexer records indexer calls and can be told to fail.
type recIndexer struct {
	indexed []string
	deleted []string
	fail    bool
}

func (r *recIndexer) IndexDiscussion(_ context.Context, d *domain.Discussion) error {
	r.indexed = append(r.indexed, d.ID)
	if r.fail {
		return errors.New("search down")
	}
	return nil
}

func (r *recIndexer) DeleteDiscussion(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	if r.fail {
		return errors.New("search down")
	}
	return nil
}

func TestIndexer_BestEffort(t *testing.T) {
	s := newService(t)
	idx := &recIndexer{fail: true}
	s.Indexer = idx
	ctx := context.Background()

	d, err := s.CreateDiscussion(ctx, studentA, "c1", "l1", "t", "c")
	if err != nil {
		t.Fatalf("indexer failure must not fail create: %v", err)
	}
	if _, err := s.AddReply(ctx, studentB, d.ID, "r"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := s.DeleteDiscussion(ctx, instructor, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(idx.indexed) != 2 || len(idx.deleted) != 1 || idx.deleted[0] != d.ID {
		t.Fatalf("indexer calls: indexed=%v deleted=%v", idx.indexed, idx.deleted)
	}

	// Denied mutations never reach the indexer.
	d2 := mustCreate(t, s, studentA, "c1", "l1", "t2")
	before := len(idx.indexed)
	_, _ = s.TogglePin(ctx, studentA, d2.ID)
	if len(idx.indexed) != before {
		t.Fatalf("denied pin reached indexer")
	}
}

func TestPersistenceError_OnDBFailure(t *testing.T) {
	s := newService(t)
	d := mustCreate(t, s, studentA, "c1", "l1", "t")

	const cb = "test:fail_updates"
	if err := s.DB.Callback().Update().Before("gorm:update").Register(cb, func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() { _ = s.DB.Callback().Update().Remove(cb) })

	_, err := s.TogglePin(context.Background(), instructor, d.ID)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "TogglePin" {
		t.Fatalf("expected PersistenceError, got %T %v", err, err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		t.Fatalf("persistence error misclassified: %v", err)
	}
}

func TestActionsCounter(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	okBefore := testutil.ToFloat64(discussionActions.WithLabelValues("TogglePin", "ok"))
	deniedBefore := testutil.ToFloat64(discussionActions.WithLabelValues("TogglePin", "forbidden"))

	d := mustCreate(t, s, studentA, "c1", "l1", "t")
	_, _ = s.TogglePin(ctx, instructor, d.ID)
	_, _ = s.TogglePin(ctx, studentA, d.ID)

	if got := testutil.ToFloat64(discussionActions.WithLabelValues("TogglePin", "ok")); got != okBefore+1 {
		t.Fatalf("ok counter = %v; want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(discussionActions.WithLabelValues("TogglePin", "forbidden")); got != deniedBefore+1 {
		t.Fatalf("forbidden counter = %v; want %v", got, deniedBefore+1)
	}
}

func TestClassifyAndOutcome(t *testing.T) {
	if classify("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	ve := required("title")
	if classify("op", ve) != ve || outcome(ve) != "invalid" {
		t.Fatalf("validation error must pass through")
	}
	if classify("op", ErrReplyNotFound) != ErrReplyNotFound || outcome(ErrReplyNotFound) != "not_found" {
		t.Fatalf("not found must pass through")
	}
	raw := errors.New("boom")
	wrapped := classify("op", raw)
	if !errors.Is(wrapped, raw) || outcome(wrapped) != "error" {
		t.Fatalf("raw error must be wrapped: %v", wrapped)
	}
	if outcome(&AuthorizationError{}) != "forbidden" {
		t.Fatalf("authorization outcome")
	}
}
