package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/driftline/driftline/internal/ranking"
)

var errStoreDown = errors.New("store unavailable")

// failingFollowStore errors on every call.
type failingFollowStore struct{}

func (failingFollowStore) Followees(ctx context.Context, userID string) ([]string, error) {
	return nil, errStoreDown
}
func (failingFollowStore) Followers(ctx context.Context, userID string) ([]string, error) {
	return nil, errStoreDown
}
func (failingFollowStore) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return false, errStoreDown
}

// failingPostStore errors on every call.
type failingPostStore struct{}

func (failingPostStore) GetByID(ctx context.Context, id string) (*Post, error) {
	return nil, errStoreDown
}
func (failingPostStore) ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, limit int) ([]*Post, error) {
	return nil, errStoreDown
}
func (failingPostStore) ListRecentPublic(ctx context.Context, excludeAuthors []string, limit int) ([]*Post, error) {
	return nil, errStoreDown
}

// failingInteractionStore errors on every call.
type failingInteractionStore struct{}

func (failingInteractionStore) CountsForPost(ctx context.Context, postID string, since time.Time) (PostCounts, error) {
	return PostCounts{}, errStoreDown
}
func (failingInteractionStore) CountsByUserForAuthor(ctx context.Context, userID, authorID string, since time.Time) (AuthorCounts, error) {
	return AuthorCounts{}, errStoreDown
}
func (failingInteractionStore) ListByUser(ctx context.Context, userID string, since time.Time) ([]*InteractionEvent, error) {
	return nil, errStoreDown
}

// failingNegativeSignalStore errors on every call.
type failingNegativeSignalStore struct{}

func (failingNegativeSignalStore) HasSignal(ctx context.Context, userID, postID string) (bool, error) {
	return false, errStoreDown
}
func (failingNegativeSignalStore) ReportCount(ctx context.Context, postID string) (int64, error) {
	return 0, errStoreDown
}

func newTestScorer(follows FollowStore, interactions InteractionStore, negatives NegativeSignalStore) *Scorer {
	logger := slog.New(slog.DiscardHandler)
	return NewScorer(follows, interactions, negatives, DefaultParams(), logger)
}

func TestScorer_Relationship_SelfAuthoredPost(t *testing.T) {
	s := newTestScorer(NewInMemoryFollowStore(), NewInMemoryInteractionStore(), NewInMemoryNegativeSignalStore())

	got := s.Relationship(context.Background(), "alice", "alice")
	if got != 1.0 {
		t.Errorf("Relationship(self) = %v, want 1.0", got)
	}
}

func TestScorer_Relationship_Tiers(t *testing.T) {
	follows := NewInMemoryFollowStore()
	follows.AddFollow("alice", "bob")   // alice -> bob
	follows.AddFollow("bob", "alice")   // mutual
	follows.AddFollow("alice", "carol") // one-way

	s := newTestScorer(follows, NewInMemoryInteractionStore(), NewInMemoryNegativeSignalStore())
	ctx := context.Background()

	if got := s.Relationship(ctx, "alice", "bob"); got != 0.9 {
		t.Errorf("mutual relationship = %v, want 0.9", got)
	}
	if got := s.Relationship(ctx, "alice", "carol"); got != 0.7 {
		t.Errorf("one-way follow = %v, want 0.7", got)
	}
	if got := s.Relationship(ctx, "carol", "alice"); got != 0.7 {
		t.Errorf("followed-by = %v, want 0.7", got)
	}
	if got := s.Relationship(ctx, "alice", "dave"); got != 0.1 {
		t.Errorf("no relation = %v, want 0.1", got)
	}
}

func TestScorer_Relationship_AnonymousViewer(t *testing.T) {
	s := newTestScorer(NewInMemoryFollowStore(), NewInMemoryInteractionStore(), NewInMemoryNegativeSignalStore())

	got := s.Relationship(context.Background(), AnonymousViewer, "bob")
	if got != 0.1 {
		t.Errorf("Relationship(anonymous) = %v, want 0.1", got)
	}
}

func TestScorer_Relationship_InteractionBoostClampsAtCeiling(t *testing.T) {
	follows := NewInMemoryFollowStore()
	follows.AddFollow("alice", "bob")
	follows.AddFollow("bob", "alice")

	interactions := NewInMemoryInteractionStore()
	for i := 0; i < 20; i++ {
		interactions.Add(&InteractionEvent{
			UserID:   "alice",
			PostID:   "p1",
			AuthorID: "bob",
			Kind:     InteractionComment,
		})
	}

	s := newTestScorer(follows, interactions, NewInMemoryNegativeSignalStore())

	// Mutual 0.9 plus a saturated 0.25 boost must clamp at 0.95.
	got := s.Relationship(context.Background(), "alice", "bob")
	if got != 0.95 {
		t.Errorf("boosted relationship = %v, want 0.95", got)
	}
}

func TestScorer_Relationship_GraphFailureDegradesToBase(t *testing.T) {
	s := newTestScorer(failingFollowStore{}, failingInteractionStore{}, NewInMemoryNegativeSignalStore())

	got := s.Relationship(context.Background(), "alice", "bob")
	if got != 0.1 {
		t.Errorf("degraded relationship = %v, want 0.1", got)
	}
}

func TestScorer_Engagement_VelocityOverTotals(t *testing.T) {
	now := time.Now()

	interactions := NewInMemoryInteractionStore()
	// Fresh post: 3 reactions in its first hour.
	for i := 0; i < 3; i++ {
		interactions.Add(&InteractionEvent{UserID: "u", PostID: "fresh", AuthorID: "a", Kind: InteractionReaction, CreatedAt: now})
	}
	// Old post: 20 reactions over ten days.
	for i := 0; i < 20; i++ {
		interactions.Add(&InteractionEvent{UserID: "u", PostID: "old", AuthorID: "a", Kind: InteractionReaction, CreatedAt: now})
	}

	s := newTestScorer(NewInMemoryFollowStore(), interactions, NewInMemoryNegativeSignalStore())

	fresh := &Post{ID: "fresh", AuthorID: "a", CreatedAt: now.Add(-1 * time.Hour)}
	old := &Post{ID: "old", AuthorID: "a", CreatedAt: now.Add(-10 * 24 * time.Hour)}

	ctx := context.Background()
	freshScore, freshCounts := s.Engagement(ctx, fresh)
	oldScore, _ := s.Engagement(ctx, old)

	if freshCounts.Reactions != 3 {
		t.Fatalf("fresh reactions = %d, want 3", freshCounts.Reactions)
	}
	if freshScore <= oldScore {
		t.Errorf("fresh velocity %v should beat old totals %v", freshScore, oldScore)
	}
}

func TestScorer_Engagement_StoreFailureIsNeutral(t *testing.T) {
	s := newTestScorer(NewInMemoryFollowStore(), failingInteractionStore{}, NewInMemoryNegativeSignalStore())

	score, counts := s.Engagement(context.Background(), &Post{ID: "p1", CreatedAt: time.Now()})
	if score != 0 {
		t.Errorf("degraded engagement = %v, want 0", score)
	}
	if counts != (PostCounts{}) {
		t.Errorf("degraded counts = %+v, want zero", counts)
	}
}

func TestScorer_Recency_HalfLifeDecay(t *testing.T) {
	s := newTestScorer(NewInMemoryFollowStore(), NewInMemoryInteractionStore(), NewInMemoryNegativeSignalStore())

	now := time.Now()
	s.now = func() time.Time { return now }

	fresh := s.Recency(&Post{CreatedAt: now})
	dayOld := s.Recency(&Post{CreatedAt: now.Add(-24 * time.Hour)})

	if math.Abs(fresh-1.0) > 1e-9 {
		t.Errorf("Recency(fresh) = %v, want 1.0", fresh)
	}
	if math.Abs(dayOld-math.Exp(-1)) > 1e-9 {
		t.Errorf("Recency(24h) = %v, want e^-1", dayOld)
	}
}

func TestScorer_NegativeFeedback(t *testing.T) {
	negatives := NewInMemoryNegativeSignalStore()
	negatives.Add(NegativeSignal{UserID: "alice", PostID: "hidden-post", Kind: NegativeHidden})
	for i := 0; i < ranking.GlobalReportThreshold; i++ {
		negatives.Add(NegativeSignal{UserID: fmt.Sprintf("reporter-%d", i), PostID: "reported-post", Kind: NegativeReported})
	}

	s := newTestScorer(NewInMemoryFollowStore(), NewInMemoryInteractionStore(), negatives)
	ctx := context.Background()

	if got := s.NegativeFeedback(ctx, "alice", "hidden-post"); got != -1.0 {
		t.Errorf("viewer-flagged = %v, want -1.0", got)
	}
	if got := s.NegativeFeedback(ctx, "bob", "reported-post"); got != -0.5 {
		t.Errorf("globally reported = %v, want -0.5", got)
	}
	if got := s.NegativeFeedback(ctx, AnonymousViewer, "reported-post"); got != -0.5 {
		t.Errorf("anonymous on reported = %v, want -0.5", got)
	}
	if got := s.NegativeFeedback(ctx, "bob", "clean-post"); got != 0 {
		t.Errorf("clean post = %v, want 0", got)
	}
}

func TestScorer_NegativeFeedback_StoreFailureIsNeutral(t *testing.T) {
	s := newTestScorer(NewInMemoryFollowStore(), NewInMemoryInteractionStore(), failingNegativeSignalStore{})

	if got := s.NegativeFeedback(context.Background(), "alice", "p1"); got != 0 {
		t.Errorf("degraded negative feedback = %v, want 0", got)
	}
}
