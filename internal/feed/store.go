package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for feed store operations.
var (
	ErrPostNotFound = errors.New("post not found")
)

// PostCounts aggregates interaction counts for one post.
type PostCounts struct {
	Reactions int64
	Comments  int64
	Views     int64
}

// AuthorCounts aggregates one user's interactions with one author's posts.
type AuthorCounts struct {
	Reactions int64
	Comments  int64
}

// FollowStore serves follow-graph membership reads.
type FollowStore interface {
	// Followees returns the IDs of accounts the user follows.
	Followees(ctx context.Context, userID string) ([]string, error)

	// Followers returns the IDs of accounts following the user.
	Followers(ctx context.Context, userID string) ([]string, error)

	// IsFollowing reports whether follower follows followee.
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
}

// PostStore serves post reads filtered by author set, visibility, and time.
type PostStore interface {
	// GetByID retrieves a post by ID.
	GetByID(ctx context.Context, id string) (*Post, error)

	// ListByAuthors returns posts by the given authors visible to the viewer,
	// ordered by created_at DESC with ID ASC tie-breaking, capped at limit.
	// Visibility rules: public posts from any listed author, followers posts
	// only from authors the viewer follows, any visibility for the viewer's
	// own posts. Posts labeled hidden are excluded.
	ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, limit int) ([]*Post, error)

	// ListRecentPublic returns public posts not authored by any of the
	// excluded authors, ordered by created_at DESC with ID ASC tie-breaking,
	// capped at limit. Posts labeled hidden are excluded.
	ListRecentPublic(ctx context.Context, excludeAuthors []string, limit int) ([]*Post, error)
}

// InteractionStore serves windowed interaction-event reads.
type InteractionStore interface {
	// CountsForPost returns reaction/comment/view counts for a post since the
	// given time. A zero since returns all-time counts.
	CountsForPost(ctx context.Context, postID string, since time.Time) (PostCounts, error)

	// CountsByUserForAuthor returns the user's reaction/comment counts on the
	// author's posts since the given time.
	CountsByUserForAuthor(ctx context.Context, userID, authorID string, since time.Time) (AuthorCounts, error)

	// ListByUser returns the user's interaction events since the given time.
	ListByUser(ctx context.Context, userID string, since time.Time) ([]*InteractionEvent, error)
}

// NegativeSignalStore serves negative-feedback existence checks.
type NegativeSignalStore interface {
	// HasSignal reports whether the user hid, reported, or marked the post
	// not-interested.
	HasSignal(ctx context.Context, userID, postID string) (bool, error)

	// ReportCount returns the number of distinct users who reported the
	// post. Repeat reports from one user count once.
	ReportCount(ctx context.Context, postID string) (int64, error)
}

// InMemoryFollowStore is an in-memory FollowStore. Thread-safe via RWMutex.
type InMemoryFollowStore struct {
	mu        sync.RWMutex
	followees map[string]map[string]bool // follower -> set of followees
	followers map[string]map[string]bool // followee -> set of followers
}

// NewInMemoryFollowStore creates a new in-memory follow store.
func NewInMemoryFollowStore() *InMemoryFollowStore {
	return &InMemoryFollowStore{
		followees: make(map[string]map[string]bool),
		followers: make(map[string]map[string]bool),
	}
}

// AddFollow records a follow edge. Self-edges are ignored.
func (s *InMemoryFollowStore) AddFollow(followerID, followeeID string) {
	if followerID == followeeID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.followees[followerID] == nil {
		s.followees[followerID] = make(map[string]bool)
	}
	s.followees[followerID][followeeID] = true

	if s.followers[followeeID] == nil {
		s.followers[followeeID] = make(map[string]bool)
	}
	s.followers[followeeID][followerID] = true
}

// Followees returns the IDs of accounts the user follows, sorted for
// deterministic iteration.
func (s *InMemoryFollowStore) Followees(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.followees[userID]), nil
}

// Followers returns the IDs of accounts following the user, sorted for
// deterministic iteration.
func (s *InMemoryFollowStore) Followers(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.followers[userID]), nil
}

// IsFollowing reports whether follower follows followee.
func (s *InMemoryFollowStore) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followees[followerID][followeeID], nil
}

// sortedKeys returns the keys of a set in lexicographic order.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InMemoryPostStore is an in-memory PostStore. Thread-safe via RWMutex.
type InMemoryPostStore struct {
	mu      sync.RWMutex
	posts   map[string]*Post
	follows FollowStore
}

// NewInMemoryPostStore creates a new in-memory post store.
func NewInMemoryPostStore() *InMemoryPostStore {
	return &InMemoryPostStore{
		posts: make(map[string]*Post),
	}
}

// UseFollowGraph wires the follow graph consulted for followers-only
// visibility. Without one, followers-only posts are visible to their author
// alone.
func (s *InMemoryPostStore) UseFollowGraph(follows FollowStore) {
	s.follows = follows
}

// Create inserts a new post, generating a UUID and creation timestamp when
// they are not provided.
func (s *InMemoryPostStore) Create(post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	if post.Visibility == "" {
		post.Visibility = VisibilityPublic
	}

	postCopy := *post
	s.posts[post.ID] = &postCopy
	return nil
}

// GetByID retrieves a post by ID.
func (s *InMemoryPostStore) GetByID(ctx context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}

	postCopy := *post
	return &postCopy, nil
}

// ListByAuthors returns posts by the given authors visible to the viewer.
func (s *InMemoryPostStore) ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, limit int) ([]*Post, error) {
	authorSet := make(map[string]bool, len(authorIDs))
	for _, id := range authorIDs {
		authorSet[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Post
	for _, post := range s.posts {
		if !authorSet[post.AuthorID] {
			continue
		}
		if post.HasLabel(LabelHidden) {
			continue
		}
		if !s.visibleTo(ctx, post, viewerID) {
			continue
		}
		candidates = append(candidates, post)
	}

	sortPostsByCreatedDesc(candidates)
	return copyPosts(capPosts(candidates, limit)), nil
}

// ListRecentPublic returns public posts excluding the given authors.
func (s *InMemoryPostStore) ListRecentPublic(ctx context.Context, excludeAuthors []string, limit int) ([]*Post, error) {
	excluded := make(map[string]bool, len(excludeAuthors))
	for _, id := range excludeAuthors {
		excluded[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Post
	for _, post := range s.posts {
		if post.Visibility != VisibilityPublic {
			continue
		}
		if post.HasLabel(LabelHidden) {
			continue
		}
		if excluded[post.AuthorID] {
			continue
		}
		candidates = append(candidates, post)
	}

	sortPostsByCreatedDesc(candidates)
	return copyPosts(capPosts(candidates, limit)), nil
}

// visibleTo applies the per-post visibility rule: public posts are visible
// to anyone, followers posts to the author and to viewers who follow the
// author, private posts only to their author. The author set alone never
// grants followers visibility; a follower of the viewer lands in that set
// without the viewer following back.
func (s *InMemoryPostStore) visibleTo(ctx context.Context, post *Post, viewerID string) bool {
	switch post.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityFollowers:
		if viewerID == AnonymousViewer {
			return false
		}
		if post.AuthorID == viewerID {
			return true
		}
		if s.follows == nil {
			return false
		}
		following, err := s.follows.IsFollowing(ctx, viewerID, post.AuthorID)
		return err == nil && following
	default:
		return post.AuthorID == viewerID && viewerID != AnonymousViewer
	}
}

// capPosts truncates a sorted slice to the limit.
func capPosts(posts []*Post, limit int) []*Post {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}

// copyPosts returns deep copies to prevent external mutation.
func copyPosts(posts []*Post) []*Post {
	copies := make([]*Post, len(posts))
	for i, p := range posts {
		postCopy := *p
		copies[i] = &postCopy
	}
	return copies
}

// sortPostsByCreatedDesc sorts posts by created_at DESC, then by ID ASC for
// tie-breaking, giving stable ordering across calls.
func sortPostsByCreatedDesc(posts []*Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.After(posts[j].CreatedAt) {
			return true
		}
		if posts[i].CreatedAt.Before(posts[j].CreatedAt) {
			return false
		}
		return posts[i].ID < posts[j].ID
	})
}

// InMemoryInteractionStore is an in-memory InteractionStore.
// Thread-safe via RWMutex.
type InMemoryInteractionStore struct {
	mu     sync.RWMutex
	events []*InteractionEvent
}

// NewInMemoryInteractionStore creates a new in-memory interaction store.
func NewInMemoryInteractionStore() *InMemoryInteractionStore {
	return &InMemoryInteractionStore{}
}

// Add records an interaction event, generating a UUID and timestamp when
// they are not provided.
func (s *InMemoryInteractionStore) Add(event *InteractionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	eventCopy := *event
	s.events = append(s.events, &eventCopy)
}

// CountsForPost returns reaction/comment/view counts for a post since the
// given time.
func (s *InMemoryInteractionStore) CountsForPost(ctx context.Context, postID string, since time.Time) (PostCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts PostCounts
	for _, e := range s.events {
		if e.PostID != postID || e.CreatedAt.Before(since) {
			continue
		}
		switch e.Kind {
		case InteractionReaction:
			counts.Reactions++
		case InteractionComment:
			counts.Comments++
		case InteractionView:
			counts.Views++
		}
	}
	return counts, nil
}

// CountsByUserForAuthor returns the user's reaction/comment counts on the
// author's posts since the given time.
func (s *InMemoryInteractionStore) CountsByUserForAuthor(ctx context.Context, userID, authorID string, since time.Time) (AuthorCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts AuthorCounts
	for _, e := range s.events {
		if e.UserID != userID || e.AuthorID != authorID || e.CreatedAt.Before(since) {
			continue
		}
		switch e.Kind {
		case InteractionReaction:
			counts.Reactions++
		case InteractionComment:
			counts.Comments++
		}
	}
	return counts, nil
}

// ListByUser returns the user's interaction events since the given time.
func (s *InMemoryInteractionStore) ListByUser(ctx context.Context, userID string, since time.Time) ([]*InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*InteractionEvent
	for _, e := range s.events {
		if e.UserID != userID || e.CreatedAt.Before(since) {
			continue
		}
		eventCopy := *e
		events = append(events, &eventCopy)
	}
	return events, nil
}

// InMemoryNegativeSignalStore is an in-memory NegativeSignalStore.
// Thread-safe via RWMutex.
type InMemoryNegativeSignalStore struct {
	mu        sync.RWMutex
	signals   map[string]map[string][]NegativeSignalKind // userID -> postID -> kinds
	reporters map[string]map[string]bool                 // postID -> distinct reporting users
}

// NewInMemoryNegativeSignalStore creates a new in-memory negative signal store.
func NewInMemoryNegativeSignalStore() *InMemoryNegativeSignalStore {
	return &InMemoryNegativeSignalStore{
		signals:   make(map[string]map[string][]NegativeSignalKind),
		reporters: make(map[string]map[string]bool),
	}
}

// Add records a negative signal.
func (s *InMemoryNegativeSignalStore) Add(signal NegativeSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signals[signal.UserID] == nil {
		s.signals[signal.UserID] = make(map[string][]NegativeSignalKind)
	}
	s.signals[signal.UserID][signal.PostID] = append(s.signals[signal.UserID][signal.PostID], signal.Kind)

	if signal.Kind == NegativeReported {
		if s.reporters[signal.PostID] == nil {
			s.reporters[signal.PostID] = make(map[string]bool)
		}
		s.reporters[signal.PostID][signal.UserID] = true
	}
}

// HasSignal reports whether the user recorded any negative signal on the post.
func (s *InMemoryNegativeSignalStore) HasSignal(ctx context.Context, userID, postID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals[userID][postID]) > 0, nil
}

// ReportCount returns the number of distinct users who reported the post.
func (s *InMemoryNegativeSignalStore) ReportCount(ctx context.Context, postID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.reporters[postID])), nil
}
