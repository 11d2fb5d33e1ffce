// Package feed implements the feed ranking and candidate generation engine:
// candidate selection per surface, per-post signal scoring, weighted
// aggregation, diversity enforcement, and deterministic pagination.
package feed

import (
	"slices"
	"time"

	"github.com/driftline/driftline/internal/ranking"
)

// Visibility controls who may see a post.
type Visibility string

const (
	// VisibilityPublic posts are visible to everyone, including anonymous viewers.
	VisibilityPublic Visibility = "public"
	// VisibilityFollowers posts are visible to the author's followers.
	VisibilityFollowers Visibility = "followers"
	// VisibilityPrivate posts are visible only to the author.
	VisibilityPrivate Visibility = "private"
)

// Moderation label constants. Labels control feed-level exclusion before any
// viewer-specific scoring happens.
const (
	// LabelHidden marks content that is excluded from all feeds and search.
	LabelHidden = "hidden"
	// LabelSpam marks content identified as spam, excluded from search.
	LabelSpam = "spam"
	// LabelFlagged marks content flagged for review, excluded from search.
	LabelFlagged = "flagged"
)

// AnonymousViewer is the sentinel viewer ID for unauthenticated requests.
// An anonymous viewer has no follow graph, no interest profile, and no
// negative signals; explore serves them the unfiltered public stream.
const AnonymousViewer = ""

// Post is a short social post as read from the storage collaborator.
// Posts are immutable once scored within a ranking call.
type Post struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"author_id"`
	Text       string     `json:"text,omitempty"`
	MediaRef   string     `json:"media_ref,omitempty"`
	Visibility Visibility `json:"visibility"`
	Labels     []string   `json:"labels,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasLabel reports whether the post carries the given moderation label.
func (p *Post) HasLabel(label string) bool {
	return slices.Contains(p.Labels, label)
}

// FollowEdge is a directed (follower, followee) pair in the social graph.
// Self-edges are never stored.
type FollowEdge struct {
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
}

// InteractionKind classifies an interaction event.
type InteractionKind string

const (
	// InteractionReaction is a like/reaction on a post.
	InteractionReaction InteractionKind = "reaction"
	// InteractionComment is a comment on a post.
	InteractionComment InteractionKind = "comment"
	// InteractionView is a passive view of a post.
	InteractionView InteractionKind = "view"
)

// InteractionEvent records one user interaction with a post. Events are
// read-only inputs to scoring, windowed by recency.
type InteractionEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	PostID    string          `json:"post_id"`
	AuthorID  string          `json:"author_id"`
	Kind      InteractionKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// NegativeSignalKind classifies explicit negative feedback.
type NegativeSignalKind string

const (
	// NegativeHidden means the viewer hid the post.
	NegativeHidden NegativeSignalKind = "hidden"
	// NegativeReported means the viewer reported the post.
	NegativeReported NegativeSignalKind = "reported"
	// NegativeNotInterested means the viewer marked the post not-interested.
	NegativeNotInterested NegativeSignalKind = "not_interested"
)

// NegativeSignal is a (user, post) suppression relation. Presence of any
// kind forces suppression for that viewer.
type NegativeSignal struct {
	UserID    string             `json:"user_id"`
	PostID    string             `json:"post_id"`
	Kind      NegativeSignalKind `json:"kind"`
	CreatedAt time.Time          `json:"created_at"`
}

// InterestProfile maps lower-cased hashtag strings to non-negative affinity
// weights accumulated from the viewer's recent interactions. Built fresh per
// ranking call; an external cache may memoize it.
type InterestProfile map[string]float64

// RankedPost is a transient scored candidate: the post plus its five raw
// signals, the aggregate score, and enrichment counts. It exists only for
// the duration of a ranking call and is never persisted.
type RankedPost struct {
	Post          *Post                `json:"post"`
	Signals       ranking.SignalValues `json:"signals"`
	Score         float64              `json:"score"`
	ReactionCount int64                `json:"reaction_count"`
	CommentCount  int64                `json:"comment_count"`

	// position is the candidate's index in the generator output, used as the
	// deterministic tie-breaker so concurrent signal arrival order can never
	// influence the final ordering.
	position int
}

// FeedPage is the paginated result of a home or explore ranking call.
type FeedPage struct {
	Posts []*RankedPost `json:"posts"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}
