package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/driftline/driftline/internal/tracing"
)

// PostgresStores bundles the Postgres-backed implementations of the feed
// storage interfaces over one connection pool.
type PostgresStores struct {
	Posts        *PostgresPostStore
	Follows      *PostgresFollowStore
	Interactions *PostgresInteractionStore
	Negatives    *PostgresNegativeSignalStore
}

// NewPostgresStores creates all four stores over the given pool.
func NewPostgresStores(db *sql.DB) *PostgresStores {
	return &PostgresStores{
		Posts:        &PostgresPostStore{db: db},
		Follows:      &PostgresFollowStore{db: db},
		Interactions: &PostgresInteractionStore{db: db},
		Negatives:    &PostgresNegativeSignalStore{db: db},
	}
}

// PostgresPostStore implements PostStore backed by the posts table.
type PostgresPostStore struct {
	db *sql.DB
}

const postColumns = "id, author_id, text, media_ref, visibility, labels, created_at"

// scanPost scans one posts row.
func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	var labels pq.StringArray
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Text, &p.MediaRef, &p.Visibility, &labels, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Labels = []string(labels)
	return &p, nil
}

// GetByID returns one post by ID, or ErrPostNotFound. Soft-deleted posts
// are treated as absent.
func (s *PostgresPostStore) GetByID(ctx context.Context, id string) (*Post, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)

	query := fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE id = $1 AND deleted_at IS NULL`, postColumns)

	post, err := scanPost(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		endSpan(nil)
		return nil, ErrPostNotFound
	}
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ListByAuthors returns posts by the given authors visible to the viewer,
// newest first. Visibility is enforced in the query: public posts always,
// followers posts when the viewer follows the author, and private posts
// only for the viewer's own rows.
func (s *PostgresPostStore) ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, limit int) ([]*Post, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)

	query := fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE author_id = ANY($1)
		  AND deleted_at IS NULL
		  AND (
			visibility = 'public'
			OR author_id = $2
			OR (visibility = 'followers' AND EXISTS (
				SELECT 1 FROM follows
				WHERE follower_id = $2 AND followee_id = posts.author_id))
		  )
		ORDER BY created_at DESC, id ASC
		LIMIT $3`, postColumns)

	rows, err := s.db.QueryContext(ctx, query, pq.Array(authorIDs), viewerID, limit)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("list posts by authors: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListRecentPublic returns the most recent public posts, newest first,
// excluding the given authors.
func (s *PostgresPostStore) ListRecentPublic(ctx context.Context, excludeAuthors []string, limit int) ([]*Post, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)

	if excludeAuthors == nil {
		excludeAuthors = []string{}
	}

	query := fmt.Sprintf(`
		SELECT %s FROM posts
		WHERE visibility = 'public'
		  AND deleted_at IS NULL
		  AND NOT (author_id = ANY($1))
		ORDER BY created_at DESC, id ASC
		LIMIT $2`, postColumns)

	rows, err := s.db.QueryContext(ctx, query, pq.Array(excludeAuthors), limit)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("list recent public posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// collectPosts drains rows into a post slice.
func collectPosts(rows *sql.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// PostgresFollowStore implements FollowStore backed by the follows table.
type PostgresFollowStore struct {
	db *sql.DB
}

// Followees returns the IDs the user follows.
func (s *PostgresFollowStore) Followees(ctx context.Context, userID string) ([]string, error) {
	return s.edgeColumn(ctx, "SELECT followee_id FROM follows WHERE follower_id = $1", userID)
}

// Followers returns the IDs following the user.
func (s *PostgresFollowStore) Followers(ctx context.Context, userID string) ([]string, error) {
	return s.edgeColumn(ctx, "SELECT follower_id FROM follows WHERE followee_id = $1", userID)
}

func (s *PostgresFollowStore) edgeColumn(ctx context.Context, query, userID string) ([]string, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)

	rows, err := s.db.QueryContext(ctx, query, userID)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("list follow edges: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow edge: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow edges: %w", err)
	}
	return ids, nil
}

// IsFollowing reports whether follower follows followee.
func (s *PostgresFollowStore) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)",
		followerID, followeeID).Scan(&exists)
	endSpan(err)
	if err != nil {
		return false, fmt.Errorf("check follow edge: %w", err)
	}
	return exists, nil
}

// PostgresInteractionStore implements InteractionStore backed by the
// interactions table.
type PostgresInteractionStore struct {
	db *sql.DB
}

// CountsForPost returns per-kind interaction counts for a post since the
// given time.
func (s *PostgresInteractionStore) CountsForPost(ctx context.Context, postID string, since time.Time) (PostCounts, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationQuery)

	var counts PostCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'reaction'),
			COUNT(*) FILTER (WHERE kind = 'comment'),
			COUNT(*) FILTER (WHERE kind = 'view')
		FROM interactions
		WHERE post_id = $1 AND created_at >= $2`,
		postID, since).Scan(&counts.Reactions, &counts.Comments, &counts.Views)
	endSpan(err)
	if err != nil {
		return PostCounts{}, fmt.Errorf("count post interactions: %w", err)
	}
	return counts, nil
}

// CountsByUserForAuthor returns how often the user reacted to and commented
// on the author's posts since the given time.
func (s *PostgresInteractionStore) CountsByUserForAuthor(ctx context.Context, userID, authorID string, since time.Time) (AuthorCounts, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationQuery)

	var counts AuthorCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'reaction'),
			COUNT(*) FILTER (WHERE kind = 'comment')
		FROM interactions
		WHERE user_id = $1 AND author_id = $2 AND created_at >= $3`,
		userID, authorID, since).Scan(&counts.Reactions, &counts.Comments)
	endSpan(err)
	if err != nil {
		return AuthorCounts{}, fmt.Errorf("count author interactions: %w", err)
	}
	return counts, nil
}

// ListByUser returns the user's interaction events since the given time,
// newest first.
func (s *PostgresInteractionStore) ListByUser(ctx context.Context, userID string, since time.Time) ([]*InteractionEvent, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "interactions", tracing.DBOperationQuery)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, post_id, author_id, kind, created_at
		FROM interactions
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id ASC`,
		userID, since)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var events []*InteractionEvent
	for rows.Next() {
		var ev InteractionEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.PostID, &ev.AuthorID, &ev.Kind, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return events, nil
}

// PostgresNegativeSignalStore implements NegativeSignalStore backed by the
// negative_signals table.
type PostgresNegativeSignalStore struct {
	db *sql.DB
}

// HasSignal reports whether the user has recorded any negative signal
// against the post.
func (s *PostgresNegativeSignalStore) HasSignal(ctx context.Context, userID, postID string) (bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "negative_signals", tracing.DBOperationQuery)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM negative_signals WHERE user_id = $1 AND post_id = $2)",
		userID, postID).Scan(&exists)
	endSpan(err)
	if err != nil {
		return false, fmt.Errorf("check negative signal: %w", err)
	}
	return exists, nil
}

// ReportCount returns how many distinct users reported the post.
func (s *PostgresNegativeSignalStore) ReportCount(ctx context.Context, postID string) (int64, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "negative_signals", tracing.DBOperationQuery)

	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT user_id) FROM negative_signals WHERE post_id = $1 AND kind = 'reported'",
		postID).Scan(&count)
	endSpan(err)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return count, nil
}
