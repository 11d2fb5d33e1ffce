package feed

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres spins up a disposable Postgres container with the feed
// schema applied and returns an open pool.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("driftline_test"),
		tcpostgres.WithUsername("driftline"),
		tcpostgres.WithPassword("driftline"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_init_feed_schema.up.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.ExecContext(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	return pool
}

func insertPost(t *testing.T, pool *sql.DB, id, authorID, text string, visibility Visibility, labels []string, createdAt time.Time) {
	t.Helper()
	if labels == nil {
		labels = []string{}
	}
	_, err := pool.Exec(
		`INSERT INTO posts (id, author_id, text, media_ref, visibility, labels, created_at)
		 VALUES ($1, $2, $3, '', $4, $5, $6)`,
		id, authorID, text, visibility, pq.Array(labels), createdAt)
	if err != nil {
		t.Fatalf("insert post %s: %v", id, err)
	}
}

func TestPostgresStores_FeedRoundTrip(t *testing.T) {
	pool := startPostgres(t)
	stores := NewPostgresStores(pool)
	ctx := context.Background()

	alice := uuid.New().String()
	bob := uuid.New().String()
	carol := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Follow graph: alice <-> bob mutual, alice -> carol one-way.
	for _, edge := range [][2]string{{alice, bob}, {bob, alice}, {alice, carol}} {
		if _, err := pool.Exec(
			"INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)", edge[0], edge[1]); err != nil {
			t.Fatalf("insert follow: %v", err)
		}
	}

	bobPublic := uuid.New().String()
	bobFollowers := uuid.New().String()
	carolPrivate := uuid.New().String()
	strangerPost := uuid.New().String()
	stranger := uuid.New().String()

	strangerLocked := uuid.New().String()

	insertPost(t, pool, bobPublic, bob, "morning #coffee", VisibilityPublic, nil, now)
	insertPost(t, pool, bobFollowers, bob, "followers only", VisibilityFollowers, nil, now.Add(-time.Minute))
	insertPost(t, pool, carolPrivate, carol, "private note", VisibilityPrivate, nil, now)
	insertPost(t, pool, strangerPost, stranger, "hello world", VisibilityPublic, nil, now.Add(-2*time.Minute))
	insertPost(t, pool, strangerLocked, stranger, "for my followers", VisibilityFollowers, nil, now.Add(-3*time.Minute))

	t.Run("follow graph reads", func(t *testing.T) {
		followees, err := stores.Follows.Followees(ctx, alice)
		if err != nil {
			t.Fatalf("Followees() error = %v", err)
		}
		if len(followees) != 2 {
			t.Errorf("Followees() = %v, want bob and carol", followees)
		}

		mutual, err := stores.Follows.IsFollowing(ctx, bob, alice)
		if err != nil {
			t.Fatalf("IsFollowing() error = %v", err)
		}
		if !mutual {
			t.Error("IsFollowing(bob, alice) = false, want true")
		}
	})

	t.Run("author set respects visibility", func(t *testing.T) {
		posts, err := stores.Posts.ListByAuthors(ctx, []string{bob, carol, stranger}, alice, 50)
		if err != nil {
			t.Fatalf("ListByAuthors() error = %v", err)
		}

		ids := map[string]bool{}
		for _, p := range posts {
			ids[p.ID] = true
		}
		if !ids[bobPublic] || !ids[bobFollowers] {
			t.Errorf("bob's posts missing from %v", ids)
		}
		if ids[carolPrivate] {
			t.Error("carol's private post leaked to alice")
		}
		if ids[strangerLocked] {
			t.Error("followers-only post visible without a follow edge")
		}
	})

	t.Run("recent public excludes authors", func(t *testing.T) {
		posts, err := stores.Posts.ListRecentPublic(ctx, []string{bob}, 50)
		if err != nil {
			t.Fatalf("ListRecentPublic() error = %v", err)
		}
		if len(posts) != 1 || posts[0].ID != strangerPost {
			t.Errorf("ListRecentPublic(exclude bob) = %v, want just the stranger's post", posts)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		post, err := stores.Posts.GetByID(ctx, bobPublic)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if post.Text != "morning #coffee" {
			t.Errorf("Text = %q", post.Text)
		}

		if _, err := stores.Posts.GetByID(ctx, uuid.New().String()); err != ErrPostNotFound {
			t.Errorf("GetByID(missing) error = %v, want ErrPostNotFound", err)
		}
	})

	t.Run("windowed interaction counts", func(t *testing.T) {
		events := []struct {
			kind InteractionKind
			at   time.Time
		}{
			{InteractionReaction, now},
			{InteractionComment, now},
			{InteractionView, now},
			{InteractionReaction, now.Add(-10 * 24 * time.Hour)}, // outside window
		}
		for _, ev := range events {
			if _, err := pool.Exec(
				`INSERT INTO interactions (id, user_id, post_id, author_id, kind, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New().String(), alice, bobPublic, bob, ev.kind, ev.at); err != nil {
				t.Fatalf("insert interaction: %v", err)
			}
		}

		counts, err := stores.Interactions.CountsForPost(ctx, bobPublic, now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("CountsForPost() error = %v", err)
		}
		want := PostCounts{Reactions: 1, Comments: 1, Views: 1}
		if counts != want {
			t.Errorf("CountsForPost() = %+v, want %+v", counts, want)
		}

		authorCounts, err := stores.Interactions.CountsByUserForAuthor(ctx, alice, bob, now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("CountsByUserForAuthor() error = %v", err)
		}
		if authorCounts.Reactions != 1 || authorCounts.Comments != 1 {
			t.Errorf("CountsByUserForAuthor() = %+v", authorCounts)
		}

		userEvents, err := stores.Interactions.ListByUser(ctx, alice, now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(userEvents) != 3 {
			t.Errorf("ListByUser() = %d events, want 3 in window", len(userEvents))
		}
	})

	t.Run("negative signals", func(t *testing.T) {
		if _, err := pool.Exec(
			"INSERT INTO negative_signals (user_id, post_id, kind) VALUES ($1, $2, 'hidden')",
			alice, strangerPost); err != nil {
			t.Fatalf("insert negative signal: %v", err)
		}
		for i := 0; i < 5; i++ {
			if _, err := pool.Exec(
				"INSERT INTO negative_signals (user_id, post_id, kind) VALUES ($1, $2, 'reported')",
				uuid.New().String(), bobPublic); err != nil {
				t.Fatalf("insert report: %v", err)
			}
		}

		flagged, err := stores.Negatives.HasSignal(ctx, alice, strangerPost)
		if err != nil {
			t.Fatalf("HasSignal() error = %v", err)
		}
		if !flagged {
			t.Error("HasSignal() = false, want true")
		}

		reports, err := stores.Negatives.ReportCount(ctx, bobPublic)
		if err != nil {
			t.Fatalf("ReportCount() error = %v", err)
		}
		if reports != 5 {
			t.Errorf("ReportCount() = %d, want 5", reports)
		}
	})
}

func TestPostgresStores_EndToEndRanking(t *testing.T) {
	pool := startPostgres(t)
	stores := NewPostgresStores(pool)
	ctx := context.Background()

	viewer := uuid.New().String()
	friend := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if _, err := pool.Exec(
		"INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2), ($2, $1)", viewer, friend); err != nil {
		t.Fatalf("insert follows: %v", err)
	}
	for i := 0; i < 10; i++ {
		insertPost(t, pool, uuid.New().String(), friend, "post from a friend", VisibilityPublic, nil, now.Add(-time.Duration(i)*time.Hour))
	}

	e := NewEngine(stores.Posts, stores.Follows, stores.Interactions, stores.Negatives, nil, nil, Params{}, nil, discardLogger())

	page, err := e.RankHomeFeed(ctx, viewer, 1, 5)
	if err != nil {
		t.Fatalf("RankHomeFeed() error = %v", err)
	}
	if len(page.Posts) != 5 {
		t.Fatalf("RankHomeFeed() = %d posts, want 5", len(page.Posts))
	}
	for i := 1; i < len(page.Posts); i++ {
		if page.Posts[i].Score > page.Posts[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}
