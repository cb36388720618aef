package pubstatic

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no published post has the requested slug.
	ErrNotFound = errors.New("pubstatic: post not found")
	// ErrStoreUnavailable wraps every failure to read from the content store.
	ErrStoreUnavailable = errors.New("pubstatic: content store unavailable")
)

// ContentStore is the read contract the publisher needs from the hosted
// content database.
type ContentStore interface {
	// ListPublished returns addressable posts, newest publish time first.
	// A limit <= 0 returns all of them.
	ListPublished(ctx context.Context, limit int) ([]Post, error)
	// GetPublished returns the published post with slug, or ErrNotFound.
	GetPublished(ctx context.Context, slug string) (Post, error)
	// ListRecent returns up to limit addressable posts other than excludeID,
	// newest publish time first.
	ListRecent(ctx context.Context, limit int, excludeID string) ([]Post, error)
}

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	// Fixed width keeps lexical order equal to time order in SQLite TEXT columns.
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var postColumns = []string{
	"id", "title", "content", "summary", "img_url", "status",
	"keyword", "slug", "created_at", "updated_at", "published_at",
}

// Store is a ContentStore over database/sql. PostgreSQL is the hosted
// backend; SQLite serves local development and tests.
type Store struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	table  string
	driver string
}

var _ ContentStore = (*Store)(nil)

// NewStore opens the database described by cfg. For SQLite it creates the
// data directory and the schema; for PostgreSQL the schema is only created
// when cfg.CreateSchema is set, since the table normally belongs to the
// authoring system.
func NewStore(cfg DatabaseConfig) (*Store, error) {
	s := &Store{table: cfg.Table, driver: cfg.Driver}
	switch cfg.Driver {
	case driverSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, err
		}
		if _, err := db.Exec(`
			PRAGMA journal_mode=WAL;
			PRAGMA busy_timeout=5000;
			PRAGMA synchronous=NORMAL;
		`); err != nil {
			db.Close()
			return nil, err
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		s.db = db
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		if err := s.ensureSchema(sqliteSchema); err != nil {
			db.Close()
			return nil, err
		}
	case driverPostgres:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		s.db = db
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		if cfg.CreateSchema {
			if err := s.ensureSchema(postgresSchema); err != nil {
				db.Close()
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("pubstatic: unsupported database driver %q", cfg.Driver)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity within ctx.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT,
    summary TEXT,
    img_url TEXT,
    status TEXT NOT NULL DEFAULT 'draft',
    keyword TEXT,
    slug TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    published_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_published_slug
    ON %[1]s (slug) WHERE status = 'published' AND slug IS NOT NULL;
CREATE INDEX IF NOT EXISTS %[1]s_published_at ON %[1]s (status, published_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT,
    summary TEXT,
    img_url TEXT,
    status TEXT NOT NULL DEFAULT 'draft',
    keyword TEXT,
    slug TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    published_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_published_slug
    ON %[1]s (slug) WHERE status = 'published' AND slug IS NOT NULL;
CREATE INDEX IF NOT EXISTS %[1]s_published_at ON %[1]s (status, published_at);
`

func (s *Store) ensureSchema(ddl string) error {
	_, err := s.db.Exec(fmt.Sprintf(ddl, s.table))
	return err
}

func (s *Store) published() sq.SelectBuilder {
	return s.sb.Select(postColumns...).
		From(s.table).
		Where(sq.Eq{"status": string(StatusPublished)})
}

// ListPublished returns addressable posts ordered by publish time descending.
func (s *Store) ListPublished(ctx context.Context, limit int) ([]Post, error) {
	q := s.published().
		Where(sq.NotEq{"slug": nil}).
		OrderBy("published_at DESC", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryPosts(ctx, q)
}

// GetPublished returns a single published post by slug.
func (s *Store) GetPublished(ctx context.Context, slug string) (Post, error) {
	query, args, err := s.published().Where(sq.Eq{"slug": slug}).Limit(1).ToSql()
	if err != nil {
		return Post{}, err
	}
	p, err := scanPost(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("%w: get %q: %v", ErrStoreUnavailable, slug, err)
	}
	return p, nil
}

// ListRecent returns the newest published posts excluding excludeID.
func (s *Store) ListRecent(ctx context.Context, limit int, excludeID string) ([]Post, error) {
	q := s.published().
		Where(sq.NotEq{"slug": nil}).
		Where(sq.NotEq{"id": excludeID}).
		OrderBy("published_at DESC", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return s.queryPosts(ctx, q)
}

func (s *Store) queryPosts(ctx context.Context, q sq.SelectBuilder) ([]Post, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var p Post
	var status string
	var content, summary, img, kw, slug sql.NullString
	var createdAt, updatedAt, publishedAt nullTime
	err := row.Scan(&p.ID, &p.Title, &content, &summary, &img, &status,
		&kw, &slug, &createdAt, &updatedAt, &publishedAt)
	if err != nil {
		return Post{}, err
	}
	p.Status = Status(status)
	p.Content = content.String
	p.Summary = summary.String
	p.ImageURL = img.String
	p.Keyword = kw.String
	p.Slug = slug.String
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	p.PublishedAt = publishedAt.Time
	return p, nil
}

// SavePost upserts a post. It stands in for the authoring system in local
// development and tests. A missing id is generated; published_at is set on
// the first save as published and kept on later edits, and cleared when the
// post goes back to draft.
func (s *Store) SavePost(ctx context.Context, p Post) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.Status != StatusPublished {
		p.PublishedAt = time.Time{}
	} else if p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}

	query, args, err := s.sb.Insert(s.table).
		Columns(postColumns...).
		Values(p.ID, p.Title, nullString(p.Content), nullString(p.Summary),
			nullString(p.ImageURL), string(p.Status), nullString(p.Keyword),
			nullString(p.Slug), s.timeArg(p.CreatedAt), s.timeArg(p.UpdatedAt),
			s.timeArg(p.PublishedAt)).
		Suffix(fmt.Sprintf(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			img_url = excluded.img_url,
			status = excluded.status,
			keyword = excluded.keyword,
			slug = excluded.slug,
			updated_at = excluded.updated_at,
			published_at = CASE WHEN excluded.status = 'published'
				THEN COALESCE(%[1]s.published_at, excluded.published_at)
				ELSE NULL END`, s.table)).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", err
	}
	return p.ID, nil
}

// DeletePost removes a post by id.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete(s.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	if s.driver == driverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// nullTime scans timestamps from either driver: lib/pq yields time.Time,
// SQLite TEXT columns yield strings.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (n *nullTime) Scan(v any) error {
	switch t := v.(type) {
	case nil:
		*n = nullTime{}
		return nil
	case time.Time:
		n.Time, n.Valid = t, true
		return nil
	case string:
		return n.parse(t)
	case []byte:
		return n.parse(string(t))
	}
	return fmt.Errorf("cannot scan %T into a timestamp", v)
}

func (n *nullTime) parse(s string) error {
	if s == "" {
		*n = nullTime{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
