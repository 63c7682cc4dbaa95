// Package store keeps user accounts and per-user query history in SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite"
)

// Dialect selects placeholder and DDL syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Limits on stored text.
const (
	MaxUsernameLen     = 100
	MaxQueryLen        = 500
	DefaultRecentLimit = 20
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyCredentials   = errors.New("username and password are required")
	ErrUsernameTooLong    = fmt.Errorf("username longer than %d characters", MaxUsernameLen)
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// QueryHistoryEntry is one saved search.
type QueryHistoryEntry struct {
	ID        int64
	UserID    int64
	QueryText string
	CreatedAt time.Time
}

// Store wraps a database handle.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	hashCost int
	now      func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to databaseURL and applies migrations. postgres:// and
// postgresql:// URLs use PostgreSQL; sqlite://path, file: DSNs and bare
// paths use SQLite.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	driver, dsn, dialect, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialect == SQLite {
		// One connection keeps :memory: databases and pragmas consistent.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := New(db, dialect, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open handle without touching the schema.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, hashCost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func parseURL(raw string) (driver, dsn string, dialect Dialect, err error) {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return "", "", 0, errors.New("empty database url")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return "postgres", u, Postgres, nil
	case strings.HasPrefix(u, "sqlite://"):
		return "sqlite", sqlitePath(strings.TrimPrefix(u, "sqlite://")), SQLite, nil
	case strings.HasPrefix(u, "sqlite:"):
		return "sqlite", strings.TrimPrefix(u, "sqlite:"), SQLite, nil
	case strings.Contains(u, "://"):
		return "", "", 0, fmt.Errorf("unsupported database url scheme in %q", u)
	default:
		return "sqlite", u, SQLite, nil
	}
}

// sqlitePath follows SQLAlchemy URLs: sqlite:///app.db is the relative
// file app.db, sqlite:////abs/app.db is absolute and an empty path is an
// in-memory database.
func sqlitePath(rest string) string {
	if strings.HasPrefix(rest, "/") {
		rest = rest[1:]
	}
	if rest == "" {
		return ":memory:"
	}
	return rest
}

func (s *Store) schema() []string {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
		id ` + idCol + `,
		username VARCHAR(100) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS query_history (
		id ` + idCol + `,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		query_text VARCHAR(500) NOT NULL,
		created_at TEXT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_query_history_user ON query_history(user_id, id)`,
	}
	if s.dialect == SQLite {
		stmts = append([]string{`PRAGMA foreign_keys = ON`}, stmts...)
	}
	return stmts
}

// Migrate creates the schema when missing. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $N for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// AddUser registers a new account with a bcrypt-hashed password.
func (s *Store) AddUser(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrEmptyCredentials
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return User{}, ErrUsernameTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{Username: username, PasswordHash: string(hash), CreatedAt: s.now().UTC()}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM users WHERE username = ?`), username).Scan(&existing)
		switch {
		case err == nil:
			return ErrUserExists
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup user: %w", err)
		}
		err = tx.QueryRowContext(ctx,
			s.rebind(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`),
			user.Username, user.PasswordHash, formatTime(user.CreatedAt),
		).Scan(&user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrUserExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UserByUsername looks an account up by its trimmed name.
func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`),
		strings.TrimSpace(username),
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// Authenticate returns the user when the password matches. Unknown users
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.UserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// SaveQuery records a search for userID. Blank queries are ignored and long
// ones are cut to MaxQueryLen characters.
func (s *Store) SaveQuery(ctx context.Context, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > MaxQueryLen {
		text = string([]rune(text)[:MaxQueryLen])
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO query_history (user_id, query_text, created_at) VALUES (?, ?, ?)`),
			userID, text, formatTime(s.now().UTC()),
		)
		if err != nil {
			return fmt.Errorf("insert query: %w", err)
		}
		return nil
	})
}

// RecentQueries returns the newest entries first. limit <= 0 means DefaultRecentLimit.
func (s *Store) RecentQueries(ctx context.Context, userID int64, limit int) ([]QueryHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, user_id, query_text, created_at FROM query_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []QueryHistoryEntry{}
	for rows.Next() {
		var (
			e       QueryHistoryEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.QueryText, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
