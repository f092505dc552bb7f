package repository

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/bookversions/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens (and initializes) a SQLite document store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		ref TEXT PRIMARY KEY,
		space TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		syntax TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		hidden INTEGER NOT NULL DEFAULT 0,
		objects BLOB,
		attachments BLOB,
		classes TEXT NOT NULL DEFAULT '|',
		fingerprint TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_space ON documents(space);
	CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);
	CREATE TABLE IF NOT EXISTS revisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		time INTEGER NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_revisions_ref ON revisions(ref);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the document at ref.
func (s *SQLiteStore) Get(ctx context.Context, ref model.DocumentRef) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT title, syntax, content, hidden, objects, attachments, fingerprint, author, updated
		 FROM documents WHERE ref = ?`, ref.String())

	doc := model.NewDocument(ref)
	var (
		hidden              int
		objects, attachment []byte
		updated             int64
	)
	err := row.Scan(&doc.Title, &doc.Syntax, &doc.Content, &hidden, &objects, &attachment, &doc.Fingerprint, &doc.Author, &updated)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	doc.Hidden = hidden != 0
	doc.Updated = time.UnixMilli(updated).UTC()
	if len(objects) > 0 {
		if err := json.Unmarshal(objects, &doc.Objects); err != nil {
			return nil, fmt.Errorf("unmarshal objects: %w", err)
		}
	}
	if len(attachment) > 0 {
		if err := json.Unmarshal(attachment, &doc.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return doc.Clone(), nil
}

// Exists checks whether a document is stored at ref.
func (s *SQLiteStore) Exists(ctx context.Context, ref model.DocumentRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE ref = ?", ref.String()).Scan(&n); err != nil {
		return false, fmt.Errorf("query document: %w", err)
	}
	return n > 0, nil
}

// Save creates or replaces doc in a single transaction together with its revision entry.
func (s *SQLiteStore) Save(ctx context.Context, doc *model.Document, comment string) error {
	if err := validateRef(doc.Ref); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	author := doc.Author
	if a := AuthorFrom(ctx); a != "" {
		author = a
	}
	now := s.now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertDocument(ctx, tx, doc, author, now); err != nil {
			return err
		}
		return insertRevision(ctx, tx, doc.Ref.String(), Revision{Author: author, Comment: comment, Time: now})
	})
}

// Delete removes the document at ref.
func (s *SQLiteStore) Delete(ctx context.Context, ref model.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE ref = ?", ref.String())
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return insertRevision(ctx, tx, ref.String(), Revision{Author: AuthorFrom(ctx), Time: s.now().UTC(), Deleted: true})
	})
}

// Rename moves a document and its revision history.
func (s *SQLiteStore) Rename(ctx context.Context, from, to model.DocumentRef) error {
	if err := validateRef(to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, dst := from.String(), to.String()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE ref = ?", dst).Scan(&n); err != nil {
			return fmt.Errorf("query document: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, to)
		}
		now := s.now().UTC()
		res, err := tx.ExecContext(ctx,
			"UPDATE documents SET ref = ?, space = ?, name = ?, updated = ? WHERE ref = ?",
			dst, to.Space.String(), to.Name, now.UnixMilli(), src)
		if err != nil {
			return fmt.Errorf("rename document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, from)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE revisions SET ref = ? WHERE ref = ?", dst, src); err != nil {
			return fmt.Errorf("move revisions: %w", err)
		}
		return insertRevision(ctx, tx, dst, Revision{Author: AuthorFrom(ctx), Comment: "Renamed from " + src, Time: now})
	})
}

// Query returns matching references sorted by serialized reference.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]model.DocumentRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if !q.Under.IsZero() {
		space := q.Under.String()
		prefix := space + "."
		where = append(where, "(space = ? OR substr(space, 1, length(?)) = ?)")
		args = append(args, space, prefix, prefix)
	}
	if q.Name != "" {
		where = append(where, "name = ?")
		args = append(args, q.Name)
	}
	if q.Class != "" {
		where = append(where, "instr(classes, ?) > 0")
		args = append(args, "|"+q.Class+"|")
	}
	stmt := "SELECT ref FROM documents"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []model.DocumentRef
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		ref, err := model.ParseDocumentRef(raw, model.DocumentRef{})
		if err != nil {
			return nil, fmt.Errorf("stored reference %q: %w", raw, err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	sortRefs(out)
	return out, nil
}

// History returns the revisions recorded for ref, oldest first.
func (s *SQLiteStore) History(ctx context.Context, ref model.DocumentRef) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT author, comment, time, deleted FROM revisions WHERE ref = ? ORDER BY id", ref.String())
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			rev     Revision
			ms      int64
			deleted int
		)
		if err := rows.Scan(&rev.Author, &rev.Comment, &ms, &deleted); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.Time = time.UnixMilli(ms).UTC()
		rev.Deleted = deleted != 0
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func upsertDocument(ctx context.Context, tx *sql.Tx, doc *model.Document, author string, now time.Time) error {
	objects, err := json.Marshal(doc.Objects)
	if err != nil {
		return fmt.Errorf("marshal objects: %w", err)
	}
	attachments, err := json.Marshal(doc.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	hidden := 0
	if doc.Hidden {
		hidden = 1
	}
	classes := "|" + strings.Join(doc.Classes(), "|") + "|"
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (ref, space, name, title, syntax, content, hidden, objects, attachments, classes, fingerprint, author, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
			title = excluded.title,
			syntax = excluded.syntax,
			content = excluded.content,
			hidden = excluded.hidden,
			objects = excluded.objects,
			attachments = excluded.attachments,
			classes = excluded.classes,
			fingerprint = excluded.fingerprint,
			author = excluded.author,
			updated = excluded.updated`,
		doc.Ref.String(), doc.Ref.Space.String(), doc.Ref.Name, doc.Title, doc.Syntax, doc.Content, hidden,
		objects, attachments, classes, doc.Fingerprint, author, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func insertRevision(ctx context.Context, tx *sql.Tx, ref string, rev Revision) error {
	deleted := 0
	if rev.Deleted {
		deleted = 1
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO revisions (ref, author, comment, time, deleted) VALUES (?, ?, ?, ?, ?)",
		ref, rev.Author, rev.Comment, rev.Time.UnixMilli(), deleted)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}
