// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive indexes flushed records into a SQLite database with FTS5
// full-text search. The archive is built offline from the engine's JSONL
// output; the running engine never touches it.
package archive

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-stream/pkg/types"
)

const dbFile = "archive.db"

// Store manages the archive SQLite database.
type Store struct {
	db         *sql.DB
	archiveDir string
	maxResults int
}

// NewStore opens or creates the archive database at archiveDir/archive.db,
// creating the schema if it does not exist.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(cfg.ArchiveDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		archiveDir: cfg.ArchiveDir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			published TEXT,
			url TEXT,
			category TEXT,
			relevance_score REAL,
			ingested_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_source ON records(source)`,
		`CREATE TABLE IF NOT EXISTS index_status (
			file_path TEXT PRIMARY KEY,
			lines_indexed INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE records_fts USING fts5(title, abstract, content=records, content_rowid=rowid)`,
			`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			END`,
			`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
				INSERT INTO records_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IndexSummary holds counts from an archive indexing run.
type IndexSummary struct {
	Indexed int
	Skipped int
	Failed  int
}

// Total returns the number of lines processed.
func (s IndexSummary) Total() int {
	return s.Indexed + s.Skipped + s.Failed
}

// Index reads the engine's JSONL output file and inserts records into the
// database. Indexing is incremental: the line count already processed for
// each file is remembered, so repeated runs only read new lines. Lines that
// do not parse are counted as failed and skipped; records whose ID is
// already archived are skipped.
func (s *Store) Index(ctx context.Context, jsonlPath string) (IndexSummary, error) {
	var summary IndexSummary

	f, err := os.Open(jsonlPath)
	if err != nil {
		return summary, fmt.Errorf("opening record file %s: %w", jsonlPath, err)
	}
	defer f.Close()

	var startLine int
	err = s.db.QueryRowContext(ctx,
		`SELECT lines_indexed FROM index_status WHERE file_path = ?`, jsonlPath,
	).Scan(&startLine)
	if err != nil && err != sql.ErrNoRows {
		return summary, fmt.Errorf("reading index status: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO records
			(id, source, title, authors, abstract, published, url, category, relevance_score, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	line := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line++
		if line <= startLine {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		var r types.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil || r.ID == "" {
			summary.Failed++
			continue
		}

		authorsJSON, _ := json.Marshal(r.Authors)
		res, err := stmt.ExecContext(ctx,
			r.ID, r.Source, r.Title, string(authorsJSON), r.Abstract,
			r.Published, r.URL, r.Category, r.RelevanceScore,
			r.IngestedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return summary, fmt.Errorf("inserting record %s: %w", r.ID, err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			summary.Skipped++
		} else {
			summary.Indexed++
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("reading record file: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_status (file_path, lines_indexed) VALUES (?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET lines_indexed=excluded.lines_indexed`,
		jsonlPath, line,
	)
	if err != nil {
		return summary, fmt.Errorf("updating index status: %w", err)
	}

	return summary, tx.Commit()
}

// QueryOptions holds parameters for archive queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over title and abstract.
	Query string

	// Source filters by source tag (e.g. "arxiv_cs.AI", "biorxiv").
	Source string

	// MinScore filters out records below a relevance threshold.
	MinScore float64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Source == "" && q.MinScore == 0
}

// QueryResult is an archived record with its full-text rank (zero for
// structured-only queries).
type QueryResult struct {
	types.Record
	Rank float64 `json:"rank" yaml:"rank"`
}

// Query searches the archive with optional full-text search and structured
// filters. Full-text results are ranked by FTS5 relevance; structured-only
// results are ordered newest first.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT r.id, r.source, r.title, r.authors, r.abstract, r.published,
				r.url, r.category, r.relevance_score, r.ingested_at, records_fts.rank
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT r.id, r.source, r.title, r.authors, r.abstract, r.published,
				r.url, r.category, r.relevance_score, r.ingested_at, 0 AS rank
			FROM records r
			WHERE 1=1`)
	}

	if opts.Source != "" {
		qb.WriteString(` AND r.source = ?`)
		args = append(args, opts.Source)
	}

	if opts.MinScore > 0 {
		qb.WriteString(` AND r.relevance_score >= ?`)
		args = append(args, opts.MinScore)
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.ingested_at DESC`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr          QueryResult
			authorsJSON sql.NullString
			ingestedAt  string
		)

		if err := rows.Scan(
			&qr.ID, &qr.Source, &qr.Title, &authorsJSON, &qr.Abstract,
			&qr.Published, &qr.URL, &qr.Category, &qr.RelevanceScore,
			&ingestedAt, &qr.Rank,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &qr.Authors)
		}
		if t, parseErr := time.Parse(time.RFC3339, ingestedAt); parseErr == nil {
			qr.IngestedAt = t
		}

		results = append(results, qr)
	}

	return results, rows.Err()
}
