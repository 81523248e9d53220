package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidURL is returned when a bookmark URL fails validation.
var ErrInvalidURL = errors.New("invalid URL")

// ErrNotFound is returned when no bookmark exists for an id.
var ErrNotFound = errors.New("bookmark not found")

// ValidateBookmarkURL validates that a URL is acceptable for bookmarking.
// It requires the URL to have http or https scheme and a non-empty host.
// Reachability is never checked.
func ValidateBookmarkURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// ------------------------------
// Bookmark methods
// ------------------------------

const bookmarkColumns = "id, url, title, screenshot, enrichment_data, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (Bookmark, error) {
	var (
		b          Bookmark
		screenshot sql.NullString
		enrichment sql.NullString
	)
	if err := row.Scan(&b.ID, &b.URL, &b.Title, &screenshot, &enrichment, &b.CreatedAt); err != nil {
		return Bookmark{}, err
	}
	if screenshot.Valid {
		name := screenshot.String
		b.Screenshot = &name
	}
	if enrichment.Valid && enrichment.String != "" {
		b.EnrichmentData = json.RawMessage(enrichment.String)
	}
	return b, nil
}

func (db *DB) GetBookmark(id int64) (Bookmark, error) {
	row := db.db.QueryRow("SELECT "+bookmarkColumns+" FROM bookmarks WHERE id = ?", id)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bookmark{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return b, nil
}

// AddBookmark inserts a bare bookmark and returns its id.
//
// The screenshot and enrichment fields start out NULL. Ids come from an
// AUTOINCREMENT key so they grow monotonically and are never reused.
// Emits a BookmarkCreatedEvent after the insert commits.
func (db *DB) AddBookmark(url string, title string, createdAt time.Time) (int64, error) {
	if err := ValidateBookmarkURL(url); err != nil {
		return 0, err
	}

	created := createdAt.UTC().Format(time.RFC3339Nano)
	result, err := db.db.Exec(
		"INSERT INTO bookmarks (url, title, created_at) VALUES (?, ?, ?)",
		url,
		title,
		created,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add bookmark: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	db.emit(BookmarkCreatedEvent{
		Bookmark: Bookmark{
			ID:        id,
			URL:       url,
			Title:     title,
			CreatedAt: created,
		},
	})

	return id, nil
}

// ListBookmarks returns bookmarks newest first (by id). A limit <= 0 returns all.
func (db *DB) ListBookmarks(limit int) ([]Bookmark, error) {
	query := "SELECT " + bookmarkColumns + " FROM bookmarks ORDER BY id DESC"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			db.logger.Warn("failed to close rows", zap.Error(err))
		}
	}()

	out := []Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return out, nil
}

// UpdateScreenshot records the stored screenshot filename for a bookmark.
// Emits a ScreenshotSavedEvent after a successful update.
func (db *DB) UpdateScreenshot(id int64, filename string) error {
	if err := db.updateField(id, "screenshot", filename); err != nil {
		return err
	}
	db.emit(ScreenshotSavedEvent{BookmarkID: id, Filename: filename})
	return nil
}

// UpdateEnrichment overwrites the enrichment payload of a bookmark. The payload
// must be a JSON document.
// Emits an EnrichmentSavedEvent after a successful update.
func (db *DB) UpdateEnrichment(id int64, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("enrichment payload for bookmark %d is not valid JSON", id)
	}
	if err := db.updateField(id, "enrichment_data", string(payload)); err != nil {
		return err
	}
	db.emit(EnrichmentSavedEvent{BookmarkID: id})
	return nil
}

func (db *DB) updateField(id int64, column string, value string) error {
	res, err := db.db.Exec("UPDATE bookmarks SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// DeleteBookmark removes a bookmark. It reports false when no bookmark had
// that id.
// Emits a BookmarkDeletedEvent after successful deletion.
func (db *DB) DeleteBookmark(id int64) (bool, error) {
	// Fetch bookmark before deletion to include in event
	b, err := db.GetBookmark(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		db.logger.Debug("failed to read bookmark before delete", zap.Int64("id", id), zap.Error(err))
	}

	res, err := db.db.Exec("DELETE FROM bookmarks WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	// If we couldn't fetch earlier, at least include the ID
	if b.ID == 0 {
		b.ID = id
	}
	db.emit(BookmarkDeletedEvent{Bookmark: b})

	return true, nil
}
