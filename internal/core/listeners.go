package core

import (
	"fmt"

	"github.com/seckatie/snapmark/internal/core/db"
	"go.uber.org/zap"
)

// AssetRemover deletes every stored file of a bookmark.
type AssetRemover interface {
	Remove(id int64) error
}

// RegisterListeners connects store events to the pipeline: new bookmarks are
// enriched in the background and deleted ones lose their files.
func RegisterListeners(database *db.DB, enricher *Enricher, files AssetRemover, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	database.RegisterEventListener(db.OnBookmarkCreatedEvent, func(event db.Event) error {
		ev := event.(db.BookmarkCreatedEvent)
		logger.Info("bookmark created, starting enrichment",
			zap.Int64("id", ev.Bookmark.ID),
			zap.String("url", ev.Bookmark.URL),
		)
		enricher.Spawn(ev.Bookmark.ID, ev.Bookmark.URL)
		return nil
	})

	database.RegisterEventListener(db.OnBookmarkDeletedEvent, func(event db.Event) error {
		ev := event.(db.BookmarkDeletedEvent)
		if err := files.Remove(ev.Bookmark.ID); err != nil {
			return fmt.Errorf("remove assets for bookmark %d: %w", ev.Bookmark.ID, err)
		}
		logger.Info("bookmark deleted", zap.Int64("id", ev.Bookmark.ID))
		return nil
	})

	database.RegisterEventListener(db.OnScreenshotSavedEvent, func(event db.Event) error {
		ev := event.(db.ScreenshotSavedEvent)
		logger.Info("screenshot saved", zap.Int64("id", ev.BookmarkID), zap.String("file", ev.Filename))
		return nil
	})

	database.RegisterEventListener(db.OnEnrichmentSavedEvent, func(event db.Event) error {
		ev := event.(db.EnrichmentSavedEvent)
		logger.Info("enrichment saved", zap.Int64("id", ev.BookmarkID))
		return nil
	})
}
