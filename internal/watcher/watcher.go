// Package watcher orchestrates one run of the scrape, diff and notify
// pipeline. Execution is strictly sequential: one fetch or one send is
// outstanding at any time, and the snapshot is saved exactly once at the end
// of the run.
package watcher

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/diff"
	"github.com/geckyzz/nyaa-comments/internal/notify"
	"github.com/geckyzz/nyaa-comments/internal/scrape"
	"github.com/geckyzz/nyaa-comments/internal/store"
)

// Notifier delivers a batch of notifications. Implemented by
// notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, queue []notify.Notification) notify.Stats
}

// Watcher runs the pipeline for one site against one snapshot.
type Watcher struct {
	scraper  scrape.Scraper
	snap     *store.Snapshot
	notifier Notifier
	dump     bool
	logger   *zap.Logger
}

// New builds a Watcher. notifier may be nil for dump-only runs; dump
// suppresses all notifications and initializes state for items not yet in
// the snapshot.
func New(scraper scrape.Scraper, snap *store.Snapshot, notifier Notifier, dump bool, logger *zap.Logger) *Watcher {
	return &Watcher{
		scraper:  scraper,
		snap:     snap,
		notifier: notifier,
		dump:     dump,
		logger:   logger,
	}
}

// Run executes one full pass: scan the site, diff every observed item
// against the snapshot, save the snapshot once, then dispatch the queued
// notifications in global timestamp order. A single item's failure never
// aborts the run; only a failed scan or a failed save does.
func (w *Watcher) Run(ctx context.Context) error {
	counts, err := w.scraper.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.scraper.Site(), err)
	}
	if len(counts) == 0 {
		w.logger.Info("No items with comments found", zap.String("site", w.scraper.Site().String()))
		return nil
	}
	w.logger.Info("Checking items for new comments",
		zap.String("site", w.scraper.Site().String()), zap.Int("items", len(counts)))

	queue := w.collect(ctx, counts)

	if err := w.snap.Save(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if w.dump || w.notifier == nil || len(queue) == 0 {
		if len(queue) == 0 {
			w.logger.Info("No new comments to notify about")
		}
		return nil
	}
	w.logger.Info("Sending notifications", zap.Int("count", len(queue)))
	stats := w.notifier.Dispatch(ctx, queue)
	w.logger.Info("Notifications dispatched",
		zap.Int("delivered", stats.Delivered), zap.Int("abandoned", stats.Abandoned))
	return nil
}

// collect visits every observed item in a stable order and gathers the
// pending notifications. Items whose thread cannot be fetched are skipped
// for this round; their stored state is left untouched.
func (w *Watcher) collect(ctx context.Context, counts map[string]int) []notify.Notification {
	style := w.scraper.Site().Style()

	var queue []notify.Notification
	for _, id := range sortedIDs(counts) {
		stored := w.snap.Comments(id)
		switch {
		case w.dump && stored == nil:
			th, err := w.scraper.Thread(ctx, id)
			if err != nil {
				w.logger.Warn("Skipping item this round", zap.String("item_id", id), zap.Error(err))
				continue
			}
			res := diff.Compute(th.Comments, nil)
			if len(res.Updated) == 0 {
				continue
			}
			w.snap.Replace(id, res.Updated)

		case counts[id] > len(stored):
			th, err := w.scraper.Thread(ctx, id)
			if err != nil {
				w.logger.Warn("Skipping item this round", zap.String("item_id", id), zap.Error(err))
				continue
			}
			res := diff.Compute(th.Comments, stored)
			if len(res.Updated) == 0 {
				continue
			}
			if len(res.New) > 0 {
				title := th.Title
				if title == "" {
					title = w.scraper.Title(ctx, id)
				}
				for _, c := range res.New {
					queue = append(queue, notify.Notification{
						ItemID:  id,
						Title:   title,
						Comment: c,
						Role:    th.Roles[c.ID],
						Style:   style,
					})
				}
			}
			w.snap.Replace(id, res.Updated)
		}
	}
	return queue
}

// sortedIDs orders item ids numerically where possible so runs are
// deterministic; non-numeric ids (AnimeTosho slugs) sort lexically.
func sortedIDs(counts map[string]int) []string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.ParseInt(ids[i], 10, 64)
		b, berr := strconv.ParseInt(ids[j], 10, 64)
		if aerr != nil || berr != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}
