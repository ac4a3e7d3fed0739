// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"curalink/database"
	"curalink/metrics"
	"curalink/models"
)

const sweepTimeout = 5 * time.Minute

// SweepOrphanFavorites deletes favorites whose target document no longer
// exists and returns how many were removed.
func SweepOrphanFavorites(ctx context.Context) (int64, error) {
	var removed int64
	for _, t := range models.ContentTypes {
		ids, err := database.Favorites.Distinct(ctx, "content_id", bson.M{"content_type": t})
		if err != nil {
			return removed, fmt.Errorf("distinct %s favorites: %w", t, err)
		}
		if len(ids) == 0 {
			continue
		}

		existing, err := database.ContentCollection(t).Distinct(ctx, "_id", bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return removed, fmt.Errorf("lookup %s targets: %w", t, err)
		}
		if len(existing) == len(ids) {
			continue
		}

		live := make(map[interface{}]bool, len(existing))
		for _, id := range existing {
			live[id] = true
		}
		var orphans []interface{}
		for _, id := range ids {
			if !live[id] {
				orphans = append(orphans, id)
			}
		}
		if len(orphans) == 0 {
			continue
		}

		res, err := database.Favorites.DeleteMany(ctx, bson.M{
			"content_type": t,
			"content_id":   bson.M{"$in": orphans},
		})
		if err != nil {
			return removed, fmt.Errorf("delete %s orphans: %w", t, err)
		}
		removed += res.DeletedCount
	}

	metrics.OrphansRemoved.Add(float64(removed))
	return removed, nil
}

// Start schedules the sweeper. An empty schedule disables it and returns a
// nil scheduler.
func Start(schedule string, log *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		log.Info("Running orphan favorite sweep...")
		n, err := SweepOrphanFavorites(ctx)
		if err != nil {
			log.Error("Orphan favorite sweep failed", zap.Error(err))
			return
		}
		log.Info("Orphan favorite sweep completed", zap.Int64("removed", n))
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
