package scheduler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"curalink/metrics"
	"curalink/mongotest"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestSweepOrphanFavorites(t *testing.T) {
	mt := mongotest.New(t)

	mt.Run("nothing favorited", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Distinct(), mongotest.Distinct(), mongotest.Distinct())

		n, err := SweepOrphanFavorites(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	mt.Run("removes favorites of deleted users", func(mt *mtest.T) {
		mongotest.Bind(mt)
		alive, gone := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			mongotest.Distinct(alive, gone), // favorites of type User
			mongotest.Distinct(alive),       // users that still exist
			mongotest.OK(1),                 // delete
			mongotest.Distinct(),            // Publication
			mongotest.Distinct(),            // ClinicalTrial
		)

		before := counterValue(t, metrics.OrphansRemoved)
		n, err := SweepOrphanFavorites(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, before+1, counterValue(t, metrics.OrphansRemoved))
	})

	mt.Run("all targets present", func(mt *mtest.T) {
		mongotest.Bind(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mongotest.Distinct(),
			mongotest.Distinct(id),
			mongotest.Distinct(id),
			mongotest.Distinct(),
		)

		n, err := SweepOrphanFavorites(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStart(t *testing.T) {
	c, err := Start("", zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = Start("not a schedule", zap.NewNop())
	assert.Error(t, err)

	c, err = Start("@hourly", zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}
