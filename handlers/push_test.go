package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"curalink/models"
	"curalink/mongotest"
	"curalink/notify"
)

func TestSubscribePush(t *testing.T) {
	mt := mongotest.New(t)
	user := newUser("pat", models.RolePatient)
	body := gin.H{
		"endpoint": "https://push.example.com/send/abc",
		"keys":     gin.H{"p256dh": "client-key", "auth": "client-secret"},
	}

	mt.Run("push disabled", func(mt *mtest.T) {
		mongotest.Bind(mt)
		SetPusher(nil)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, user)))

		w := serve(t, http.MethodPost, "/push/subscribe", tokenFor(t, user), body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	mt.Run("saves the subscription", func(mt *mtest.T) {
		mongotest.Bind(mt)
		SetPusher(notify.NewPusher("public", "private", "mailto:admin@curalink.app", zap.NewNop()))
		mt.Cleanup(func() { SetPusher(nil) })
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, user)), mongotest.OK(1))
		mt.ClearEvents()

		w := serve(t, http.MethodPost, "/push/subscribe", tokenFor(t, user), body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		cmd, ok := mongotest.Sent(mt, "update", "push_subscriptions")
		require.True(t, ok)
		updates, err := cmd.Lookup("updates").Array().Values()
		require.NoError(t, err)
		require.Len(t, updates, 1)
		stmt := updates[0].Document()
		assert.Equal(t, user.ID, stmt.Lookup("q", "user_id").ObjectID())
		assert.True(t, stmt.Lookup("upsert").Boolean())
		assert.Equal(t, "https://push.example.com/send/abc", stmt.Lookup("u", "$set", "endpoint").StringValue())
	})

	mt.Run("keys required", func(mt *mtest.T) {
		mongotest.Bind(mt)
		SetPusher(notify.NewPusher("public", "private", "mailto:admin@curalink.app", zap.NewNop()))
		mt.Cleanup(func() { SetPusher(nil) })
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, user)))

		w := serve(t, http.MethodPost, "/push/subscribe", tokenFor(t, user), gin.H{"endpoint": "https://push.example.com/send/abc"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
