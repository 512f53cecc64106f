package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMarkConversationRead(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("adds reader to unread messages", func(mt *mtest.T) {
		repo := NewMessageRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 3},
			bson.E{Key: "nModified", Value: 2},
		))

		modified, err := repo.MarkConversationRead(context.Background(), 9, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(2), modified)

		evt := mt.GetStartedEvent()
		require.NotNil(t, evt)
		assert.Equal(t, "update", evt.CommandName)
		update := evt.Command.Lookup("updates", "0")
		assert.Equal(t, int64(9), update.Document().Lookup("q", "conversation_id").AsInt64())
		assert.Equal(t, int64(7), update.Document().Lookup("q", "read_by", "$ne").AsInt64())
		assert.Equal(t, int64(7), update.Document().Lookup("u", "$addToSet", "read_by").AsInt64())
		assert.True(t, update.Document().Lookup("multi").Boolean())
	})
}

func TestMarkDeleted(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	id := primitive.NewObjectID()

	mt.Run("soft deletes with placeholder", func(mt *mtest.T) {
		repo := NewMessageRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(t, repo.MarkDeleted(context.Background(), id.Hex()))

		evt := mt.GetStartedEvent()
		require.NotNil(t, evt)
		update := evt.Command.Lookup("updates", "0").Document()
		assert.Equal(t, id, update.Lookup("q", "_id").ObjectID())
		assert.True(t, update.Lookup("u", "$set", "is_deleted").Boolean())
		assert.Equal(t, DeletedPlaceholder, update.Lookup("u", "$set", "content").StringValue())
	})

	mt.Run("missing message", func(mt *mtest.T) {
		repo := NewMessageRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		assert.ErrorIs(t, repo.MarkDeleted(context.Background(), id.Hex()), mongo.ErrNoDocuments)
	})

	mt.Run("invalid id never reaches server", func(mt *mtest.T) {
		repo := NewMessageRepo(mt.DB)

		assert.ErrorIs(t, repo.MarkDeleted(context.Background(), "not-an-object-id"), mongo.ErrNoDocuments)
		assert.Nil(t, mt.GetStartedEvent())
	})
}
