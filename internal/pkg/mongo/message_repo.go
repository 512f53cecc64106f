package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetMessagesByIDs(ctx context.Context, ids []string) (map[string]*Message, error)
	ListByConversation(ctx context.Context, convID uint64) ([]*Message, error)
	MarkDeleted(ctx context.Context, id string) error
	MarkConversationRead(ctx context.Context, convID uint64, userID uint64) (int64, error)
	CountUnread(ctx context.Context, convID uint64, userID uint64) (int64, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("messages"),
	}
}

// EnsureMessageIndexes 会话内按时间拉取的索引
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("messages").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetMessage 不存在或 id 非法时返回 nil
func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var msg Message
	err = s.col.FindOne(ctx, bson.M{"_id": objectID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetMessagesByIDs 批量查询，用于会话列表的最后一条消息
func (s *messageRepoImpl) GetMessagesByIDs(ctx context.Context, ids []string) (map[string]*Message, error) {
	res := make(map[string]*Message, len(ids))
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}
	if len(objectIDs) == 0 {
		return res, nil
	}

	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	for _, m := range messages {
		res[m.ID.Hex()] = m
	}
	return res, nil
}

// ListByConversation 会话内全部消息，按时间升序
func (s *messageRepoImpl) ListByConversation(ctx context.Context, convID uint64) ([]*Message, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, bson.M{"conversation_id": convID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkDeleted 软删除，内容替换为占位文本
func (s *messageRepoImpl) MarkDeleted(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	update := bson.M{"$set": bson.M{"is_deleted": true, "content": DeletedPlaceholder}}
	result, err := s.col.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkConversationRead 将用户加入会话内所有未读消息的 read_by
func (s *messageRepoImpl) MarkConversationRead(ctx context.Context, convID uint64, userID uint64) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"read_by":         bson.M{"$ne": userID},
	}
	update := bson.M{"$addToSet": bson.M{"read_by": userID}}
	result, err := s.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// CountUnread 非本人发送且本人未读的消息数
func (s *messageRepoImpl) CountUnread(ctx context.Context, convID uint64, userID uint64) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"sender_id":       bson.M{"$ne": userID},
		"read_by":         bson.M{"$ne": userID},
	}
	return s.col.CountDocuments(ctx, filter)
}
