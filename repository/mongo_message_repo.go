package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realtime-chat/models"
)

type MongoMessageRepo struct {
	db *mongoDB
}

func (r *MongoMessageRepo) SaveRoomMessage(ctx context.Context, m *models.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.db.messages.InsertOne(sc, m); err != nil {
			return mapErr(err)
		}
		res, err := r.db.rooms.UpdateByID(sc, m.Room, bson.M{"$set": bson.M{
			"lastMessage": m.ID,
			"updatedAt":   m.CreatedAt,
		}})
		if err != nil {
			return fmt.Errorf("set last message: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *MongoMessageRepo) SavePrivateMessage(ctx context.Context, m *models.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.db.messages.InsertOne(sc, m); err != nil {
			return mapErr(err)
		}
		if err := r.db.touchSummary(sc, m.Sender, m.Receiver, m.ID, summaryReset); err != nil {
			return err
		}
		return r.db.touchSummary(sc, m.Receiver, m.Sender, m.ID, summaryIncrement)
	})
}

func (r *MongoMessageRepo) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *MongoMessageRepo) ListByRoom(ctx context.Context, roomID string, skip, limit int) ([]models.Message, int64, error) {
	return r.page(ctx, bson.M{"room": roomID, "messageType": models.MessageRoom}, skip, limit)
}

func (r *MongoMessageRepo) ListConversation(ctx context.Context, a, b string, skip, limit int) ([]models.Message, int64, error) {
	filter := bson.M{
		"messageType": models.MessagePrivate,
		"$or": bson.A{
			bson.M{"sender": a, "receiver": b},
			bson.M{"sender": b, "receiver": a},
		},
	}
	return r.page(ctx, filter, skip, limit)
}

func (r *MongoMessageRepo) page(ctx context.Context, filter bson.M, skip, limit int) ([]models.Message, int64, error) {
	total, err := r.db.messages.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	opts := options.Find().SetSort(sortNewest).SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.db.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find messages: %w", err)
	}
	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode messages: %w", err)
	}
	return out, total, nil
}

func (r *MongoMessageRepo) MarkRead(ctx context.Context, ids []string, userID string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.messages.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "readBy.user": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"readBy": models.ReadReceipt{User: userID, ReadAt: at}}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoMessageRepo) Delete(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		var m models.Message
		if err := r.db.messages.FindOneAndDelete(sc, bson.M{"_id": id}).Decode(&m); err != nil {
			return mapErr(err)
		}
		if m.Room == "" {
			return nil
		}
		room, err := r.db.findRoom(sc, m.Room)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if room.LastMessage != id {
			return nil
		}

		var prev models.Message
		err = r.db.messages.FindOne(sc, bson.M{"room": m.Room},
			options.FindOne().SetSort(sortNewest)).Decode(&prev)
		update := bson.M{"$unset": bson.M{"lastMessage": ""}}
		switch {
		case err == nil:
			update = bson.M{"$set": bson.M{"lastMessage": prev.ID}}
		case !errors.Is(err, mongo.ErrNoDocuments):
			return fmt.Errorf("find previous message: %w", err)
		}
		if _, err := r.db.rooms.UpdateByID(sc, m.Room, update); err != nil {
			return fmt.Errorf("repoint last message: %w", err)
		}
		return nil
	})
}
