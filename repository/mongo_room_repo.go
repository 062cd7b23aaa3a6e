package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realtime-chat/models"
)

type MongoRoomRepo struct {
	db *mongoDB
}

func (r *MongoRoomRepo) Create(ctx context.Context, room *models.Room) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.db.rooms.InsertOne(sc, room); err != nil {
			return mapErr(err)
		}
		res, err := r.db.users.UpdateByID(sc, room.Creator, bson.M{"$addToSet": bson.M{"joinedRooms": room.ID}})
		if err != nil {
			return fmt.Errorf("record joined room: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *MongoRoomRepo) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return r.db.findRoom(ctx, id)
}

func (db *mongoDB) findRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := db.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&room); err != nil {
		return nil, mapErr(err)
	}
	return &room, nil
}

func (r *MongoRoomRepo) ListPublic(ctx context.Context) ([]models.Room, error) {
	return r.find(ctx, bson.M{"type": models.RoomPublic})
}

func (r *MongoRoomRepo) ListByMember(ctx context.Context, userID string) ([]models.Room, error) {
	return r.find(ctx, bson.M{"members": userID})
}

func (r *MongoRoomRepo) Search(ctx context.Context, query string, roomType models.RoomType) ([]models.Room, error) {
	filter := bson.M{}
	if query != "" {
		filter["$text"] = bson.M{"$search": query}
	}
	if roomType != "" {
		filter["type"] = roomType
	}
	return r.find(ctx, filter)
}

func (r *MongoRoomRepo) ListAvailable(ctx context.Context, userID string) ([]models.Room, error) {
	return r.find(ctx, bson.M{"isActive": true, "members": bson.M{"$ne": userID}})
}

func (r *MongoRoomRepo) find(ctx context.Context, filter bson.M) ([]models.Room, error) {
	cur, err := r.db.rooms.Find(ctx, filter, options.Find().SetSort(sortRecentlyUpdated))
	if err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	out := []models.Room{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return out, nil
}

type MongoMembershipRepo struct {
	db *mongoDB
}

func (r *MongoMembershipRepo) AddMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	var joined *models.Room
	err := r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		room, err := r.db.findRoom(sc, roomID)
		if err != nil {
			return err
		}
		if room.HasMember(userID) {
			return ErrAlreadyMember
		}
		if room.IsFull() {
			return ErrRoomFull
		}
		// The guards are repeated in the filter so a concurrent join that
		// filled the last seat makes this update match nothing.
		filter := bson.M{
			"_id":     roomID,
			"members": bson.M{"$ne": userID},
			"$expr":   bson.M{"$lt": bson.A{bson.M{"$size": "$members"}, "$maxMembers"}},
		}
		now := time.Now().UTC()
		res, err := r.db.rooms.UpdateOne(sc, filter, bson.M{
			"$push": bson.M{"members": userID},
			"$set":  bson.M{"updatedAt": now},
		})
		if err != nil {
			return fmt.Errorf("add member: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrRoomFull
		}
		res, err = r.db.users.UpdateByID(sc, userID, bson.M{"$addToSet": bson.M{"joinedRooms": roomID}})
		if err != nil {
			return fmt.Errorf("record joined room: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		room.Members = append(room.Members, userID)
		room.UpdatedAt = now
		joined = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func (r *MongoMembershipRepo) RemoveMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	var left *models.Room
	err := r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var room models.Room
		err := r.db.rooms.FindOneAndUpdate(sc, bson.M{"_id": roomID}, bson.M{
			"$pull": bson.M{"members": userID},
		}, opts).Decode(&room)
		if err != nil {
			return mapErr(err)
		}
		if _, err := r.db.users.UpdateByID(sc, userID, bson.M{"$pull": bson.M{"joinedRooms": roomID}}); err != nil {
			return fmt.Errorf("drop joined room: %w", err)
		}
		left = &room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return left, nil
}

func (r *MongoMembershipRepo) IsUserMember(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := r.db.findRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	return room.HasMember(userID), nil
}

func (r *MongoMembershipRepo) DeleteRoom(ctx context.Context, roomID string) ([]string, error) {
	var members []string
	err := r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		room, err := r.db.findRoom(sc, roomID)
		if err != nil {
			return err
		}
		if _, err := r.db.users.UpdateMany(sc,
			bson.M{"_id": bson.M{"$in": room.Members}},
			bson.M{"$pull": bson.M{"joinedRooms": roomID}},
		); err != nil {
			return fmt.Errorf("drop joined rooms: %w", err)
		}
		if _, err := r.db.messages.DeleteMany(sc, bson.M{"room": roomID}); err != nil {
			return fmt.Errorf("delete room messages: %w", err)
		}
		if _, err := r.db.rooms.DeleteOne(sc, bson.M{"_id": roomID}); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		members = room.Members
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
