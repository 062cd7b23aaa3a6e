package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realtime-chat/models"
)

type MongoUserRepo struct {
	db *mongoDB
}

func (r *MongoUserRepo) Create(ctx context.Context, u *models.User) error {
	if _, err := r.db.users.InsertOne(ctx, u); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.db.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *MongoUserRepo) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	cur, err := r.db.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var found []models.User
	if err := cur.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	byID := make(map[string]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	out := make([]models.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MongoUserRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"_id": bson.M{"$ne": excludeID},
		"$or": bson.A{
			bson.M{"username": pattern},
			bson.M{"email": pattern},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.db.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

func (r *MongoUserRepo) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}
	if upd.Avatar != nil {
		set["avatar"] = *upd.Avatar
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := r.db.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *MongoUserRepo) SetStatus(ctx context.Context, id string, status models.UserStatus, at time.Time) error {
	res, err := r.db.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": status, "lastSeen": at}})
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepo) AddContact(ctx context.Context, id, contactID string) error {
	n, err := r.db.users.CountDocuments(ctx, bson.M{"_id": contactID})
	if err != nil {
		return fmt.Errorf("lookup contact: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.updateSet(ctx, id, bson.M{"$addToSet": bson.M{"contacts": contactID}})
}

func (r *MongoUserRepo) RemoveContact(ctx context.Context, id, contactID string) error {
	return r.updateSet(ctx, id, bson.M{"$pull": bson.M{"contacts": contactID}})
}

func (r *MongoUserRepo) updateSet(ctx context.Context, id string, update bson.M) error {
	res, err := r.db.users.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepo) ResetUnread(ctx context.Context, id, peer string) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		return r.db.touchSummary(sc, id, peer, "", summaryReset)
	})
}

type summaryMode int

const (
	summaryReset summaryMode = iota
	summaryIncrement
)

// touchSummary updates the privateChats entry of user for peer, appending one
// when missing. An empty lastMessage leaves the pointer untouched.
func (db *mongoDB) touchSummary(ctx context.Context, userID, peer, lastMessage string, mode summaryMode) error {
	set := bson.M{}
	update := bson.M{}
	if lastMessage != "" {
		set["privateChats.$.lastMessage"] = lastMessage
	}
	if mode == summaryIncrement {
		update["$inc"] = bson.M{"privateChats.$.unreadCount": 1}
	} else {
		set["privateChats.$.unreadCount"] = 0
	}
	if len(set) > 0 {
		update["$set"] = set
	}

	res, err := db.users.UpdateOne(ctx, bson.M{"_id": userID, "privateChats.with": peer}, update)
	if err != nil {
		return fmt.Errorf("update private chat: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	entry := models.PrivateChat{With: peer, LastMessage: lastMessage}
	if mode == summaryIncrement {
		entry.UnreadCount = 1
	}
	res, err = db.users.UpdateOne(ctx,
		bson.M{"_id": userID, "privateChats.with": bson.M{"$ne": peer}},
		bson.M{"$push": bson.M{"privateChats": entry}},
	)
	if err != nil {
		return fmt.Errorf("append private chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
