package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	usersCollection    = "users"
	roomsCollection    = "rooms"
	messagesCollection = "messages"
)

// mongoDB holds the client and collections shared by the Mongo repositories.
// Compound writes run inside a multi-document transaction, which requires a
// replica set or sharded cluster.
type mongoDB struct {
	client   *mongo.Client
	users    *mongo.Collection
	rooms    *mongo.Collection
	messages *mongo.Collection
	log      *zap.Logger
}

// NewMongoStore connects to uri, ensures indexes on dbName and returns a Store.
func NewMongoStore(ctx context.Context, uri, dbName string, log *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := client.Database(dbName)
	db := &mongoDB{
		client:   client,
		users:    database.Collection(usersCollection),
		rooms:    database.Collection(roomsCollection),
		messages: database.Collection(messagesCollection),
		log:      log,
	}
	if err := db.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("connected to mongo", zap.String("database", dbName))

	return &Store{
		Users:       &MongoUserRepo{db: db},
		Rooms:       &MongoRoomRepo{db: db},
		Memberships: &MongoMembershipRepo{db: db},
		Messages:    &MongoMessageRepo{db: db},
		closer:      client.Disconnect,
	}, nil
}

func (db *mongoDB) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		db.users: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: "text"}, {Key: "email", Value: "text"}}},
		},
		db.rooms: {
			{Keys: bson.D{{Key: "roomCode", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "members", Value: 1}}},
			{Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}}},
		},
		db.messages: {
			{Keys: bson.D{{Key: "room", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, idx := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction. The driver retries fn on transient errors.
func (db *mongoDB) withTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := db.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

var sortNewest = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

var sortRecentlyUpdated = bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}
