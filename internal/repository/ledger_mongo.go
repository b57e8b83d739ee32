package repository

import (
	"context"
	"errors"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/infrastructure"
	"imagebot/internal/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUser struct {
	ID          int64  `bson:"_id"`
	DisplayName string `bson:"display_name,omitempty"`
	CreatedOn   string `bson:"created_on"`
	PaidBalance int64  `bson:"paid_balance"`
}

type usageKey struct {
	UserID    int64  `bson:"user_id"`
	UsageDate string `bson:"usage_date"`
}

type mongoUsage struct {
	ID        usageKey `bson:"_id"`
	UsedCount int      `bson:"used_count"`
}

// MongoLedger keeps users and daily usage in two collections. Every
// mutation is one findAndModify, which MongoDB applies atomically per document.
type MongoLedger struct {
	users *mongo.Collection
	usage *mongo.Collection
	db    *mongo.Database
}

func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{
		users: db.Collection(infrastructure.UsersCollection),
		usage: db.Collection(infrastructure.DailyUsageCollection),
		db:    db,
	}
}

var _ interfaces.LedgerStore = (*MongoLedger)(nil)

func (r *MongoLedger) EnsureUser(ctx context.Context, userID int64, displayName string, createdOn time.Time) error {
	set := bson.M{"created_on": createdOn.Format(dateLayout), "paid_balance": int64(0)}
	if displayName != "" {
		set["display_name"] = displayName
	}
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": set},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return storeErr("ensure user", err)
	}
	return nil
}

func (r *MongoLedger) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	var doc mongoUser
	err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entities.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return doc.toEntity(), nil
}

func (r *MongoLedger) ListUsers(ctx context.Context, limit int) ([]entities.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "paid_balance", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	defer cur.Close(ctx)

	users := []entities.User{}
	for cur.Next(ctx) {
		var doc mongoUser
		if err := cur.Decode(&doc); err != nil {
			return nil, storeErr("decode user", err)
		}
		users = append(users, *doc.toEntity())
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// Snapshot reads two documents. MongoDB has no cross-collection single-read
// primitive outside a replica-set snapshot session; the committer does not
// depend on this read staying valid.
func (r *MongoLedger) Snapshot(ctx context.Context, userID int64, day time.Time) (entities.LedgerSnapshot, error) {
	var s entities.LedgerSnapshot

	var usage mongoUsage
	err := r.usage.FindOne(ctx, bson.M{"_id": usageKey{UserID: userID, UsageDate: day.Format(dateLayout)}}).Decode(&usage)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return s, storeErr("snapshot usage", err)
	default:
		s.UsedToday = usage.UsedCount
	}

	var user mongoUser
	err = r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return entities.LedgerSnapshot{}, storeErr("snapshot balance", err)
	default:
		s.PaidBalance = user.PaidBalance
	}
	return s, nil
}

func (r *MongoLedger) IncrementDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error) {
	var doc mongoUsage
	err := r.usage.FindOneAndUpdate(ctx,
		bson.M{"_id": usageKey{UserID: userID, UsageDate: day.Format(dateLayout)}},
		bson.M{"$inc": bson.M{"used_count": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, storeErr("increment daily usage", err)
	}
	return doc.UsedCount, nil
}

func (r *MongoLedger) DecrementBalance(ctx context.Context, userID int64, conditional bool) (int64, error) {
	filter := bson.M{"_id": userID}
	if conditional {
		filter["paid_balance"] = bson.M{"$gt": 0}
	}
	balance, err := r.incBalance(ctx, filter, -1)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if !conditional {
			return 0, entities.ErrUserNotFound
		}
		return 0, r.classifyMiss(ctx, userID)
	}
	if err != nil {
		return 0, storeErr("decrement balance", err)
	}
	return balance, nil
}

func (r *MongoLedger) AddBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	balance, err := r.incBalance(ctx, bson.M{"_id": userID}, amount)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, entities.ErrUserNotFound
	}
	if err != nil {
		return 0, storeErr("add balance", err)
	}
	return balance, nil
}

func (r *MongoLedger) SubtractBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	balance, err := r.incBalance(ctx, bson.M{"_id": userID, "paid_balance": bson.M{"$gte": amount}}, -amount)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, r.classifyMiss(ctx, userID)
	}
	if err != nil {
		return 0, storeErr("subtract balance", err)
	}
	return balance, nil
}

func (r *MongoLedger) incBalance(ctx context.Context, filter bson.M, delta int64) (int64, error) {
	var doc mongoUser
	err := r.users.FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"paid_balance": delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.PaidBalance, nil
}

func (r *MongoLedger) classifyMiss(ctx context.Context, userID int64) error {
	n, err := r.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return storeErr("check user", err)
	}
	if n == 0 {
		return entities.ErrUserNotFound
	}
	return entities.ErrInsufficientBalance
}

func (r *MongoLedger) Ping(ctx context.Context) error {
	if err := r.db.Client().Ping(ctx, nil); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (r *MongoLedger) Close() error {
	return r.db.Client().Disconnect(context.Background())
}

func (d *mongoUser) toEntity() *entities.User {
	u := &entities.User{ID: d.ID, DisplayName: d.DisplayName, PaidBalance: d.PaidBalance}
	if t, err := time.Parse(dateLayout, d.CreatedOn); err == nil {
		u.CreatedOn = t
	}
	return u
}
