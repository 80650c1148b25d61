package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hperssn/focusflow/internal/domain"
)

const (
	usersCollection     = "users"
	sessionsCollection  = "sessions"
	focusDataCollection = "focus_data"
	mongoConnectTimeout = 30 * time.Second
)

// MongoRepository stores sessions as documents with their points embedded.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo is not reachable: %w", err)
	}

	repo := &MongoRepository{client: client, db: client.Database(database)}
	if err := repo.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	_, err := r.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subject", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = r.db.Collection(sessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "end_time", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create sessions indexes: %w", err)
	}

	_, err = r.db.Collection(focusDataCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create focus_data indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.Collection(usersCollection).InsertOne(ctx, FromDomainUser(u))
	return err
}

func (r *MongoRepository) UpdateUser(ctx context.Context, u *domain.User) error {
	rec := FromDomainUser(u)
	res, err := r.db.Collection(usersCollection).UpdateByID(ctx, rec.ID, bson.M{
		"$set": bson.M{
			"email":         rec.Email,
			"name":          rec.Name,
			"picture":       rec.Picture,
			"last_active":   rec.LastActive,
			"notifications": rec.Notifications,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetUserBySubject(ctx context.Context, subject string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"subject": subject})
}

func (r *MongoRepository) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var rec UserRecord
	err := r.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.ToDomain(), nil
}

func (r *MongoRepository) IncrementUserStats(ctx context.Context, userID string, sessions, focusMinutes int64) error {
	res, err := r.db.Collection(usersCollection).UpdateByID(ctx, userID, bson.M{
		"$inc": bson.M{
			"total_sessions":      sessions,
			"total_focus_minutes": focusMinutes,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Collection(sessionsCollection).InsertOne(ctx, FromDomainSession(s))
	return err
}

func (r *MongoRepository) SaveSession(ctx context.Context, s *domain.Session) error {
	res, err := r.db.Collection(sessionsCollection).ReplaceOne(ctx, bson.M{"_id": s.ID}, FromDomainSession(s))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return r.findSession(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindActiveSession(ctx context.Context, userID string) (*domain.Session, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}})
	return r.findSession(ctx, bson.M{"user_id": userID, "status": string(domain.StatusActive)}, opts)
}

func (r *MongoRepository) findSession(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.Session, error) {
	var rec SessionRecord
	err := r.db.Collection(sessionsCollection).FindOne(ctx, filter, opts...).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.ToDomain(), nil
}

func (r *MongoRepository) ListCompletedSessions(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.db.Collection(sessionsCollection).Find(ctx, bson.M{
		"user_id": userID,
		"status":  string(domain.StatusCompleted),
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	out := make([]*domain.Session, len(records))
	for i := range records {
		out[i] = records[i].ToDomain()
	}
	return out, nil
}

func (r *MongoRepository) SaveFocusData(ctx context.Context, d *domain.FocusData) error {
	_, err := r.db.Collection(focusDataCollection).InsertOne(ctx, FromDomainFocusData(d))
	return err
}

func (r *MongoRepository) ListFocusData(ctx context.Context, userID string, q FocusDataQuery) ([]domain.FocusData, error) {
	filter := bson.M{"user_id": userID}

	ts := bson.M{}
	if !q.Since.IsZero() {
		ts["$gte"] = q.Since.UTC()
	}
	if !q.Until.IsZero() {
		ts["$lte"] = q.Until.UTC()
	}
	if len(ts) > 0 {
		filter["timestamp"] = ts
	}

	order := -1
	if q.Ascending {
		order = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: order}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := r.db.Collection(focusDataCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []FocusDataRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	out := make([]domain.FocusData, len(records))
	for i := range records {
		out[i] = records[i].ToDomain()
	}
	return out, nil
}

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
