package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"techno-etl-service/internal/models"
)

// UserSettingsRepository stores one settings document per user in the
// user_settings collection (the users/<uid>/settings path of the
// realtime store). Writers race last-writer-wins; stale-update
// filtering by lastModified is the reconciler's job, not ours.
type UserSettingsRepository struct {
	collection *mongo.Collection
	mu         *sync.Mutex
}

func NewUserSettingsRepository(db *mongo.Database) *UserSettingsRepository {
	return &UserSettingsRepository{
		collection: db.Collection("user_settings"),
		mu:         &sync.Mutex{},
	}
}

func (r *UserSettingsRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user_settings index: %w", err)
	}
	return nil
}

// Load fetches the remote document for uid. A missing document returns
// (nil, nil); transport failures return the error for the caller to
// degrade.
func (r *UserSettingsRepository) Load(ctx context.Context, uid string) (*models.RemoteSettings, error) {
	var doc models.RemoteSettings
	err := r.collection.FindOne(ctx, bson.M{"userId": uid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load remote settings for %s: %w", uid, err)
	}
	return &doc, nil
}

// Save upserts the snapshot for uid, augmented with syncedAt and the
// device descriptor.
func (r *UserSettingsRepository) Save(ctx context.Context, uid string, snap *models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := models.RemoteSettings{
		Settings:   *snap,
		SyncedAt:   time.Now().UnixMilli(),
		DeviceInfo: models.CurrentDeviceInfo(),
	}
	doc.UserID = uid

	filter := bson.M{"userId": uid}
	update := bson.M{"$set": doc}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save remote settings for %s: %w", uid, err)
	}
	return nil
}

// Watch opens a change stream scoped to uid's document and invokes
// callback with each new remote snapshot. The returned cancel is
// idempotent.
func (r *UserSettingsRepository) Watch(ctx context.Context, uid string, callback func(*models.RemoteSettings)) (func(), error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "fullDocument.userId", Value: uid},
		}}},
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := r.collection.Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch remote settings for %s: %w", uid, err)
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var change struct {
				FullDocument models.RemoteSettings `bson:"fullDocument"`
			}
			if err := stream.Decode(&change); err != nil {
				log.Printf("Warning: failed to decode settings change for %s: %v", uid, err)
				continue
			}
			callback(&change.FullDocument)
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Warning: settings change stream for %s ended: %v", uid, err)
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
