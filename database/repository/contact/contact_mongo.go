package contactRepo

import (
	"context"
	"fmt"
	"time"

	"servly/database"
	"servly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ContactRepository resolves push targets for notification recipients.
type ContactRepository interface {
	// GetToken returns the FCM token registered for a (role, id) pair.
	GetToken(ctx context.Context, role, id string) (string, error)
	// SetToken registers or replaces the FCM token for a recipient.
	SetToken(ctx context.Context, role, id, token string) error
}

// MongoContactRepo implements ContactRepository using MongoDB.
type MongoContactRepo struct {
	coll *mongo.Collection
}

// NewMongoContactRepo creates a new ContactRepository backed by MongoDB.
func NewMongoContactRepo() ContactRepository {
	coll := database.MongoClient.Database("servly").Collection("contacts")
	return &MongoContactRepo{coll: coll}
}

func (r *MongoContactRepo) GetToken(ctx context.Context, role, id string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var contact models.Contact
	err := r.coll.FindOne(ctxWithTimeout, bson.M{"role": role, "id": id}).Decode(&contact)
	if err != nil {
		return "", fmt.Errorf("contact not found for %s %s: %w", role, id, err)
	}
	if contact.FCMToken == "" {
		return "", fmt.Errorf("contact %s %s has no FCM token", role, id)
	}
	return contact.FCMToken, nil
}

func (r *MongoContactRepo) SetToken(ctx context.Context, role, id, token string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"role": role, "id": id}
	update := bson.M{"$set": bson.M{"fcm_token": token, "updated_at": time.Now()}}
	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctxWithTimeout, filter, update, opts); err != nil {
		return fmt.Errorf("error setting token for %s %s: %w", role, id, err)
	}
	return nil
}
