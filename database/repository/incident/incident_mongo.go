package incidentRepo

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

// MongoIncidentRepo implements IncidentRepository using MongoDB.
type MongoIncidentRepo struct {
	coll *mongo.Collection
}

// NewMongoIncidentRepo creates a new IncidentRepository backed by MongoDB.
func NewMongoIncidentRepo() IncidentRepository {
	coll := database.MongoClient.Database("servly").Collection("incidents")
	return &MongoIncidentRepo{coll: coll}
}

func (r *MongoIncidentRepo) Create(ctx context.Context, inc *models.Incident) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctxWithTimeout, inc); err != nil {
		return fmt.Errorf("error creating incident: %w", err)
	}
	return nil
}

func (r *MongoIncidentRepo) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var inc models.Incident
	if err := r.coll.FindOne(ctxWithTimeout, bson.M{"id": id}).Decode(&inc); err != nil {
		return nil, fmt.Errorf("incident not found: %w", err)
	}
	return &inc, nil
}

func (r *MongoIncidentRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.Incident, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.coll.Find(ctxWithTimeout, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing incidents for booking %s: %w", bookingID, err)
	}
	defer cursor.Close(ctxWithTimeout)

	var rows []models.Incident
	if err := cursor.All(ctxWithTimeout, &rows); err != nil {
		return nil, fmt.Errorf("error decoding incidents for booking %s: %w", bookingID, err)
	}
	return rows, nil
}

func (r *MongoIncidentRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": status}
	if status == models.IncidentResolved || status == models.IncidentDismissed {
		set["resolved_at"] = at
	}
	if _, err := r.coll.UpdateOne(ctxWithTimeout, bson.M{"id": id}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("error updating incident %s: %w", id, err)
	}
	return nil
}
