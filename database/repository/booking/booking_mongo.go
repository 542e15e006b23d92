package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"servly/database"
	"servly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo creates a new BookingRepository backed by MongoDB.
func NewMongoBookingRepo() BookingRepository {
	coll := database.MongoClient.Database("servly").Collection("bookings")
	return &MongoBookingRepo{coll: coll}
}

func (r *MongoBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctxWithTimeout, b); err != nil {
		return fmt.Errorf("error creating booking: %w", err)
	}
	return nil
}

func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var b models.Booking
	if err := r.coll.FindOne(ctxWithTimeout, bson.M{"id": id}).Decode(&b); err != nil {
		return nil, fmt.Errorf("booking not found: %w", err)
	}
	return &b, nil
}

func (r *MongoBookingRepo) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return false, fmt.Errorf("error updating booking %s status: %w", id, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoBookingRepo) SetProvider(ctx context.Context, id, providerID string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"provider_id": providerID, "updated_at": time.Now()}}
	if _, err := r.coll.UpdateOne(ctxWithTimeout, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error setting provider on booking %s: %w", id, err)
	}
	return nil
}

func (r *MongoBookingRepo) MarkUrgent(ctx context.Context, id string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"urgent": true, "updated_at": time.Now()}}
	if _, err := r.coll.UpdateOne(ctxWithTimeout, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error marking booking %s urgent: %w", id, err)
	}
	return nil
}

func (r *MongoBookingRepo) ListByStatus(ctx context.Context, status string) ([]models.Booking, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctxWithTimeout, bson.M{"status": status})
	if err != nil {
		return nil, fmt.Errorf("error listing bookings with status %s: %w", status, err)
	}
	defer cursor.Close(ctxWithTimeout)

	var rows []models.Booking
	if err := cursor.All(ctxWithTimeout, &rows); err != nil {
		return nil, fmt.Errorf("error decoding bookings with status %s: %w", status, err)
	}
	return rows, nil
}

func (r *MongoBookingRepo) Freeze(ctx context.Context, id string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": models.BookingFrozen, "updated_at": time.Now()}}
	if _, err := r.coll.UpdateOne(ctxWithTimeout, bson.M{"id": id}, update); err != nil {
		return fmt.Errorf("error freezing booking %s: %w", id, err)
	}
	return nil
}
