package assignmentRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servly/database"
	"servly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAssignmentRepo implements AssignmentRepository using MongoDB.
type MongoAssignmentRepo struct {
	coll *mongo.Collection
}

// NewMongoAssignmentRepo creates a new AssignmentRepository backed by MongoDB.
func NewMongoAssignmentRepo() AssignmentRepository {
	coll := database.MongoClient.Database("servly").Collection("assignments")
	return &MongoAssignmentRepo{coll: coll}
}

func (r *MongoAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctxWithTimeout, a); err != nil {
		return fmt.Errorf("error creating assignment: %w", err)
	}
	return nil
}

func (r *MongoAssignmentRepo) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var a models.Assignment
	if err := r.coll.FindOne(ctxWithTimeout, bson.M{"id": id}).Decode(&a); err != nil {
		return nil, fmt.Errorf("assignment not found: %w", err)
	}
	return &a, nil
}

func (r *MongoAssignmentRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.Assignment, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "rank", Value: 1}})
	cursor, err := r.coll.Find(ctxWithTimeout, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing assignments for booking %s: %w", bookingID, err)
	}
	defer cursor.Close(ctxWithTimeout)

	var rows []models.Assignment
	if err := cursor.All(ctxWithTimeout, &rows); err != nil {
		return nil, fmt.Errorf("error decoding assignments for booking %s: %w", bookingID, err)
	}
	return rows, nil
}

func (r *MongoAssignmentRepo) GetPending(ctx context.Context, bookingID string) (*models.Assignment, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var a models.Assignment
	err := r.coll.FindOne(ctxWithTimeout, bson.M{
		"booking_id": bookingID,
		"status":     models.AssignmentPending,
	}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching pending assignment for booking %s: %w", bookingID, err)
	}
	return &a, nil
}

func (r *MongoAssignmentRepo) CountPending(ctx context.Context, bookingID string) (int64, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := r.coll.CountDocuments(ctxWithTimeout, bson.M{
		"booking_id": bookingID,
		"status":     models.AssignmentPending,
	})
	if err != nil {
		return 0, fmt.Errorf("error counting pending assignments for booking %s: %w", bookingID, err)
	}
	return n, nil
}

// TransitionStatus performs a compare-and-set on the status field: the filter
// matches the row only while it still holds the expected status, so of two
// racing transitions exactly one observes a match.
func (r *MongoAssignmentRepo) TransitionStatus(ctx context.Context, id, from, to string, at time.Time, reason string) (*models.Assignment, bool, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "status": from}
	set := bson.M{"status": to, "responded_at": at}
	if reason != "" {
		set["reason"] = reason
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Assignment
	err := r.coll.FindOneAndUpdate(ctxWithTimeout, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Lost the race: return the row as it stands now.
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error transitioning assignment %s: %w", id, err)
	}
	return &updated, true, nil
}

func (r *MongoAssignmentRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctxWithTimeout, bson.M{
		"status":     models.AssignmentPending,
		"expires_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("error listing expired pending assignments: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var rows []models.Assignment
	if err := cursor.All(ctxWithTimeout, &rows); err != nil {
		return nil, fmt.Errorf("error decoding expired pending assignments: %w", err)
	}
	return rows, nil
}
