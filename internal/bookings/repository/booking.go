package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "unimarket/internal/bookings/errors"
	"unimarket/pkg/config"
	"unimarket/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// BookingRepository is the ledger of every stall purchase attempt.
// Records are never deleted; state only moves forward via Patch.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByTxRef(ctx context.Context, txRef string) (*model.Booking, error)
	FindAll(ctx context.Context, scope model.ListScope, limit int, offset int64) ([]*model.Booking, error)
	FindPending(ctx context.Context, scope model.ListScope, limit int) ([]*model.Booking, error)
	Patch(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error)
	Count(ctx context.Context, scope model.ListScope) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout, respecting any tighter
// deadline the caller already carries.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// EnsureIndexes creates the indexes the ledger depends on. Transaction
// references must be unique so a reference can never settle two bookings.
func (r *mongoBookingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tx_ref", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"tx_ref": bson.M{"$gt": ""}}),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateTxRef, booking.TxRef)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoBookingRepository) FindByTxRef(ctx context.Context, txRef string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"tx_ref": txRef})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	normalize(&booking)
	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, scope model.ListScope, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, scopeFilter(scope), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

// FindPending returns unsettled records newest first, matching the
// listing order everywhere else. Records written before the status field
// existed count as pending.
func (r *mongoBookingRepository) FindPending(ctx context.Context, scope model.ListScope, limit int) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter, opts := pendingQuery(scope, limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending bookings: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeAll(ctx, cursor)
}

// Patch applies a partial update as one atomic write and returns the
// record as it stands after the update.
func (r *mongoBookingRepository) Patch(ctx context.Context, id string, patch *model.BookingPatch) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	if patch == nil || patch.IsEmpty() {
		return r.findOne(ctx, bson.M{"_id": objectID})
	}

	set := bson.M{}
	if patch.TxRef != nil {
		set["tx_ref"] = *patch.TxRef
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.PaymentStatus != nil {
		set["payment_status"] = *patch.PaymentStatus
	}
	if patch.PaychanguRef != nil {
		set["paychangu_ref"] = *patch.PaychanguRef
	}
	if patch.VerifiedAt != nil {
		set["verified_at"] = *patch.VerifiedAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w", bookingserrors.ErrDuplicateTxRef)
		}
		return nil, fmt.Errorf("failed to patch booking: %w", err)
	}

	normalize(&booking)
	return &booking, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, scope model.ListScope) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, scopeFilter(scope))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

// pendingQuery builds the filter and options behind FindPending
func pendingQuery(scope model.ListScope, limit int) (bson.M, *options.FindOptions) {
	filter := scopeFilter(scope)
	filter["$or"] = []bson.M{
		{"status": model.StatusPending},
		{"status": ""},
		{"status": bson.M{"$exists": false}},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	return filter, opts
}

func scopeFilter(scope model.ListScope) bson.M {
	filter := bson.M{}
	if scope.UserID != "" {
		filter["user_id"] = scope.UserID
	}
	return filter
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]*model.Booking, error) {
	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	for _, b := range bookings {
		normalize(b)
	}
	return bookings, nil
}

// normalize backfills fields that predate the current document shape
func normalize(b *model.Booking) {
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = model.PaymentAwaitingInitiation
	}
}
