// Package mongostore keeps users and feedback in MongoDB. Linked identities
// are embedded in the user document.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	feedbackCollection = "feedback"
)

type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	feedback *mongo.Collection
}

var (
	_ store.UserStore     = (*Store)(nil)
	_ store.FeedbackStore = (*Store)(nil)
)

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRegistry(newRegistry()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		users:    db.Collection(usersCollection),
		feedback: db.Collection(feedbackCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	slog.Info("document store connected", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "billing_customer_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{
			Keys: bson.D{{Key: "identities.provider", Value: 1}, {Key: "identities.provider_account_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"identities.provider": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = s.feedback.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "is_public", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create feedback indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	for i := range user.Identities {
		user.Identities[i].UserID = user.ID
	}
	return &user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (s *Store) FindUserByIdentity(ctx context.Context, provider, accountID string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"identities": bson.M{"$elemMatch": bson.M{
		"provider":            provider,
		"provider_account_id": accountID,
	}}})
}

func (s *Store) FindUserByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"billing_customer_id": customerID})
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	_ = user.BeforeCreate(nil)
	user.CreatedAt, user.UpdatedAt = now, now
	for i := range user.Identities {
		_ = user.Identities[i].BeforeCreate(nil)
		user.Identities[i].UserID = user.ID
		user.Identities[i].CreatedAt = now
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

// LinkIdentity pushes the identity only when the user has none for the
// provider yet; the unique index rejects an account already owned elsewhere.
func (s *Store) LinkIdentity(ctx context.Context, userID uuid.UUID, identity *models.LinkedIdentity) error {
	_ = identity.BeforeCreate(nil)
	identity.UserID = userID
	identity.CreatedAt = time.Now()

	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "identities.provider": bson.M{"$ne": identity.Provider}},
		bson.M{
			"$push": bson.M{"identities": identity},
			"$set":  bson.M{"updated_at": identity.CreatedAt},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to link identity: %w", translate(err))
	}
	if res.MatchedCount == 0 {
		if _, err := s.FindUserByID(ctx, userID); err != nil {
			return err
		}
		return fmt.Errorf("failed to link identity: %w", store.ErrDuplicate)
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, userID uuid.UUID, update store.SubscriptionUpdate) error {
	set := bson.M{
		"subscription_status": update.Status,
		"subscription_tier":   update.Tier,
		"updated_at":          time.Now(),
	}
	if update.CustomerID != nil {
		set["billing_customer_id"] = *update.CustomerID
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"last_login_at": at}})
	return err
}

func (s *Store) CreateFeedback(ctx context.Context, fb *models.Feedback) error {
	now := time.Now()
	_ = fb.BeforeCreate(nil)
	fb.CreatedAt, fb.UpdatedAt = now, now

	if _, err := s.feedback.InsertOne(ctx, fb); err != nil {
		return fmt.Errorf("failed to create feedback: %w", translate(err))
	}
	return nil
}

func (s *Store) FindFeedback(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	var fb models.Feedback
	if err := s.feedback.FindOne(ctx, bson.M{"_id": id}).Decode(&fb); err != nil {
		return nil, translate(err)
	}
	return &fb, nil
}

func (s *Store) ListFeedback(ctx context.Context, filter store.FeedbackFilter) ([]models.Feedback, int64, error) {
	query := feedbackQuery(filter)

	total, err := s.feedback.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(filter.Offset))

	cur, err := s.feedback.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	items := []models.Feedback{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func feedbackQuery(filter store.FeedbackFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	if filter.PublicOnly {
		query["is_public"] = true
		query["type"] = models.FeedbackTypeReview
	}
	return query
}

func (s *Store) ApplyAdminResponse(ctx context.Context, id uuid.UUID, resp store.AdminResponse) (*models.Feedback, error) {
	set := bson.M{
		"admin_response": resp.Response,
		"status":         resp.Status,
		"responded_at":   resp.RespondedAt,
		"updated_at":     time.Now(),
	}
	if resp.InternalNotes != nil {
		set["internal_notes"] = *resp.InternalNotes
	}

	var updated models.Feedback
	err := s.feedback.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": resp.ExpectedStatus},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := s.FindFeedback(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply admin response: %w", err)
	}
	return &updated, nil
}

func (s *Store) SetExternalRef(ctx context.Context, id uuid.UUID, externalID, contactID string) error {
	set := bson.M{}
	if externalID != "" {
		set["external_id"] = externalID
	}
	if contactID != "" {
		set["contact_id"] = contactID
	}
	if len(set) == 0 {
		return nil
	}
	_, err := s.feedback.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return err
	}
}
