package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/peer-review-service/internal/domain"
)

// Mongo collection names.
const (
	IdentitiesCollection = "identities"
	ReviewsCollection    = "reviews"
)

type identityDocument struct {
	ID                    string     `bson:"_id"`
	Email                 string     `bson:"email"`
	Name                  string     `bson:"name"`
	PasswordHash          string     `bson:"password_hash"`
	Role                  string     `bson:"role"`
	EmailVerified         bool       `bson:"email_verified"`
	Faculty               string     `bson:"faculty"`
	Department            string     `bson:"department"`
	VerificationToken     string     `bson:"verification_token,omitempty"`
	VerificationExpiresAt *time.Time `bson:"verification_expires_at,omitempty"`
	CreatedAt             time.Time  `bson:"created_at"`
}

type reviewDocument struct {
	ID            string    `bson:"_id"`
	ReviewerID    string    `bson:"reviewer_id"`
	ReviewedID    string    `bson:"reviewed_id"`
	Rating        int       `bson:"rating"`
	Comment       string    `bson:"comment"`
	ProjectType   string    `bson:"project_type"`
	CreatedAt     time.Time `bson:"created_at"`
	LastUpdatedAt time.Time `bson:"last_updated_at"`
}

// EnsureMongoIndexes creates the unique indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(IdentitiesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"verification_token": bson.M{"$type": "string"}},
			),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ReviewsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reviewer_id", Value: 1}, {Key: "reviewed_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "reviewed_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

type mongoIdentityRepository struct {
	coll *mongo.Collection
}

// NewMongoIdentityRepository returns a MongoDB-backed implementation.
func NewMongoIdentityRepository(db *mongo.Database) IdentityRepository {
	return &mongoIdentityRepository{coll: db.Collection(IdentitiesCollection)}
}

func (r *mongoIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	_, err := r.coll.InsertOne(ctx, toIdentityDocument(identity))
	return translateMongoError(err)
}

func (r *mongoIdentityRepository) Update(ctx context.Context, identity *domain.Identity) error {
	doc := toIdentityDocument(identity)
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": identity.ID}, doc)
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoIdentityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *mongoIdentityRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"verification_token": token})
}

func (r *mongoIdentityRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Identity, error) {
	out := make(map[string]*domain.Identity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []identityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		identity := docs[i].toDomain()
		out[identity.ID] = &identity
	}
	return out, nil
}

func (r *mongoIdentityRepository) List(ctx context.Context, filter IdentityFilter) ([]domain.Identity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.coll.Find(ctx, identityQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	var docs []identityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	identities := make([]domain.Identity, 0, len(docs))
	for i := range docs {
		identities = append(identities, docs[i].toDomain())
	}
	return identities, nil
}

func (r *mongoIdentityRepository) Count(ctx context.Context, filter IdentityFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, identityQuery(filter))
}

func (r *mongoIdentityRepository) findOne(ctx context.Context, query bson.M) (*domain.Identity, error) {
	var doc identityDocument
	if err := r.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	identity := doc.toDomain()
	return &identity, nil
}

func identityQuery(filter IdentityFilter) bson.M {
	query := bson.M{}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
		}
	}
	if filter.Role != "" {
		query["role"] = string(filter.Role)
	}
	return query
}

func toIdentityDocument(identity *domain.Identity) identityDocument {
	return identityDocument{
		ID:                    identity.ID,
		Email:                 identity.Email,
		Name:                  identity.Name,
		PasswordHash:          identity.PasswordHash,
		Role:                  string(identity.Role),
		EmailVerified:         identity.EmailVerified,
		Faculty:               identity.Faculty,
		Department:            identity.Department,
		VerificationToken:     identity.VerificationToken,
		VerificationExpiresAt: identity.VerificationExpiresAt,
		CreatedAt:             identity.CreatedAt,
	}
}

func (d identityDocument) toDomain() domain.Identity {
	return domain.Identity{
		ID:                    d.ID,
		Email:                 d.Email,
		Name:                  d.Name,
		PasswordHash:          d.PasswordHash,
		Role:                  domain.Role(d.Role),
		EmailVerified:         d.EmailVerified,
		Faculty:               d.Faculty,
		Department:            d.Department,
		VerificationToken:     d.VerificationToken,
		VerificationExpiresAt: d.VerificationExpiresAt,
		CreatedAt:             d.CreatedAt,
	}
}

type mongoReviewRepository struct {
	coll *mongo.Collection
}

// NewMongoReviewRepository returns a MongoDB-backed implementation.
func NewMongoReviewRepository(db *mongo.Database) ReviewRepository {
	return &mongoReviewRepository{coll: db.Collection(ReviewsCollection)}
}

func (r *mongoReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	_, err := r.coll.InsertOne(ctx, reviewDocument{
		ID:            review.ID,
		ReviewerID:    review.ReviewerID,
		ReviewedID:    review.ReviewedID,
		Rating:        review.Rating,
		Comment:       review.Comment,
		ProjectType:   string(review.ProjectType),
		CreatedAt:     review.CreatedAt,
		LastUpdatedAt: review.LastUpdatedAt,
	})
	return translateMongoError(err)
}

func (r *mongoReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": review.ID}, bson.M{"$set": bson.M{
		"rating":          review.Rating,
		"comment":         review.Comment,
		"project_type":    string(review.ProjectType),
		"last_updated_at": review.LastUpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	var doc reviewDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	review := doc.toDomain()
	return &review, nil
}

func (r *mongoReviewRepository) Exists(ctx context.Context, reviewerID, reviewedID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"reviewer_id": reviewerID, "reviewed_id": reviewedID},
		options.Count().SetLimit(1),
	)
	return n > 0, err
}

func (r *mongoReviewRepository) List(ctx context.Context, filter ReviewFilter) ([]domain.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.coll.Find(ctx, reviewQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	var docs []reviewDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	reviews := make([]domain.Review, 0, len(docs))
	for i := range docs {
		reviews = append(reviews, docs[i].toDomain())
	}
	return reviews, nil
}

func (r *mongoReviewRepository) Count(ctx context.Context, filter ReviewFilter) (int64, error) {
	return r.coll.CountDocuments(ctx, reviewQuery(filter))
}

func (r *mongoReviewRepository) RatingCounts(ctx context.Context, reviewedID string) (map[int]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"reviewed_id": reviewedID}}},
		{{Key: "$group", Value: bson.M{"_id": "$rating", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Rating int   `bson:"_id"`
		Count  int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[int]int64, len(rows))
	for _, row := range rows {
		counts[row.Rating] = row.Count
	}
	return counts, nil
}

func (r *mongoReviewRepository) DeleteByIdentity(ctx context.Context, identityID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"reviewer_id": identityID},
		bson.M{"reviewed_id": identityID},
	}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func reviewQuery(filter ReviewFilter) bson.M {
	query := bson.M{}
	if filter.ReviewerID != "" {
		query["reviewer_id"] = filter.ReviewerID
	}
	if filter.ReviewedID != "" {
		query["reviewed_id"] = filter.ReviewedID
	}
	if filter.MinRating > 0 {
		query["rating"] = bson.M{"$gte": filter.MinRating}
	}
	if filter.ProjectType != domain.ProjectTypeNone {
		query["project_type"] = string(filter.ProjectType)
	}
	return query
}

func (d reviewDocument) toDomain() domain.Review {
	return domain.Review{
		ID:            d.ID,
		ReviewerID:    d.ReviewerID,
		ReviewedID:    d.ReviewedID,
		Rating:        d.Rating,
		Comment:       d.Comment,
		ProjectType:   domain.ProjectType(d.ProjectType),
		CreatedAt:     d.CreatedAt,
		LastUpdatedAt: d.LastUpdatedAt,
	}
}

func translateMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
