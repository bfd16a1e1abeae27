package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/mongodb"
)

type userDocument struct {
	ID           string     `bson:"_id"`
	Username     string     `bson:"username"`
	PasswordHash string     `bson:"passwordHash"`
	Role         string     `bson:"role"`
	Name         string     `bson:"name"`
	Email        *string    `bson:"email,omitempty"`
	ProfileImage *string    `bson:"profileImage,omitempty"`
	LastLoginAt  *time.Time `bson:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func toUserDocument(u *models.User) userDocument {
	return userDocument{
		ID:           u.ID.String(),
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) model() models.User {
	var lastLogin *time.Time
	if d.LastLoginAt != nil {
		utc := d.LastLoginAt.UTC()
		lastLogin = &utc
	}
	return models.User{
		ID:           mongodb.ParseID(d.ID),
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Role:         enums.Role(d.Role),
		Name:         d.Name,
		Email:        d.Email,
		ProfileImage: d.ProfileImage,
		LastLoginAt:  lastLogin,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns the document adapter.
func NewMongoRepository(client *mongodb.Client) Repository {
	return &mongoRepository{coll: client.Collection(mongodb.CollectionUsers)}
}

func (r *mongoRepository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if _, err := r.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		return nil, mongodb.Normalize(err)
	}
	return user, nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongodb.Normalize(err)
	}
	user := doc.model()
	return &user, nil
}

func (r *mongoRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": mongodb.IDStrings(ids)}}, options.Find())
}

func (r *mongoRepository) List(ctx context.Context, role *enums.Role) ([]models.User, error) {
	filter := bson.M{}
	if role != nil {
		filter["role"] = string(*role)
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.model())
	}
	return out, nil
}

func (r *mongoRepository) Update(ctx context.Context, user *models.User) error {
	set := bson.M{
		"username":     user.Username,
		"passwordHash": user.PasswordHash,
		"role":         string(user.Role),
		"name":         user.Name,
		"updatedAt":    user.UpdatedAt,
	}
	unset := bson.M{}
	if user.Email != nil {
		set["email"] = *user.Email
	} else {
		unset["email"] = ""
	}
	if user.ProfileImage != nil {
		set["profileImage"] = *user.ProfileImage
	} else {
		unset["profileImage"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID.String()}, update)
	if err != nil {
		return mongodb.Normalize(err)
	}
	if result.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *mongoRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}

func (r *mongoRepository) ListIDsByRole(ctx context.Context, role enums.Role) ([]uuid.UUID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "createdAt": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"role": string(role)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(docs))
	for _, doc := range docs {
		if id := mongodb.ParseID(doc.ID); id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *mongoRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
