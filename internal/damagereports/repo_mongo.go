package damagereports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/mongodb"
)

type reportDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"userId"`
	ItemID      string    `bson:"itemId"`
	Description string    `bson:"description"`
	PhotoURL    *string   `bson:"photoUrl,omitempty"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func (d reportDocument) model() models.DamageReport {
	return models.DamageReport{
		ID:          mongodb.ParseID(d.ID),
		UserID:      mongodb.ParseID(d.UserID),
		ItemID:      mongodb.ParseID(d.ItemID),
		Description: d.Description,
		PhotoURL:    d.PhotoURL,
		Status:      enums.DamageReportStatus(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns the document adapter.
func NewMongoRepository(client *mongodb.Client) Repository {
	return &mongoRepository{coll: client.Collection(mongodb.CollectionDamageReports)}
}

func (r *mongoRepository) Create(ctx context.Context, report *models.DamageReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = report.CreatedAt
	}
	_, err := r.coll.InsertOne(ctx, reportDocument{
		ID:          report.ID.String(),
		UserID:      report.UserID.String(),
		ItemID:      report.ItemID.String(),
		Description: report.Description,
		PhotoURL:    report.PhotoURL,
		Status:      string(report.Status),
		CreatedAt:   report.CreatedAt,
		UpdatedAt:   report.UpdatedAt,
	})
	return mongodb.Normalize(err)
}

func (r *mongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DamageReport, error) {
	var doc reportDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongodb.Normalize(err)
	}
	report := doc.model()
	return &report, nil
}

func (r *mongoRepository) List(ctx context.Context, filter ListFilter) ([]models.DamageReport, error) {
	query := bson.M{}
	if filter.UserID != nil {
		query["userId"] = filter.UserID.String()
	}
	if filter.ItemID != nil {
		query["itemId"] = filter.ItemID.String()
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	if filter.CreatedAfter != nil {
		query["createdAt"] = bson.M{"$gte": filter.CreatedAfter.UTC()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.DamageReport, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.model())
	}
	return out, nil
}

func (r *mongoRepository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(enums.DamageReportStatusPending)},
		bson.M{"$set": bson.M{"status": string(enums.DamageReportStatusDone), "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}
