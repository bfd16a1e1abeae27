package loans

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

type loanDocument struct {
	ID         string     `bson:"_id"`
	UserID     string     `bson:"userId"`
	ItemID     string     `bson:"itemId"`
	Quantity   int        `bson:"quantity"`
	Status     string     `bson:"status"`
	BorrowDate time.Time  `bson:"borrowDate"`
	ReturnDate *time.Time `bson:"returnDate,omitempty"`
	Notes      *string    `bson:"notes,omitempty"`
	CreatedAt  time.Time  `bson:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt"`
}

func toLoanDocument(l *models.Loan) loanDocument {
	return loanDocument{
		ID:         l.ID.String(),
		UserID:     l.UserID.String(),
		ItemID:     l.ItemID.String(),
		Quantity:   l.Quantity,
		Status:     string(l.Status),
		BorrowDate: l.BorrowDate,
		ReturnDate: l.ReturnDate,
		Notes:      l.Notes,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func (d loanDocument) model() models.Loan {
	var returnDate *time.Time
	if d.ReturnDate != nil {
		utc := d.ReturnDate.UTC()
		returnDate = &utc
	}
	return models.Loan{
		ID:         mongodb.ParseID(d.ID),
		UserID:     mongodb.ParseID(d.UserID),
		ItemID:     mongodb.ParseID(d.ItemID),
		Quantity:   d.Quantity,
		Status:     enums.LoanStatus(d.Status),
		BorrowDate: d.BorrowDate.UTC(),
		ReturnDate: returnDate,
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns the document adapter.
func NewMongoRepository(client *mongodb.Client) Repository {
	return &mongoRepository{coll: client.Collection(mongodb.CollectionLoans)}
}

func (r *mongoRepository) Create(ctx context.Context, loan *models.Loan) error {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	if loan.UpdatedAt.IsZero() {
		loan.UpdatedAt = loan.CreatedAt
	}
	_, err := r.coll.InsertOne(ctx, toLoanDocument(loan))
	return mongodb.Normalize(err)
}

func (r *mongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var doc loanDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongodb.Normalize(err)
	}
	loan := doc.model()
	return &loan, nil
}

func (r *mongoRepository) List(ctx context.Context, filter ListFilter) ([]models.Loan, error) {
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
	return r.find(ctx, query, opts)
}

func (r *mongoRepository) ListActive(ctx context.Context, userID *uuid.UUID) ([]models.Loan, error) {
	query := bson.M{"status": bson.M{"$in": bson.A{string(enums.LoanStatusApproved), string(enums.LoanStatusBorrowed)}}}
	if userID != nil {
		query["userId"] = userID.String()
	}
	opts := options.Find().SetSort(bson.D{{Key: "returnDate", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, query, opts)
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Loan, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []loanDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Loan, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.model())
	}
	return out, nil
}

func (r *mongoRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LoanStatus, at time.Time) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (r *mongoRepository) UpdateReturnDate(ctx context.Context, id uuid.UUID, returnDate *time.Time, at time.Time) error {
	update := bson.M{"$set": bson.M{"returnDate": returnDate, "updatedAt": at}}
	if returnDate == nil {
		update = bson.M{"$set": bson.M{"updatedAt": at}, "$unset": bson.M{"returnDate": ""}}
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *mongoRepository) CountOpenByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{
		"itemId": itemID.String(),
		"status": bson.M{"$ne": string(enums.LoanStatusReturned)},
	})
}

func (r *mongoRepository) CountOpenByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{
		"userId": userID.String(),
		"status": bson.M{"$ne": string(enums.LoanStatusReturned)},
	})
}
