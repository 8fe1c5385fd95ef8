package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/silicalab/internal/domain/models"
)

const (
	reportsCollection  = "reports"
	countersCollection = "counters"
	reportCounterKey   = "reports"
)

// MongoDBRepository stores each report as one document with its sieve lines
// embedded, so a report is never visible without all of its lines.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
	now    func() time.Time
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		dbName: dbName,
		now:    time.Now,
	}, nil
}

func (r *MongoDBRepository) reports() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(reportsCollection)
}

// EnsureSchema creates the indexes used by the list view. Safe to call repeatedly.
func (r *MongoDBRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.reports().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("created_at_desc"),
	})
	if err != nil {
		return fmt.Errorf("create reports index: %w", err)
	}
	return nil
}

// Save assigns the next integer id and inserts the report document.
func (r *MongoDBRepository) Save(ctx context.Context, report models.Report) (models.Report, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return models.Report{}, err
	}

	report.ID = id
	report.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	if _, err := r.reports().InsertOne(ctx, toDocument(report)); err != nil {
		return models.Report{}, fmt.Errorf("failed to insert report: %w", err)
	}
	return report, nil
}

// Get fetches a report by id.
func (r *MongoDBRepository) Get(ctx context.Context, id int64) (models.Report, error) {
	var report models.Report
	err := r.reports().FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Report{}, fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to load report %d: %w", id, err)
	}
	return fromDocument(report), nil
}

// List returns every report, newest id first.
func (r *MongoDBRepository) List(ctx context.Context) ([]models.Report, error) {
	cursor, err := r.reports().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	for i := range reports {
		reports[i] = fromDocument(reports[i])
	}
	return reports, nil
}

// Delete removes the report document together with its embedded lines.
func (r *MongoDBRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.reports().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete report %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.client.Database(r.dbName).Collection(countersCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": reportCounterKey},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate report id: %w", err)
	}
	return counter.Seq, nil
}

// toDocument normalizes a report before it is written: an empty sieve slice is
// stored as an array rather than null.
func toDocument(report models.Report) models.Report {
	if report.Sieves == nil {
		report.Sieves = []models.SieveLine{}
	}
	return report
}

// fromDocument restores UTC on dates decoded by the driver, which returns local time.
func fromDocument(report models.Report) models.Report {
	report.ReportDate = report.ReportDate.UTC()
	report.CreatedAt = report.CreatedAt.UTC()
	return report
}
