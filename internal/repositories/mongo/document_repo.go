package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

const DocumentsCollection = "documents"

type DocumentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.Document, error)

	// CompareAndSetStatus replaces the status only if the stored one still
	// matches expected on state, progress and run.
	CompareAndSetStatus(ctx context.Context, id string, expected, next models.ProcessingStatus) (bool, error)

	SetRecord(ctx context.Context, id string, rec *models.StructuredRecord) error
	SetAnalysis(ctx context.Context, id string, a *models.Analysis) error

	// AppendVersion pushes v if the document's version sequence is still
	// v.Number-1. Versions are never rewritten.
	AppendVersion(ctx context.Context, id string, v models.Version) (bool, error)
}

type documentRepo struct {
	col *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) DocumentRepository {
	return &documentRepo{col: db.Collection(DocumentsCollection)}
}

func (r *documentRepo) Create(ctx context.Context, d *models.Document) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Versions == nil {
		d.Versions = []models.Version{}
	}
	_, err := r.col.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return utils.E(utils.CodeConflict, "DocumentRepo.Create", "document already exists", err)
	}
	return err
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"record": 0, "versions": 0})

	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Document{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) CompareAndSetStatus(ctx context.Context, id string, expected, next models.ProcessingStatus) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":             id,
			"status.state":    expected.State,
			"status.progress": expected.Progress,
			"status.run":      expected.Run,
		},
		bson.M{"$set": bson.M{
			"status":     next,
			"updated_at": next.UpdatedAt,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *documentRepo) SetRecord(ctx context.Context, id string, rec *models.StructuredRecord) error {
	return r.set(ctx, id, bson.M{"record": rec})
}

func (r *documentRepo) SetAnalysis(ctx context.Context, id string, a *models.Analysis) error {
	return r.set(ctx, id, bson.M{"analysis": a})
}

func (r *documentRepo) set(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *documentRepo) AppendVersion(ctx context.Context, id string, v models.Version) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "version_seq": v.Number - 1},
		bson.M{
			"$push": bson.M{"versions": v},
			"$set":  bson.M{"version_seq": v.Number, "updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
