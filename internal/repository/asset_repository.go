package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"document-service/internal/logger"
	"document-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const DefaultCollection = "assets"

type AssetRepository struct {
	collection *mongo.Collection
	log        *logger.Logger
	now        func() time.Time
}

func NewAssetRepository(db *mongo.Database, collection string, log *logger.Logger) *AssetRepository {
	if collection == "" {
		collection = DefaultCollection
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &AssetRepository{
		collection: db.Collection(collection),
		log:        log.With("component", "asset_repository"),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique id index and the lookup indexes used by
// delete-by-url and listing. Safe to call on every start.
func (r *AssetRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("id_unique"),
		},
		{
			Keys:    bson.D{{Key: "blobName", Value: 1}},
			Options: options.Index().SetName("blobName"),
		},
		{
			Keys: bson.D{
				{Key: "purpose", Value: 1},
				{Key: "mediaKind", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("purpose_mediaKind_createdAt"),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating asset indexes: %w", err)
	}
	return nil
}

// Create stamps timestamps and inserts the asset.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	now := r.now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, asset); err != nil {
		return nil, fmt.Errorf("error creating asset %s: %w", asset.ID, err)
	}
	return asset, nil
}

// FindOne returns nil, nil when no live asset has the id.
func (r *AssetRepository) FindOne(ctx context.Context, id string) (*models.Asset, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

// FindByBlobName matches the stored relative blob name exactly.
func (r *AssetRepository) FindByBlobName(ctx context.Context, blobName string) (*models.Asset, error) {
	return r.findOne(ctx, bson.M{"blobName": blobName})
}

func (r *AssetRepository) findOne(ctx context.Context, filter bson.M) (*models.Asset, error) {
	var asset models.Asset
	err := r.collection.FindOne(ctx, live(filter)).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding asset: %w", err)
	}
	return &asset, nil
}

// DeleteOne removes the asset and reports whether it existed. hard=false
// marks the housekeeping call site; the record is still removed.
func (r *AssetRepository) DeleteOne(ctx context.Context, id string, hard bool) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, fmt.Errorf("error deleting asset %s: %w", id, err)
	}
	if !hard {
		r.log.Info("Asset record removed by housekeeping delete", "asset_id", id, "deleted", result.DeletedCount > 0)
	}
	return result.DeletedCount > 0, nil
}

// List returns one page of live assets, newest first, and the total count.
func (r *AssetRepository) List(ctx context.Context, filter models.AssetFilter, page, limit int) ([]*models.Asset, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query := bson.M{}
	if filter.Purpose != "" {
		query["purpose"] = filter.Purpose
	}
	if filter.MediaKind != "" {
		query["mediaKind"] = filter.MediaKind
	}
	query = live(query)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting assets: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing assets: %w", err)
	}
	defer cursor.Close(ctx)

	assets := make([]*models.Asset, 0, limit)
	if err := cursor.All(ctx, &assets); err != nil {
		return nil, 0, fmt.Errorf("error decoding assets: %w", err)
	}
	return assets, total, nil
}

// UpdateStatus returns nil, nil when the asset does not exist.
func (r *AssetRepository) UpdateStatus(ctx context.Context, id string, status models.AssetStatus, message *string) (*models.Asset, error) {
	set := bson.M{"status": status, "updatedAt": r.now().UTC()}
	update := bson.M{"$set": set}
	if message != nil {
		set["statusMessage"] = *message
	} else {
		update["$unset"] = bson.M{"statusMessage": ""}
	}
	return r.findOneAndUpdate(ctx, id, update)
}

// AddVariant appends v to the asset's variants.
func (r *AssetRepository) AddVariant(ctx context.Context, id string, v models.Variant) (*models.Asset, error) {
	update := bson.M{
		"$push": bson.M{"variants": v},
		"$set":  bson.M{"updatedAt": r.now().UTC()},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *AssetRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*models.Asset, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var asset models.Asset
	err := r.collection.FindOneAndUpdate(ctx, live(bson.M{"id": id}), update, opts).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error updating asset %s: %w", id, err)
	}
	return &asset, nil
}

// ListBlobReferences streams the original blobName and variant paths of
// every live asset.
func (r *AssetRepository) ListBlobReferences(ctx context.Context) ([]models.BlobReference, error) {
	opts := options.Find().SetProjection(bson.M{"id": 1, "blobName": 1, "variants.url": 1, "_id": 0})
	cursor, err := r.collection.Find(ctx, live(bson.M{}), opts)
	if err != nil {
		return nil, fmt.Errorf("error listing blob names: %w", err)
	}
	defer cursor.Close(ctx)

	var refs []models.BlobReference
	for cursor.Next(ctx) {
		var row struct {
			ID       string `bson:"id"`
			BlobName string `bson:"blobName"`
			Variants []struct {
				URL string `bson:"url"`
			} `bson:"variants"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("error decoding blob name: %w", err)
		}
		ref := models.BlobReference{AssetID: row.ID, BlobName: row.BlobName}
		for _, v := range row.Variants {
			if v.URL != "" {
				ref.VariantURLs = append(ref.VariantURLs, v.URL)
			}
		}
		refs = append(refs, ref)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blob names: %w", err)
	}
	return refs, nil
}

// live excludes soft-deleted records.
func live(filter bson.M) bson.M {
	filter["deletedAt"] = nil
	return filter
}
