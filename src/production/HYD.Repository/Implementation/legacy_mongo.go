package implementation

import (
	"context"
	"errors"
	"time"

	hydmodels "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLegacyReadingLog keeps the flat readings log in a Mongo collection.
// Documents carry no numeric id; ordering follows the ObjectID.
type MongoLegacyReadingLog struct {
	coll *mongo.Collection
}

func NewMongoLegacyReadingLog(coll *mongo.Collection) *MongoLegacyReadingLog {
	return &MongoLegacyReadingLog{coll: coll}
}

func (l *MongoLegacyReadingLog) Append(ctx context.Context, r hydmodels.LegacyReading) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = dbTime(r.CreatedAt)
	_, err := l.coll.InsertOne(ctx, r)
	return err
}

func (l *MongoLegacyReadingLog) Latest(ctx context.Context) (*hydmodels.LegacyReading, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var r hydmodels.LegacyReading
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	if err := l.coll.FindOne(ctx, bson.D{}, opts).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}
