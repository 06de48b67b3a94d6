package watch

import (
	"context"
	"log/slog"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoBackend implements Backend over a change stream: the initial
// snapshot comes from a plain find, then every write to the collection
// re-runs the query and pushes the fresh result set.
type MongoBackend struct {
	coll *mongo.Collection
}

func NewMongoBackend(coll *mongo.Collection) *MongoBackend {
	return &MongoBackend{coll: coll}
}

func (b *MongoBackend) Subscribe(ctx context.Context, q query.Query, fn SnapshotFunc) (Disposer, error) {
	ctx, cancel := context.WithCancel(ctx)

	props, err := b.run(ctx, q)
	if err != nil {
		cancel()
		return nil, err
	}

	stream, err := b.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, err
	}

	fn(props)

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			props, err := b.run(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("failed to refresh snapshot", "collection", b.coll.Name(), "error", err)
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			fn(props)
		}
	}()

	return Disposer(cancel), nil
}

func (b *MongoBackend) run(ctx context.Context, q query.Query) ([]models.Property, error) {
	filter, opts := query.ToMongo(q)
	cursor, err := b.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var props []models.Property
	if err := cursor.All(ctx, &props); err != nil {
		return nil, err
	}
	return props, nil
}
