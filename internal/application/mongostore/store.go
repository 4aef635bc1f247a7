// Package mongostore keeps tenant applications in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
)

const Collection = "applications"

const opTimeout = 5 * time.Second

type document struct {
	ID                string    `bson:"_id"`
	OwnerID           string    `bson:"owner_id"`
	Name              string    `bson:"name"`
	Environment       string    `bson:"environment"`
	ConsumerKey       string    `bson:"consumer_key,omitempty"`
	ConsumerSecret    string    `bson:"consumer_secret,omitempty"`
	PassKey           string    `bson:"pass_key,omitempty"`
	BusinessShortCode string    `bson:"business_short_code,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
}

func (d document) toApplication() (*application.Application, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing id %q: %w", d.ID, err)
	}

	return &application.Application{
		ID:                id,
		OwnerID:           d.OwnerID,
		Name:              d.Name,
		Environment:       application.Environment(d.Environment),
		ConsumerKey:       d.ConsumerKey,
		ConsumerSecret:    d.ConsumerSecret,
		PassKey:           d.PassKey,
		BusinessShortCode: d.BusinessShortCode,
		CreatedAt:         d.CreatedAt,
	}, nil
}

type Store struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return NewWithCollection(db.Collection(Collection))
}

func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("creating application indexes: %w", err)
	}

	return nil
}

func (s *Store) CreateApplication(ctx context.Context, app *application.Application) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	app.CreatedAt = time.Now().UTC()

	doc := document{
		ID:                app.ID.String(),
		OwnerID:           app.OwnerID,
		Name:              app.Name,
		Environment:       string(app.Environment),
		ConsumerKey:       app.ConsumerKey,
		ConsumerSecret:    app.ConsumerSecret,
		PassKey:           app.PassKey,
		BusinessShortCode: app.BusinessShortCode,
		CreatedAt:         app.CreatedAt,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	return nil
}

func (s *Store) GetApplication(ctx context.Context, ownerID string, id uuid.UUID) (*application.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc document

	err := s.coll.FindOne(ctx, bson.M{"_id": id.String(), "owner_id": ownerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, application.ErrNotFound
		}

		return nil, fmt.Errorf("getting application: %w", err)
	}

	return doc.toApplication()
}

func (s *Store) ListApplications(ctx context.Context, ownerID string) ([]*application.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cur, err := s.coll.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer cur.Close(ctx)

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding applications: %w", err)
	}

	apps := make([]*application.Application, 0, len(docs))

	for _, d := range docs {
		app, err := d.toApplication()
		if err != nil {
			return nil, err
		}

		apps = append(apps, app)
	}

	return apps, nil
}

func (s *Store) DeleteApplication(ctx context.Context, ownerID string, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id.String(), "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}

	if res.DeletedCount == 0 {
		return application.ErrNotFound
	}

	return nil
}
