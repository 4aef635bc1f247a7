// Package mongostore keeps the transaction ledger in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

const Collection = "mpesa_transactions"

const opTimeout = 5 * time.Second

type document struct {
	ID                string     `bson:"_id"`
	RequestID         string     `bson:"mpesa_request_id"`
	KeyID             string     `bson:"key_id"`
	OwnerID           string     `bson:"owner_id"`
	BusinessShortCode string     `bson:"business_short_code"`
	Amount            string     `bson:"amount"`
	PhoneNumber       string     `bson:"phone_number"`
	AccountReference  string     `bson:"account_reference"`
	Description       string     `bson:"transaction_desc"`
	Status            string     `bson:"status"`
	ResultDesc        string     `bson:"result_desc"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         *time.Time `bson:"updated_at,omitempty"`
}

func fromTransaction(tx *transaction.Transaction) document {
	return document{
		ID:                tx.ID.String(),
		RequestID:         tx.RequestID,
		KeyID:             tx.KeyID,
		OwnerID:           tx.OwnerID,
		BusinessShortCode: tx.BusinessShortCode,
		Amount:            tx.Amount.String(),
		PhoneNumber:       tx.PhoneNumber,
		AccountReference:  tx.AccountReference,
		Description:       tx.Description,
		Status:            string(tx.Status),
		ResultDesc:        tx.ResultDesc,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
	}
}

func (d document) toTransaction() (*transaction.Transaction, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing id %q: %w", d.ID, err)
	}

	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", d.Amount, err)
	}

	return &transaction.Transaction{
		ID:                id,
		RequestID:         d.RequestID,
		KeyID:             d.KeyID,
		OwnerID:           d.OwnerID,
		BusinessShortCode: d.BusinessShortCode,
		Amount:            amount,
		PhoneNumber:       d.PhoneNumber,
		AccountReference:  d.AccountReference,
		Description:       d.Description,
		Status:            transaction.Status(d.Status),
		ResultDesc:        d.ResultDesc,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
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

// EnsureIndexes creates the lookup indexes used by callbacks and listings.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "mpesa_request_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "key_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating transaction indexes: %w", err)
	}

	return nil
}

func refFilter(ref transaction.Ref) bson.M {
	if ref.IsRequestID() {
		return bson.M{"mpesa_request_id": ref.RequestID}
	}

	return bson.M{"_id": ref.ID.String()}
}

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx.CreatedAt = time.Now().UTC()

	if _, err := s.coll.InsertOne(ctx, fromTransaction(tx)); err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ref transaction.Ref) (*transaction.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc document
	if err := s.coll.FindOne(ctx, refFilter(ref)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return doc.toTransaction()
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.KeyID != nil {
		query["key_id"] = *filter.KeyID
	}

	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	cur, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding transactions: %w", err)
	}

	txs := make([]*transaction.Transaction, 0, len(docs))

	for _, d := range docs {
		tx, err := d.toTransaction()
		if err != nil {
			return nil, err
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

func (s *Store) SetStatusIfPending(ctx context.Context, ref transaction.Ref, status transaction.Status, resultDesc string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := refFilter(ref)
	filter["status"] = string(transaction.StatusPending)

	update := bson.M{"$set": bson.M{
		"status":      string(status),
		"result_desc": resultDesc,
		"updated_at":  time.Now().UTC(),
	}}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("updating status: %w", err)
	}

	return res.MatchedCount > 0, nil
}
