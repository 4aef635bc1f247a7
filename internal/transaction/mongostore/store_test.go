package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction/mongostore"
)

func txDoc(id uuid.UUID, requestID, status string) bson.D {
	return bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "mpesa_request_id", Value: requestID},
		{Key: "key_id", Value: "key_1"},
		{Key: "amount", Value: "250"},
		{Key: "phone_number", Value: "254700000000"},
		{Key: "status", Value: status},
		{Key: "created_at", Value: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
}

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("CreateTransaction", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		tx := &transaction.Transaction{ID: uuid.New(), Amount: decimal.NewFromInt(1), Status: transaction.StatusPending}
		require.NoError(mt, s.CreateTransaction(context.Background(), tx))
		assert.False(mt, tx.CreatedAt.IsZero())
	})

	mt.Run("EnsureIndexes", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, s.EnsureIndexes(context.Background()))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		require.Equal(mt, "createIndexes", evt.CommandName)

		values, err := evt.Command.Lookup("indexes").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, values, 3)

		requestIdx := values[0].Document()
		assert.Equal(mt, "mpesa_request_id_1", requestIdx.Lookup("name").StringValue())
		assert.True(mt, requestIdx.Lookup("unique").Boolean())
	})

	mt.Run("GetTransactionByRequestID", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		id := uuid.New()
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, txDoc(id, "ws_CO_1", "completed")))

		tx, err := s.GetTransaction(context.Background(), transaction.ByRequestID("ws_CO_1"))
		require.NoError(mt, err)
		assert.Equal(mt, id, tx.ID)
		assert.Equal(mt, transaction.StatusCompleted, tx.Status)
		assert.True(mt, decimal.NewFromInt(250).Equal(tx.Amount))
	})

	mt.Run("GetTransactionNotFound", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.GetTransaction(context.Background(), transaction.ByID(uuid.New()))
		assert.ErrorIs(mt, err, transaction.ErrNotFound)
	})

	mt.Run("ListTransactions", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, txDoc(uuid.New(), "ws_CO_1", "pending"))
		second := mtest.CreateCursorResponse(1, ns, mtest.NextBatch, txDoc(uuid.New(), "ws_CO_2", "pending"))
		end := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, second, end)

		keyID := "key_1"
		txs, err := s.ListTransactions(context.Background(), transaction.ListFilter{KeyID: &keyID})
		require.NoError(mt, err)
		assert.Len(mt, txs, 2)
	})

	mt.Run("SetStatusIfPendingMatched", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		changed, err := s.SetStatusIfPending(context.Background(), transaction.ByRequestID("ws_CO_1"), transaction.StatusFailed, "Request cancelled by user")
		require.NoError(mt, err)
		assert.True(mt, changed)
	})

	mt.Run("SetStatusIfPendingSettled", func(mt *mtest.T) {
		s := mongostore.NewWithCollection(mt.Coll)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})

		changed, err := s.SetStatusIfPending(context.Background(), transaction.ByID(uuid.New()), transaction.StatusCompleted, "ok")
		require.NoError(mt, err)
		assert.False(mt, changed)
	})
}
