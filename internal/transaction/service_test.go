package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

func TestService_Create(t *testing.T) {
	type args struct {
		params transaction.CreateParams
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m *transaction.MockRepository)
		wantErr   bool
	}

	id := uuid.New()

	tests := []testCase{
		{
			name: "Success",
			args: args{
				params: transaction.CreateParams{
					ID:          id,
					RequestID:   "ws_CO_191220191020363925",
					KeyID:       "key_123",
					Amount:      decimal.NewFromInt(100),
					PhoneNumber: "254700000000",
				},
			},
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					CreateTransaction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, tx *transaction.Transaction) error {
						assert.Equal(t, id, tx.ID)
						assert.Equal(t, transaction.StatusPending, tx.Status)
						tx.CreatedAt = time.Now()

						return nil
					})
			},
			wantErr: false,
		},
		{
			name: "RepoError",
			args: args{
				params: transaction.CreateParams{Amount: decimal.NewFromInt(5)},
			},
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					CreateTransaction(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := transaction.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := transaction.NewService(repo)
			got, err := svc.Create(context.Background(), tt.args.params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)
			assert.Equal(t, transaction.StatusPending, got.Status)
		})
	}
}

func TestService_UpdateStatus(t *testing.T) {
	ref := transaction.ByRequestID("ws_CO_1")

	type testCase struct {
		name      string
		status    transaction.Status
		setupMock func(m *transaction.MockRepository)
		want      transaction.Transition
		wantErr   error
	}

	tests := []testCase{
		{
			name:   "AppliedWhilePending",
			status: transaction.StatusCompleted,
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().
					SetStatusIfPending(gomock.Any(), ref, transaction.StatusCompleted, "ok").
					Return(true, nil)
			},
			want: transaction.TransitionApplied,
		},
		{
			name:   "DuplicateTerminal",
			status: transaction.StatusCompleted,
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusCompleted, "ok").Return(false, nil)
				m.EXPECT().GetTransaction(gomock.Any(), ref).
					Return(&transaction.Transaction{Status: transaction.StatusCompleted}, nil)
			},
			want: transaction.TransitionDuplicate,
		},
		{
			name:   "PendingAfterSettlement",
			status: transaction.StatusPending,
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusPending, "ok").Return(false, nil)
				m.EXPECT().GetTransaction(gomock.Any(), ref).
					Return(&transaction.Transaction{Status: transaction.StatusFailed}, nil)
			},
			want: transaction.TransitionStale,
		},
		{
			name:   "DivergentTerminal",
			status: transaction.StatusFailed,
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusFailed, "ok").Return(false, nil)
				m.EXPECT().GetTransaction(gomock.Any(), ref).
					Return(&transaction.Transaction{Status: transaction.StatusCompleted}, nil)
			},
			want:    transaction.TransitionRejected,
			wantErr: transaction.ErrStatusConflict,
		},
		{
			name:   "Unknown",
			status: transaction.StatusFailed,
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusFailed, "ok").Return(false, nil)
				m.EXPECT().GetTransaction(gomock.Any(), ref).Return(nil, transaction.ErrNotFound)
			},
			want:    transaction.TransitionRejected,
			wantErr: transaction.ErrNotFound,
		},
		{
			name:    "InvalidStatus",
			status:  transaction.Status("refunded"),
			want:    transaction.TransitionRejected,
			wantErr: transaction.ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := transaction.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := transaction.NewService(repo)
			got, err := svc.UpdateStatus(context.Background(), ref, tt.status, "ok")

			assert.Equal(t, tt.want, got)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	keyID := "key_123"
	filter := transaction.ListFilter{KeyID: &keyID}

	repo := transaction.NewMockRepository(ctrl)
	repo.EXPECT().
		ListTransactions(gomock.Any(), filter).
		Return([]*transaction.Transaction{{ID: uuid.New()}, {ID: uuid.New()}}, nil)

	got, err := transaction.NewService(repo).List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStatusFromResultCode(t *testing.T) {
	assert.Equal(t, transaction.StatusCompleted, transaction.StatusFromResultCode("0"))
	assert.Equal(t, transaction.StatusFailed, transaction.StatusFromResultCode("1032"))
	assert.Equal(t, transaction.StatusFailed, transaction.StatusFromResultCode("2001"))
	assert.True(t, transaction.StatusFailed.Terminal())
	assert.False(t, transaction.StatusPending.Terminal())
}
