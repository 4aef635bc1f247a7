package payment_test

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

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/payment"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

var (
	sandboxCreds = payment.Credentials{
		ConsumerKey:       "ck",
		ConsumerSecret:    "cs",
		PassKey:           "pk",
		BusinessShortCode: "174379",
	}

	devCaller = auth.Identity{
		KeyID:       "key_1",
		OwnerID:     "user_1",
		Environment: auth.EnvironmentDevelopment,
		Type:        auth.KeyTypeApp,
	}
)

func payRequest() payment.PayRequest {
	return payment.PayRequest{
		Amount:           decimal.NewFromInt(10),
		PhoneNumber:      "254708374149",
		AccountReference: "INV-1",
		TransactionDesc:  "Order 1",
		CallbackURL:      "https://gw.example.com/api/v1/transactions/mpesa-callback",
	}
}

type fixture struct {
	provider *payment.MockProvider
	repo     *transaction.MockRepository
	svc      *payment.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	provider := payment.NewMockProvider(ctrl)
	repo := transaction.NewMockRepository(ctrl)

	resolver := payment.StaticResolver{Profile: payment.Profile{Credentials: sandboxCreds, Provider: provider}}
	svc := payment.NewService(resolver, transaction.NewService(repo), payment.NewPoller(fastPolicy(), time.Minute))

	return &fixture{provider: provider, repo: repo, svc: svc}
}

func (f *fixture) expectInitiated() *gomock.Call {
	f.provider.EXPECT().Token(gomock.Any(), "ck", "cs").Return("tok", nil)

	return f.provider.EXPECT().Initiate(gomock.Any(), "tok", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req mpesa.PaymentRequest) (*mpesa.PaymentResponse, error) {
			if req.Amount != 10 || req.PartyA != "254708374149" || req.PartyB != "174379" {
				return nil, errors.New("unexpected payment request")
			}

			if req.Password != mpesa.Password("174379", "pk", req.Timestamp) {
				return nil, errors.New("unexpected password")
			}

			return &mpesa.PaymentResponse{CheckoutRequestID: "ws_CO_1"}, nil
		})
}

func TestService_Pay_CompletedAfterRetries(t *testing.T) {
	f := newFixture(t)

	var created *transaction.Transaction

	gomock.InOrder(
		f.expectInitiated(),
		f.repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, tx *transaction.Transaction) error {
				assert.Equal(t, transaction.StatusPending, tx.Status)
				assert.Equal(t, "ws_CO_1", tx.RequestID)
				assert.Equal(t, "key_1", tx.KeyID)
				created = tx

				return nil
			}),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(nil, processing).Times(2),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(settled("0"), nil),
		f.repo.EXPECT().SetStatusIfPending(gomock.Any(), gomock.Any(), transaction.StatusCompleted, "desc 0").
			DoAndReturn(func(_ context.Context, ref transaction.Ref, _ transaction.Status, _ string) (bool, error) {
				assert.Equal(t, created.ID, ref.ID)
				return true, nil
			}),
	)

	res, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCompleted, res.Outcome.Kind)
	assert.Equal(t, 3, res.Outcome.Attempts)
	assert.Equal(t, created.ID, res.TransactionID)
	assert.Equal(t, "ws_CO_1", res.RequestID)
}

func TestService_Pay_UndeterminedAfterFiveQueries(t *testing.T) {
	f := newFixture(t)

	gomock.InOrder(
		f.expectInitiated(),
		f.repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(nil, processing).Times(5),
		f.repo.EXPECT().SetStatusIfPending(gomock.Any(), gomock.Any(), transaction.StatusPending, payment.PendingResultDesc).Return(true, nil),
	)

	res, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomePending, res.Outcome.Kind)
	assert.Equal(t, 5, res.Outcome.Attempts)
}

func TestService_Pay_CancelledByUser(t *testing.T) {
	f := newFixture(t)

	gomock.InOrder(
		f.expectInitiated(),
		f.repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(settled("1032"), nil),
		f.repo.EXPECT().SetStatusIfPending(gomock.Any(), gomock.Any(), transaction.StatusFailed, "desc 1032").Return(true, nil),
	)

	res, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCancelled, res.Outcome.Kind)
}

func TestService_Pay_CallbackWonTheRace(t *testing.T) {
	f := newFixture(t)

	gomock.InOrder(
		f.expectInitiated(),
		f.repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(settled("0"), nil),
		f.repo.EXPECT().SetStatusIfPending(gomock.Any(), gomock.Any(), transaction.StatusCompleted, gomock.Any()).Return(false, nil),
		f.repo.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).
			Return(&transaction.Transaction{Status: transaction.StatusCompleted}, nil),
	)

	res, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCompleted, res.Outcome.Kind)
}

func TestService_Pay_ConflictingCallback(t *testing.T) {
	f := newFixture(t)

	recorded := &transaction.Transaction{
		RequestID:  "ws_CO_1",
		Status:     transaction.StatusFailed,
		ResultDesc: "Request cancelled by user",
	}

	gomock.InOrder(
		f.expectInitiated(),
		f.repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(settled("0"), nil),
		f.repo.EXPECT().SetStatusIfPending(gomock.Any(), gomock.Any(), transaction.StatusCompleted, gomock.Any()).Return(false, nil),
		f.repo.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).Return(recorded, nil),
		f.repo.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).Return(recorded, nil),
	)

	res, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeFailed, res.Outcome.Kind)
	assert.Equal(t, transaction.StatusFailed, res.Outcome.LedgerStatus())
	require.NotNil(t, res.Outcome.Status)
	assert.Empty(t, res.Outcome.Status.ResultCode)
	assert.Equal(t, "Request cancelled by user", res.Outcome.Status.ResultDesc)
}

func TestService_Pay_ConflictReloadFails(t *testing.T) {
	f := newFixture(t)

	gomock.InOrder(
		f.expectInitiated(),
		f.repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil),
		f.provider.EXPECT().QueryStatus(gomock.Any(), "tok", gomock.Any()).Return(settled("0"), nil),
		f.repo.EXPECT().SetStatusIfPending(gomock.Any(), gomock.Any(), transaction.StatusCompleted, gomock.Any()).Return(false, nil),
		f.repo.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).
			Return(&transaction.Transaction{Status: transaction.StatusFailed}, nil),
		f.repo.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset")),
	)

	_, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading recorded transaction")
}

func TestService_Pay_TokenFailureStopsBeforeInitiation(t *testing.T) {
	f := newFixture(t)

	f.provider.EXPECT().Token(gomock.Any(), "ck", "cs").Return("", mpesa.ErrAuthentication)

	_, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	assert.ErrorIs(t, err, mpesa.ErrAuthentication)
}

func TestService_Pay_InitiationFailureWritesNothing(t *testing.T) {
	f := newFixture(t)

	f.provider.EXPECT().Token(gomock.Any(), "ck", "cs").Return("tok", nil)
	f.provider.EXPECT().Initiate(gomock.Any(), "tok", gomock.Any()).Return(nil, mpesa.ErrInitiation)

	_, err := f.svc.Pay(context.Background(), devCaller, payRequest())
	assert.ErrorIs(t, err, mpesa.ErrInitiation)
}

func TestService_Pay_Validation(t *testing.T) {
	type testCase struct {
		name   string
		mutate func(r *payment.PayRequest)
	}

	tests := []testCase{
		{name: "ZeroAmount", mutate: func(r *payment.PayRequest) { r.Amount = decimal.Zero }},
		{name: "NegativeAmount", mutate: func(r *payment.PayRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{name: "FractionalAmount", mutate: func(r *payment.PayRequest) { r.Amount = decimal.RequireFromString("10.50") }},
		{name: "MissingPhone", mutate: func(r *payment.PayRequest) { r.PhoneNumber = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			req := payRequest()
			tt.mutate(&req)

			_, err := f.svc.Pay(context.Background(), devCaller, req)
			assert.ErrorIs(t, err, payment.ErrValidation)
		})
	}
}

func TestService_Pay_MissingTenantCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	appID := uuid.New()
	provider := payment.NewMockProvider(ctrl)
	appRepo := application.NewMockRepository(ctrl)
	appRepo.EXPECT().GetApplication(gomock.Any(), "user_1", appID).Return(&application.Application{
		ID:                appID,
		Environment:       application.EnvironmentProduction,
		ConsumerKey:       "ck",
		BusinessShortCode: "600000",
	}, nil)

	sealer, err := application.NewSealer("")
	require.NoError(t, err)

	resolver := payment.EnvironmentResolver{
		auth.EnvironmentProduction: payment.NewTenantResolver(application.NewService(appRepo, sealer), provider),
	}
	svc := payment.NewService(resolver, transaction.NewService(transaction.NewMockRepository(ctrl)), payment.NewPoller(fastPolicy(), time.Minute))

	caller := auth.Identity{KeyID: "key_9", OwnerID: "user_1", Environment: auth.EnvironmentProduction, Type: auth.KeyTypeApp, AppID: appID.String()}

	_, err = svc.Pay(context.Background(), caller, payRequest())
	assert.ErrorIs(t, err, payment.ErrCredentialsMissing)
	assert.ErrorIs(t, err, payment.ErrValidation)
}

func TestService_Pay_UnknownEnvironment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := payment.NewService(payment.EnvironmentResolver{}, transaction.NewService(transaction.NewMockRepository(ctrl)), payment.NewPoller(fastPolicy(), time.Minute))

	_, err := svc.Pay(context.Background(), devCaller, payRequest())
	assert.ErrorIs(t, err, payment.ErrCredentialsMissing)
}

func TestService_Reconcile(t *testing.T) {
	type testCase struct {
		name      string
		code      mpesa.Code
		setupMock func(m *transaction.MockRepository)
		want      transaction.Transition
		wantErr   error
	}

	ref := transaction.ByRequestID("ws_CO_1")

	tests := []testCase{
		{
			name: "FirstCallbackSettles",
			code: "0",
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusCompleted, "ok").Return(true, nil)
			},
			want: transaction.TransitionApplied,
		},
		{
			name: "RepeatedCallbackIsNoop",
			code: "1032",
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusFailed, "ok").Return(false, nil)
				m.EXPECT().GetTransaction(gomock.Any(), ref).Return(&transaction.Transaction{Status: transaction.StatusFailed}, nil)
			},
			want: transaction.TransitionDuplicate,
		},
		{
			name: "UnknownRequest",
			code: "0",
			setupMock: func(m *transaction.MockRepository) {
				m.EXPECT().SetStatusIfPending(gomock.Any(), ref, transaction.StatusCompleted, "ok").Return(false, nil)
				m.EXPECT().GetTransaction(gomock.Any(), ref).Return(nil, transaction.ErrNotFound)
			},
			want:    transaction.TransitionRejected,
			wantErr: transaction.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := transaction.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := payment.NewService(payment.StaticResolver{}, transaction.NewService(repo), payment.NewPoller(fastPolicy(), time.Minute))

			got, err := svc.Reconcile(context.Background(), &mpesa.STKCallback{
				CheckoutRequestID: "ws_CO_1",
				ResultCode:        tt.code,
				ResultDesc:        "ok",
			})

			assert.Equal(t, tt.want, got)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}
