package application_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
)

func newKey(t *testing.T) string {
	t.Helper()

	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(raw)
}

func TestService_Create(t *testing.T) {
	type testCase struct {
		name      string
		params    application.CreateParams
		setupMock func(m *application.MockRepository)
		wantErr   bool
		check     func(t *testing.T, app *application.Application)
	}

	tests := []testCase{
		{
			name: "Production",
			params: application.CreateParams{
				OwnerID:           "user_1",
				Name:              "Shop",
				Environment:       application.EnvironmentProduction,
				ConsumerKey:       "ck",
				ConsumerSecret:    "cs",
				PassKey:           "pk",
				BusinessShortCode: "600000",
			},
			setupMock: func(m *application.MockRepository) {
				m.EXPECT().
					CreateApplication(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, app *application.Application) error {
						assert.Equal(t, "ck", app.ConsumerKey)
						assert.True(t, strings.HasPrefix(app.ConsumerSecret, "sb1:"))
						assert.True(t, strings.HasPrefix(app.PassKey, "sb1:"))

						return nil
					})
			},
			check: func(t *testing.T, app *application.Application) {
				assert.Equal(t, "cs", app.ConsumerSecret)
				assert.True(t, app.HasCredentials())
			},
		},
		{
			name: "SandboxDropsCredentials",
			params: application.CreateParams{
				Name:           "Test",
				Environment:    application.EnvironmentSandbox,
				ConsumerKey:    "ck",
				ConsumerSecret: "cs",
			},
			setupMock: func(m *application.MockRepository) {
				m.EXPECT().CreateApplication(gomock.Any(), gomock.Any()).Return(nil)
			},
			check: func(t *testing.T, app *application.Application) {
				assert.Empty(t, app.ConsumerKey)
				assert.Empty(t, app.ConsumerSecret)
				assert.False(t, app.HasCredentials())
			},
		},
		{
			name: "ProductionMissingPassKey",
			params: application.CreateParams{
				Name:              "Shop",
				Environment:       application.EnvironmentProduction,
				ConsumerKey:       "ck",
				ConsumerSecret:    "cs",
				BusinessShortCode: "600000",
			},
			wantErr: true,
		},
		{
			name:    "MissingName",
			params:  application.CreateParams{Name: "  ", Environment: application.EnvironmentSandbox},
			wantErr: true,
		},
		{
			name:    "UnknownEnvironment",
			params:  application.CreateParams{Name: "x", Environment: "staging"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := application.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			sealer, err := application.NewSealer(newKey(t))
			require.NoError(t, err)

			app, err := application.NewService(repo, sealer).Create(context.Background(), tt.params)
			if tt.wantErr {
				var verr *application.ValidationError
				assert.ErrorAs(t, err, &verr)

				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, app.ID)

			if tt.check != nil {
				tt.check(t, app)
			}
		})
	}
}

func TestService_GetUnseals(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sealer, err := application.NewSealer(newKey(t))
	require.NoError(t, err)

	sealedSecret, err := sealer.Seal("cs")
	require.NoError(t, err)

	sealedPass, err := sealer.Seal("pk")
	require.NoError(t, err)

	id := uuid.New()
	repo := application.NewMockRepository(ctrl)
	repo.EXPECT().GetApplication(gomock.Any(), "user_1", id).Return(&application.Application{
		ID:             id,
		ConsumerKey:    "ck",
		ConsumerSecret: sealedSecret,
		PassKey:        sealedPass,
	}, nil)

	app, err := application.NewService(repo, sealer).Get(context.Background(), "user_1", id)
	require.NoError(t, err)
	assert.Equal(t, "cs", app.ConsumerSecret)
	assert.Equal(t, "pk", app.PassKey)
}

func TestSealer(t *testing.T) {
	sealer, err := application.NewSealer(newKey(t))
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret", opened)

	t.Run("PlainValuesPassThrough", func(t *testing.T) {
		got, err := sealer.Open("legacy-plain")
		require.NoError(t, err)
		assert.Equal(t, "legacy-plain", got)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := application.NewSealer(newKey(t))
		require.NoError(t, err)

		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, application.ErrUnseal)
	})

	t.Run("Disabled", func(t *testing.T) {
		disabled, err := application.NewSealer("")
		require.NoError(t, err)

		got, err := disabled.Seal("secret")
		require.NoError(t, err)
		assert.Equal(t, "secret", got)

		_, err = disabled.Open(sealed)
		assert.ErrorIs(t, err, application.ErrUnseal)
	})

	t.Run("BadKeyLength", func(t *testing.T) {
		_, err := application.NewSealer(base64.StdEncoding.EncodeToString([]byte("short")))
		assert.Error(t, err)
	})
}
