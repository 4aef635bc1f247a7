package request_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/mpesaflow/internal/http/request"
)

type body struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phoneNumber" validate:"required,numeric,len=12"`
}

func TestDecode(t *testing.T) {
	type testCase struct {
		name    string
		input   string
		wantErr string
	}

	tests := []testCase{
		{name: "Valid", input: `{"name":"a","phoneNumber":"254700000000"}`},
		{name: "Empty", input: ``, wantErr: "request body is empty"},
		{name: "Malformed", input: `{"name":`, wantErr: "invalid JSON body"},
		{name: "MissingName", input: `{"phoneNumber":"254700000000"}`, wantErr: "name is required"},
		{name: "ShortPhone", input: `{"name":"a","phoneNumber":"0700"}`, wantErr: "phoneNumber must satisfy len=12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.input))

			var b body

			err := request.Decode(r, &b)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a", b.Name)

				return
			}

			var reqErr *request.Error
			require.ErrorAs(t, err, &reqErr)
			assert.Contains(t, reqErr.Message, tt.wantErr)
		})
	}
}
