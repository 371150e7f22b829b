package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(&loginBody{Email: "admin@acme-property.com", Password: "password123"})
		assert.NoError(t, err)
	})

	t.Run("missing required field uses json name", func(t *testing.T) {
		err := ValidateStruct(&loginBody{Password: "password123"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "email is required", fields["email"])
	})

	t.Run("invalid email and short password", func(t *testing.T) {
		err := ValidateStruct(&loginBody{Email: "not-an-email", Password: "123"})
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Equal(t, "email must be a valid email", fields["email"])
		assert.Equal(t, "password must be at least 6 characters", fields["password"])
	})
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantEmpty bool
		wantValid bool
	}{
		{name: "valid body", body: `{"email":"admin@acme-property.com","password":"password123"}`},
		{name: "empty body", body: "", wantErr: true, wantEmpty: true},
		{name: "malformed json", body: `{"email":`, wantErr: true},
		{name: "fails validation", body: `{"email":"x"}`, wantErr: true, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			var dst loginBody

			err := DecodeJSON(r, &dst)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "admin@acme-property.com", dst.Email)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantEmpty, err == ErrEmptyBody)
			assert.Equal(t, tt.wantValid, IsValidationError(err))
		})
	}
}
