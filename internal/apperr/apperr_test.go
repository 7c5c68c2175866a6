package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/safar/storefront/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestFromStore(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{fmt.Errorf("x: %w", database.ErrNotFound), CodeNotFound},
		{database.ErrDuplicate, CodeConflict},
		{database.ErrInsufficientStock, CodeConflict},
		{database.ErrInvalidTransition, CodeConflict},
		{fmt.Errorf("delete client: %w", database.ErrReferenced), CodeConflict},
		{database.ErrCheckFailed, CodeValidation},
		{errors.New("disk full"), CodeInternal},
		{Validation("bad"), CodeValidation},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CodeOf(FromStore(tc.err, "product")), "%v", tc.err)
	}
	assert.NoError(t, FromStore(nil, "product"))
}

func TestInternalErrorsKeepCauseButHideIt(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := FromStore(cause, "order")

	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "internal error", appErr.Message)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, CodeValidation.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, CodeUnauthenticated.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeForbidden.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, CodeNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, CodeConflict.HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, CodeUpstream.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, CodeInternal.HTTPStatus())
}
