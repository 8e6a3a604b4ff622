package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Duplicate(nil), http.StatusConflict},
		{CartLimit("too many"), http.StatusBadRequest},
		{EmptyCart(), http.StatusBadRequest},
		{Unsafe([]string{"instruction_override"}), http.StatusBadRequest},
		{Flagged([]string{"hate"}), http.StatusBadRequest},
		{Conflict("raced"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := errors.Wrap(NotFound("item %s not found", "abc"), "add to cart")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "item abc not found", e.Message)
}

func TestFieldValidationMessage(t *testing.T) {
	err := FieldValidation("quantity", "must be between %d and %d", 1, 1000)
	assert.Equal(t, "quantity: must be between 1 and 1000", err.Error())
}
