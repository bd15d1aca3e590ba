package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped invalid", fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest},
		{"missing artifact", fmt.Errorf("load: %w", ErrArtifactMissing), http.StatusNotFound},
		{"schema mismatch is internal", fmt.Errorf("predict: %w", ErrSchemaMismatch), http.StatusInternalServerError},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestInvalidCarriesFields(t *testing.T) {
	err := Invalid("bad request", map[string]string{"num_bhk": "must be greater than 0"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, IsClientError(err))
	assert.Equal(t, "must be greater than 0", err.Fields["num_bhk"])
	assert.False(t, IsClientError(fmt.Errorf("x: %w", ErrSchemaMismatch)))
}
