package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Message: "Validation Error.", Fields: map[string]string{
		"status":   "is invalid",
		"currency": "must be 3 letters",
	}}
	assert.Equal(t, "Validation Error. (currency: must be 3 letters; status: is invalid)", err.Error())
}

func TestIsBusiness(t *testing.T) {
	assert.True(t, IsBusiness(Invalid("currency", "required")))
	assert.True(t, IsBusiness(fmt.Errorf("wrapped: %w", NotFound("product", 3))))
	assert.True(t, IsBusiness(&InsufficientInventoryError{ProductName: "Mug"}))
	assert.True(t, IsBusiness(Conflictf("shipping exists")))
	assert.False(t, IsBusiness(errors.New("disk full")))
	assert.False(t, IsBusiness(&GatewayError{Op: "capture", Err: errors.New("timeout")}))
}

func TestGatewayErrorUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("capture: %w", &GatewayError{Op: "capture", Err: cause})

	var ge *GatewayError
	assert.True(t, errors.As(err, &ge))
	assert.ErrorIs(t, err, cause)
}
