package warehouse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

func TestSchemaMismatchClassifiesAsDataErrorAndNotRetryable(t *testing.T) {
	err := &SchemaMismatch{Table: "linkedin_ads_insights", Column: "clicks", Value: "not-a-number"}
	var dataErr *errs.DataError
	assert.True(t, errors.As(err, &dataErr))
	assert.False(t, errs.IsRetryable(err))
}

func TestIntegrityErrorClassifiesAsDataErrorAndNotRetryable(t *testing.T) {
	err := &IntegrityError{Table: "linkedin_ads_campaign", Msg: "upsert requires pk_columns"}
	var dataErr *errs.DataError
	assert.True(t, errors.As(err, &dataErr))
	assert.False(t, errs.IsRetryable(err))
}

func TestConstraintViolationClassifiesAsDataErrorButPreservesCause(t *testing.T) {
	cause := errors.New("unique index violation")
	err := &ConstraintViolation{Table: "linkedin_ads_campaign", Cause: cause}

	var dataErr *errs.DataError
	assert.True(t, errors.As(err, &dataErr))
	assert.False(t, errs.IsRetryable(err))
	assert.ErrorIs(t, err, cause)
}

func TestConnectionFailureRemainsRetryable(t *testing.T) {
	err := &ConnectionFailure{Cause: errors.New("connection reset")}
	assert.True(t, errs.IsRetryable(err))
}
