package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepErr_CarriesStepAndSentinel(t *testing.T) {
	err := StepErr(2, fmt.Errorf("invalid email OTP: %w", ErrUnauthorized))

	assert.Equal(t, 2, ResumeStep(err))
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "invalid email OTP: unauthorized", err.Error())
}

func TestResumeStep_PlainError(t *testing.T) {
	assert.Equal(t, 0, ResumeStep(errors.New("boom")))
	assert.Equal(t, 0, ResumeStep(nil))
}

func TestResumeStep_Wrapped(t *testing.T) {
	inner := StepErr(1, ErrNotFound)
	outer := fmt.Errorf("signup: %w", inner)
	assert.Equal(t, 1, ResumeStep(outer))
	assert.True(t, errors.Is(outer, ErrNotFound))
}
