package utils

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `validate:"required,max=10"`
	ID    string `validate:"required,uuid"`
	Level string `validate:"omitempty,oneof=low high"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{
		Name: "alice",
		ID:   uuid.New().String(),
	}
	assert.NoError(t, ValidateStruct(req))
}

func TestValidateStructRequired(t *testing.T) {
	err := ValidateStruct(sampleRequest{})
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Contains(t, fields, "Name")
	assert.Contains(t, fields, "ID")
	assert.Equal(t, "Name is required", fields["Name"])
}

func TestValidateStructUUID(t *testing.T) {
	err := ValidateStruct(sampleRequest{Name: "alice", ID: "not-a-uuid"})
	require.Error(t, err)

	fields := GetValidationFields(err)
	assert.Equal(t, "ID must be a valid UUID", fields["ID"])
}

func TestValidateStructMax(t *testing.T) {
	err := ValidateStruct(sampleRequest{Name: "a very long name indeed", ID: uuid.New().String()})
	require.Error(t, err)

	fields := GetValidationFields(err)
	assert.Equal(t, "Name must be at most 10", fields["Name"])
}

func TestValidateStructOneof(t *testing.T) {
	err := ValidateStruct(sampleRequest{Name: "alice", ID: uuid.New().String(), Level: "medium"})
	require.Error(t, err)

	fields := GetValidationFields(err)
	assert.Equal(t, "Level must be one of: low high", fields["Level"])
}

func TestIsValidationErrorOtherError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.Nil(t, GetValidationFields(errors.New("boom")))
}

func TestParseUUID(t *testing.T) {
	want := uuid.New()
	got, err := ParseUUID(want.String(), "id")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseUUID("garbage", "partner_id")
	require.Error(t, err)
	assert.Equal(t, "partner_id must be a valid UUID", err.Error())
}
