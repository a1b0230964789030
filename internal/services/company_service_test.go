package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
)

func TestCompanyService_CreateAndGet(t *testing.T) {
	store := newMemoryStore()
	svc := NewCompanyService(store.repositories())
	revenue := decimal.NewFromInt(12_500_000)

	created, err := svc.Create(context.Background(), CompanyInput{
		Name:           "  Atlas Valves  ",
		Description:    "Safety-critical valves for LNG terminals",
		Revenue:        &revenue,
		Certifications: []string{"ISO 9001", "iso 9001", " ", "API 6D"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Atlas Valves", created.Name)
	assert.Equal(t, models.StatusNotScored, created.ScoringStatus)
	assert.True(t, created.Revenue.Valid)
	require.Len(t, created.Certifications, 2)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Len(t, got.Certifications, 2)
}

func TestCompanyService_Validation(t *testing.T) {
	svc := NewCompanyService(newMemoryStore().repositories())
	negative := -1

	_, err := svc.Create(context.Background(), CompanyInput{Name: " "})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	_, err = svc.Create(context.Background(), CompanyInput{Name: "X", EmployeeCount: &negative})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}
