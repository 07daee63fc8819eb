package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"knx-resolve/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProvisionalCreate_Success(t *testing.T) {
	catalog := newFakeCatalog()
	mfr := catalog.addManufacturer("M-0008", "mfr-gira", "Gira", "Gira")
	writer := NewProvisionalWriter(catalog, zap.NewNop())

	product := writer.Create(context.Background(), mfr, &domain.Guess{
		ProductName: "Switching actuator 16fold",
		OrderNumber: "1038 00",
		Description: "16 channels",
		Confidence:  0.85,
	})

	require.NotNil(t, product)
	require.Len(t, catalog.inserted, 1)
	rec := catalog.inserted[0]
	assert.True(t, strings.HasPrefix(rec.ID, "prod_"))
	assert.Len(t, rec.ID, len("prod_")+16)
	assert.Equal(t, "mfr-gira", rec.ManufacturerID)
	assert.Equal(t, "1038 00", rec.OrderNumber.String)
	assert.Equal(t, domain.ProductStatusApproved, rec.Status)
	assert.Equal(t, []string{"TP"}, []string(rec.MediumTypes))
	assert.Equal(t, "other", rec.Category.String)
	assert.InDelta(t, 0.85, rec.Confidence.Float64, 1e-9)
	// 返回的是重读后的记录
	assert.Equal(t, rec.ID, product.ID)
}

func TestProvisionalCreate_BelowThreshold(t *testing.T) {
	catalog := newFakeCatalog()
	mfr := catalog.addManufacturer("M-0008", "mfr-gira", "Gira", "Gira")
	writer := NewProvisionalWriter(catalog, zap.NewNop())

	product := writer.Create(context.Background(), mfr, &domain.Guess{
		ProductName: "Actuator",
		OrderNumber: "1038 00",
		Confidence:  0.65,
	})

	assert.Nil(t, product)
	assert.Empty(t, catalog.inserted)
}

func TestProvisionalCreate_MissingOrderNumber(t *testing.T) {
	catalog := newFakeCatalog()
	mfr := catalog.addManufacturer("M-0008", "mfr-gira", "Gira", "Gira")
	writer := NewProvisionalWriter(catalog, zap.NewNop())

	product := writer.Create(context.Background(), mfr, &domain.Guess{
		ProductName: "Actuator",
		Confidence:  0.9,
	})

	assert.Nil(t, product)
	assert.Empty(t, catalog.inserted)
}

func TestProvisionalCreate_InsertFailureSwallowed(t *testing.T) {
	catalog := newFakeCatalog()
	mfr := catalog.addManufacturer("M-0008", "mfr-gira", "Gira", "Gira")
	catalog.insertErr = errors.New("unique violation")
	writer := NewProvisionalWriter(catalog, zap.NewNop())

	product := writer.Create(context.Background(), mfr, &domain.Guess{
		ProductName: "Actuator",
		OrderNumber: "1038 00",
		Confidence:  0.9,
	})

	assert.Nil(t, product)
}

func TestProvisionalCreate_NilGuess(t *testing.T) {
	catalog := newFakeCatalog()
	mfr := catalog.addManufacturer("M-0008", "mfr-gira", "Gira", "Gira")
	writer := NewProvisionalWriter(catalog, zap.NewNop())

	assert.Nil(t, writer.Create(context.Background(), mfr, nil))
}
