package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairOrderDecodeToleratesQuotedMoney(t *testing.T) {
	payload := `{
		"id": 900,
		"tax": "2000",
		"discount": null,
		"balanceDue": "1500.0",
		"jobs": [{
			"id": 1,
			"authorized": true,
			"discount": "150",
			"partsTaxTotal": "800",
			"parts": [{"id": 11, "quantity": "2", "cost": "3000", "retail": 6000, "total": "12000"}],
			"labor": [{"id": 21, "hours": "1.5", "rate": "12000", "technician": {"id": 101, "hourlyRate": "4500"}}],
			"sublets": [{"id": 31, "cost": "2500", "retail": "4000"}]
		}],
		"fees": {"data": [{"name": "Shop Supplies", "amount": "500", "cap": "500"}]}
	}`

	var ro RepairOrder
	require.NoError(t, json.Unmarshal([]byte(payload), &ro))

	assert.Equal(t, int64(2000), ro.Tax)
	assert.Zero(t, ro.Discount)
	assert.Equal(t, int64(1500), ro.BalanceDue)

	require.Len(t, ro.Jobs, 1)
	job := ro.Jobs[0]
	assert.Equal(t, int64(150), job.Discount)
	assert.Equal(t, int64(800), job.PartsTaxTotal)

	require.Len(t, job.Parts, 1)
	assert.Equal(t, int64(3000), job.Parts[0].Cost)
	assert.Equal(t, int64(6000), job.Parts[0].Retail)
	assert.Equal(t, int64(12000), job.Parts[0].Total)
	assert.True(t, job.Parts[0].Quantity.IsPositive())

	require.Len(t, job.Labor, 1)
	assert.Equal(t, int64(12000), job.Labor[0].Rate)
	require.NotNil(t, job.Labor[0].Technician)
	assert.Equal(t, int64(4500), job.Labor[0].Technician.HourlyRate)

	require.Len(t, job.Sublets, 1)
	assert.Equal(t, int64(2500), job.Sublets[0].Cost)
	assert.Equal(t, int64(4000), job.Sublets[0].Retail)

	require.Len(t, ro.Fees.Data, 1)
	assert.Equal(t, int64(500), ro.Fees.Data[0].Amount)
	assert.Equal(t, int64(500), ro.Fees.Data[0].Cap)
}

func TestRepairOrderDecodeNonNumericMoneyBecomesZero(t *testing.T) {
	payload := `{
		"id": 902,
		"tax": "n/a",
		"jobs": [{
			"id": 1,
			"parts": [{"id": 11, "cost": "n/a", "retail": {"amount": 6000}, "total": ""}]
		}]
	}`

	var ro RepairOrder
	require.NoError(t, json.Unmarshal([]byte(payload), &ro))

	assert.Zero(t, ro.Tax)
	require.Len(t, ro.Jobs, 1)
	require.Len(t, ro.Jobs[0].Parts, 1)
	assert.Zero(t, ro.Jobs[0].Parts[0].Cost)
	assert.Zero(t, ro.Jobs[0].Parts[0].Retail)
	assert.Zero(t, ro.Jobs[0].Parts[0].Total)
	assert.Equal(t, int64(11), ro.Jobs[0].Parts[0].ID)
}
