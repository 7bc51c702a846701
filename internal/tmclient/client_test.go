package tmclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopledger/shopledger/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewHTTPClient(HTTPParams{
		Config: config.Config{
			TM: config.TMConfig{
				BaseURL: server.URL,
				APIKey:  "test-key",
				Timeout: 5 * time.Second,
			},
		},
		Log: zap.NewNop(),
	})
}

func TestGetRepairOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/shop/42/repair-orders/900", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 900,
			"repairOrderNumber": 1042,
			"customer": {"id": 1, "firstName": "Sam", "lastName": "Lee"},
			"vehicle": {"year": 2019, "make": "Honda", "model": "Civic"},
			"jobs": [
				{
					"id": 1,
					"name": "Brakes",
					"authorized": true,
					"parts": [{"id": 11, "quantity": "2", "cost": 3000, "retail": 6000, "total": 12000}],
					"labor": [{"id": 21, "hours": "1.5", "rate": 12000, "technician": {"id": 101, "hourlyRate": 3000}}]
				}
			],
			"fees": {"data": [{"name": "Shop Supplies", "percentage": 5, "cap": 500, "taxable": true}]},
			"tax": 2000,
			"taxRate": 0.08
		}`))
	})

	ro, err := client.GetRepairOrder(context.Background(), "42", 900)
	require.NoError(t, err)

	assert.Equal(t, int64(900), ro.ID)
	assert.Equal(t, int64(1042), ro.RepairOrderNumber)
	require.NotNil(t, ro.Customer)
	assert.Equal(t, "Sam", ro.Customer.FirstName)
	require.Len(t, ro.Jobs, 1)
	assert.True(t, ro.Jobs[0].Authorized)
	require.Len(t, ro.Jobs[0].Labor, 1)
	assert.True(t, ro.Jobs[0].Labor[0].Hours.Equal(decimal.RequireFromString("1.5")))
	require.Len(t, ro.Fees.Data, 1)
	assert.Equal(t, int64(500), ro.Fees.Data[0].Cap)
	assert.Equal(t, int64(2000), ro.Tax)
}

func TestGetRepairOrderToleratesNullAndAbsentFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 901,
			"customer": null,
			"vehicle": null,
			"tax": "1200",
			"jobs": [
					{"id": 1, "parts": null, "labor": [{"id": 21, "technician": null}]},
					{"id": 2, "parts": [{"id": 11, "cost": "3000", "retail": null}]}
			]
		}`))
	})

	ro, err := client.GetRepairOrder(context.Background(), "42", 901)
	require.NoError(t, err)

	assert.Nil(t, ro.Customer)
	assert.Nil(t, ro.Vehicle)
	assert.Equal(t, int64(1200), ro.Tax)
	require.Len(t, ro.Jobs, 2)
	assert.Empty(t, ro.Jobs[0].Parts)
	assert.Nil(t, ro.Jobs[0].Labor[0].Technician)
	require.Len(t, ro.Jobs[1].Parts, 1)
	assert.Equal(t, int64(3000), ro.Jobs[1].Parts[0].Cost)
	assert.Zero(t, ro.Jobs[1].Parts[0].Retail)
	assert.Empty(t, ro.Fees.Data)
}

func TestGetRepairOrderUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetRepairOrder(context.Background(), "42", 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamStatus))
}

func TestListActiveEmployees(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/shop/42/employees-lite", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("size"))
		assert.Equal(t, "ACTIVE", r.URL.Query().Get("status"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 101, "firstName": "Pat", "lastName": "Jones", "role": 3, "hourlyRate": 3000},
			{"id": 201, "firstName": "Ana", "lastName": "Ruiz", "role": 1}
		]`))
	})

	employees, err := client.ListActiveEmployees(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, RoleTechnician, employees[0].Role)
	assert.Equal(t, int64(3000), employees[0].HourlyRate)
	assert.Zero(t, employees[1].HourlyRate)
}

func TestListActiveEmployeesUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.ListActiveEmployees(context.Background(), "42")
	assert.True(t, errors.Is(err, ErrUpstreamStatus))
}
