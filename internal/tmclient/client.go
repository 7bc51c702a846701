package tmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopledger/shopledger/internal/config"
	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrUpstreamStatus is returned when the source system answers with a
// non-2xx status.
var ErrUpstreamStatus = errors.New("upstream returned non-success status")

// Employee is an employee record from the employees-lite endpoint.
// Role 3 marks technicians.
type Employee struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       int    `json:"role"`
	HourlyRate int64  `json:"hourlyRate"`
}

const RoleTechnician = 3

// Client is the fetch interface over the upstream shop-management API.
// Implementations must tolerate absent/null fields in responses; the
// decoded zero value is the contract, not an error.
type Client interface {
	GetRepairOrder(ctx context.Context, shopID string, roID int64) (*gpdomain.RepairOrder, error)
	ListActiveEmployees(ctx context.Context, shopID string) ([]Employee, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

type HTTPParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func NewHTTPClient(p HTTPParams) Client {
	return &httpClient{
		baseURL: p.Config.TM.BaseURL,
		apiKey:  p.Config.TM.APIKey,
		client:  &http.Client{Timeout: p.Config.TM.Timeout},
		log:     p.Log.Named("tmclient"),
	}
}

func (c *httpClient) GetRepairOrder(ctx context.Context, shopID string, roID int64) (*gpdomain.RepairOrder, error) {
	path := fmt.Sprintf("/api/shop/%s/repair-orders/%d", url.PathEscape(shopID), roID)

	var ro gpdomain.RepairOrder
	if err := c.getJSON(ctx, path, nil, &ro); err != nil {
		return nil, err
	}
	return &ro, nil
}

func (c *httpClient) ListActiveEmployees(ctx context.Context, shopID string) ([]Employee, error) {
	path := fmt.Sprintf("/api/shop/%s/employees-lite", url.PathEscape(shopID))
	query := url.Values{
		"size":   {"500"},
		"status": {"ACTIVE"},
	}

	var employees []Employee
	if err := c.getJSON(ctx, path, query, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("upstream request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s (%d)", ErrUpstreamStatus, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var Module = fx.Module("tmclient",
	fx.Provide(NewHTTPClient),
)
