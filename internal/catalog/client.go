package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Client reads the product catalog from the backend API. Lookups are
// deduplicated with singleflight so a burst of adds for the same product
// costs one upstream request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sfg        singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetProducts(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := c.sfg.Do("products", func() (interface{}, error) {
		var products []domain.Product
		if err := c.getJSON(ctx, c.baseURL+"/api/products", &products); err != nil {
			return nil, err
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (c *Client) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	v, err, _ := c.sfg.Do("slug:"+slug, func() (interface{}, error) {
		var product domain.Product
		u := c.baseURL + "/api/products/slug/" + url.PathEscape(slug)
		if err := c.getJSON(ctx, u, &product); err != nil {
			return nil, err
		}
		return &product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
