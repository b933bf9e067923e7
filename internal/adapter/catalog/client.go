// Package catalog talks to the menu catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

const defaultRetryAfter = 5 * time.Second

// RateLimitedError is returned when the catalog asks callers to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("catalog rate limited, retry after %s", e.RetryAfter)
}

// Unwrap lets callers treat rate limiting as an unavailable upstream.
func (e RateLimitedError) Unwrap() error {
	return domainErrors.ErrUpstreamUnavailable
}

// Client exposes catalog lookups.
type Client interface {
	GetItem(ctx context.Context, id string) (*model.CatalogItem, error)
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
}

// HTTPClient implements Client via the catalog HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

type itemResponse struct {
	ID              string  `json:"id"`
	RestaurantID    string  `json:"restaurant_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	ImageRef        string  `json:"image_ref"`
	PrepTimeMinutes int     `json:"prep_time_minutes"`
}

type restaurantResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Contact string `json:"contact"`
}

// NewHTTPClient creates a catalog client with default timeout.
func NewHTTPClient(baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("catalog url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

// GetItem returns the live catalog entry of an item.
func (c *HTTPClient) GetItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	var data itemResponse
	if err := c.get(ctx, "item", id, path.Join("/api/items", url.PathEscape(id)), &data); err != nil {
		return nil, err
	}
	return &model.CatalogItem{
		ID:              data.ID,
		RestaurantID:    data.RestaurantID,
		Name:            data.Name,
		Price:           data.Price,
		ImageRef:        data.ImageRef,
		PrepTimeMinutes: data.PrepTimeMinutes,
	}, nil
}

// GetRestaurant returns the public profile of a restaurant.
func (c *HTTPClient) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var data restaurantResponse
	if err := c.get(ctx, "restaurant", id, path.Join("/api/restaurants", url.PathEscape(id)), &data); err != nil {
		return nil, err
	}
	return &model.Restaurant{
		ID:      data.ID,
		Name:    data.Name,
		Address: data.Address,
		Contact: data.Contact,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, kind, id, resource string, out any) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s id", domainErrors.ErrValidation, kind)
	}

	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %w", domainErrors.ErrUpstreamUnavailable, kind, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: catalog %s %s: %w", domainErrors.ErrUpstreamUnavailable, kind, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", domainErrors.ErrUpstreamUnavailable, kind, err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode %s: %w", domainErrors.ErrUpstreamUnavailable, kind, err)
		}
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: catalog %s %s", domainErrors.ErrNotFound, kind, id)
	case http.StatusTooManyRequests:
		return RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		c.logger.Error("catalog request failed",
			slog.String("kind", kind),
			slog.String("id", id),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return fmt.Errorf("%w: catalog %s: %s", domainErrors.ErrUpstreamUnavailable, kind, resp.Status)
	}
}

// RetryAfter extracts the back-off hint of a rate limited call.
func RetryAfter(err error) (time.Duration, bool) {
	var limited RateLimitedError
	if errors.As(err, &limited) {
		return limited.RetryAfter, true
	}
	return 0, false
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return defaultRetryAfter
}
