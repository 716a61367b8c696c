// Package license verifies purchase licenses and gates paid features.
package license

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notelens/notelens/internal/core"
	nlerrors "github.com/notelens/notelens/internal/errors"
)

const (
	// DefaultVerifyURL is the license verification endpoint.
	DefaultVerifyURL = "https://api.gumroad.com/v2/licenses/verify"

	// DefaultTimeout bounds a single verification call.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Client verifies license keys against the vendor API.
type Client struct {
	VerifyURL        string
	ProductPermalink string
	ProductID        string
	HTTPClient       *http.Client
	Timeout          time.Duration

	// Clock is swappable for tests.
	Clock func() time.Time
}

// NewClient builds a verification client for one product.
func NewClient(verifyURL, productPermalink, productID string) *Client {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &Client{
		VerifyURL:        verifyURL,
		ProductPermalink: productPermalink,
		ProductID:        productID,
		HTTPClient:       &http.Client{},
		Timeout:          DefaultTimeout,
		Clock:            time.Now,
	}
}

type verifyResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Purchase struct {
		Email                   string `json:"email"`
		SubscriptionCancelledAt string `json:"subscription_cancelled_at"`
		SubscriptionFailedAt    string `json:"subscription_failed_at"`
	} `json:"purchase"`
}

// Verify checks a license key against the vendor API and returns the
// resolved license. A key the vendor rejects comes back with status
// invalid rather than an error; errors are reserved for transport and
// server failures.
func (c *Client) Verify(ctx context.Context, key string) (*core.License, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nlerrors.NewInvalidInputError("license key is required")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := url.Values{}
	form.Set("product_permalink", c.ProductPermalink)
	if c.ProductID != "" {
		form.Set("product_id", c.ProductID)
	}
	form.Set("license_key", key)
	form.Set("increment_uses_count", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nlerrors.WrapNetwork(ctx, err, "failed to build license request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nlerrors.WrapNetwork(ctx, err, "license verification request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nlerrors.WrapNetwork(ctx, err, "failed to read license response")
	}

	now := c.now()

	// The vendor answers 404 with success=false for unknown keys.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusOK {
		var parsed verifyResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, nlerrors.WrapUnknown(ctx, err, "unexpected license response")
		}
		return c.resolve(key, parsed, now), nil
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, nlerrors.NewUpstreamUnavailableError(
			fmt.Sprintf("license service returned status %d", resp.StatusCode))
	}

	return nil, nlerrors.NewUnknownError(
		fmt.Sprintf("license verification failed with status %d", resp.StatusCode))
}

func (c *Client) resolve(key string, parsed verifyResponse, now time.Time) *core.License {
	license := &core.License{
		Key:        key,
		Email:      parsed.Purchase.Email,
		VerifiedAt: now,
	}

	switch {
	case !parsed.Success:
		license.Status = core.LicenseInvalid
	case parsed.Purchase.SubscriptionCancelledAt != "" || parsed.Purchase.SubscriptionFailedAt != "":
		license.Status = core.LicenseCancelled
	default:
		license.Status = core.LicenseActive
	}

	return license
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}
