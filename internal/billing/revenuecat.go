package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RevenueCat is a Client over the RevenueCat v1 REST API.
type RevenueCat struct {
	apiKey        string
	apiURL        string
	entitlementID string
	platform      string
	httpClient    *http.Client
}

type RevenueCatConfig struct {
	APIKey        string
	APIURL        string
	EntitlementID string
	Platform      string
	Timeout       time.Duration
}

// New returns a RevenueCat client, or Disabled when no API key is set.
func New(cfg RevenueCatConfig) Client {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	return &RevenueCat{
		apiKey:        cfg.APIKey,
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		entitlementID: cfg.EntitlementID,
		platform:      cfg.Platform,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *RevenueCat) Configured() bool { return true }

type rcSubscriberResponse struct {
	Subscriber struct {
		OriginalAppUserID string `json:"original_app_user_id"`
		Entitlements      map[string]struct {
			ExpiresDate       *time.Time `json:"expires_date"`
			ProductIdentifier string     `json:"product_identifier"`
		} `json:"entitlements"`
		Subscriptions map[string]struct {
			UnsubscribeDetectedAt *time.Time `json:"unsubscribe_detected_at"`
		} `json:"subscriptions"`
	} `json:"subscriber"`
}

type rcOfferingsResponse struct {
	CurrentOfferingID string `json:"current_offering_id"`
	Offerings         []struct {
		Identifier  string `json:"identifier"`
		Description string `json:"description"`
		Packages    []struct {
			Identifier                string `json:"identifier"`
			PlatformProductIdentifier string `json:"platform_product_identifier"`
		} `json:"packages"`
	} `json:"offerings"`
}

type rcReceiptRequest struct {
	AppUserID  string `json:"app_user_id"`
	FetchToken string `json:"fetch_token"`
	ProductID  string `json:"product_id,omitempty"`
}

func (r *RevenueCat) ListOfferings(ctx context.Context, appUserID string) ([]Offering, error) {
	var resp rcOfferingsResponse
	if err := r.do(ctx, http.MethodGet, "/subscribers/"+url.PathEscape(appUserID)+"/offerings", nil, &resp); err != nil {
		return nil, err
	}

	offerings := make([]Offering, 0, len(resp.Offerings))
	for _, o := range resp.Offerings {
		off := Offering{
			ID:          o.Identifier,
			Description: o.Description,
			Current:     o.Identifier == resp.CurrentOfferingID,
		}
		for _, p := range o.Packages {
			off.Packages = append(off.Packages, Package{ID: p.Identifier, ProductID: p.PlatformProductIdentifier})
		}
		offerings = append(offerings, off)
	}
	return offerings, nil
}

// Purchase posts the checkout's fetch token. An empty token means the user
// left checkout without paying.
func (r *RevenueCat) Purchase(ctx context.Context, appUserID string, pkg Package, fetchToken string) (*Snapshot, error) {
	if fetchToken == "" {
		return nil, ErrUserCancelled
	}

	var resp rcSubscriberResponse
	body := rcReceiptRequest{AppUserID: appUserID, FetchToken: fetchToken, ProductID: pkg.ProductID}
	if err := r.do(ctx, http.MethodPost, "/receipts", body, &resp); err != nil {
		return nil, err
	}
	return r.snapshot(&resp), nil
}

// Restore has no separate endpoint for web purchases; the subscriber record
// already reflects every receipt posted for the user.
func (r *RevenueCat) Restore(ctx context.Context, appUserID string) (*Snapshot, error) {
	return r.GetCustomerInfo(ctx, appUserID)
}

func (r *RevenueCat) GetCustomerInfo(ctx context.Context, appUserID string) (*Snapshot, error) {
	var resp rcSubscriberResponse
	if err := r.do(ctx, http.MethodGet, "/subscribers/"+url.PathEscape(appUserID), nil, &resp); err != nil {
		return nil, err
	}
	return r.snapshot(&resp), nil
}

func (r *RevenueCat) snapshot(resp *rcSubscriberResponse) *Snapshot {
	snap := &Snapshot{CustomerID: resp.Subscriber.OriginalAppUserID}

	ent, ok := resp.Subscriber.Entitlements[r.entitlementID]
	if !ok {
		return snap
	}
	snap.HadEntitlement = true
	snap.ProductID = ent.ProductIdentifier
	snap.ExpiresAt = ent.ExpiresDate
	// A nil expiry is a lifetime entitlement.
	snap.Active = ent.ExpiresDate == nil || ent.ExpiresDate.After(time.Now())
	if sub, ok := resp.Subscriber.Subscriptions[ent.ProductIdentifier]; ok {
		snap.Unsubscribed = sub.UnsubscribeDetectedAt != nil
	}
	return snap
}

func (r *RevenueCat) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode billing request: %w", err)
		}
		body = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build billing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Platform", r.platform)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnavailable, method, path, resp.StatusCode, truncate(string(respBody), 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
