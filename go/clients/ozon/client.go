// Package ozon is a typed client for the Seller API surface the supply engine
// consumes: draft lifecycle, timeslots, supply orders and reference lookups.
// The client keeps no draft state; its lifecycle belongs to the engine.
package ozon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyv/supplybot/go/clients"
)

// Client talks to the Seller API on behalf of one credential pair.
type Client struct {
	*clients.BaseClient
}

// Option tweaks client construction.
type Option func(*Client)

// WithTimeout overrides the per-request timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.SetTimeout(d) }
}

// WithRetryPolicy overrides the transient-failure retry policy.
func WithRetryPolicy(p clients.RetryPolicy) Option {
	return func(c *Client) { c.SetRetryPolicy(p) }
}

// NewClient builds a client bound to the given credentials.
func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	c := &Client{BaseClient: clients.NewBaseClient(baseURL)}
	c.SetHeader("Content-Type", "application/json")
	c.SetHeader(HeaderClientID, creds.ClientID)
	c.SetHeader(HeaderAPIKey, creds.APIKey)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) post(ctx context.Context, endpoint string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", endpoint, err)
	}
	data, err := c.Post(ctx, endpoint, body)
	if err != nil {
		return classify(endpoint, err)
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// CreateDraft starts a draft computation and returns its operation id.
func (c *Client) CreateDraft(ctx context.Context, req CreateDraftRequest) (*CreateDraftResponse, error) {
	var resp CreateDraftResponse
	if err := c.post(ctx, EndpointDraftCreate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DraftInfo polls a draft computation. A 404 with code 5 surfaces as
// ErrDraftExpired, not as a transport error.
func (c *Client) DraftInfo(ctx context.Context, operationID string) (*DraftInfoResponse, error) {
	var resp DraftInfoResponse
	if err := c.post(ctx, EndpointDraftInfo, DraftInfoRequest{OperationID: operationID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DraftTimeslots lists free delivery windows for a draft and warehouse set.
func (c *Client) DraftTimeslots(ctx context.Context, req DraftTimeslotsRequest) (*DraftTimeslotsResponse, error) {
	var resp DraftTimeslotsResponse
	if err := c.post(ctx, EndpointDraftTimeslots, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSupply commits a draft into a supply order at the given timeslot.
func (c *Client) CreateSupply(ctx context.Context, req CreateSupplyRequest) (*CreateSupplyResponse, error) {
	var resp CreateSupplyResponse
	if err := c.post(ctx, EndpointSupplyCreate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SupplyStatus polls a supply-creation operation for its order ids.
func (c *Client) SupplyStatus(ctx context.Context, operationID string) (*SupplyStatusResponse, error) {
	var resp SupplyStatusResponse
	if err := c.post(ctx, EndpointSupplyStatus, SupplyStatusRequest{OperationID: operationID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelSupply asks the marketplace to cancel a supply order.
func (c *Client) CancelSupply(ctx context.Context, orderID int64) (*CancelSupplyResponse, error) {
	var resp CancelSupplyResponse
	if err := c.post(ctx, EndpointSupplyCancel, CancelSupplyRequest{OrderID: orderID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelStatus polls a cancellation operation.
func (c *Client) CancelStatus(ctx context.Context, operationID string) (*CancelStatusResponse, error) {
	var resp CancelStatusResponse
	if err := c.post(ctx, EndpointSupplyCancelStatus, CancelStatusRequest{OperationID: operationID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListClusters returns destination clusters with their warehouses.
func (c *Client) ListClusters(ctx context.Context, req ClusterListRequest) (*ClusterListResponse, error) {
	var resp ClusterListResponse
	if err := c.post(ctx, EndpointClusterList, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchDropOffPoints searches FBO drop-off warehouses by name/address.
func (c *Client) SearchDropOffPoints(ctx context.Context, req WarehouseFBOListRequest) (*WarehouseFBOListResponse, error) {
	var resp WarehouseFBOListResponse
	if err := c.post(ctx, EndpointWarehouseFBOList, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveOffers maps seller offer ids (articles) to marketplace SKUs.
func (c *Client) ResolveOffers(ctx context.Context, offerIDs []string) (*ProductInfoListResponse, error) {
	var resp ProductInfoListResponse
	req := ProductInfoListRequest{OfferID: offerIDs}
	if err := c.post(ctx, EndpointProductInfoList, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
