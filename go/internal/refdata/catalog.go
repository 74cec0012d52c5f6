// Package refdata serves the slow-moving marketplace reference data the chat
// layer needs while a user assembles a task: destination clusters and drop-off
// points. Responses are cached with a TTL; draft state is never cached here.
package refdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/andreyv/supplybot/go/clients/ozon"
)

// API is the slice of the Seller API the catalog needs.
type API interface {
	ListClusters(ctx context.Context, req ozon.ClusterListRequest) (*ozon.ClusterListResponse, error)
	SearchDropOffPoints(ctx context.Context, req ozon.WarehouseFBOListRequest) (*ozon.WarehouseFBOListResponse, error)
}

// Catalog caches cluster and drop-off lookups.
type Catalog struct {
	api   API
	cache *gocache.Cache
}

const (
	defaultTTL      = 10 * time.Minute
	cleanupInterval = 30 * time.Minute
)

func NewCatalog(api API) *Catalog {
	return &Catalog{
		api:   api,
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Clusters returns all marketplace clusters and their warehouses.
func (c *Catalog) Clusters(ctx context.Context) ([]ozon.Cluster, error) {
	const cacheKey = "clusters"
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]ozon.Cluster), nil
	}

	resp, err := c.api.ListClusters(ctx, ozon.ClusterListRequest{
		ClusterType: ozon.ClusterTypeOzon,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	c.cache.SetDefault(cacheKey, resp.Clusters)
	return resp.Clusters, nil
}

// DropOffPoints searches drop-off warehouses for the given supply types.
func (c *Catalog) DropOffPoints(ctx context.Context, search string, supplyTypes []string) ([]ozon.DropOffPoint, error) {
	cacheKey := fmt.Sprintf("dropoff/%s/%s", strings.ToLower(search), strings.Join(supplyTypes, ","))
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]ozon.DropOffPoint), nil
	}

	resp, err := c.api.SearchDropOffPoints(ctx, ozon.WarehouseFBOListRequest{
		FilterBySupplyType: supplyTypes,
		Search:             search,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search drop-off points: %w", err)
	}

	c.cache.SetDefault(cacheKey, resp.Search)
	return resp.Search, nil
}

// Invalidate drops everything, e.g. after a credentials change.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}
