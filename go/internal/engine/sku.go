package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/andreyv/supplybot/go/internal/models"
)

// skuResolveBatchSize is the product/info/list page limit.
const skuResolveBatchSize = 100

// resolveSKUs fills in missing SKUs. Articles that parse as positive integers
// are taken as SKUs directly; the rest go through product/info/list in
// batches. Any article the marketplace does not know is a fatal input error:
// no draft may be created for it.
func resolveSKUs(ctx context.Context, api MarketplaceAPI, items []models.TaskItem) ([]models.TaskItem, error) {
	resolved := make([]models.TaskItem, len(items))
	var pending []string
	for i, it := range items {
		resolved[i] = it
		if it.SKU > 0 {
			continue
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(it.Article), 10, 64); err == nil && n > 0 {
			resolved[i].SKU = n
			continue
		}
		pending = append(pending, it.Article)
	}
	if len(pending) == 0 {
		return resolved, nil
	}

	skuByArticle := make(map[string]int64, len(pending))
	for _, batch := range lo.Chunk(lo.Uniq(pending), skuResolveBatchSize) {
		resp, err := api.ResolveOffers(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve offers: %w", err)
		}
		for _, item := range resp.Items {
			sku := item.SKU
			if sku == 0 && len(item.Sources) > 0 {
				sku = item.Sources[0].SKU
			}
			if sku > 0 {
				skuByArticle[item.OfferID] = sku
			}
		}
	}

	var missing []string
	for i := range resolved {
		if resolved[i].SKU > 0 {
			continue
		}
		sku, ok := skuByArticle[resolved[i].Article]
		if !ok {
			missing = append(missing, resolved[i].Article)
			continue
		}
		resolved[i].SKU = sku
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("articles not found on the marketplace: %s", strings.Join(missing, ", "))
	}
	return resolved, nil
}
