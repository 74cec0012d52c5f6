package engine

import (
	"context"

	"github.com/andreyv/supplybot/go/clients/ozon"
)

// MarketplaceAPI defines what the engine needs from the Seller API client.
// *ozon.Client satisfies it; tests plug in stubs.
type MarketplaceAPI interface {
	CreateDraft(ctx context.Context, req ozon.CreateDraftRequest) (*ozon.CreateDraftResponse, error)
	DraftInfo(ctx context.Context, operationID string) (*ozon.DraftInfoResponse, error)
	DraftTimeslots(ctx context.Context, req ozon.DraftTimeslotsRequest) (*ozon.DraftTimeslotsResponse, error)
	CreateSupply(ctx context.Context, req ozon.CreateSupplyRequest) (*ozon.CreateSupplyResponse, error)
	SupplyStatus(ctx context.Context, operationID string) (*ozon.SupplyStatusResponse, error)
	CancelSupply(ctx context.Context, orderID int64) (*ozon.CancelSupplyResponse, error)
	CancelStatus(ctx context.Context, operationID string) (*ozon.CancelStatusResponse, error)
	ResolveOffers(ctx context.Context, offerIDs []string) (*ozon.ProductInfoListResponse, error)
}

// APIFactory builds a client for one credential pair. The orchestrator calls
// it per run so every task talks to the marketplace as its own seller.
type APIFactory func(creds ozon.Credentials) MarketplaceAPI
