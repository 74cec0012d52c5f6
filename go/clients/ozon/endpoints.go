package ozon

// BaseURL is the production Seller API host.
const BaseURL = "https://api-seller.ozon.ru"

const (
	EndpointClusterList        = "/v1/cluster/list"
	EndpointDraftCreate        = "/v1/draft/create"
	EndpointDraftInfo          = "/v1/draft/create/info"
	EndpointDraftTimeslots     = "/v1/draft/timeslot/info"
	EndpointSupplyCreate       = "/v1/draft/supply/create"
	EndpointSupplyStatus       = "/v1/draft/supply/create/status"
	EndpointSupplyCancel       = "/v1/supply-order/cancel"
	EndpointSupplyCancelStatus = "/v1/supply-order/cancel/status"
	EndpointWarehouseFBOList   = "/v1/warehouse/fbo/list"
	EndpointProductInfoList    = "/v3/product/info/list"
)

const (
	HeaderClientID = "Client-Id"
	HeaderAPIKey   = "Api-Key"
)
