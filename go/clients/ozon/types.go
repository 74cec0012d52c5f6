package ozon

// Credentials authenticate one seller account.
type Credentials struct {
	ClientID string
	APIKey   string
}

// Draft computation statuses.
const (
	DraftStatusSuccess = "SUCCESS"
	DraftStatusFailed  = "FAILED"
	DraftStatusExpired = "EXPIRED"
)

// WarehouseStateFullAvailable is the only scoring state that allows supply
// creation.
const WarehouseStateFullAvailable = "WAREHOUSE_SCORING_STATUS_FULL_AVAILABLE"

// ClusterTypeOzon selects marketplace-owned clusters in cluster/list.
const ClusterTypeOzon = "CLUSTER_TYPE_OZON"

type DraftItem struct {
	SKU      int64 `json:"sku"`
	Quantity int32 `json:"quantity"`
}

type CreateDraftRequest struct {
	ClusterIDs              []string    `json:"cluster_ids"`
	DropOffPointWarehouseID int64       `json:"drop_off_point_warehouse_id,omitempty"`
	Items                   []DraftItem `json:"items"`
	Type                    string      `json:"type"`
}

type CreateDraftResponse struct {
	OperationID string `json:"operation_id"`
}

type DraftInfoRequest struct {
	OperationID string `json:"operation_id"`
}

type SupplyWarehouse struct {
	WarehouseID int64  `json:"warehouse_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
}

type WarehouseStatus struct {
	State         string `json:"state"`
	IsAvailable   bool   `json:"is_available"`
	InvalidReason string `json:"invalid_reason"`
}

// DraftWarehouse is one candidate destination. Rank and score are absent for
// warehouses the marketplace did not grade; nil sorts after any value.
type DraftWarehouse struct {
	Supply             SupplyWarehouse `json:"supply_warehouse"`
	Status             WarehouseStatus `json:"status"`
	TotalRank          *int            `json:"total_rank"`
	TotalScore         *float64        `json:"total_score"`
	TravelTimeDays     *int            `json:"travel_time_days"`
	BundleIDs          []string        `json:"bundle_ids"`
	RestrictedBundleID string          `json:"restricted_bundle_id"`
}

type DraftCluster struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Warehouses []DraftWarehouse `json:"warehouses"`
}

type ItemValidation struct {
	SKU     int64    `json:"sku"`
	Reasons []string `json:"reasons"`
}

type DraftInfoError struct {
	ErrorMessage      string           `json:"error_message"`
	ItemsValidation   []ItemValidation `json:"items_validation"`
	UnknownClusterIDs []string         `json:"unknown_cluster_ids"`
}

type DraftInfoResponse struct {
	Status   string           `json:"status"`
	DraftID  int64            `json:"draft_id"`
	Clusters []DraftCluster   `json:"clusters"`
	Errors   []DraftInfoError `json:"errors"`
}

type TimeslotInterval struct {
	FromInTimezone string `json:"from_in_timezone"`
	ToInTimezone   string `json:"to_in_timezone"`
}

type TimeslotDay struct {
	DateInTimezone string             `json:"date_in_timezone"`
	Timeslots      []TimeslotInterval `json:"timeslots"`
}

type WarehouseTimeslots struct {
	DropOffWarehouseID int64         `json:"drop_off_point_warehouse_id"`
	WarehouseTimezone  string        `json:"warehouse_timezone"`
	Days               []TimeslotDay `json:"days"`
}

type DraftTimeslotsRequest struct {
	DraftID      int64    `json:"draft_id"`
	DateFrom     string   `json:"date_from"`
	DateTo       string   `json:"date_to"`
	WarehouseIDs []string `json:"warehouse_ids"`
}

type DraftTimeslotsResponse struct {
	DropOffWarehouseTimeslots []WarehouseTimeslots `json:"drop_off_warehouse_timeslots"`
}

type CreateSupplyRequest struct {
	DraftID     int64            `json:"draft_id"`
	WarehouseID int64            `json:"warehouse_id"`
	Timeslot    TimeslotInterval `json:"timeslot"`
}

type CreateSupplyResponse struct {
	OperationID string `json:"operation_id"`
}

type SupplyStatusRequest struct {
	OperationID string `json:"operation_id"`
}

type SupplyStatusResult struct {
	OrderIDs []int64 `json:"order_ids"`
}

type SupplyStatusResponse struct {
	State  string             `json:"state"`
	Status string             `json:"status"`
	Result SupplyStatusResult `json:"result"`
	Errors []string           `json:"errors"`
}

type CancelSupplyRequest struct {
	OrderID int64 `json:"order_id"`
}

type CancelSupplyResponse struct {
	OperationID string `json:"operation_id"`
}

type CancelStatusRequest struct {
	OperationID string `json:"operation_id"`
}

type CancelledSupply struct {
	SupplyID          int64    `json:"supply_id"`
	IsSupplyCancelled bool     `json:"is_supply_cancelled"`
	ErrorReasons      []string `json:"error_reasons"`
}

type CancelStatusResult struct {
	IsOrderCancelled bool              `json:"is_order_cancelled"`
	Supplies         []CancelledSupply `json:"supplies"`
}

type CancelStatusResponse struct {
	Status string             `json:"status"`
	Result CancelStatusResult `json:"result"`
}

type ClusterWarehouse struct {
	WarehouseID int64  `json:"warehouse_id"`
	Name        string `json:"name"`
}

type LogisticCluster struct {
	Warehouses []ClusterWarehouse `json:"warehouses"`
}

type Cluster struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	LogisticClusters []LogisticCluster `json:"logistic_clusters"`
}

type ClusterListRequest struct {
	ClusterIDs  []string `json:"cluster_ids,omitempty"`
	ClusterType string   `json:"cluster_type"`
}

type ClusterListResponse struct {
	Clusters []Cluster `json:"clusters"`
}

type DropOffPoint struct {
	WarehouseID   int64  `json:"warehouse_id"`
	WarehouseType string `json:"warehouse_type"`
	Name          string `json:"name"`
	Address       string `json:"address"`
}

type WarehouseFBOListRequest struct {
	FilterBySupplyType []string `json:"filter_by_supply_type,omitempty"`
	Search             string   `json:"search"`
}

type WarehouseFBOListResponse struct {
	Search []DropOffPoint `json:"search"`
}

type ProductInfoListRequest struct {
	OfferID    []string `json:"offer_id,omitempty"`
	ProductID  []int64  `json:"product_id,omitempty"`
	SKU        []int64  `json:"sku,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

type ProductSource struct {
	SKU int64 `json:"sku"`
}

type ProductInfo struct {
	OfferID string          `json:"offer_id"`
	SKU     int64           `json:"sku"`
	Sources []ProductSource `json:"sources"`
}

type ProductInfoListResponse struct {
	Items []ProductInfo `json:"items"`
}
