package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyv/supplybot/go/clients/ozon"
	"github.com/andreyv/supplybot/go/internal/events"
	"github.com/andreyv/supplybot/go/internal/models"
	"github.com/andreyv/supplybot/go/internal/msk"
	"github.com/andreyv/supplybot/go/internal/ratelimit"
	"github.com/andreyv/supplybot/go/internal/store"
)

// fakeAPI scripts marketplace behavior per call number and records calls.
type fakeAPI struct {
	mu               sync.Mutex
	draftCreates     int
	draftInfos       int
	timeslotCalls    int
	supplyCreates    int
	createDraftTimes []time.Time

	onCreateDraft   func(n int) (*ozon.CreateDraftResponse, error)
	onDraftInfo     func(n int) (*ozon.DraftInfoResponse, error)
	onTimeslots     func(n int) (*ozon.DraftTimeslotsResponse, error)
	onCreateSupply  func(req ozon.CreateSupplyRequest) (*ozon.CreateSupplyResponse, error)
	onSupplyStatus  func(operationID string) (*ozon.SupplyStatusResponse, error)
	onResolveOffers func(offerIDs []string) (*ozon.ProductInfoListResponse, error)
}

func (f *fakeAPI) CreateDraft(ctx context.Context, req ozon.CreateDraftRequest) (*ozon.CreateDraftResponse, error) {
	f.mu.Lock()
	f.draftCreates++
	n := f.draftCreates
	f.createDraftTimes = append(f.createDraftTimes, time.Now())
	f.mu.Unlock()
	if f.onCreateDraft != nil {
		return f.onCreateDraft(n)
	}
	return &ozon.CreateDraftResponse{OperationID: fmt.Sprintf("op-%d", n)}, nil
}

func (f *fakeAPI) DraftInfo(ctx context.Context, operationID string) (*ozon.DraftInfoResponse, error) {
	f.mu.Lock()
	f.draftInfos++
	n := f.draftInfos
	f.mu.Unlock()
	if f.onDraftInfo != nil {
		return f.onDraftInfo(n)
	}
	return successInfo(42, 7), nil
}

func (f *fakeAPI) DraftTimeslots(ctx context.Context, req ozon.DraftTimeslotsRequest) (*ozon.DraftTimeslotsResponse, error) {
	f.mu.Lock()
	f.timeslotCalls++
	n := f.timeslotCalls
	f.mu.Unlock()
	if f.onTimeslots != nil {
		return f.onTimeslots(n)
	}
	return slotResponse(tomorrowAt(10), tomorrowAt(12)), nil
}

func (f *fakeAPI) CreateSupply(ctx context.Context, req ozon.CreateSupplyRequest) (*ozon.CreateSupplyResponse, error) {
	f.mu.Lock()
	f.supplyCreates++
	f.mu.Unlock()
	if f.onCreateSupply != nil {
		return f.onCreateSupply(req)
	}
	return &ozon.CreateSupplyResponse{OperationID: "sup-1"}, nil
}

func (f *fakeAPI) SupplyStatus(ctx context.Context, operationID string) (*ozon.SupplyStatusResponse, error) {
	if f.onSupplyStatus != nil {
		return f.onSupplyStatus(operationID)
	}
	return &ozon.SupplyStatusResponse{Result: ozon.SupplyStatusResult{OrderIDs: []int64{999}}}, nil
}

func (f *fakeAPI) CancelSupply(ctx context.Context, orderID int64) (*ozon.CancelSupplyResponse, error) {
	return &ozon.CancelSupplyResponse{OperationID: "cancel-1"}, nil
}

func (f *fakeAPI) CancelStatus(ctx context.Context, operationID string) (*ozon.CancelStatusResponse, error) {
	return &ozon.CancelStatusResponse{Result: ozon.CancelStatusResult{IsOrderCancelled: true}}, nil
}

func (f *fakeAPI) ResolveOffers(ctx context.Context, offerIDs []string) (*ozon.ProductInfoListResponse, error) {
	if f.onResolveOffers != nil {
		return f.onResolveOffers(offerIDs)
	}
	return &ozon.ProductInfoListResponse{}, nil
}

func (f *fakeAPI) supplyCreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supplyCreates
}

func (f *fakeAPI) draftCreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draftCreates
}

func successInfo(draftID, warehouseID int64) *ozon.DraftInfoResponse {
	return &ozon.DraftInfoResponse{
		Status:  ozon.DraftStatusSuccess,
		DraftID: draftID,
		Clusters: []ozon.DraftCluster{{
			Warehouses: []ozon.DraftWarehouse{{
				Supply: ozon.SupplyWarehouse{WarehouseID: warehouseID, Name: "WH"},
				Status: ozon.WarehouseStatus{State: ozon.WarehouseStateFullAvailable, IsAvailable: true},
			}},
		}},
	}
}

func pendingInfo(draftID, warehouseID int64) *ozon.DraftInfoResponse {
	info := successInfo(draftID, warehouseID)
	info.Clusters[0].Warehouses[0].Status = ozon.WarehouseStatus{State: "WAREHOUSE_SCORING_STATUS_DRAFT"}
	return info
}

func slotResponse(from, to time.Time) *ozon.DraftTimeslotsResponse {
	return &ozon.DraftTimeslotsResponse{
		DropOffWarehouseTimeslots: []ozon.WarehouseTimeslots{{
			WarehouseTimezone: "Europe/Moscow",
			Days: []ozon.TimeslotDay{{
				Timeslots: []ozon.TimeslotInterval{{
					FromInTimezone: from.Format(time.RFC3339),
					ToInTimezone:   to.Format(time.RFC3339),
				}},
			}},
		}},
	}
}

func emptySlots() *ozon.DraftTimeslotsResponse {
	return &ozon.DraftTimeslotsResponse{}
}

func tomorrowAt(hour int) time.Time {
	return msk.DayStartIn(time.Now(), 1).Add(time.Duration(hour) * time.Hour)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DraftPollInterval = 10 * time.Millisecond
	cfg.DraftRecreateBackoff = 5 * time.Millisecond
	cfg.TimeslotPollInterval = 20 * time.Millisecond
	cfg.OrderIDPollDelay = 10 * time.Millisecond
	cfg.RateLimit = ratelimit.Config{
		MinInterval:  0,
		PerMinute:    10000,
		MinuteWindow: time.Minute,
		PerHour:      100000,
		HourWindow:   time.Hour,
	}
	return cfg
}

func testTask(taskID string, deadline time.Time) *models.Task {
	return &models.Task{
		TaskID:             taskID,
		UserID:             100,
		ClusterID:          1,
		DropOffWarehouseID: 55,
		WarehouseAuto:      true,
		SupplyType:         models.SupplyTypeDirect,
		Items:              []models.TaskItem{{Article: "12345", Quantity: 2}},
		ReadyInDays:        1,
		SearchDeadline:     deadline,
	}
}

type testRig struct {
	orch   *Orchestrator
	api    *fakeAPI
	store  *store.Memory
	events <-chan events.Event
	unsub  func()
}

func newTestRig(t *testing.T, api *fakeAPI, cfg Config) *testRig {
	t.Helper()
	mem := store.NewMemory()
	bus := events.NewChannelBus(256)
	ch, unsub := bus.Subscribe()
	t.Cleanup(unsub)
	orch := NewOrchestrator(
		func(ozon.Credentials) MarketplaceAPI { return api },
		mem, mem, bus, cfg, nil,
	)
	return &testRig{orch: orch, api: api, store: mem, events: ch, unsub: unsub}
}

func (r *testRig) drainTypes() []events.Type {
	var types []events.Type
	for {
		select {
		case e := <-r.events:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func countType(types []events.Type, want events.Type) int {
	n := 0
	for _, tp := range types {
		if tp == want {
			n++
		}
	}
	return n
}

var testCreds = ozon.Credentials{ClientID: "client-1", APIKey: "key-1"}

func TestRunHappyPath(t *testing.T) {
	rig := newTestRig(t, &fakeAPI{}, testConfig())
	task := testTask("task-1", time.Now().Add(7*24*time.Hour))

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.NoError(t, err)

	assert.True(t, task.OrderFlag)
	assert.Equal(t, models.TaskStateCompleted, task.State)
	assert.Equal(t, 1, rig.api.supplyCreateCount())

	types := rig.drainTypes()
	assert.Equal(t, []events.Type{
		events.TypeDraftCreated,
		events.TypeDraftValid,
		events.TypeSupplyCreated,
	}, types)

	// The pending record is gone, the completed order persisted.
	_, err = rig.store.Find(context.Background(), task.UserID, task.TaskID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	orders, err := rig.store.ListCompleted(context.Background(), task.UserID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(999), orders[0].OrderID)
	assert.Equal(t, "sup-1", orders[0].OperationID)
	assert.Equal(t, int64(7), orders[0].WarehouseID)
}

func TestRunDraftExpiredMidFlight(t *testing.T) {
	api := &fakeAPI{
		onDraftInfo: func(n int) (*ozon.DraftInfoResponse, error) {
			if n == 1 {
				return &ozon.DraftInfoResponse{Status: ozon.DraftStatusExpired}, nil
			}
			return successInfo(42, 7), nil
		},
	}
	rig := newTestRig(t, api, testConfig())
	task := testTask("task-1", time.Now().Add(7*24*time.Hour))

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.NoError(t, err)
	assert.Equal(t, 2, api.draftCreateCount())

	types := rig.drainTypes()
	assert.Equal(t, 1, countType(types, events.TypeDraftExpired))
	assert.Equal(t, 2, countType(types, events.TypeDraftCreated))
	assert.Equal(t, 1, countType(types, events.TypeSupplyCreated))
}

func TestRunWindowExpired(t *testing.T) {
	api := &fakeAPI{
		onTimeslots: func(int) (*ozon.DraftTimeslotsResponse, error) {
			return emptySlots(), nil
		},
	}
	rig := newTestRig(t, api, testConfig())
	task := testTask("task-1", time.Now().Add(300*time.Millisecond))
	task.ReadyInDays = 0

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.ErrorIs(t, err, errWindowExpired)

	assert.Equal(t, models.TaskStateExpired, task.State)
	assert.Zero(t, rig.api.supplyCreateCount())

	types := rig.drainTypes()
	assert.Equal(t, 1, countType(types, events.TypeTimeslotMissing), "missing-slot chatter must be deduplicated")
	assert.Equal(t, 1, countType(types, events.TypeWindowExpired))

	_, err = rig.store.Find(context.Background(), task.UserID, task.TaskID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunCooperativeCancel(t *testing.T) {
	api := &fakeAPI{
		onTimeslots: func(int) (*ozon.DraftTimeslotsResponse, error) {
			return emptySlots(), nil
		},
	}
	rig := newTestRig(t, api, testConfig())
	task := testTask("task-1", time.Now().Add(time.Hour))

	done := make(chan error, 1)
	go func() { done <- rig.orch.Run(context.Background(), task, testCreds) }()

	require.Eventually(t, func() bool {
		return rig.orch.Running(task.UserID, task.TaskID)
	}, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	cancelled := time.Now()
	require.True(t, rig.orch.Cancel(task.UserID, task.TaskID))

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	assert.Less(t, time.Since(cancelled), 100*time.Millisecond, "cancel must unblock promptly")

	assert.Zero(t, api.supplyCreateCount())
	assert.False(t, rig.orch.Running(task.UserID, task.TaskID))

	types := rig.drainTypes()
	assert.Equal(t, 1, countType(types, events.TypeCancelled))

	_, err := rig.store.Find(context.Background(), task.UserID, task.TaskID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Cancelling again is a no-op and emits nothing.
	assert.False(t, rig.orch.Cancel(task.UserID, task.TaskID))
	assert.Zero(t, countType(rig.drainTypes(), events.TypeCancelled))
}

func TestRunPinnedWarehousePending(t *testing.T) {
	api := &fakeAPI{
		onDraftInfo: func(n int) (*ozon.DraftInfoResponse, error) {
			if n <= 2 {
				return pendingInfo(42, 7), nil
			}
			return successInfo(42, 7), nil
		},
	}
	rig := newTestRig(t, api, testConfig())
	task := testTask("task-1", time.Now().Add(7*24*time.Hour))
	task.WarehouseAuto = false
	task.WarehouseID = 7

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.NoError(t, err)

	types := rig.drainTypes()
	assert.Equal(t, 1, countType(types, events.TypeWarehousePending), "pending must be emitted on transition only")
	assert.Equal(t, 1, countType(types, events.TypeSupplyCreated))
}

func TestRunRateLimitSharedCredential(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-second rate limit timing")
	}

	cfg := testConfig()
	cfg.RateLimit.MinInterval = 300 * time.Millisecond

	api := &fakeAPI{}
	rig := newTestRig(t, api, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := testTask(fmt.Sprintf("task-%d", i), time.Now().Add(7*24*time.Hour))
			_ = rig.orch.Run(context.Background(), task, testCreds)
		}(i)
	}
	wg.Wait()

	api.mu.Lock()
	creates := append([]time.Time(nil), api.createDraftTimes...)
	api.mu.Unlock()
	require.Len(t, creates, 5)

	first, last := creates[0], creates[0]
	for _, ts := range creates[1:] {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 4*cfg.RateLimit.MinInterval-20*time.Millisecond)
}

func TestRunRejectsBadInput(t *testing.T) {
	rig := newTestRig(t, &fakeAPI{}, testConfig())
	task := testTask("task-1", time.Now().Add(time.Hour))
	task.Items = nil

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.ErrorIs(t, err, models.ErrNoItems)
	assert.Zero(t, rig.api.draftCreateCount())

	types := rig.drainTypes()
	assert.Equal(t, []events.Type{events.TypeError}, types)
}

func TestRunUnresolvableArticleFailsBeforeDraft(t *testing.T) {
	api := &fakeAPI{
		onResolveOffers: func([]string) (*ozon.ProductInfoListResponse, error) {
			return &ozon.ProductInfoListResponse{}, nil
		},
	}
	rig := newTestRig(t, api, testConfig())
	task := testTask("task-1", time.Now().Add(time.Hour))
	task.Items = []models.TaskItem{{Article: "ABC-1", Quantity: 1}}

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.Error(t, err)
	assert.Zero(t, api.draftCreateCount())
	assert.Equal(t, models.TaskStateFailed, task.State)
	assert.Equal(t, 1, countType(rig.drainTypes(), events.TypeError))
}

func TestRunCredentialRevocation(t *testing.T) {
	api := &fakeAPI{
		onDraftInfo: func(int) (*ozon.DraftInfoResponse, error) {
			return nil, fmt.Errorf("draft info: %w", ozon.ErrAPIKeyDeactivated)
		},
	}
	rig := newTestRig(t, api, testConfig())
	task := testTask("task-1", time.Now().Add(time.Hour))

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.ErrorIs(t, err, ozon.ErrAPIKeyDeactivated)
	assert.Equal(t, models.TaskStateFailed, task.State)
	assert.Equal(t, 1, countType(rig.drainTypes(), events.TypeNoCredentials))
}

func TestRunRefusesCompletedTask(t *testing.T) {
	rig := newTestRig(t, &fakeAPI{}, testConfig())
	task := testTask("task-1", time.Now().Add(time.Hour))
	task.OrderFlag = true

	err := rig.orch.Run(context.Background(), task, testCreds)
	require.ErrorIs(t, err, errAlreadyOrdered)
	assert.Zero(t, rig.api.draftCreateCount())
}

func TestResumeProbesExistingDraft(t *testing.T) {
	api := &fakeAPI{}
	rig := newTestRig(t, api, testConfig())

	task := testTask("task-1", time.Now().Add(7*24*time.Hour))
	task.State = models.TaskStateDraftPending
	task.DraftOperationID = "op-old"
	created := time.Now()
	expires := created.Add(30 * time.Minute)
	task.DraftCreatedAt = &created
	task.DraftExpiresAt = &expires
	require.NoError(t, rig.store.Save(context.Background(), task))

	err := rig.orch.Resume(context.Background(), task.UserID, task.TaskID, testCreds)
	require.NoError(t, err)

	// The persisted operation was probed instead of creating a new draft.
	assert.Zero(t, api.draftCreateCount())
	assert.Equal(t, 1, countType(rig.drainTypes(), events.TypeSupplyCreated))
}

func TestRegisterReplacesActiveRunner(t *testing.T) {
	api := &fakeAPI{
		onTimeslots: func(int) (*ozon.DraftTimeslotsResponse, error) {
			return emptySlots(), nil
		},
	}
	rig := newTestRig(t, api, testConfig())
	deadline := time.Now().Add(time.Hour)

	firstDone := make(chan error, 1)
	go func() { firstDone <- rig.orch.Run(context.Background(), testTask("task-1", deadline), testCreds) }()

	require.Eventually(t, func() bool {
		return rig.orch.Running(100, "task-1")
	}, time.Second, 5*time.Millisecond)

	// A second registration for the same key aborts the first runner.
	secondDone := make(chan error, 1)
	go func() { secondDone <- rig.orch.Run(context.Background(), testTask("task-1", deadline), testCreds) }()

	select {
	case err := <-firstDone:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("first runner survived a replacing registration")
	}

	rig.orch.Cancel(100, "task-1")
	<-secondDone
}
