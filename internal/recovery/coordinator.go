package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiongtingping/wenpai-sub001/internal/classifier"
	"github.com/xiongtingping/wenpai-sub001/internal/gateway"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
)

// Store is the slice of the status store the coordinator needs.
type Store interface {
	ListActive(ctx context.Context) ([]models.StatusRecord, error)
	Remove(ctx context.Context, checkoutID string) error
}

// Gateway fetches the remote status of a checkout.
type Gateway interface {
	FetchStatus(ctx context.Context, checkoutID string) (*gateway.CheckoutStatus, error)
}

// Resumable describes one in-flight checkout found in the store after a
// restart. The caller decides per descriptor: resume it (start a monitor
// that inherits the persisted record) or discard it.
type Resumable struct {
	Record models.StatusRecord `json:"record"`
}

// CheckResult is the outcome of one immediate status check in CheckAll.
type CheckResult struct {
	CheckoutID string                `json:"checkout_id"`
	RawStatus  string                `json:"raw_status,omitempty"`
	State      models.LifecycleState `json:"state,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Coordinator reconciles the durable store with live monitors after a
// process restart, so a restart never silently loses an in-flight payment.
type Coordinator struct {
	store       Store
	gateway     Gateway
	callTimeout time.Duration
}

func New(store Store, gw Gateway, callTimeout time.Duration) *Coordinator {
	if callTimeout <= 0 {
		callTimeout = 2 * time.Second
	}
	return &Coordinator{
		store:       store,
		gateway:     gw,
		callTimeout: callTimeout,
	}
}

// Recover returns one resumable descriptor per non-terminal record in the
// store, in store order.
func (c *Coordinator) Recover(ctx context.Context) ([]Resumable, error) {
	records, err := c.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	resumables := make([]Resumable, 0, len(records))
	for _, record := range records {
		resumables = append(resumables, Resumable{Record: record})
	}

	if len(resumables) > 0 {
		logrus.Infof("recovered %d in-flight checkout(s) from the status store", len(resumables))
	}
	return resumables, nil
}

// Discard drops a recovered record without resuming it.
func (c *Coordinator) Discard(ctx context.Context, checkoutID string) error {
	return c.store.Remove(ctx, checkoutID)
}

// CheckAll polls every active record once, in parallel, and returns a map
// keyed by checkout id. Failures are independent: one gateway error shows
// up in its own result and does not affect the others. Results are not
// persisted here; live monitors own their records.
func (c *Coordinator) CheckAll(ctx context.Context) (map[string]CheckResult, error) {
	records, err := c.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]CheckResult, len(records))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, record := range records {
		wg.Add(1)
		go func(rec models.StatusRecord) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()

			result := CheckResult{CheckoutID: rec.CheckoutID}
			remote, err := c.gateway.FetchStatus(callCtx, rec.CheckoutID)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.RawStatus = remote.Status
				result.State = classifier.Classify(remote.Status)
			}

			mu.Lock()
			results[rec.CheckoutID] = result
			mu.Unlock()
		}(record)
	}

	wg.Wait()
	return results, nil
}
