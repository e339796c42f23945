package recovery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiongtingping/wenpai-sub001/internal/gateway"
	"github.com/xiongtingping/wenpai-sub001/internal/models"
	"github.com/xiongtingping/wenpai-sub001/internal/recovery"
)

type fakeStore struct {
	mu      sync.Mutex
	active  []models.StatusRecord
	listErr error
	removed []string
}

func (s *fakeStore) ListActive(_ context.Context) ([]models.StatusRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.active, nil
}

func (s *fakeStore) Remove(_ context.Context, checkoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, checkoutID)
	return nil
}

type fakeGateway struct {
	statuses map[string]string
	errs     map[string]error
}

func (g *fakeGateway) FetchStatus(_ context.Context, checkoutID string) (*gateway.CheckoutStatus, error) {
	if err, ok := g.errs[checkoutID]; ok {
		return nil, err
	}
	return &gateway.CheckoutStatus{CheckoutID: checkoutID, Status: g.statuses[checkoutID]}, nil
}

func activeRecords(ids ...string) []models.StatusRecord {
	out := make([]models.StatusRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.StatusRecord{
			CheckoutID: id,
			State:      models.StatePending,
			CreatedAt:  time.Now().UTC(),
		})
	}
	return out
}

func TestCoordinator_RecoverReturnsOneResumablePerActiveRecord(t *testing.T) {
	store := &fakeStore{active: activeRecords("chk_1", "chk_2", "chk_3")}
	c := recovery.New(store, &fakeGateway{}, time.Second)

	resumables, err := c.Recover(context.Background())
	require.NoError(t, err)
	require.Len(t, resumables, 3)
	for i, id := range []string{"chk_1", "chk_2", "chk_3"} {
		assert.Equal(t, id, resumables[i].Record.CheckoutID)
		assert.Equal(t, models.StatePending, resumables[i].Record.State)
	}
}

func TestCoordinator_RecoverEmptyStore(t *testing.T) {
	c := recovery.New(&fakeStore{}, &fakeGateway{}, time.Second)

	resumables, err := c.Recover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resumables)
}

func TestCoordinator_RecoverPropagatesStoreError(t *testing.T) {
	listErr := errors.New("connection reset")
	c := recovery.New(&fakeStore{listErr: listErr}, &fakeGateway{}, time.Second)

	_, err := c.Recover(context.Background())
	assert.ErrorIs(t, err, listErr)
}

func TestCoordinator_DiscardRemovesRecord(t *testing.T) {
	store := &fakeStore{active: activeRecords("chk_old")}
	c := recovery.New(store, &fakeGateway{}, time.Second)

	require.NoError(t, c.Discard(context.Background(), "chk_old"))
	assert.Equal(t, []string{"chk_old"}, store.removed)
}

func TestCoordinator_CheckAllFailuresAreIndependent(t *testing.T) {
	store := &fakeStore{active: activeRecords("chk_ok", "chk_paid", "chk_down")}
	gw := &fakeGateway{
		statuses: map[string]string{"chk_ok": "pending", "chk_paid": "paid"},
		errs:     map[string]error{"chk_down": errors.New("gateway unavailable")},
	}
	c := recovery.New(store, gw, time.Second)

	results, err := c.CheckAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, models.StatePending, results["chk_ok"].State)
	assert.Equal(t, "pending", results["chk_ok"].RawStatus)
	assert.Empty(t, results["chk_ok"].Error)

	assert.Equal(t, models.StatePaid, results["chk_paid"].State)

	assert.Equal(t, "gateway unavailable", results["chk_down"].Error)
	assert.Empty(t, results["chk_down"].State)
}
