package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/legacy/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

func newManager(branchID id.BranchID, userID id.AccountID) *models.LegacyManager {
	return &models.LegacyManager{
		ID:        id.LegacyManagerID(uuid.New()),
		BranchID:  branchID,
		UserID:    userID,
		Role:      models.RoleSteward,
		CreatedAt: time.Now(),
	}
}

func TestInMemoryUniquePair(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	branchID := id.BranchID(uuid.New())
	userID := id.AccountID(uuid.New())

	var wg sync.WaitGroup
	var created atomic.Int32
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(ctx, newManager(branchID, userID))
			if err == nil {
				created.Add(1)
				return
			}
			assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())

	list, err := store.ListByBranch(ctx, branchID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	ok, err := store.Exists(ctx, userID, branchID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, userID, id.BranchID(uuid.New()))
	require.NoError(t, err)
	assert.False(t, ok)
}
