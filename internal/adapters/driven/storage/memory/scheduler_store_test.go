package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

func TestSchedulerStore_TaskLifecycle(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	task, err := store.GetTask(ctx, domain.TaskIDHistoricalSync)
	require.NoError(t, err)
	assert.Nil(t, task)

	err = store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDHistoricalSync,
		Name:     "Historical Sync",
		Interval: time.Hour,
		Enabled:  true,
	})
	require.NoError(t, err)

	task, err = store.GetTask(ctx, domain.TaskIDHistoricalSync)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, time.Hour, task.Interval)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, store.DeleteTask(ctx, domain.TaskIDHistoricalSync))
	tasks, err = store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSchedulerStore_SaveNil(t *testing.T) {
	store := NewSchedulerStore()
	assert.ErrorIs(t, store.SaveTask(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.RecordResult(context.Background(), nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_HistoryAndPrune(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		err := store.RecordResult(ctx, &domain.TaskResult{
			TaskID:         "t",
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			ItemsProcessed: i,
		})
		require.NoError(t, err)
	}

	history, err := store.GetTaskHistory(ctx, "t", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 3, history[1].ItemsProcessed)

	require.NoError(t, store.PruneHistory(ctx, 3))
	history, err = store.GetTaskHistory(ctx, "t", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 2, history[2].ItemsProcessed)
}
