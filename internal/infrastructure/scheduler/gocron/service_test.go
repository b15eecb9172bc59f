package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	scheduler "github.com/ark-network/lottery/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	svc := scheduler.NewScheduler()
	svc.Start()
	defer svc.Stop()

	t.Run("schedule task", func(t *testing.T) {
		var count int32
		err := svc.ScheduleTask(1, true, func() {
			atomic.AddInt32(&count, 1)
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return atomic.LoadInt32(&count) >= 2
		}, 5*time.Second, 100*time.Millisecond)

		require.Error(t, svc.ScheduleTask(0, true, func() {}))
	})

	t.Run("schedule task once", func(t *testing.T) {
		var count int32
		err := svc.ScheduleTaskOnce(time.Now().Unix()+1, func() {
			atomic.AddInt32(&count, 1)
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return atomic.LoadInt32(&count) == 1
		}, 5*time.Second, 100*time.Millisecond)

		time.Sleep(1500 * time.Millisecond)
		require.Equal(t, int32(1), atomic.LoadInt32(&count))

		err = svc.ScheduleTaskOnce(time.Now().Unix()-10, func() {})
		require.EqualError(t, err, "cannot schedule task in the past")
	})
}
