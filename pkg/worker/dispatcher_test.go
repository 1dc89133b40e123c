package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tikdrop/pkg/worker"
)

func Test_Submit_RejectsWhenBacklogFull(t *testing.T) {
	t.Parallel()
	dispatcher := worker.NewDispatcher("test", 1, 1)

	// No worker is draining yet, so only the backlog slot is available.
	assert.True(t, dispatcher.Submit(func() {}))
	assert.False(t, dispatcher.Submit(func() {}), "a full backlog must reject, not block")
}

func Test_Run_ExecutesJobsInSubmissionOrder(t *testing.T) {
	t.Parallel()
	dispatcher := worker.NewDispatcher("test", 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	results := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, dispatcher.Submit(func() { results <- i }))
	}

	for expected := 1; expected <= 3; expected++ {
		select {
		case got := <-results:
			assert.Equal(t, expected, got)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for job execution")
		}
	}
}

func Test_Run_RecoversFromPanickingJob(t *testing.T) {
	t.Parallel()
	dispatcher := worker.NewDispatcher("test", 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	done := make(chan struct{})
	require.True(t, dispatcher.Submit(func() { panic("job exploded") }))
	require.True(t, dispatcher.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
}

func Test_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()
	dispatcher := worker.NewDispatcher("test", 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- dispatcher.Run(ctx) }()

	cancel()
	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}
}
