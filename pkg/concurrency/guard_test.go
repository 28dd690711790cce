package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardRejectsOverlap(t *testing.T) {
	guard := NewGuard()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		guard.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := guard.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()

	// Free again once the first task finished.
	assert.NoError(t, guard.Execute(func() error { return nil }))
}

func TestGuardPropagatesTaskError(t *testing.T) {
	guard := NewGuard()
	want := errors.New("boom")
	assert.ErrorIs(t, guard.Execute(func() error { return want }), want)
}

func TestExecuteWithContextPassesContext(t *testing.T) {
	guard := NewGuard()
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	err := guard.ExecuteWithContext(ctx, func(taskCtx context.Context) error {
		require.Equal(t, "v", taskCtx.Value(key{}))
		return nil
	})
	assert.NoError(t, err)
}
