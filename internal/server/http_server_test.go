package server

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		// Port 0 picks a free ephemeral port.
		done <- Run(ctx, gin.New(), "0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "a cancelled context is a clean shutdown, not a failure")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestRunReturnsListenError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	err := Run(context.Background(), gin.New(), "not-a-port")
	assert.Error(t, err)
}
