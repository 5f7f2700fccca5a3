package flusher

import (
	"testing"
	"time"
)

func TestNewClient_DisabledReturnsNoOp(t *testing.T) {
	c := NewClient("1.0.0", false)
	if _, ok := c.(NoOpClient); !ok {
		t.Errorf("NewClient(enabled=false) = %T, want NoOpClient", c)
	}
}

func TestNoOpClient_MethodsAreSafeNoOps(t *testing.T) {
	var c Client = NoOpClient{}
	c.RecordCheckpoint("claude", 2, 10)
	c.RecordCommit(0.5)
	c.Close()
}

func TestRunDetached_WaitsForCompletedWork(t *testing.T) {
	ran := make(chan struct{}, 1)
	start := time.Now()
	RunDetached(func() {
		ran <- struct{}{}
	})
	if time.Since(start) >= WallClockCap {
		t.Error("RunDetached() blocked for the full wall-clock cap on fast work")
	}
	select {
	case <-ran:
	default:
		t.Error("RunDetached() returned without running fn")
	}
}
