package db

import (
	"context"
	"testing"
	"time"
)

func TestPingNilPool(t *testing.T) {
	if err := Ping(context.Background(), nil); err == nil {
		t.Error("expected error for nil pool")
	}
}

func TestCheckNilPool(t *testing.T) {
	status := Check(context.Background(), nil)
	if status.Healthy {
		t.Error("expected unhealthy status for nil pool")
	}
	if status.Error == nil {
		t.Error("expected error for nil pool")
	}
}

func TestWaitForReadyNilPool(t *testing.T) {
	if err := WaitForReady(context.Background(), nil, time.Millisecond); err == nil {
		t.Error("expected error for nil pool")
	}
}
