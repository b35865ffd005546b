package main

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	tempConfig := `
server:
    address: localhost:0  # 0 lets OS choose free port
log:
    server:
        path: "` + t.TempDir() + `/test_server.log"
        level: "debug"
    requests:
        path: "` + t.TempDir() + `/test_requests.log"
        level: "info"
db:
    path: ":memory:" # Use in-memory DB for test
predict:
    segments_url: "http://127.0.0.1:1/unreachable" # Startup fetch must fail soft
`
	f, err := os.CreateTemp(t.TempDir(), "coastwatch_test_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	if _, err := f.WriteString(tempConfig); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	f.Close()

	// A context that cancels quickly verifies the startup sequence and
	// the graceful shutdown path.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, f.Name()); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}
