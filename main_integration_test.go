package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/facematch/internal/auth"
	"github.com/example/facematch/internal/handlers"
	"github.com/example/facematch/internal/matcher"
	"github.com/example/facematch/internal/usecase"
)

const integrationJWTSecret = "integration-secret"

// blockingService holds every Match call until release is closed.
type blockingService struct {
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
	owner     string
}

func (s *blockingService) Match(ctx context.Context, ownerID string, query matcher.Embedding, capture usecase.Capture) (*usecase.Outcome, error) {
	s.startOnce.Do(func() {
		s.owner = ownerID
		close(s.started)
	})
	<-s.release
	return &usecase.Outcome{
		RequestID:  "req-1",
		OwnerID:    ownerID,
		Decision:   matcher.DecisionMatched,
		Token:      "alice",
		Similarity: 1,
		Threshold:  matcher.DefaultThreshold,
		Candidates: []matcher.Candidate{{Token: "alice", Similarity: 1}},
	}, nil
}

func (s *blockingService) Recognize(ctx context.Context, ownerID string, image []byte, capture usecase.Capture) (*usecase.Outcome, error) {
	return nil, usecase.ErrExtractorUnavailable
}

func (s *blockingService) GetResult(ctx context.Context, ownerID, requestID string) (*usecase.Outcome, error) {
	return nil, usecase.ErrNotFound
}

func (s *blockingService) LastMatch(ctx context.Context, ownerID string) (*usecase.Outcome, error) {
	return nil, usecase.ErrNotFound
}

func (s *blockingService) ListIdentities(ctx context.Context, ownerID string) ([]*usecase.IdentityView, error) {
	return nil, nil
}

func (s *blockingService) DeleteIdentity(ctx context.Context, ownerID, token string) error {
	return usecase.ErrNotFound
}

func (s *blockingService) GetMetricsSummary(ctx context.Context, ownerID string) (*usecase.MetricsSummary, error) {
	return &usecase.MetricsSummary{}, nil
}

func TestServerGracefulShutdown(t *testing.T) {
	logger := zap.NewNop()
	gin.SetMode(gin.TestMode)

	svc := &blockingService{started: make(chan struct{}), release: make(chan struct{})}
	var releaseOnce sync.Once
	releaseRequest := func() { releaseOnce.Do(func() { close(svc.release) }) }
	defer releaseRequest()

	router := gin.New()
	handlers.RegisterRoutes(router, svc, auth.JWTMiddleware(integrationJWTSecret, ""))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: router}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	addr := listener.Addr().String()
	t.Logf("listening on %s", addr)
	waitForServer(t, addr)

	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/match", bytes.NewBufferString(`{"embedding":[1,0]}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signIntegrationToken(t, "user-1"))

	client := &http.Client{Timeout: 5 * time.Second}
	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	select {
	case <-svc.started:
		t.Log("match in flight")
	case err := <-errCh:
		t.Fatalf("request failed before reaching the service: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start in time")
	}

	signalCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	releaseRequest()

	select {
	case resp := <-respCh:
		t.Cleanup(func() { resp.Body.Close() })
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d body: %s", resp.StatusCode, string(body))
		}
		var outcome usecase.Outcome
		if err := json.Unmarshal(body, &outcome); err != nil {
			t.Fatalf("decode outcome: %v (body %s)", err, string(body))
		}
		if outcome.Token != "alice" || outcome.Decision != matcher.DecisionMatched {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
	case err := <-errCh:
		t.Fatalf("request failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("request did not complete")
	}

	if svc.owner != "user-1" {
		t.Fatalf("expected owner from token, got %q", svc.owner)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shutdown cleanly: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}
}

func signIntegrationToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(integrationJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
