package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/metrics"
)

func TestHealthEndpoint(t *testing.T) {
	down := errors.New("connection refused")
	tests := []struct {
		name     string
		checker  Checker
		wantCode int
		wantDB   string
		wantRPC  string
	}{
		{
			name: "all_chains_up",
			checker: Checker{
				DBPing: func(ctx context.Context) error { return nil },
				RPCPing: NewRPCChecker(map[ibc.ChainID]HeadReader{
					"union-testnet-9": fakeHead{},
					"11155111":        fakeHead{},
				}).Ping,
			},
			wantCode: http.StatusOK,
			wantDB:   "ok",
			wantRPC:  "ok",
		},
		{
			name: "store_unreachable",
			checker: Checker{
				DBPing:  func(ctx context.Context) error { return context.DeadlineExceeded },
				RPCPing: NewRPCChecker(map[ibc.ChainID]HeadReader{"union-testnet-9": fakeHead{}}).Ping,
			},
			wantCode: http.StatusServiceUnavailable,
			wantDB:   "fail",
			wantRPC:  "ok",
		},
		{
			name: "one_chain_down",
			checker: Checker{
				DBPing: func(ctx context.Context) error { return nil },
				RPCPing: NewRPCChecker(map[ibc.ChainID]HeadReader{
					"union-testnet-9": fakeHead{},
					"11155111":        fakeHead{err: down},
				}).Ping,
			},
			wantCode: http.StatusServiceUnavailable,
			wantDB:   "ok",
			wantRPC:  "fail",
		},
		{
			name:     "no_checkers",
			checker:  Checker{},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := Serve("127.0.0.1:0", tt.checker)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = Shutdown(ctx, srv)
			}()

			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost/healthz", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["status"] != "ok" {
				t.Errorf("status = %q, want ok", resp["status"])
			}
			if tt.wantDB != "" && resp["db"] != tt.wantDB {
				t.Errorf("db = %q, want %q", resp["db"], tt.wantDB)
			}
			if tt.wantRPC != "" && resp["rpc"] != tt.wantRPC {
				t.Errorf("rpc = %q, want %q", resp["rpc"], tt.wantRPC)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.Init()
	m.EventEmitted("union-testnet-9", "packet_send")

	tests := []struct {
		name     string
		checker  Checker
		wantCode int
		wantBody string
	}{
		{
			name:     "mounted",
			checker:  Checker{Metrics: metrics.Handler()},
			wantCode: http.StatusOK,
			wantBody: `ibc_watch_events_emitted_total{chain_id="union-testnet-9",event="packet_send"}`,
		},
		{
			name:     "not_configured",
			checker:  Checker{},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := Serve("127.0.0.1:0", tt.checker)
			defer func() { _ = Shutdown(context.Background(), srv) }()

			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost/metrics", nil))
			if w.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("metrics output lacks %s:\n%s", tt.wantBody, w.Body.String())
			}
		})
	}
}
