package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostfold/internal/domain"
	"hostfold/internal/repository/sqlite"
	"hostfold/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := service.NewEventBus()
	h := New(
		service.NewHostService(repo, eventBus),
		service.NewDeviceService(repo, eventBus),
		service.NewConflictService(repo, eventBus),
		service.NewCorrelationService(repo, eventBus, service.DefaultScoringConfig()),
		service.NewImportService(repo, eventBus),
	)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(Chain(mux, Recover, CORS, Logger))
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestImportAndCorrelateFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	records := []domain.NormalizedRecord{
		{Kind: domain.RecordKindHost, Source: "nmap", IPv4: "192.168.1.10", Hostname: "web-01"},
		{Kind: domain.RecordKindARP, Source: "arp-scan", IPv4: "192.168.1.10", MAC: "aa:bb:cc:dd:ee:10"},
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/import/records", records)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import: expected 200, got %d", resp.StatusCode)
	}
	var result service.ImportResult
	decode(t, resp, &result)
	if result.Created != 1 || result.Updated != 1 {
		t.Fatalf("unexpected import result: %+v", result)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/correlate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correlate: expected 200, got %d", resp.StatusCode)
	}
	var summary domain.RunSummary
	decode(t, resp, &summary)
	if summary.HostsExamined != 1 {
		t.Errorf("expected 1 host examined, got %d", summary.HostsExamined)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/runs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("runs: expected 200, got %d", resp.StatusCode)
	}
	var runs []domain.RunSummary
	decode(t, resp, &runs)
	if len(runs) != 1 || runs[0].ID != summary.ID {
		t.Errorf("expected recorded run %s, got %v", summary.ID, runs)
	}
}

func TestHostEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := t.Context()

	a := domain.NewHost("h-a")
	a.IPv4 = "10.0.0.1"
	a.Hostname = "gw-01"
	if err := repo.CreateHost(ctx, a); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	b := domain.NewHost("h-b")
	b.IPv4 = "10.0.0.2"
	if err := repo.CreateHost(ctx, b); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	t.Run("get host", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/hosts/h-a", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var host domain.Host
		decode(t, resp, &host)
		if host.Hostname != "gw-01" {
			t.Errorf("unexpected host: %+v", host)
		}
	})

	t.Run("get missing host", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/hosts/nope", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("manual merge", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/hosts/merge",
			MergeHostsRequest{PrimaryID: "h-a", SecondaryID: "h-b"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		// Repeating the merge hits a merged-away secondary
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/hosts/merge",
			MergeHostsRequest{PrimaryID: "h-a", SecondaryID: "h-b"})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("unified view", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/hosts/h-b/unified", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var view service.UnifiedView
		decode(t, resp, &view)
		if view.Host.ID != "h-a" {
			t.Errorf("expected chain followed to h-a, got %s", view.Host.ID)
		}
		if len(view.MergedFrom) != 1 {
			t.Errorf("expected merge history, got %+v", view.MergedFrom)
		}
	})

	t.Run("self merge rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/hosts/merge",
			MergeHostsRequest{PrimaryID: "h-a", SecondaryID: "h-a"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestConflictEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := t.Context()

	for i, hostname := range []string{"fs-01", "fs-01"} {
		h := domain.NewHost(fmt.Sprintf("c-%d", i))
		h.IPv4 = fmt.Sprintf("10.1.0.%d", i+1)
		h.Hostname = hostname
		h.OS.Family = []string{"linux", "windows"}[i]
		h.Tags = domain.DeriveTags(h)
		if err := repo.CreateHost(ctx, h); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	// The run raises the os_family conflict
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/correlate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correlate: expected 200, got %d", resp.StatusCode)
	}

	var pending []domain.Conflict
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/conflicts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conflicts: expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &pending)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending conflict, got %d", len(pending))
	}
	id := pending[0].ID

	t.Run("get conflict", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/conflicts/"+id, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("bad resolution type", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/conflicts/"+id+"/resolve",
			ResolveConflictRequest{Resolution: "guess"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("resolve merges pair", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/conflicts/"+id+"/resolve",
			ResolveConflictRequest{Resolution: domain.ResolutionAcceptA})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		hosts, err := repo.ListActiveHosts(ctx)
		if err != nil {
			t.Fatalf("ListActiveHosts failed: %v", err)
		}
		if len(hosts) != 1 {
			t.Errorf("expected single surviving host, got %d", len(hosts))
		}
	})

	t.Run("resolve again conflicts", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/conflicts/"+id+"/resolve",
			ResolveConflictRequest{Resolution: domain.ResolutionAcceptB})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
	})
}

func TestDeviceEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := t.Context()

	h := domain.NewHost("d-h")
	h.IPv4 = "10.2.0.1"
	h.MAC = "a8:bb:cc:dd:ff:01"
	if err := repo.CreateHost(ctx, h); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var device domain.DeviceIdentity
	t.Run("create device", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/devices",
			CreateDeviceRequest{MAC: "A8:BB:CC:DD:FF:01"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		decode(t, resp, &device)
		if device.MAC != "a8:bb:cc:dd:ff:01" {
			t.Errorf("expected normalized MAC, got %q", device.MAC)
		}
	})

	t.Run("create with bad mac", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/devices",
			CreateDeviceRequest{MAC: "nope"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("link and unlink", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/devices/"+device.ID+"/links",
			LinkDeviceHostRequest{HostID: "d-h"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("link: expected 200, got %d", resp.StatusCode)
		}

		resp = doJSON(t, http.MethodDelete, srv.URL+"/api/devices/"+device.ID+"/links/d-h", nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("unlink: expected 204, got %d", resp.StatusCode)
		}

		resp = doJSON(t, http.MethodDelete, srv.URL+"/api/devices/"+device.ID+"/links/d-h", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("second unlink: expected 404, got %d", resp.StatusCode)
		}
	})
}
