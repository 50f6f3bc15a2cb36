package automation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
)

func TestCaptchaResolve_NoImageSkipsSolver(t *testing.T) {
	solver := &fakeSolver{indices: []int{1}}
	resolver := NewCaptchaResolver(testSite(), solver, testRecorder())

	ok, err := resolver.Resolve(context.Background(), newFakePage())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ok {
		t.Fatal("expected captcha-free page to resolve")
	}
	if solver.calls != 0 {
		t.Errorf("solver must not be contacted, got %d calls", solver.calls)
	}
}

func TestCaptchaResolve_DataURIImage(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	solver := &fakeSolver{indices: []int{4, 7}}
	resolver := NewCaptchaResolver(testSite(), solver, testRecorder())

	page := newFakePage()
	page.exists[captchaImageSelector] = true
	page.exists[captchaAnswerSelector] = true
	page.attrs[captchaImageSelector+"|src"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	page.body = "Please select all boxes with number 42"

	ok, err := resolver.Resolve(context.Background(), page)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ok {
		t.Fatal("expected captcha to resolve")
	}
	if solver.target != "42" {
		t.Errorf("expected target 42, got %q", solver.target)
	}
	if len(solver.tiles) != 1 || string(solver.tiles[0]) != string(raw) {
		t.Errorf("solver received wrong tile bytes: %v", solver.tiles)
	}
	if page.filled[captchaAnswerSelector] != "4" {
		t.Errorf("expected first matching index filled, got %q", page.filled[captchaAnswerSelector])
	}
}

func TestCaptchaResolve_RemoteImageFetchedInSession(t *testing.T) {
	raw := []byte("image-bytes")
	solver := &fakeSolver{indices: []int{0}}
	resolver := NewCaptchaResolver(testSite(), solver, testRecorder())

	page := newFakePage()
	page.exists[captchaImageSelector] = true
	page.attrs[captchaImageSelector+"|src"] = "https://visa.example.com/captcha/img.png"
	page.fetched["https://visa.example.com/captcha/img.png"] = raw
	page.body = "select 7"

	ok, err := resolver.Resolve(context.Background(), page)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ok {
		t.Fatal("expected captcha to resolve")
	}
	if len(solver.tiles) != 1 || string(solver.tiles[0]) != string(raw) {
		t.Errorf("solver received wrong tile bytes")
	}
}

func TestCaptchaResolve_MissingTarget(t *testing.T) {
	resolver := NewCaptchaResolver(testSite(), &fakeSolver{}, testRecorder())

	page := newFakePage()
	page.exists[captchaImageSelector] = true
	page.attrs[captchaImageSelector+"|src"] = "data:image/png;base64,QUJD"
	page.body = "no instruction text here"

	ok, err := resolver.Resolve(context.Background(), page)
	if ok {
		t.Fatal("expected resolution failure")
	}
	if !errors.Is(err, domain.ErrCaptchaTargetNotFound) {
		t.Errorf("expected ErrCaptchaTargetNotFound, got %v", err)
	}
}

func TestCaptchaResolve_EmptySolution(t *testing.T) {
	resolver := NewCaptchaResolver(testSite(), &fakeSolver{indices: nil}, testRecorder())

	page := newFakePage()
	page.exists[captchaImageSelector] = true
	page.attrs[captchaImageSelector+"|src"] = "data:image/png;base64,QUJD"
	page.body = "select 9"

	ok, err := resolver.Resolve(context.Background(), page)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ok {
		t.Error("expected unsolved captcha to report failure")
	}
}

func TestHTTPSolverClient_Match(t *testing.T) {
	var received solveRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode solver request: %v", err)
		}
		json.NewEncoder(w).Encode(solveResponse{MatchingIndices: []int{2, 5}})
	}))
	defer ts.Close()

	client := NewHTTPSolverClient(config.SolverConfig{URL: ts.URL})
	indices, err := client.Match(context.Background(), "17", [][]byte{[]byte("tile-a"), []byte("tile-b")})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if len(indices) != 2 || indices[0] != 2 || indices[1] != 5 {
		t.Errorf("unexpected indices: %v", indices)
	}
	if received.Target != "17" {
		t.Errorf("expected target 17, got %q", received.Target)
	}
	if len(received.Tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(received.Tiles))
	}
	decoded, err := base64.StdEncoding.DecodeString(received.Tiles[0].Image)
	if err != nil || string(decoded) != "tile-a" {
		t.Errorf("tile not base64-encoded correctly: %q", received.Tiles[0].Image)
	}
}

func TestHTTPSolverClient_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewHTTPSolverClient(config.SolverConfig{URL: ts.URL})
	_, err := client.Match(context.Background(), "3", nil)
	if !errors.Is(err, domain.ErrCaptchaSolverUnavailable) {
		t.Errorf("expected ErrCaptchaSolverUnavailable, got %v", err)
	}
}

func TestHTTPSolverClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewHTTPSolverClient(config.SolverConfig{URL: ts.URL})
	_, err := client.Match(context.Background(), "3", nil)
	if !errors.Is(err, domain.ErrCaptchaSolverUnavailable) {
		t.Errorf("expected ErrCaptchaSolverUnavailable, got %v", err)
	}
}
