package automation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
)

// SolverClient asks an external service which captcha tiles match a target
// number. Implementations return the matching tile indices in grid order.
type SolverClient interface {
	Match(ctx context.Context, target string, tiles [][]byte) ([]int, error)
}

type solveRequest struct {
	Target string      `json:"target"`
	Tiles  []solveTile `json:"tiles"`
}

type solveTile struct {
	Image string `json:"image"`
}

type solveResponse struct {
	MatchingIndices []int `json:"matching_indices"`
}

// HTTPSolverClient implements SolverClient against the OCR matching endpoint
type HTTPSolverClient struct {
	url    string
	client *http.Client
}

// NewHTTPSolverClient creates a solver client for the configured endpoint
func NewHTTPSolverClient(cfg config.SolverConfig) *HTTPSolverClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSolverClient{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

// Match posts the target and base64-encoded tiles to the solver and returns
// the matching indices. Any transport failure or non-200 response maps to
// ErrCaptchaSolverUnavailable.
func (s *HTTPSolverClient) Match(ctx context.Context, target string, tiles [][]byte) ([]int, error) {
	req := solveRequest{Target: target, Tiles: make([]solveTile, 0, len(tiles))}
	for _, tile := range tiles {
		req.Tiles = append(req.Tiles, solveTile{
			Image: base64.StdEncoding.EncodeToString(tile),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCaptchaSolverUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrCaptchaSolverUnavailable, resp.StatusCode)
	}

	var parsed solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCaptchaSolverUnavailable, err)
	}
	return parsed.MatchingIndices, nil
}
