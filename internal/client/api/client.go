package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"schroedinger/internal/client/display"
	"schroedinger/internal/core"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int
	core.ErrorResponse
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.ErrorResponse.Error)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// HealthResponse mirrors the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Time    int64  `json:"time"`
	Storage string `json:"storage"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Verbose    bool
	Out        io.Writer // request trace, nil for none
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			// Long polls hold for up to 25s server side
			Timeout: 40 * time.Second,
		},
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(u string) {
	c.BaseURL = strings.TrimRight(u, "/")
}

func (c *Client) tracef(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
		c.tracef("%s[API] %s %s%s %s\n", display.Blue, method, path, display.Reset, jsonData)
	} else {
		c.tracef("%s[API] %s %s%s\n", display.Blue, method, path, display.Reset)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := display.Green
	if resp.StatusCode >= 400 {
		statusColor = display.Red
	}
	c.tracef("%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), display.Reset)
	if c.Verbose && len(respBody) > 0 {
		var pretty bytes.Buffer
		if json.Indent(&pretty, respBody, "", "  ") == nil {
			c.tracef("%sResponse Body:%s\n%s\n", display.Cyan, display.Reset, pretty.String())
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.ErrorResponse); err != nil {
			apiErr.ErrorResponse.Error = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("response parse error: %w", err)
		}
	}
	return nil
}

func gamePath(gameID string, rest ...string) string {
	return "/api/v1/games/" + url.PathEscape(gameID) + strings.Join(rest, "")
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp)
	return &resp, err
}

func (c *Client) CreateGame(ctx context.Context, req core.CreateGameRequest) (*core.GameResponse, error) {
	var resp core.GameResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/games", req, &resp)
	return &resp, err
}

func (c *Client) GetGame(ctx context.Context, gameID string) (*core.GameResponse, error) {
	var resp core.GameResponse
	err := c.doRequest(ctx, http.MethodGet, gamePath(gameID), nil, &resp)
	return &resp, err
}

// WaitForMove long-polls until the game's ply differs from ply.
func (c *Client) WaitForMove(ctx context.Context, gameID string, ply int) (*core.GameResponse, error) {
	var resp core.GameResponse
	err := c.doRequest(ctx, http.MethodGet, gamePath(gameID, fmt.Sprintf("?wait=true&moveCount=%d", ply)), nil, &resp)
	return &resp, err
}

func (c *Client) DeleteGame(ctx context.Context, gameID string) error {
	return c.doRequest(ctx, http.MethodDelete, gamePath(gameID), nil, nil)
}

func (c *Client) MakeMove(ctx context.Context, gameID, from, to string) (*core.GameResponse, error) {
	var resp core.GameResponse
	err := c.doRequest(ctx, http.MethodPost, gamePath(gameID, "/moves"), core.MoveRequest{From: from, To: to}, &resp)
	return &resp, err
}

func (c *Client) AutoMove(ctx context.Context, gameID string) (*core.GameResponse, error) {
	var resp core.GameResponse
	err := c.doRequest(ctx, http.MethodPost, gamePath(gameID, "/auto"), nil, &resp)
	return &resp, err
}

func (c *Client) LegalMoves(ctx context.Context, gameID, from string) (*core.LegalMovesResponse, error) {
	path := gamePath(gameID, "/legal")
	if from != "" {
		path += "?from=" + url.QueryEscape(from)
	}
	var resp core.LegalMovesResponse
	err := c.doRequest(ctx, http.MethodGet, path, nil, &resp)
	return &resp, err
}

func (c *Client) Natures(ctx context.Context, gameID, square string) (*core.NaturesResponse, error) {
	var resp core.NaturesResponse
	err := c.doRequest(ctx, http.MethodGet, gamePath(gameID, "/natures/", url.PathEscape(square)), nil, &resp)
	return &resp, err
}

func (c *Client) Outcome(ctx context.Context, gameID string) (*core.OutcomeInfo, error) {
	var resp core.OutcomeInfo
	err := c.doRequest(ctx, http.MethodGet, gamePath(gameID, "/outcome"), nil, &resp)
	return &resp, err
}

func (c *Client) GetBoard(ctx context.Context, gameID, mode string) (*core.BoardResponse, error) {
	path := gamePath(gameID, "/board")
	if mode != "" {
		path += "?mode=" + url.QueryEscape(mode)
	}
	var resp core.BoardResponse
	err := c.doRequest(ctx, http.MethodGet, path, nil, &resp)
	return &resp, err
}

// RawRequest performs a raw HTTP request for debugging purposes
func (c *Client) RawRequest(ctx context.Context, method, path, body string) (json.RawMessage, error) {
	var bodyData any
	if body != "" {
		if err := json.Unmarshal([]byte(body), &bodyData); err != nil {
			// Try as raw string
			bodyData = body
		}
	}
	var raw json.RawMessage
	err := c.doRequest(ctx, method, path, bodyData, &raw)
	return raw, err
}
