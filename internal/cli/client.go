package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatthief/internal/api"
	"chatthief/internal/chat"
	"chatthief/internal/economy"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (c *Client) Purchase(ctx context.Context, user, command string) (api.PurchaseResponse, error) {
	var out api.PurchaseResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/purchases", api.PurchaseRequest{User: user, Command: command}, &out)
	return out, err
}

func (c *Client) Share(ctx context.Context, actor, command, beneficiary string) (api.TransferResponse, error) {
	return c.transfer(ctx, "/v1/shares", actor, command, beneficiary)
}

func (c *Client) Give(ctx context.Context, actor, command, beneficiary string) (api.TransferResponse, error) {
	return c.transfer(ctx, "/v1/gifts", actor, command, beneficiary)
}

func (c *Client) transfer(ctx context.Context, path, actor, command, beneficiary string) (api.TransferResponse, error) {
	var out api.TransferResponse
	err := c.jsonRequest(ctx, http.MethodPost, path, api.TransferRequest{
		Actor:       actor,
		Command:     command,
		Beneficiary: beneficiary,
	}, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context, user string) (economy.Stats, error) {
	var out economy.Stats
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(user), nil, &out)
	return out, err
}

func (c *Client) Commands(ctx context.Context, user string) ([]string, error) {
	var out struct {
		Commands []string `json:"commands"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(user)+"/commands", nil, &out)
	return out.Commands, err
}

func (c *Client) History(ctx context.Context, user string, limit int) ([]economy.LedgerEntry, error) {
	path := "/v1/users/" + url.PathEscape(user) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Entries []economy.LedgerEntry `json:"entries"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Entries, err
}

func (c *Client) CommandInfo(ctx context.Context, command string) (economy.CommandInfo, error) {
	var out economy.CommandInfo
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/commands/"+url.PathEscape(command), nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, kind string, limit int) ([]economy.LeaderboardRow, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/leaderboard"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Rows []economy.LeaderboardRow `json:"rows"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Rows, err
}

func (c *Client) Economy(ctx context.Context) (economy.Summary, error) {
	var out economy.Summary
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/economy", nil, &out)
	return out, err
}

// Say sends one chat line through the bot router.
func (c *Client) Say(ctx context.Context, user, message string) (chat.Response, error) {
	var out chat.Response
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/chat", api.ChatRequest{User: user, Message: message}, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
