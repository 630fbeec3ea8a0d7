// Package threatjam provides a client for the ThreatJam collaborative
// diagram service.
package threatjam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a ThreatJam API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new ThreatJam client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RoomRecord mirrors the server's room state snapshot.
type RoomRecord struct {
	Key            string          `json:"key"`
	Users          []string        `json:"users"`
	Moderator      string          `json:"moderator"`
	ConnectedUsers map[string]bool `json:"connectedUsers"`
	Settings       Settings        `json:"settings"`
}

// Settings is the room configuration object. Arbitrary keys are allowed;
// the well-known ones carry the diagram itself.
type Settings map[string]json.RawMessage

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("threatjam error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

func roomPath(roomKey string) string {
	return "/api/room/" + url.PathEscape(roomKey)
}

// CreateRoom creates a room; the caller becomes moderator.
func (c *Client) CreateRoom(roomKey, name string) (*RoomRecord, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	respBody, err := c.doRequest("POST", roomPath(roomKey), body)
	if err != nil {
		return nil, err
	}

	record := &RoomRecord{}
	if err := json.Unmarshal(respBody, record); err != nil {
		return nil, err
	}
	return record, nil
}

// JoinRoom joins an existing room.
func (c *Client) JoinRoom(roomKey, name string) (*RoomRecord, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	respBody, err := c.doRequest("POST", roomPath(roomKey)+"/join", body)
	if err != nil {
		return nil, err
	}

	record := &RoomRecord{}
	if err := json.Unmarshal(respBody, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetSettings fetches the room's current settings.
func (c *Client) GetSettings(roomKey string) (Settings, error) {
	respBody, err := c.doRequest("GET", roomPath(roomKey)+"/settings", nil)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal(respBody, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings shallow-merges patch into the room settings. Works only
// when name is the current moderator.
func (c *Client) UpdateSettings(roomKey, name string, patch Settings) (Settings, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"name":     name,
		"settings": patch,
	})
	respBody, err := c.doRequest("PUT", roomPath(roomKey)+"/settings", body)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal(respBody, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// HealthResponse is the server health summary.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ActiveRooms int    `json:"active_rooms"`
}

// Health fetches server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	resp := &HealthResponse{}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
