package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/engine"
	"wnacg-downloader/internal/models"
)

// Client is a thin HTTP client for a resident Server, used by the
// submit/pause/resume/cancel/status subcommands so they act on the same
// DownloadManager across separate wnacg-dl invocations.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against a Server listening at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{baseURL: "http://" + addr, http: &http.Client{}}
}

// Submit enqueues comic for download on the resident manager.
func (c *Client) Submit(comic models.Comic) error {
	body, err := json.Marshal(comic)
	if err != nil {
		return fmt.Errorf("%w: encoding comic: %s", apperrors.ErrParse, err)
	}
	resp, err := c.http.Post(c.baseURL+"/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		return c.wrapConnErr(err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Pause asks the resident manager to pause id.
func (c *Client) Pause(id int64) error { return c.postAction(id, "pause") }

// Resume asks the resident manager to resume id.
func (c *Client) Resume(id int64) error { return c.postAction(id, "resume") }

// Cancel asks the resident manager to cancel id.
func (c *Client) Cancel(id int64) error { return c.postAction(id, "cancel") }

func (c *Client) postAction(id int64, action string) error {
	url := fmt.Sprintf("%s/tasks/%d/%s", c.baseURL, id, action)
	resp, err := c.http.Post(url, "application/json", nil)
	if err != nil {
		return c.wrapConnErr(err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// List fetches a snapshot of every task the resident manager knows about.
func (c *Client) List() ([]engine.TaskSnapshot, error) {
	resp, err := c.http.Get(c.baseURL + "/tasks")
	if err != nil {
		return nil, c.wrapConnErr(err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out []engine.TaskSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding task list: %s", apperrors.ErrParse, err)
	}
	return out, nil
}

func (c *Client) wrapConnErr(err error) error {
	return fmt.Errorf("%w: no wnacg-dl daemon reachable at %s (start one with `wnacg-dl serve`): %s", apperrors.ErrNetwork, c.baseURL, err)
}

type errorBody struct {
	Error string `json:"error"`
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if eb.Error == "" {
		eb.Error = string(body)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, eb.Error)
	}
	return fmt.Errorf("%w: daemon returned %d: %s", apperrors.ErrProtocol, resp.StatusCode, eb.Error)
}
