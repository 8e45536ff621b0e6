// Package client is a thin HTTP client for the music-manager API, used by
// the bulk download tool. It implements the orchestrator's Locator, and
// provides a Saver that writes resolved files to a local directory.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/glanburn/music-manager/internal/download"
	"github.com/glanburn/music-manager/internal/model"
)

// pageSize matches the server's listing cap. Listing loops until a page
// comes back shorter than this.
const pageSize = 100

// Client talks to a music-manager server.
type Client struct {
	base  string
	http  *http.Client
	token string

	mu sync.Mutex
	// byStorageID maps storage ids seen while listing back to artifact
	// record ids; the locator endpoint is keyed by record id.
	byStorageID map[string]string
}

var _ download.Locator = (*Client)(nil)

// New creates a client for the server at base (e.g. "http://localhost:8080").
func New(base string) *Client {
	return &Client{
		base:        base,
		http:        &http.Client{Timeout: 60 * time.Second},
		byStorageID: make(map[string]string),
	}
}

// Login authenticates and stores the session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.token = resp.Token
	return nil
}

// ListArtifacts fetches every artifact matching the filter, looping the
// paginated listing until a short page signals the end.
func (c *Client) ListArtifacts(ctx context.Context, f model.ArtifactFilter) ([]model.Artifact, error) {
	var all []model.Artifact
	offset := 0
	for {
		q := url.Values{}
		if f.CompetitionID != "" {
			q.Set("competition_id", f.CompetitionID)
		}
		if f.GradeID != "" {
			q.Set("grade_id", f.GradeID)
		}
		if f.Status != "" {
			q.Set("status", f.Status)
		}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page []model.Artifact
		if err := c.doJSON(ctx, http.MethodGet, "/api/artifacts?"+q.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("list artifacts (offset %d): %w", offset, err)
		}

		c.mu.Lock()
		for _, a := range page {
			c.byStorageID[a.StorageID] = a.ID
		}
		c.mu.Unlock()

		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		offset += pageSize
	}
}

// Resolve asks the server for a short-lived download URL for the blob with
// the given storage id. The artifact must have been seen by a prior
// ListArtifacts call.
func (c *Client) Resolve(ctx context.Context, storageID string) (string, error) {
	c.mu.Lock()
	artifactID, ok := c.byStorageID[storageID]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown storage id %s", storageID)
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/artifacts/"+artifactID+"/link", nil, &resp); err != nil {
		return "", err
	}
	return c.base + resp.URL, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FileSaver saves resolved URLs into a local directory.
type FileSaver struct {
	Dir  string
	HTTP *http.Client
}

var _ download.Saver = (*FileSaver)(nil)

// NewFileSaver creates a FileSaver, creating dir if needed.
func NewFileSaver(dir string) (*FileSaver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &FileSaver{Dir: dir, HTTP: &http.Client{Timeout: 5 * time.Minute}}, nil
}

// Save streams the URL into Dir under the given filename. A partial file
// left by a failed transfer is removed.
func (f *FileSaver) Save(ctx context.Context, fileURL, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("download returned status " + resp.Status)
	}

	dest := filepath.Join(f.Dir, filepath.Base(filename))
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
