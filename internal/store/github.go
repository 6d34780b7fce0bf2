package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDoer defines the HTTP operations required by GitHub.
// This allows injection of test doubles for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// GitHubOptions configures a GitHub contents API store.
type GitHubOptions struct {
	BaseURL    string // e.g. https://api.github.com
	Token      string
	Repository string // owner/repo
	Branch     string
	Timeout    time.Duration
	HTTPClient HTTPDoer // optional; defaults to an http.Client with Timeout
}

// GitHub stores files in a repository through the contents API.
// The revision of a file is its blob SHA.
type GitHub struct {
	baseURL    string
	token      string
	owner      string
	repo       string
	branch     string
	httpClient HTTPDoer
}

// NewGitHub returns a store for opts.Repository.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	owner, repo, ok := strings.Cut(opts.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository %q is not in owner/repo form", opts.Repository)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.github.com"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GitHub{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		token:      opts.Token,
		owner:      owner,
		repo:       repo,
		branch:     opts.Branch,
		httpClient: client,
	}, nil
}

// contentItem is the subset of a contents API object we read.
type contentItem struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content contentItem `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
}

// Get implements Store.
func (g *GitHub) Get(ctx context.Context, path string) (*File, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	status, body, err := g.do(ctx, http.MethodGet, g.contentsURL(clean, true), nil)
	if err != nil {
		return nil, &StatusError{Op: "get", Path: clean, Message: err.Error(), Kind: ErrUnavailable}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status != http.StatusOK:
		return nil, &StatusError{Op: "get", Path: clean, Status: status, Message: errorMessage(body), Kind: ErrUnavailable}
	}

	var item contentItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, &StatusError{Op: "get", Path: clean, Status: status, Message: "path is not a file", Kind: ErrUnavailable}
	}
	content, err := decodeContent(item)
	if err != nil {
		return nil, &StatusError{Op: "get", Path: clean, Status: status, Message: err.Error(), Kind: ErrUnavailable}
	}
	return &File{Path: clean, Revision: item.SHA, Content: content}, nil
}

// Put implements Store. A 409, or a 422 complaining about the sha, is a
// conflict.
func (g *GitHub) Put(ctx context.Context, req PutRequest) (*PutResult, error) {
	clean, err := CleanPath(req.Path)
	if err != nil {
		return nil, err
	}
	branch := req.Branch
	if branch == "" {
		branch = g.branch
	}
	payload := putBody{
		Message: req.Message,
		Content: base64.StdEncoding.EncodeToString(req.Content),
		Branch:  branch,
		SHA:     req.Revision,
	}
	status, body, err := g.do(ctx, http.MethodPut, g.contentsURL(clean, false), payload)
	if err != nil {
		return nil, &StatusError{Op: "put", Path: clean, Message: err.Error(), Kind: ErrUnavailable}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var resp putResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &StatusError{Op: "put", Path: clean, Status: status, Message: "malformed response", Kind: ErrUnavailable}
		}
		return &PutResult{Path: clean, Revision: resp.Content.SHA, Created: status == http.StatusCreated}, nil
	case isConflict(status, body):
		return nil, &StatusError{Op: "put", Path: clean, Status: status, Message: errorMessage(body), Kind: ErrConflict}
	default:
		return nil, &StatusError{Op: "put", Path: clean, Status: status, Message: errorMessage(body), Kind: ErrUnavailable}
	}
}

// List implements Store.
func (g *GitHub) List(ctx context.Context, dir string) ([]Entry, error) {
	clean, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}
	status, body, err := g.do(ctx, http.MethodGet, g.contentsURL(clean, true), nil)
	if err != nil {
		return nil, &StatusError{Op: "list", Path: clean, Message: err.Error(), Kind: ErrUnavailable}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status != http.StatusOK:
		return nil, &StatusError{Op: "list", Path: clean, Status: status, Message: errorMessage(body), Kind: ErrUnavailable}
	}

	var items []contentItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &StatusError{Op: "list", Path: clean, Status: status, Message: "path is not a directory", Kind: ErrUnavailable}
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		typ := EntryFile
		if item.Type == "dir" {
			typ = EntryDir
		}
		entries = append(entries, Entry{Name: item.Name, Type: typ})
	}
	return entries, nil
}

func (g *GitHub) contentsURL(path string, withRef bool) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents", g.baseURL, url.PathEscape(g.owner), url.PathEscape(g.repo))
	if path != "" {
		segments := strings.Split(path, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		u += "/" + strings.Join(segments, "/")
	}
	if withRef && g.branch != "" {
		u += "?ref=" + url.QueryEscape(g.branch)
	}
	return u
}

// do sends one request and returns the status and body.
// A transport failure is returned as err; any HTTP status is not.
func (g *GitHub) do(ctx context.Context, method, target string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.token)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decodeContent(item contentItem) ([]byte, error) {
	if item.Type != "" && item.Type != "file" {
		return nil, fmt.Errorf("path is a %s, not a file", item.Type)
	}
	if item.Encoding != "" && item.Encoding != "base64" {
		// Files over 1 MB come back without inline content.
		return nil, nil
	}
	raw := strings.NewReplacer("\n", "", "\r", "").Replace(item.Content)
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return data, nil
}

func isConflict(status int, body []byte) bool {
	if status == http.StatusConflict {
		return true
	}
	return status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(errorMessage(body)), "sha")
}

// errorMessage extracts the API message, falling back to a truncated body.
func errorMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if msg == "" {
		return "empty response"
	}
	return msg
}
