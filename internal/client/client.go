// Package client is a typed client for the question bank JSON API. Error
// bodies come back as *apperr.Error with the server's kind and details.
package client

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
	"sync"
	"time"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/schema"
)

// DefaultTimeout leaves room for a full model round trip on the server.
const DefaultTimeout = 90 * time.Second

type Client struct {
	HTTP    *http.Client
	BaseURL string

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ===== auth =====

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return err
	}
	c.SetToken(out.AccessToken)
	return nil
}

// ===== passages =====

func (c *Client) ListPassages(ctx context.Context) ([]bank.Passage, error) {
	var out struct {
		Passages []bank.Passage `json:"passages"`
	}
	if err := c.do(ctx, http.MethodGet, "/passages", nil, &out); err != nil {
		return nil, err
	}
	return out.Passages, nil
}

func (c *Client) GetPassage(ctx context.Context, id string) (bank.Passage, error) {
	var out struct {
		Passage bank.Passage `json:"passage"`
	}
	err := c.do(ctx, http.MethodGet, "/passages/"+url.PathEscape(id), nil, &out)
	return out.Passage, err
}

func (c *Client) CreatePassage(ctx context.Context, in bank.CreatePassageInput) (bank.Passage, error) {
	var out struct {
		Passage bank.Passage `json:"passage"`
	}
	err := c.do(ctx, http.MethodPost, "/passages", in, &out)
	return out.Passage, err
}

func (c *Client) UpdatePassage(ctx context.Context, id string, in bank.UpdatePassageInput) (bank.Passage, error) {
	var out struct {
		Passage bank.Passage `json:"passage"`
	}
	err := c.do(ctx, http.MethodPatch, "/passages/"+url.PathEscape(id), in, &out)
	return out.Passage, err
}

func (c *Client) DeletePassage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/passages/"+url.PathEscape(id), nil, nil)
}

// ===== generation =====

func (c *Client) Generate(ctx context.Context, req schema.GenerationRequest) (bank.Payload, error) {
	var out bank.Payload
	err := c.do(ctx, http.MethodPost, "/generate", req, &out)
	return out, err
}

func (c *Client) Regenerate(ctx context.Context, req schema.RegenerateRequest) (bank.Question, error) {
	var out struct {
		Question bank.Question `json:"question"`
	}
	err := c.do(ctx, http.MethodPost, "/generate/regenerate", req, &out)
	return out.Question, err
}

// ===== question sets =====

// ListQuestionSets ignores opts.UserID; the server scopes to the token's user.
func (c *Client) ListQuestionSets(ctx context.Context, opts bank.ListOpts) ([]bank.QuestionSetWithPassage, error) {
	q := url.Values{}
	if opts.PassageID != "" {
		q.Set("passageId", opts.PassageID)
	}
	for _, d := range opts.Difficulties {
		q.Add("difficulty", string(d))
	}
	for _, g := range opts.GradeLevels {
		q.Add("gradeLevel", string(g))
	}
	for _, t := range opts.QuestionTypes {
		q.Add("questionType", string(t))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Sort != "" {
		q.Set("sort", string(opts.Sort))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/question-sets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		QuestionSets []bank.QuestionSetWithPassage `json:"questionSets"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.QuestionSets, nil
}

func (c *Client) GetQuestionSet(ctx context.Context, id string) (bank.QuestionSetWithPassage, error) {
	var out struct {
		QuestionSet bank.QuestionSetWithPassage `json:"questionSet"`
	}
	err := c.do(ctx, http.MethodGet, "/question-sets/"+url.PathEscape(id), nil, &out)
	return out.QuestionSet, err
}

func (c *Client) SaveQuestionSet(ctx context.Context, in bank.CreateQuestionSetInput) (bank.QuestionSet, error) {
	var out struct {
		QuestionSet bank.QuestionSet `json:"questionSet"`
	}
	err := c.do(ctx, http.MethodPost, "/question-sets", in, &out)
	return out.QuestionSet, err
}

// setResult is the answer of calls that may delete the set as a side effect.
type setResult struct {
	QuestionSet bank.QuestionSet `json:"questionSet"`
	Deleted     bool             `json:"deleted"`
}

func (c *Client) PatchQuestionSet(ctx context.Context, id string, patch bank.QuestionSetPatch) (bank.QuestionSet, bool, error) {
	var out setResult
	err := c.do(ctx, http.MethodPatch, "/question-sets/"+url.PathEscape(id), patch, &out)
	return out.QuestionSet, out.Deleted, err
}

func (c *Client) RemoveQuestion(ctx context.Context, setID, questionID string) (bank.QuestionSet, bool, error) {
	var out setResult
	path := "/question-sets/" + url.PathEscape(setID) + "/questions/" + url.PathEscape(questionID)
	err := c.do(ctx, http.MethodDelete, path, nil, &out)
	return out.QuestionSet, out.Deleted, err
}

func (c *Client) DeleteQuestionSet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/question-sets/"+url.PathEscape(id), nil, nil)
}

// ===== transport =====

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Wrap(apperr.KindTimeout, "request timed out", err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return httpErr(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// httpErr rebuilds the server's error. Bodies that are not the API's JSON
// envelope (a proxy page, say) are classified by status alone.
func httpErr(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error   string          `json:"error"`
		Code    apperr.Code     `json:"code"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Code != "" {
		e := &apperr.Error{Kind: apperr.KindFromCode(body.Code), Msg: body.Error}
		if len(body.Details) > 0 {
			e.Details = body.Details
		}
		return e
	}
	kind := apperr.KindInternal
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = apperr.KindUnauthorized
	case http.StatusForbidden:
		kind = apperr.KindForbidden
	case http.StatusNotFound:
		kind = apperr.KindNotFound
	case http.StatusGatewayTimeout:
		kind = apperr.KindTimeout
	}
	return apperr.New(kind, "server returned "+resp.Status)
}
