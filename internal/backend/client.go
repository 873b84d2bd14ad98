package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/taskmate/tmbot/internal/domain"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Client talks to the backend over HTTP with bearer authentication.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Gateway = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for baseURL (for example
// http://backend_api:8000/api/v1) with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request is one backend call.
type request struct {
	method      string
	path        string
	token       string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return fmt.Errorf("%s %s: response exceeds %d bytes", r.method, r.path, maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decodeEnvelope(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// decodeEnvelope unwraps {"data": ...} when present and decodes the body
// as-is otherwise.
func decodeEnvelope(body []byte, out any) error {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err == nil {
		if data, ok := env["data"]; ok {
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload, out any) error {
	r := request{method: method, path: path, token: token}
	if payload != nil {
		body, err := jsonBody(payload)
		if err != nil {
			return err
		}
		r.body = body
		r.contentType = "application/json"
	}
	return c.do(ctx, r, out)
}

// formPart is a multipart file field.
type formPart struct {
	field string
	file  File
}

func (c *Client) doMultipart(ctx context.Context, method, path, token string, fields map[string]string, parts []formPart, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.file.Name))
		ct := p.file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		pw, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", p.field, err)
		}
		if _, err := pw.Write(p.file.Data); err != nil {
			return fmt.Errorf("write part %s: %w", p.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	return c.do(ctx, request{
		method:      method,
		path:        path,
		token:       token,
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, out)
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

func setInt(q url.Values, key string, v int64) {
	if v != 0 {
		q.Set(key, strconv.FormatInt(v, 10))
	}
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	var res LoginResult
	payload := map[string]string{"login": login, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/session", "", payload, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	return &res, nil
}

// Logout revokes the token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodDelete, "/session", token, nil, nil)
}

// CurrentUser returns the authenticated user with dealership data.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	var body map[string]json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/session/current", token, nil, &body); err != nil {
		return nil, err
	}
	raw, ok := body["user"]
	if !ok {
		// The envelope was already unwrapped, so body is the user itself.
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode current user: %w", err)
	}
	return &u, nil
}

// Tasks lists tasks matching f.
func (c *Client) Tasks(ctx context.Context, token string, f TaskFilter) ([]domain.Task, error) {
	q := url.Values{}
	setInt(q, "assigned_to", f.AssignedTo)
	setString(q, "status", f.Status)
	setInt(q, "per_page", int64(f.PerPage))
	setInt(q, "page", int64(f.Page))

	var tasks []domain.Task
	if err := c.do(ctx, request{method: http.MethodGet, path: "/tasks", token: token, query: q}, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, token string, taskID int64) (*domain.Task, error) {
	var t domain.Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+id(taskID), token, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaskStatus changes status, attaching proof files if any.
func (c *Client) UpdateTaskStatus(ctx context.Context, token string, taskID int64, status string, files []File) (*domain.Task, error) {
	var t domain.Task
	path := "/tasks/" + id(taskID) + "/status"
	if len(files) == 0 {
		if err := c.doJSON(ctx, http.MethodPatch, path, token, map[string]string{"status": status}, &t); err != nil {
			return nil, err
		}
		return &t, nil
	}

	parts := make([]formPart, len(files))
	for i, f := range files {
		parts[i] = formPart{field: "proof_files[]", file: f}
	}
	if err := c.doMultipart(ctx, http.MethodPatch, path, token, map[string]string{"status": status}, parts, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CurrentShift returns the open shift, or nil when there is none.
func (c *Client) CurrentShift(ctx context.Context, token string) (*domain.Shift, error) {
	var s *domain.Shift
	err := c.doJSON(ctx, http.MethodGet, "/shifts/my/current", token, nil, &s)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if s == nil || s.ID == 0 {
		return nil, nil
	}
	return s, nil
}

// Shifts lists shifts; f.Mine restricts to the caller's history.
func (c *Client) Shifts(ctx context.Context, token string, f ShiftFilter) ([]domain.Shift, error) {
	path := "/shifts"
	if f.Mine {
		path = "/shifts/my"
	}
	q := url.Values{}
	setString(q, "status", f.Status)
	setInt(q, "per_page", int64(f.PerPage))

	var shifts []domain.Shift
	if err := c.do(ctx, request{method: http.MethodGet, path: path, token: token, query: q}, &shifts); err != nil {
		return nil, err
	}
	return shifts, nil
}

// OpenShift opens a shift with the opening photo.
func (c *Client) OpenShift(ctx context.Context, token string, userID, dealershipID int64, photo File) (*domain.Shift, error) {
	fields := map[string]string{
		"user_id":       id(userID),
		"dealership_id": id(dealershipID),
	}
	var s domain.Shift
	if err := c.doMultipart(ctx, http.MethodPost, "/shifts", token, fields, []formPart{{field: "opening_photo", file: photo}}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CloseShift closes a shift, with the closing photo when given.
func (c *Client) CloseShift(ctx context.Context, token string, shiftID int64, photo *File) (*domain.Shift, error) {
	var s domain.Shift
	path := "/shifts/" + id(shiftID)
	if photo == nil {
		if err := c.doJSON(ctx, http.MethodPut, path, token, map[string]string{"status": "closed"}, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}
	fields := map[string]string{"status": "closed"}
	if err := c.doMultipart(ctx, http.MethodPut, path, token, fields, []formPart{{field: "closing_photo", file: *photo}}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ApproveResponse approves one task response.
func (c *Client) ApproveResponse(ctx context.Context, token string, responseID int64) error {
	return c.doJSON(ctx, http.MethodPost, "/task-responses/"+id(responseID)+"/approve", token, nil, nil)
}

// ApproveAllResponses approves every pending response of a task.
func (c *Client) ApproveAllResponses(ctx context.Context, token string, taskID int64) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+id(taskID)+"/approve-all-responses", token, nil, nil)
}

// RejectResponse rejects one task response.
func (c *Client) RejectResponse(ctx context.Context, token string, responseID int64, reason string) error {
	return c.doJSON(ctx, http.MethodPost, "/task-responses/"+id(responseID)+"/reject", token,
		map[string]string{"reason": reason}, nil)
}

// RejectAllResponses rejects every pending response of a task.
func (c *Client) RejectAllResponses(ctx context.Context, token string, taskID int64, reason string) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+id(taskID)+"/reject-all-responses", token,
		map[string]string{"reason": reason}, nil)
}

// Users lists users matching f.
func (c *Client) Users(ctx context.Context, token string, f UserFilter) ([]domain.User, error) {
	q := url.Values{}
	setString(q, "role", f.Role)
	setInt(q, "dealership_id", f.DealershipID)
	setInt(q, "per_page", int64(f.PerPage))

	var users []domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users", token: token, query: q}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateDelegation asks toUserID to take over taskID.
func (c *Client) CreateDelegation(ctx context.Context, token string, taskID, toUserID int64, reason string) (*domain.Delegation, error) {
	payload := map[string]any{"to_user_id": toUserID}
	if reason != "" {
		payload["reason"] = reason
	}
	var d domain.Delegation
	if err := c.doJSON(ctx, http.MethodPost, "/tasks/"+id(taskID)+"/delegations", token, payload, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Delegations lists delegations visible to the caller.
func (c *Client) Delegations(ctx context.Context, token string, f DelegationFilter) ([]domain.Delegation, error) {
	q := url.Values{}
	setString(q, "direction", f.Direction)
	setString(q, "status", f.Status)
	setInt(q, "per_page", int64(f.PerPage))

	var out []domain.Delegation
	if err := c.do(ctx, request{method: http.MethodGet, path: "/task-delegations", token: token, query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AcceptDelegation accepts an incoming delegation.
func (c *Client) AcceptDelegation(ctx context.Context, token string, delegationID int64) error {
	return c.doJSON(ctx, http.MethodPost, "/task-delegations/"+id(delegationID)+"/accept", token, nil, nil)
}

// RejectDelegation declines an incoming delegation.
func (c *Client) RejectDelegation(ctx context.Context, token string, delegationID int64, reason string) error {
	return c.doJSON(ctx, http.MethodPost, "/task-delegations/"+id(delegationID)+"/reject", token,
		map[string]string{"reason": reason}, nil)
}

// CancelDelegation withdraws an outgoing delegation.
func (c *Client) CancelDelegation(ctx context.Context, token string, delegationID int64) error {
	return c.doJSON(ctx, http.MethodPost, "/task-delegations/"+id(delegationID)+"/cancel", token, nil, nil)
}

// Dashboard returns summary counts.
func (c *Client) Dashboard(ctx context.Context, token string) (*domain.Dashboard, error) {
	var d domain.Dashboard
	if err := c.doJSON(ctx, http.MethodGet, "/dashboard", token, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
