package nextcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// RestTransport executes operations against the Nextcloud OCS v2 API under
// Basic Auth. Transient HTTP failures are retried by the underlying client;
// rejected calls map to APIError.
type RestTransport struct {
	baseURL  string
	username string
	password string
	client   *retryablehttp.Client
}

// RestConfig carries the per-instance API settings.
type RestConfig struct {
	URL      string
	Username string
	Password string
}

func NewRestTransport(cfg RestConfig) (*RestTransport, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, &ConfigError{Reason: "no API credentials configured for this instance"}
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	client.HTTPClient.Timeout = commandTimeout

	return &RestTransport{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
	}, nil
}

// ocsEnvelope is the vendor's OCS v2 JSON response wrapper.
type ocsEnvelope struct {
	OCS struct {
		Meta struct {
			Status     string `json:"status"`
			StatusCode int    `json:"statuscode"`
			Message    string `json:"message"`
		} `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

type restCall struct {
	method   string
	endpoint string
	form     url.Values
}

func (t *RestTransport) Execute(ctx context.Context, cmd Command) (string, error) {
	call, err := mapRestCall(cmd)
	if err != nil {
		return "", err
	}

	endpoint := t.baseURL + "/ocs/v2.php/" + call.endpoint
	var body io.Reader
	if len(call.form) > 0 {
		body = strings.NewReader(call.form.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, call.method, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("nextcloud: build request: %w", err)
	}
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &UnreachableError{Op: cmd.Op, Err: err}
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnreachableError{Op: cmd.Op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", &AuthError{Cause: fmt.Sprintf("status %d from %s", resp.StatusCode, call.endpoint)}
	}

	var envelope ocsEnvelope
	parsed := json.Unmarshal(raw, &envelope) == nil

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if parsed && envelope.OCS.Meta.Message != "" {
			msg = envelope.OCS.Meta.Message
		}
		return "", &APIError{Op: cmd.Op, Status: resp.StatusCode, Message: msg}
	}
	if parsed && envelope.OCS.Meta.Status == "failure" {
		return "", &APIError{Op: cmd.Op, Status: envelope.OCS.Meta.StatusCode, Message: envelope.OCS.Meta.Message}
	}

	if parsed {
		return strings.TrimSpace(string(envelope.OCS.Data)), nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func (t *RestTransport) Close() error { return nil }

func mapRestCall(cmd Command) (restCall, error) {
	need := func(n int) error {
		if len(cmd.Args) != n {
			return fmt.Errorf("nextcloud: %s wants %d args, got %d", cmd.Op, n, len(cmd.Args))
		}
		return nil
	}

	switch cmd.Op {
	case OpCreateUser:
		if err := need(4); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodPost, "cloud/users", url.Values{
			"userid":      {cmd.Args[0]},
			"displayName": {cmd.Args[1]},
			"email":       {cmd.Args[2]},
			"password":    {cmd.Args[3]},
		}}, nil
	case OpDeleteUser:
		if err := need(1); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodDelete, "cloud/users/" + url.PathEscape(cmd.Args[0]), nil}, nil
	case OpCreateGroup:
		if err := need(1); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodPost, "cloud/groups", url.Values{"groupid": {cmd.Args[0]}}}, nil
	case OpDeleteGroup:
		if err := need(1); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodDelete, "cloud/groups/" + url.PathEscape(cmd.Args[0]), nil}, nil
	case OpAddToGroup:
		if err := need(2); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodPost, "cloud/users/" + url.PathEscape(cmd.Args[0]) + "/groups",
			url.Values{"groupid": {cmd.Args[1]}}}, nil
	case OpRemoveFromGroup:
		if err := need(2); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodDelete, "cloud/users/" + url.PathEscape(cmd.Args[0]) + "/groups",
			url.Values{"groupid": {cmd.Args[1]}}}, nil
	case OpSetQuota:
		if err := need(2); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodPut, "cloud/users/" + url.PathEscape(cmd.Args[0]),
			url.Values{"key": {"quota"}, "value": {cmd.Args[1]}}}, nil
	case OpListUsers:
		return restCall{http.MethodGet, "cloud/users", nil}, nil
	case OpListGroups:
		return restCall{http.MethodGet, "cloud/groups", nil}, nil
	case OpUserInfo, OpLastSeen:
		// The OCS user record carries lastLogin, so both operations read
		// the same endpoint.
		if err := need(1); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodGet, "cloud/users/" + url.PathEscape(cmd.Args[0]), nil}, nil
	case OpResendWelcome:
		if err := need(1); err != nil {
			return restCall{}, err
		}
		return restCall{http.MethodPost, "cloud/users/" + url.PathEscape(cmd.Args[0]) + "/welcome", nil}, nil
	case OpListApps:
		return restCall{http.MethodGet, "cloud/apps", nil}, nil
	case OpTestConnection:
		return restCall{http.MethodGet, "cloud/users?limit=1", nil}, nil
	case OpSetGroupQuota:
		// group:set-quota exists as an occ command only.
		return restCall{}, ErrUnsupported
	case OpDiskUsage, OpCPUStats, OpMemStats:
		return restCall{}, ErrUnsupported
	}
	return restCall{}, fmt.Errorf("nextcloud: unknown operation %q", cmd.Op)
}
