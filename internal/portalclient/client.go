package portalclient

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

const (
	DefaultTimeout = 10 * time.Second

	DefaultMaxRetries = 3

	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff.
	DefaultMaxRetryDelay = 30 * time.Second

	// DefaultPortalIP is where a portal listens on its own access point.
	DefaultPortalIP = "192.168.4.1"
)

// Portal paths.
const (
	pathWiFiSave = "/wifisave"
	pathClose    = "/close"
	pathState    = "/state"
	pathScan     = "/scan"
	pathReset    = "/r"
	pathLive     = "/ws"
)

// Client is an HTTP client for a wifimgr portal.
type Client struct {
	// BaseURL is the portal root (e.g. "http://192.168.4.1:80").
	BaseURL string

	HTTPClient *http.Client

	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	RetryDelay time.Duration

	MaxRetryDelay time.Duration

	UseExponentialBackoff bool
}

// NewClient creates a client for the portal at ip:port.
func NewClient(ip string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(ip, strconv.Itoa(port)))
}

// NewClientWithURL creates a client with a full base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:               strings.TrimSuffix(baseURL, "/"),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior.
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// GetState fetches the device state.
func (c *Client) GetState(ctx context.Context) (*State, error) {
	var state State
	err := c.retry(ctx, func() error {
		return c.getJSON(ctx, pathState, &state)
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Scan returns the networks the device can see, strongest first.
func (c *Client) Scan(ctx context.Context) ([]Network, error) {
	var networks []Network
	err := c.retry(ctx, func() error {
		networks = nil
		return c.getJSON(ctx, pathScan, &networks)
	})
	if err != nil {
		return nil, err
	}
	return networks, nil
}

// SaveWiFi submits credentials. A rejected form is an ErrTypeRejected
// error carrying the portal's message.
func (c *Client) SaveWiFi(ctx context.Context, p *Provision) error {
	if err := p.Validate(); err != nil {
		return err
	}
	form := p.ToFormData()
	logging.Debug("Submitting credentials", zap.String("url", c.BaseURL+pathWiFiSave), zap.String("ssid", p.SSID))

	return c.retry(ctx, func() error {
		resp, err := c.do(ctx, http.MethodPost, pathWiFiSave, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		body, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusBadRequest:
			return &ClientError{Type: ErrTypeRejected, Message: formError(body), StatusCode: resp.StatusCode}
		case resp.StatusCode >= http.StatusInternalServerError:
			ce := newHTTPError(resp.StatusCode, formError(body))
			// Persistence failures are not retried.
			ce.Retryable = false
			return ce
		default:
			return newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		}
	})
}

// Close asks the portal to stop without saving.
func (c *Client) Close(ctx context.Context) error {
	return c.retry(ctx, func() error { return c.getOK(ctx, pathClose) })
}

// Reset erases the device's stored credentials and restarts it.
func (c *Client) Reset(ctx context.Context) error {
	return c.getOK(ctx, pathReset)
}

// retry runs attempt until it succeeds, returns a non-retryable error or
// MaxRetries is exhausted.
func (c *Client) retry(ctx context.Context, attempt func() error) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return classifyNetworkError("request cancelled", ctx.Err())
			case <-time.After(currentDelay):
			}
			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		logging.Debug("Portal request failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, classifyNetworkError("failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyNetworkError(method+" "+path+" failed", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newParseError("failed to parse JSON response", err)
	}
	return nil
}

func (c *Client) getOK(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
	return nil
}

// wsURL converts the base URL to the live feed's ws:// address.
func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.BaseURL + pathLive)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

var errorDiv = regexp.MustCompile(`<div class="msg err">([^<]*)</div>`)

// formError extracts the message the portal puts on a re-rendered form.
func formError(body []byte) string {
	if m := errorDiv.FindSubmatch(body); m != nil {
		return strings.TrimSpace(html.UnescapeString(string(m[1])))
	}
	return "submission rejected"
}
