// Package phoneapi talks to the remote phone detection service.
package phoneapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/detection"
)

// DefaultTimeout bounds one detection round trip.
const DefaultTimeout = 60 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

var (
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("detection service returned an error status")
	// ErrConnection wraps failures to reach the service.
	ErrConnection = errors.New("cannot reach detection service")
	// ErrTimeout wraps requests that ran out of time.
	ErrTimeout = errors.New("detection request timed out")
)

// Client posts JPEG frames to the detection service.
type Client struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
}

// NewClient creates a client. A nil httpClient gets one with timeout.
func NewClient(httpClient *http.Client, url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{HTTPClient: httpClient, URL: url, APIKey: apiKey}
}

// Detect sends one encoded frame and returns the phones found in it.
// A response without phones is a valid empty result.
func (c *Client) Detect(ctx context.Context, jpeg []byte) ([]detection.Detection, error) {
	body, contentType, err := multipartFrame(jpeg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("api_key", c.APIKey)

	debug.Verbose("Sending frame to the detection service (%d bytes)", len(jpeg))
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, bytes.TrimSpace(data))
	}
	debug.Verbose("Detection response received in %.2fs", elapsed.Seconds())

	return Parse(data)
}

func multipartFrame(jpeg []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", fmt.Errorf("writing frame: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// classify maps transport errors onto the package's sentinel errors.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
