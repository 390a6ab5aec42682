package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/sharedalbum/album-server/internal/errors"
)

// DefaultEndpoint is the public images:annotate URL.
const DefaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

const featureLabelDetection = "LABEL_DETECTION"

// Options configures a Client.
type Options struct {
	Endpoint string
	// APIKey is sent as the key query parameter when set.
	APIKey string
	// BearerToken is sent in the Authorization header when set.
	BearerToken       string
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client calls the label detection endpoint.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	endpoint    string
	apiKey      string
	bearer      string
	logger      *slog.Logger
}

// NewClient creates a rate limited vision client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient:  opts.HTTPClient,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 5),
		endpoint:    opts.Endpoint,
		apiKey:      opts.APIKey,
		bearer:      opts.BearerToken,
		logger:      logger,
	}
}

// DetectLabels implements Detector.
func (c *Client) DetectLabels(ctx context.Context, img Image, maxResults int) ([]LabelAnnotation, error) {
	payload, err := imagePayloadFor(img)
	if err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(annotateRequest{
		Requests: []imageRequest{{
			Image:    payload,
			Features: []feature{{Type: featureLabelDetection, MaxResults: maxResults}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	c.logger.Debug("requesting labels", "source", img.GCSURI, "inline_bytes", len(img.Content))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "label detection request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Unavailable(fmt.Sprintf("label detection failed: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(out.Responses) == 0 {
		return nil, nil
	}

	first := out.Responses[0]
	if first.Error != nil {
		return nil, errors.Unavailable(fmt.Sprintf("label detection error %d: %s", first.Error.Code, first.Error.Message))
	}

	c.logger.Debug("labels detected", "source", img.GCSURI, "count", len(first.LabelAnnotations))
	return first.LabelAnnotations, nil
}

func (c *Client) requestURL() string {
	if c.apiKey == "" {
		return c.endpoint
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

func imagePayloadFor(img Image) (imagePayload, error) {
	switch {
	case img.GCSURI != "":
		return imagePayload{Source: &imageSource{ImageURI: img.GCSURI}}, nil
	case len(img.Content) > 0:
		return imagePayload{Content: base64.StdEncoding.EncodeToString(img.Content)}, nil
	default:
		return imagePayload{}, errors.Validation("image has neither a URI nor content")
	}
}

// NoopDetector returns no labels. It stands in when label detection is disabled.
type NoopDetector struct{}

// DetectLabels implements Detector.
func (NoopDetector) DetectLabels(context.Context, Image, int) ([]LabelAnnotation, error) {
	return nil, nil
}
