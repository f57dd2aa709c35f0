package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/windybank/windybanknet/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotConfigured - handle or app password missing; checked before any
// network attempt is made
var ErrNotConfigured = errors.New("bluesky credentials not configured")

const (
	DefaultServiceURL = "https://bsky.social"

	createSessionPath = "/xrpc/com.atproto.server.createSession"
	createRecordPath  = "/xrpc/com.atproto.repo.createRecord"

	postCollection = "app.bsky.feed.post"
)

// PostParams describe one blog post announcement
type PostParams struct {
	Title       string
	Description string
	URL         string
	Tags        []string
}

// Client talks to the bluesky (AT protocol) XRPC API. A session is created
// per announcement - the client holds no long-lived login state.
type Client struct {
	serviceURL  string
	handle      string
	appPassword string
	httpClient  *http.Client
}

func NewClient(serviceURL, handle, appPassword string, httpClient *http.Client) *Client {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	return &Client{
		serviceURL:  strings.TrimSuffix(serviceURL, "/"),
		handle:      handle,
		appPassword: appPassword,
		httpClient:  httpClient,
	}
}

// Announce publishes one post announcement and returns the created record
// URI. Returns ErrNotConfigured without touching the network when the
// credentials are absent.
func (c *Client) Announce(ctx context.Context, params PostParams) (string, error) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(ctx, "bluesky.announce")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("post.url", params.URL))

	if c.handle == "" || c.appPassword == "" {
		err = ErrNotConfigured
		return "", err
	}

	session, err := c.createSession(ctx)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	uri, err := c.createRecord(ctx, session, BuildPostText(params))
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}

	log.Tracef("bluesky: announced %q as %s", params.Title, uri)
	return uri, nil
}

// BuildPostText renders the deterministic announcement message: title,
// description and URL verbatim, hashtags appended when there are tags
func BuildPostText(params PostParams) string {
	text := fmt.Sprintf("New blog post: %q\n\n%s\n\n%s", params.Title, params.Description, params.URL)
	if hashtags := Hashtags(params.Tags); hashtags != "" {
		text += "\n\n" + hashtags
	}
	return text
}

// Hashtags renders tags as space-joined hashtags; internal whitespace is
// stripped so "react native" becomes "#reactnative"
func Hashtags(tags []string) string {
	hashtags := make([]string, 0, len(tags))
	for _, tag := range tags {
		stripped := strings.Join(strings.Fields(tag), "")
		if stripped == "" {
			continue
		}
		hashtags = append(hashtags, "#"+stripped)
	}
	return strings.Join(hashtags, " ")
}

type session struct {
	AccessJwt string `json:"accessJwt"`
	Did       string `json:"did"`
	Handle    string `json:"handle"`
}

func (c *Client) createSession(ctx context.Context) (*session, error) {
	reqBody, err := json.Marshal(map[string]string{
		"identifier": c.handle,
		"password":   c.appPassword,
	})
	if err != nil {
		return nil, err
	}

	respBytes, err := c.post(ctx, createSessionPath, "", reqBody)
	if err != nil {
		return nil, err
	}

	var s session
	if err := json.Unmarshal(respBytes, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.AccessJwt == "" || s.Did == "" {
		return nil, errors.New("session response incomplete")
	}
	return &s, nil
}

type createRecordResponse struct {
	URI string `json:"uri"`
	Cid string `json:"cid"`
}

func (c *Client) createRecord(ctx context.Context, s *session, text string) (string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"repo":       s.Did,
		"collection": postCollection,
		"record": map[string]any{
			"$type":     postCollection,
			"text":      text,
			"createdAt": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", err
	}

	respBytes, err := c.post(ctx, createRecordPath, s.AccessJwt, reqBody)
	if err != nil {
		return "", err
	}

	var record createRecordResponse
	if err := json.Unmarshal(respBytes, &record); err != nil {
		return "", fmt.Errorf("unmarshal record: %w", err)
	}
	if record.URI == "" {
		return "", errors.New("record response without uri")
	}
	return record.URI, nil
}

func (c *Client) post(ctx context.Context, path, accessJwt string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, xrpcErrorMessage(respBytes))
	}
	return respBytes, nil
}

// xrpcErrorMessage pulls the message out of an XRPC error body, falling
// back to a fixed reason so callers always get some text
func xrpcErrorMessage(body []byte) string {
	var xrpcErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &xrpcErr); err == nil {
		if xrpcErr.Message != "" {
			return xrpcErr.Message
		}
		if xrpcErr.Error != "" {
			return xrpcErr.Error
		}
	}
	return "Unknown error"
}
