// Package channels – Graph API client
//
// This file implements GraphClient, the outbound half of the Meta
// integrations. It sends text replies (WhatsApp Cloud API
// /{phoneNumberId}/messages, Messenger and Instagram /me/messages) and
// downloads attachments: WhatsApp media takes two steps (media id to a
// signed URL, then the bytes) while page attachments arrive as URLs.
//
// Credentials are never stored on the client; each call carries the owning
// channel's access token. Downloads are capped by MaxBytes and Graph error
// bodies are folded into the returned error.
//
// Observability: sends and WhatsApp media fetches open OpenTelemetry spans
// under the "channels/graph" tracer; transport and Graph errors set the span
// status.

package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultGraphBaseURL is the Meta Graph API root used when none is configured.
const DefaultGraphBaseURL = "https://graph.facebook.com/v21.0"

// Media is a downloaded provider attachment.
type Media struct {
	Data     []byte
	Mime     string
	Filename string
}

// GraphClient talks to the Meta Graph API. It holds no credentials; every
// call receives the channel's access token.
type GraphClient struct {
	BaseURL  string
	HTTP     *http.Client
	MaxBytes int64 // download cap, 0 = unlimited
}

// NewGraphClient returns a client with a pooled transport and the given
// overall request timeout.
func NewGraphClient(baseURL string, timeout time.Duration) *GraphClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &GraphClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     SharedHTTPClient(timeout),
		MaxBytes: 16 << 20,
	}
}

// SharedHTTPClient returns an HTTP client with connection pooling suitable for
// sharing across provider calls.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// SendWhatsApp posts a text message to the Cloud API and returns the wamid.
func (g *GraphClient) SendWhatsApp(ctx context.Context, phoneNumberID, token, to, text string) (string, error) {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text, "preview_url": false},
	}
	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.postJSON(ctx, "whatsapp.send", "/"+url.PathEscape(phoneNumberID)+"/messages", token, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) > 0 {
		return resp.Messages[0].ID, nil
	}
	return "", nil
}

// SendPageMessage posts a text reply through the Send API used by Messenger
// and Instagram and returns the message id.
func (g *GraphClient) SendPageMessage(ctx context.Context, token, recipientID, text string) (string, error) {
	body := map[string]any{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message":        map[string]string{"text": text},
	}
	var resp struct {
		MessageID string `json:"message_id"`
	}
	if err := g.postJSON(ctx, "page.send", "/me/messages", token, body, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// FetchWhatsAppMedia resolves a media id to its short-lived URL, then
// downloads the bytes. Both legs need the bearer token.
func (g *GraphClient) FetchWhatsAppMedia(ctx context.Context, token, mediaID string) (*Media, error) {
	ctx, span := otel.Tracer("channels/graph").Start(ctx, "whatsapp.media",
		trace.WithAttributes(attribute.String("media.id", mediaID)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/"+url.PathEscape(mediaID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := g.HTTP.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("resolve media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, graphError(resp)
	}
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media %s has no url", mediaID)
	}

	m, err := g.Download(ctx, meta.URL, token)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if meta.MimeType != "" {
		m.Mime = meta.MimeType
	}
	return m, nil
}

// Download fetches rawURL. token, when set, is sent as a bearer credential.
func (g *GraphClient) Download(ctx context.Context, rawURL, token string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := g.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if g.MaxBytes > 0 {
		r = io.LimitReader(resp.Body, g.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if g.MaxBytes > 0 && int64(len(data)) > g.MaxBytes {
		return nil, fmt.Errorf("media exceeds %d bytes", g.MaxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media body is empty")
	}

	m := &Media{Data: data, Mime: resp.Header.Get("Content-Type")}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		m.Filename = params["filename"]
	}
	if m.Mime == "" {
		m.Mime = http.DetectContentType(data)
	}
	return m, nil
}

func (g *GraphClient) postJSON(ctx context.Context, op, path, token string, body, out any) error {
	ctx, span := otel.Tracer("channels/graph").Start(ctx, op)
	defer span.End()

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.HTTP.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode/100 != 2 {
		err := graphError(resp)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if out != nil {
		// A send that succeeded but returned an unexpected body is still a success.
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func graphError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return fmt.Errorf("graph API %d: %s (code %d)", resp.StatusCode, e.Error.Message, e.Error.Code)
	}
	return fmt.Errorf("graph API %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
