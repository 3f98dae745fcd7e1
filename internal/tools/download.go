package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const maxTorrentPageBytes = 2 << 20

// Starter receives extracted magnet links. The bot only initiates downloads,
// something else runs them.
type Starter interface {
	Start(ctx context.Context, magnet string) error
}

// WebhookStarter POSTs the magnet link to an external job runner.
type WebhookStarter struct {
	URL    string
	Client *http.Client
}

func (w *WebhookStarter) Start(ctx context.Context, magnet string) error {
	body, err := json.Marshal(map[string]string{"magnet": magnet})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach download webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("download webhook rejected the magnet: %s", resp.Status)
	}
	return nil
}

// LogStarter records the magnet link and does nothing else, for running
// without a downloader attached.
type LogStarter struct {
	Log *zap.Logger
}

func (l *LogStarter) Start(_ context.Context, magnet string) error {
	l.Log.Info("magnet link extracted, no downloader configured",
		zap.String("magnet", magnet))
	return nil
}

// DownloadTool turns a nyaa.si page URL into a magnet link and hands it off.
type DownloadTool struct {
	client       *http.Client
	starter      Starter
	allowedHosts map[string]bool
}

func NewDownload(client *http.Client, starter Starter) *DownloadTool {
	return &DownloadTool{
		client:       client,
		starter:      starter,
		allowedHosts: map[string]bool{"nyaa.si": true, "www.nyaa.si": true},
	}
}

func (d *DownloadTool) Name() string { return "download_torrent" }

func (d *DownloadTool) Description() string {
	return "Initiates a torrent download given the URL of a nyaa.si listing page. Use when someone asks to download a torrent they linked."
}

func (d *DownloadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The full URL of the nyaa.si page to download from.",
			},
		},
		"required": []string{"url"},
	}
}

func (d *DownloadTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	raw, _ := args["url"].(string)
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, fmt.Errorf("%w: not a valid http(s) url: %q", ErrInvalidArgs, raw)
	}
	host := strings.ToLower(u.Hostname())
	if !d.allowedHosts[host] {
		return Result{}, fmt.Errorf("%w: only nyaa.si pages are supported, got %q", ErrInvalidArgs, host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build page request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("page fetch returned %s", resp.Status)
	}

	magnet, err := extractMagnet(io.LimitReader(resp.Body, maxTorrentPageBytes))
	if err != nil {
		return Result{}, err
	}
	if err := d.starter.Start(ctx, magnet); err != nil {
		return Result{}, fmt.Errorf("failed to start download: %w", err)
	}
	return Result{Content: "Magnet link extracted and handed to the downloader. The download should begin shortly."}, nil
}

// extractMagnet returns the first magnet href on the page.
func extractMagnet(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	var find func(n *html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" && strings.HasPrefix(a.Val, "magnet:?") {
					return a.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if got := find(c); got != "" {
				return got
			}
		}
		return ""
	}
	if magnet := find(doc); magnet != "" {
		return magnet, nil
	}
	return "", fmt.Errorf("no magnet link found on the page")
}
