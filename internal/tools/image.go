package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Baughn/emul/internal/llm"
)

const (
	imageCacheSize = 20
	maxImageBytes  = 4 << 20
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ImageTool fetches a linked picture so the model can look at it. Recently
// fetched images are kept in a small LRU because people tend to discuss the
// same link for a while.
type ImageTool struct {
	client *http.Client
	cache  *lru.Cache[string, llm.ImageData]
}

func NewImage(client *http.Client) *ImageTool {
	cache, _ := lru.New[string, llm.ImageData](imageCacheSize)
	return &ImageTool{client: client, cache: cache}
}

func (t *ImageTool) Name() string { return "fetch_and_prepare_image" }

func (t *ImageTool) Description() string {
	return "Fetches an image from a URL and attaches it so you can see it. Use when someone links a picture and you want to look at it or comment on it."
}

func (t *ImageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The direct URL of the image to fetch.",
			},
		},
		"required": []string{"url"},
	}
}

const imageFetchedText = "Image fetched successfully. Refer to the attached image data."

func (t *ImageTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	raw, _ := args["url"].(string)
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, fmt.Errorf("%w: not a valid http(s) url: %q", ErrInvalidArgs, raw)
	}

	if img, ok := t.cache.Get(u.String()); ok {
		return Result{Content: imageFetchedText, Image: &img}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("image fetch returned %s", resp.Status)
	}

	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]))
	if !allowedImageTypes[mime] {
		return Result{}, fmt.Errorf("unsupported image type %q", mime)
	}
	if resp.ContentLength > maxImageBytes {
		return Result{}, fmt.Errorf("image too large: %d bytes (limit %d)", resp.ContentLength, maxImageBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return Result{}, fmt.Errorf("image too large: over %d bytes", maxImageBytes)
	}

	img := llm.ImageData{MIME: mime, Data: data}
	t.cache.Add(u.String(), img)
	return Result{Content: imageFetchedText, Image: &img}, nil
}
