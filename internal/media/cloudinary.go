package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Cloudinary uploads and deletes images through the signed REST API.
// Credentials come from a cloudinary:// URL.
type Cloudinary struct {
	apiKey     string
	apiSecret  string
	uploadURL  string
	destroyURL string
	httpClient *http.Client
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewCloudinary(rawURL string) (*Cloudinary, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse cloudinary url: %w", err)
	}

	if parsed.Scheme != "cloudinary" {
		return nil, fmt.Errorf("invalid cloudinary scheme")
	}

	apiKey := parsed.User.Username()
	apiSecret, ok := parsed.User.Password()
	if !ok {
		return nil, fmt.Errorf("missing cloudinary api secret")
	}
	cloudName := parsed.Hostname()
	if apiKey == "" || apiSecret == "" || cloudName == "" {
		return nil, fmt.Errorf("invalid cloudinary credentials")
	}

	return &Cloudinary{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		uploadURL:  fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cloudName),
		destroyURL: fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/destroy", cloudName),
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// Upload streams the file to Cloudinary without buffering it in memory.
func (c *Cloudinary) Upload(ctx context.Context, filename string, body io.Reader) (string, string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := c.sign("timestamp=" + timestamp)

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			_ = pw.CloseWithError(fmt.Errorf("create file part: %w", err))
			return
		}
		if _, err := io.Copy(part, body); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("copy file body: %w", err))
			return
		}
		if err := writer.WriteField("timestamp", timestamp); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("write timestamp field: %w", err))
			return
		}
		if err := writer.WriteField("api_key", c.apiKey); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("write api_key field: %w", err))
			return
		}
		if err := writer.WriteField("signature", signature); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("write signature field: %w", err))
			return
		}
		if err := writer.Close(); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("close multipart writer: %w", err))
			return
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return "", "", fmt.Errorf("build cloudinary upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	parsed, err := c.do(req)
	if err != nil {
		return "", "", err
	}

	if parsed.SecureURL == "" || parsed.PublicID == "" {
		return "", "", fmt.Errorf("cloudinary response missing secure_url or public_id")
	}

	return parsed.SecureURL, parsed.PublicID, nil
}

// Destroy removes an uploaded image by its public id.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return fmt.Errorf("empty public id")
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := c.sign("public_id=" + publicID + "&timestamp=" + timestamp)

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", c.apiKey)
	form.Set("signature", signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.destroyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build cloudinary destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parsed, err := c.do(req)
	if err != nil {
		return err
	}

	if parsed.Result != "ok" && parsed.Result != "not found" {
		return fmt.Errorf("cloudinary destroy failed: %s", parsed.Result)
	}

	return nil
}

func (c *Cloudinary) do(req *http.Request) (cloudinaryResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cloudinaryResponse{}, fmt.Errorf("cloudinary request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return cloudinaryResponse{}, fmt.Errorf("read cloudinary response: %w", err)
	}

	var parsed cloudinaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return cloudinaryResponse{}, fmt.Errorf("decode cloudinary response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return cloudinaryResponse{}, fmt.Errorf("cloudinary request failed: %s", parsed.Error.Message)
		}
		return cloudinaryResponse{}, fmt.Errorf("cloudinary request failed with status %d", resp.StatusCode)
	}

	return parsed, nil
}

func (c *Cloudinary) sign(params string) string {
	h := sha1.New() // #nosec G401: cloudinary API signature requires SHA-1.
	_, _ = h.Write([]byte(params + c.apiSecret))
	return hex.EncodeToString(h.Sum(nil))
}
