package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"kokoro/src/config"
	kerrors "kokoro/src/errors"
)

// Provider turns a prompt into an image URL (remote or data URL).
type Provider interface {
	Name() string
	Model() string
	Configured() bool
	Generate(ctx context.Context, p Prompt) (string, error)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// send performs req and returns the body of a 2xx reply.
func send(client *http.Client, provider string, req *http.Request) ([]byte, http.Header, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, kerrors.NewProviderError(provider, "generate image", kerrors.ErrTransientProvider, "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, kerrors.NewProviderError(provider, "generate image", kerrors.ErrTransientProvider, "failed to read response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, kerrors.HTTPProviderError(provider, "generate image", resp.StatusCode, string(body))
	}
	return body, resp.Header, nil
}

// Stability posts a multipart form and receives PNG bytes.
type Stability struct {
	cfg    config.StabilityConfig
	client *http.Client
}

func NewStability(cfg config.StabilityConfig) *Stability {
	return &Stability{cfg: cfg, client: defaultHTTPClient()}
}

func (p *Stability) Name() string     { return "stability" }
func (p *Stability) Model() string    { return "stability-ai" }
func (p *Stability) Configured() bool { return p.cfg.APIKey != "" }

func (p *Stability) Generate(ctx context.Context, prompt Prompt) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"prompt", prompt.Text},
		{"negative_prompt", prompt.Negative},
		{"aspect_ratio", "1:1"},
		{"output_format", "png"},
	}
	if prompt.StylePreset != "" {
		fields = append(fields, [2]string{"style_preset", prompt.StylePreset})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Accept", "image/*")

	body, _, err := send(p.client, p.Name(), req)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrMalformedOutput, "empty image")
	}
	return dataURL("image/png", body), nil
}

// HuggingFace sends JSON and receives raw image bytes.
type HuggingFace struct {
	cfg    config.HuggingFaceConfig
	client *http.Client
}

func NewHuggingFace(cfg config.HuggingFaceConfig) *HuggingFace {
	return &HuggingFace{cfg: cfg, client: defaultHTTPClient()}
}

func (p *HuggingFace) Name() string     { return "huggingface" }
func (p *HuggingFace) Model() string    { return "hugging-face" }
func (p *HuggingFace) Configured() bool { return p.cfg.APIKey != "" }

func (p *HuggingFace) Generate(ctx context.Context, prompt Prompt) (string, error) {
	payload := map[string]interface{}{
		"inputs": prompt.Text,
		"parameters": map[string]interface{}{
			"num_inference_steps": 30,
			"guidance_scale":      7.5,
			"width":               512,
			"height":              512,
			"negative_prompt":     prompt.Negative,
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/models/" + p.cfg.ImageModel
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	body, header, err := send(p.client, p.Name(), req)
	if err != nil {
		return "", err
	}

	contentType := header.Get("Content-Type")
	if !strings.Contains(contentType, "image") {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = "unknown error from Hugging Face API"
		}
		return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrMalformedOutput, "%s", apiErr.Error)
	}
	return dataURL("image/png", body), nil
}

// Replicate creates a prediction and reads the first output URL.
type Replicate struct {
	cfg    config.ReplicateConfig
	client *http.Client
}

func NewReplicate(cfg config.ReplicateConfig) *Replicate {
	return &Replicate{cfg: cfg, client: defaultHTTPClient()}
}

func (p *Replicate) Name() string     { return "replicate" }
func (p *Replicate) Model() string    { return "replicate" }
func (p *Replicate) Configured() bool { return p.cfg.APIKey != "" }

type replicatePrediction struct {
	Output json.RawMessage `json:"output"`
	Detail string          `json:"detail"`
}

func (p *Replicate) Generate(ctx context.Context, prompt Prompt) (string, error) {
	payload := map[string]interface{}{
		"version": p.cfg.Version,
		"input": map[string]interface{}{
			"prompt":              prompt.Text,
			"negative_prompt":     prompt.Negative,
			"width":               512,
			"height":              512,
			"num_inference_steps": 30,
			"guidance_scale":      7.5,
			"scheduler":           "K_EULER_ANCESTRAL",
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)

	body, _, err := send(p.client, p.Name(), req)
	if err != nil {
		return "", err
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrMalformedOutput, "failed to unmarshal response: %v", err)
	}

	var outputs []string
	if len(prediction.Output) > 0 {
		_ = json.Unmarshal(prediction.Output, &outputs)
	}
	if len(outputs) == 0 || outputs[0] == "" {
		detail := prediction.Detail
		if detail == "" {
			detail = "unknown error from Replicate API"
		}
		return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrMalformedOutput, "%s", detail)
	}
	return outputs[0], nil
}

// Imagen generates through the Gemini API image models.
type Imagen struct {
	cfg config.GeminiConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewImagen(cfg config.GeminiConfig) *Imagen {
	return &Imagen{cfg: cfg}
}

func (p *Imagen) Name() string     { return "imagen" }
func (p *Imagen) Model() string    { return "imagen-" + strings.TrimPrefix(p.cfg.ImageModel, "imagen-") }
func (p *Imagen) Configured() bool { return p.cfg.APIKey != "" && p.cfg.ImageModel != "" }

func (p *Imagen) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.initErr
}

func (p *Imagen) Generate(ctx context.Context, prompt Prompt) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrProviderNotConfigured, "failed to create client: %v", err)
	}

	resp, err := client.Models.GenerateImages(ctx, p.cfg.ImageModel, prompt.Text, nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", kerrors.HTTPProviderError(p.Name(), "generate image", apiErr.Code, apiErr.Message)
		}
		return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrTransientProvider, "%v", err)
	}

	for _, img := range resp.GeneratedImages {
		if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		return dataURL(img.Image.MIMEType, img.Image.ImageBytes), nil
	}
	return "", kerrors.NewProviderError(p.Name(), "generate image", kerrors.ErrMalformedOutput, "no image returned")
}
