package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CamiloRuizJ/rexeli/internal/llm"
)

// Invoke implements llm.Invoker over chat/completions. User content is an
// ordered array: page images (or a native document part) first, prompt text
// last, matching how the prompts reference "the pages above".
func (c *Client) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	c.log.Info("llm.invoke.start",
		"req_id", rid,
		"model", model,
		"images", len(req.Images),
		"native_document", req.Document != nil,
		"prompt_len", len(req.Prompt),
	)

	content := make([]map[string]any, 0, len(req.Images)+2)
	for _, img := range req.Images {
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": dataURL(img.MIMEType, img.Data),
			},
		})
	}
	if req.Document != nil {
		content = append(content, map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  req.Document.Filename,
				"file_data": dataURL("application/pdf", req.Document.Data),
			},
		})
	}
	content = append(content, map[string]any{"type": "text", "text": req.Prompt})

	body := map[string]any{
		"model":       model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var raw []byte
	err := c.exec.Execute(ctx, "chat_completions", func(ctx context.Context) error {
		var sendErr error
		raw, sendErr = llm.SendJSON(ctx, c.http, endpoint, body, c.headers(), c.log)
		return sendErr
	}, transportRetryable)
	if err != nil {
		c.observe("invoke", "error", start)
		c.log.Error("llm.invoke.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage llm.Usage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.observe("invoke", "error", start)
		return llm.Response{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.observe("invoke", "error", start)
		return llm.Response{}, fmt.Errorf("no choices in openai response")
	}

	c.observe("invoke", "ok", start)
	if c.metrics != nil {
		c.metrics.AddTokens("rexeli", "invoke", cc.Usage.PromptTokens, cc.Usage.CompletionTokens)
	}
	c.log.Info("llm.invoke.ok",
		"req_id", rid,
		"model", cc.Model,
		"prompt_tokens", cc.Usage.PromptTokens,
		"completion_tokens", cc.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return llm.Response{
		Content: strings.TrimSpace(cc.Choices[0].Message.Content),
		Model:   cc.Model,
		Usage:   cc.Usage,
	}, nil
}

func (c *Client) observe(operation, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveCall("rexeli", operation, status, time.Since(start).Seconds())
}

// transportRetryable gates the only automatic retries in the system:
// upstream 5xx and network failures. Auth and rate-limit errors surface to
// the caller immediately.
func transportRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, llm.ErrUpstreamServer) {
		return true
	}
	if errors.Is(err, llm.ErrAuthentication) || errors.Is(err, llm.ErrRateLimit) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
