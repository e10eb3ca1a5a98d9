package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/CamiloRuizJ/rexeli/internal/llm"
)

// UploadTrainingFile uploads a JSONL training file with purpose=fine-tune.
func (c *Client) UploadTrainingFile(ctx context.Context, filename string, jsonl []byte) (llm.TrainingFile, error) {
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "fine-tune"); err != nil {
		return llm.TrainingFile{}, fmt.Errorf("write purpose field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return llm.TrainingFile{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(jsonl); err != nil {
		return llm.TrainingFile{}, fmt.Errorf("write jsonl: %w", err)
	}
	if err := mw.Close(); err != nil {
		return llm.TrainingFile{}, fmt.Errorf("close multipart: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return llm.TrainingFile{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return llm.TrainingFile{}, fmt.Errorf("upload training file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return llm.TrainingFile{}, llm.MapStatusError(resp.StatusCode, string(raw))
	}

	var out struct {
		ID    string `json:"id"`
		Bytes int    `json:"bytes"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.TrainingFile{}, fmt.Errorf("decode file response: %w", err)
	}

	c.log.Info("llm.finetune.file_uploaded",
		"file_id", out.ID,
		"filename", filename,
		"bytes", out.Bytes,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.TrainingFile{ID: out.ID, Bytes: out.Bytes}, nil
}

// CreateJob launches a fine-tuning job for an uploaded training file.
// validationFileID may be empty.
func (c *Client) CreateJob(ctx context.Context, baseModel, trainingFileID, validationFileID, suffix string) (llm.TrainingJob, error) {
	body := map[string]any{
		"model":         baseModel,
		"training_file": trainingFileID,
	}
	if validationFileID != "" {
		body["validation_file"] = validationFileID
	}
	if suffix != "" {
		body["suffix"] = suffix
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/fine_tuning/jobs"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, c.headers(), c.log)
	if err != nil {
		return llm.TrainingJob{}, err
	}
	return decodeJob(raw)
}

// RetrieveJob polls the remote job state.
func (c *Client) RetrieveJob(ctx context.Context, jobID string) (llm.TrainingJob, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/fine_tuning/jobs/" + jobID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return llm.TrainingJob{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return llm.TrainingJob{}, fmt.Errorf("retrieve job: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return llm.TrainingJob{}, llm.MapStatusError(resp.StatusCode, string(raw))
	}
	return decodeJob(raw)
}

// CancelJob requests cancellation of a running job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (llm.TrainingJob, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/fine_tuning/jobs/" + jobID + "/cancel"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, map[string]any{}, c.headers(), c.log)
	if err != nil {
		return llm.TrainingJob{}, err
	}
	return decodeJob(raw)
}

func decodeJob(raw []byte) (llm.TrainingJob, error) {
	var out struct {
		ID             string `json:"id"`
		Status         string `json:"status"`
		FineTunedModel string `json:"fine_tuned_model"`
		Error          struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.TrainingJob{}, fmt.Errorf("decode job response: %w", err)
	}
	return llm.TrainingJob{
		ID:             out.ID,
		Status:         out.Status,
		FineTunedModel: out.FineTunedModel,
		Error:          out.Error.Message,
	}, nil
}
