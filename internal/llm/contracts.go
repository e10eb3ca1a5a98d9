package llm

import "context"

// Image is a single rasterized document page.
type Image struct {
	MIMEType string
	Data     []byte
}

// NativeDocument is a PDF submitted to the model without client-side
// rasterization.
type NativeDocument struct {
	Filename string
	Data     []byte
}

// Request is one multi-part invocation of the vision model: ordered page
// images (or a native document) followed by the prompt text.
type Request struct {
	Prompt   string
	Images   []Image
	Document *NativeDocument
	// Model overrides the configured default, used when a fine-tuned model
	// is active for the document type. Empty means default.
	Model string
}

// Usage mirrors token accounting reported by the provider, kept for cost
// observability.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the raw model output plus accounting.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Invoker is the interface classification and extraction depend on.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// TrainingFile references an uploaded JSONL file on the training service.
type TrainingFile struct {
	ID    string
	Bytes int
}

// TrainingJob is the remote job handle and its last observed state.
type TrainingJob struct {
	ID             string
	Status         string
	FineTunedModel string
	Error          string
}

// Trainer is the interface the fine-tuning coordinator depends on.
type Trainer interface {
	UploadTrainingFile(ctx context.Context, filename string, jsonl []byte) (TrainingFile, error)
	CreateJob(ctx context.Context, baseModel, trainingFileID, validationFileID, suffix string) (TrainingJob, error)
	RetrieveJob(ctx context.Context, jobID string) (TrainingJob, error)
	CancelJob(ctx context.Context, jobID string) (TrainingJob, error)
}
