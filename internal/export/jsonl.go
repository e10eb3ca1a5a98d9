package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/CamiloRuizJ/rexeli/internal/repository"
)

// chatMessage is one role/content entry in a fine-tuning example.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type trainingExample struct {
	Messages []chatMessage `json:"messages"`
}

// EncodeTrainingJSONL serializes verified documents into the chat
// fine-tuning format, one example per line. Each example pairs the system
// prompt with the raw model output as user context and the human-verified
// extraction as the assistant target. Documents without a verified payload
// are skipped rather than producing degenerate examples.
func EncodeTrainingJSONL(systemPrompt string, docs []*repository.TrainingDocument) ([]byte, int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	written := 0
	for _, d := range docs {
		if len(d.VerifiedExtraction) == 0 {
			continue
		}
		userContent := string(d.RawExtraction)
		if userContent == "" {
			userContent = fmt.Sprintf("Extract data from the %s document %q.", d.DocumentType, d.FileName)
		}
		ex := trainingExample{
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userContent},
				{Role: "assistant", Content: string(d.VerifiedExtraction)},
			},
		}
		if err := enc.Encode(&ex); err != nil {
			return nil, 0, fmt.Errorf("encode training example %s: %w", d.ID, err)
		}
		written++
	}
	return buf.Bytes(), written, nil
}
