package ai

import (
	"context"
	"fmt"
	"strings"

	"notebook-rag-platform/internal/config"
	"notebook-rag-platform/services"

	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// AnswerGenerator produces a natural-language answer grounded in
// retrieved context. Thin collaborator around the chat model; the
// retrieval contract lives in services.
type AnswerGenerator struct {
	client *genai.Client
	model  string
}

func NewAnswerGenerator(cfg *config.Config) (*AnswerGenerator, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &AnswerGenerator{client: client, model: cfg.GenerationModel}, nil
}

// Answer asks the chat model to answer the question using only the
// formatted context produced by services.FormatContext.
func (g *AnswerGenerator) Answer(ctx context.Context, question, formattedContext string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(2048)

	prompt := buildGroundedPrompt(question, formattedContext)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrModelUnavailable, err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no answer returned", services.ErrModelUnavailable)
	}
	return sb.String(), nil
}

func buildGroundedPrompt(question, formattedContext string) string {
	if formattedContext == "" {
		return fmt.Sprintf("Answer this question. If you do not know, say so.\n\nQuestion: %s", question)
	}
	return fmt.Sprintf(
		"Answer the question using only the sources below. Cite the source label when possible. If the sources do not contain the answer, say so.\n\nSources:\n%s\n\nQuestion: %s",
		formattedContext, question,
	)
}

func (g *AnswerGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
