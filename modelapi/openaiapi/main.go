package openaiapi

import (
	"context"
	"fmt"
	"os"
	"time"

	"pitchtrainer/logger"
	"pitchtrainer/modelapi"
	"pitchtrainer/roles"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second

	// Fine-tuned on real studio chat logs; override with LLM_MODEL.
	defaultModel = "ft:gpt-3.5-turbo-0125:personal:massage-client-v1:CciCxlPm"
)

type OpenAIConnectProps struct {
	Logger *logger.LogMiddleware
}

type OpenAI struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
	client    *openai.Client
	model     string
}

func Connect(ctx context.Context, args OpenAIConnectProps) *OpenAI {
	tracer := otel.Tracer("openaiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	OPENAI_API_KEY := os.Getenv("OPENAI_API_KEY")
	if OPENAI_API_KEY == "" {
		args.Logger.Logger(ctx).Fatal("OPENAI_API_KEY environment variable not set")
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = defaultModel
	}

	span.SetAttributes(
		attribute.Int("maxWorkers", maxWorkers),
		attribute.String("model", model),
	)

	client := openai.NewClient(
		option.WithAPIKey(OPENAI_API_KEY),
	)

	return &OpenAI{logger: args.Logger, semaphore: sem, client: &client, model: model}
}

func exponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

// GetClientReply asks the model for the client's next line given the persona
// and the dialog so far. newUserMessage is the salesperson's latest message.
func (o *OpenAI) GetClientReply(ctx context.Context, role roles.Role, history []modelapi.DialogMessage, newUserMessage string) (string, error) {
	tracer := otel.Tracer("openaiapi/GetClientReply")
	ctx, span := tracer.Start(ctx, "GetClientReply")
	defer span.End()

	span.SetAttributes(
		attribute.String("role.key", role.Key),
		attribute.Int("history.length", len(history)),
	)

	systemPrompt := fmt.Sprintf(modelapi.SYSTEM_PROMPT_TEMPLATE,
		role.Name, role.Personality, role.Objections, role.AgreementBar)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, msg := range history {
		switch msg.Role {
		case modelapi.ASSISTANT:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(newUserMessage))

	if err := o.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer o.semaphore.Release(1)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(o.model),
			Messages:    messages,
			Temperature: openai.Float(0.7),
		})
		if err == nil && len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
			span.AddEvent("Request successful")
			return resp.Choices[0].Message.Content, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("empty completion response")
		}
		span.RecordError(lastErr)
		o.logger.Logger(ctx).Warn("[OpenAI-API] Completion failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Int("maxRetries", maxRetries))

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(exponentialBackoff(attempt)):
			}
		}
	}

	span.AddEvent("All retries exhausted")
	return "", fmt.Errorf("client reply failed after %d attempts: %w", maxRetries, lastErr)
}
