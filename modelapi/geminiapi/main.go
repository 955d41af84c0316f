package geminiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"pitchtrainer/logger"
	"pitchtrainer/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	GEMINI_MODEL_NAME = "gemini-2.5-flash"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
}

type Gemini struct {
	logger *logger.LogMiddleware
	client *genai.Client
}

// PitchGrade is the structured verdict on one winning pitch.
type PitchGrade struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

func exponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

func Connect(ctx context.Context, args GeminiConnectProps) *Gemini {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	GEMINI_KEY := os.Getenv("GEMINI_SECRET_KEY")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  GEMINI_KEY,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client", zap.Error(err))
		os.Exit(21)
	}

	return &Gemini{logger: args.Logger, client: client}
}

func (g *Gemini) generateContentWithRetry(ctx context.Context, userPrompt string, systemPrompt string, tools []*genai.Tool, toolConfig *genai.ToolConfig) (*genai.GenerateContentResponse, error) {
	tracer := otel.Tracer("geminiapi/generateContentWithRetry")
	ctx, span := tracer.Start(ctx, "generateContentWithRetry")
	defer span.End()

	var resp *genai.GenerateContentResponse
	var err error

	thinkingBudget := int32(0)

	for attempt := 0; attempt < maxRetries; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))

		resp, err = g.client.Models.GenerateContent(ctx, GEMINI_MODEL_NAME, genai.Text(userPrompt), &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			ToolConfig:        toolConfig,
			Tools:             tools,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  &thinkingBudget,
			},
		})

		if err != nil || resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			if err != nil {
				span.RecordError(err)
				g.logger.Logger(ctx).Warn("[GeminiAPI] Error generating content, retrying",
					zap.Error(err),
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
			} else {
				span.AddEvent("EmptyResponse")
				g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty or invalid response, retrying",
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
			}

			if attempt < maxRetries-1 {
				delay := exponentialBackoff(attempt)
				span.AddEvent("Backoff", trace.WithAttributes(attribute.Int64("delayMs", delay.Milliseconds())))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		break
	}

	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Final error generating content after retries", zap.Error(err))
		return nil, err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates after %d attempts", maxRetries)
	}

	span.AddEvent("Generation successful")
	return resp, nil
}

func (g *Gemini) gradePitchFunction() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        "grade_sales_pitch",
			Description: "Оценить работу продавца в завершённом диалоге с вредным клиентом",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"score": {
						Type:        genai.TypeNumber,
						Description: "Итоговая оценка от 0 до 100 с точностью до двух знаков",
					},
					"strengths": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeString,
						},
						Description: "2-3 сильные стороны продавца, каждая короткой фразой",
					},
					"improvements": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeString,
						},
						Description: "2-3 конкретных совета, что улучшить в следующий раз",
					},
					"summary": {
						Type:        genai.TypeString,
						Description: "Одно ободряющее предложение с главным выводом",
					},
				},
				Required: []string{"score", "strengths", "improvements", "summary"},
			},
		}},
	}
}

// GradePitch sends the finished dialog transcript to the grader and returns
// the structured verdict. roleName labels the client side of the transcript.
func (g *Gemini) GradePitch(ctx context.Context, roleName string, dialog []modelapi.DialogMessage) (*PitchGrade, error) {
	tracer := otel.Tracer("geminiapi/GradePitch")
	ctx, span := tracer.Start(ctx, "GradePitch")
	defer span.End()

	span.SetAttributes(
		attribute.String("role.name", roleName),
		attribute.Int("dialog.length", len(dialog)),
	)

	transcript := renderTranscript(roleName, dialog)

	toolConfig := &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{"grade_sales_pitch"},
		},
	}

	resp, err := g.generateContentWithRetry(ctx, transcript, modelapi.GRADER_SYSTEM_PROMPT,
		[]*genai.Tool{g.gradePitchFunction()}, toolConfig)
	if err != nil {
		return nil, err
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return nil, fmt.Errorf("grader returned no function call")
	}

	argsJSON, err := json.Marshal(calls[0].Args)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not encode grader arguments: %w", err)
	}

	var grade PitchGrade
	if err := json.Unmarshal(argsJSON, &grade); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not decode grade: %w", err)
	}

	if grade.Score < 0 {
		grade.Score = 0
	}
	if grade.Score > 100 {
		grade.Score = 100
	}

	span.SetAttributes(attribute.Float64("grade.score", grade.Score))
	return &grade, nil
}

func renderTranscript(roleName string, dialog []modelapi.DialogMessage) string {
	var b strings.Builder
	b.WriteString("Расшифровка диалога:\n\n")
	for _, msg := range dialog {
		speaker := "Продавец"
		if msg.Role == modelapi.ASSISTANT {
			speaker = "Клиент (" + roleName + ")"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
