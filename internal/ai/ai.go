// Package ai generates hashtags and a reliability score for forwarded posts
// via an OpenAI-compatible chat completion API.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// Texts shorter than this skip the remote call; the fallback tags apply.
	minAnalyzeLen = 50
	// Only the leading part of the text is sent to the model.
	maxPromptText = 1000

	fallbackTag = "#Naujienos"
)

// Analysis holds the model's verdict on one text. Reliability is 1-10,
// or 0 when unknown.
type Analysis struct {
	Tags        string
	Sentiment   string
	Reliability int
}

// Analyzer calls the completion API when configured and degrades to
// rule-based tagging otherwise. Analyze never fails: any error yields the
// fallback analysis.
type Analyzer struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// New creates an Analyzer. With an empty apiKey the analyzer stays in
// fallback-only mode. baseURL overrides the API endpoint for
// OpenAI-compatible providers.
func New(apiKey, baseURL, model string, log *slog.Logger) *Analyzer {
	a := &Analyzer{model: model, log: log}
	if apiKey == "" {
		log.Info("no AI api key configured, using fallback tagging")
		return a
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	a.client = openai.NewClientWithConfig(cfg)
	log.Info("AI client initialized", "model", model)
	return a
}

// Analyze returns tags and a reliability score for the text.
func (a *Analyzer) Analyze(ctx context.Context, text string) Analysis {
	result := Analysis{Tags: fallbackTags(text)}

	if a.client == nil || utf8.RuneCountInString(text) < minAnalyzeLen {
		return result
	}

	remote, err := a.analyzeRemote(ctx, text)
	if err != nil {
		a.log.Error("AI analysis failed", "error", err)
		return result
	}
	if remote.Tags == "" {
		remote.Tags = result.Tags
	}
	return remote
}

type completionResult struct {
	Tags             string `json:"tags"`
	ReliabilityScore int    `json:"reliability_score"`
	Sentiment        string `json:"sentiment"`
}

func (a *Analyzer) analyzeRemote(ctx context.Context, text string) (Analysis, error) {
	text = clipRunes(text, maxPromptText)

	prompt := fmt.Sprintf(`Analyze the following news text and provide a JSON response.

Text: %s

Response format (strict JSON):
{
  "tags": "3-4 concise Lithuanian hashtags (e.g. #Karas #Technologijos)",
  "reliability_score": 1-10 integer (10 = highly reliable, 1 = fake/propaganda),
  "sentiment": "Positive/Neutral/Negative"
}

Rules:
1. Reliability: penalize lack of sources, emotional language, propaganda.
2. Tags: generic categories in Lithuanian.`, text)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, fmt.Errorf("empty completion response")
	}

	var parsed completionResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return Analysis{}, fmt.Errorf("parse completion: %w", err)
	}

	return Analysis{
		Tags:        parsed.Tags,
		Sentiment:   parsed.Sentiment,
		Reliability: parsed.ReliabilityScore,
	}, nil
}

// clipRunes cuts s to at most max characters without splitting a rune.
func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// tagRules maps a hashtag to the substrings that trigger it.
var tagRules = []struct {
	tag      string
	keywords []string
}{
	{"#AI", []string{"ai", "gpt", "llm", "neural", "нейросеть", "искусственный интеллект"}},
	{"#Technologijos", []string{"tech", "apple", "google", "microsoft", "iphone", "гаджет", "технологи"}},
	{"#Karas", []string{"war", "ukraine", "nato", "война", "украина", "армия"}},
	{"#Politika", []string{"politic", "election", "президент", "политика", "выборы", "закон"}},
	{"#Kripto", []string{"crypto", "bitcoin", "btc", "blockchain", "биткоин", "майнинг"}},
	{"#Mokslas", []string{"science", "space", "nasa", "наука", "космос", "исследование"}},
	{"#Lietuva", []string{"lietuva", "vilnius", "lithuania", "литва", "вильнюс"}},
	{"#Sveikata", []string{"health", "medicine", "vaccine", "здоровье", "медицина"}},
	{"#Kriminalai", []string{"crime", "arrest", "police", "преступление", "полиция"}},
}

// fallbackTags derives tags from keyword rules when the model is unavailable.
func fallbackTags(text string) string {
	lower := strings.ToLower(text)
	var tags []string
	for _, rule := range tagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
		if len(tags) >= 4 {
			break
		}
	}
	if len(tags) == 0 {
		return fallbackTag
	}
	return strings.Join(tags, " ")
}
