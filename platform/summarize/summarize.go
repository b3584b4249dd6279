package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/similarity"
)

const (
	MethodOpenAI     = "openai"
	MethodExtractive = "extractive"
)

var ErrEmptyText = errors.New("no text to summarize")

type Summary struct {
	Text   string `json:"summary"`
	Method string `json:"method"`
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (Summary, error)
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(strings.TrimSpace(text), "$1\n")
	sentences := []string{}
	for _, s := range strings.Split(marked, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Extractive picks the sentences whose words are most frequent across the
// text and returns them in their original order.
type Extractive struct {
	MaxSentences int
}

func (e Extractive) Summarize(ctx context.Context, text string) (Summary, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return Summary{}, ErrEmptyText
	}

	limit := e.MaxSentences
	if limit <= 0 {
		limit = 3
	}
	if len(sentences) <= limit {
		return Summary{Text: strings.Join(sentences, " "), Method: MethodExtractive}, nil
	}

	freq := map[string]int{}
	tokenized := make([][]string, len(sentences))
	for i, s := range sentences {
		tokenized[i] = similarity.Tokenize(s)
		for _, t := range tokenized[i] {
			freq[t]++
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, tokens := range tokenized {
		total := 0
		for _, t := range tokens {
			total += freq[t]
		}
		score := 0.0
		if len(tokens) > 0 {
			score = float64(total) / float64(len(tokens))
		}
		scores[i] = scored{idx: i, score: score}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	chosen := scores[:limit]
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].idx < chosen[j].idx })

	parts := make([]string, 0, limit)
	for _, c := range chosen {
		parts = append(parts, sentences[c.idx])
	}
	return Summary{Text: strings.Join(parts, " "), Method: MethodExtractive}, nil
}

type OpenAISummarizer struct {
	client   *openai.Client
	model    string
	fallback Summarizer
}

func NewOpenAISummarizer(apiKey, model string, fallback Summarizer) *OpenAISummarizer {
	return &OpenAISummarizer{client: openai.NewClient(apiKey), model: model, fallback: fallback}
}

func NewOpenAISummarizerWithConfig(config openai.ClientConfig, model string, fallback Summarizer) *OpenAISummarizer {
	return &OpenAISummarizer{client: openai.NewClientWithConfig(config), model: model, fallback: fallback}
}

const systemPrompt = "You summarize scientific paper abstracts for conference program committees. " +
	"Reply with at most three plain sentences covering the problem, the method and the main result."

// Summarize asks the chat completion api and falls back to the extractive
// summary when the call fails.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (Summary, error) {
	if strings.TrimSpace(text) == "" {
		return Summary{}, ErrEmptyText
	}

	res, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err == nil && len(res.Choices) > 0 && strings.TrimSpace(res.Choices[0].Message.Content) != "" {
		return Summary{Text: strings.TrimSpace(res.Choices[0].Message.Content), Method: MethodOpenAI}, nil
	}

	if err == nil {
		err = fmt.Errorf("empty completion")
	}
	slog.Warn("openai summarization failed, using fallback", "error", err)
	return s.fallback.Summarize(ctx, text)
}
