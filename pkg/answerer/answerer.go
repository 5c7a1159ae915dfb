// Package answerer turns a single question into a grounded, citation-bearing
// answer over retrieved chunks, with a paraphrase fallback for questions the
// corpus phrases differently.
package answerer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/finsight/internal/models"
	"github.com/xhad/finsight/internal/parse"
	"github.com/xhad/finsight/internal/types"
)

// Sentinel phrases that mark an answer as a miss. They travel in-band in the
// answer text, so detection is a substring check.
const (
	NoInformation = "No relevant information found."
	dontKnow      = "I don't know"
)

const answerSystem = "You are a helpful assistant."

const answerPrompt = `You are a helpful financial analyst assistant. Use only the provided source passages to answer the user's question.
Cite sources using numbered references like [1], [2], [3] etc.

IMPORTANT: When answering financial questions, provide comprehensive, detailed answers that include:
- Specific numbers and figures from the passages
- Year-over-year comparisons when available
- Key financial metrics and ratios
- Detailed breakdowns by segment or category
- Tables or structured data when relevant
- All relevant financial data found in the passages

If the answer is not in the passages, say "I don't know based on the provided documents."

Passages:
%s

Question: %s

Provide a comprehensive, detailed answer that extracts all relevant financial information from the passages. Use numbered citations [1], [2], [3] etc. in your answer. Do NOT include a "Sources:" section at the end - just provide the answer with inline citations.`

const alternativesSystem = "You are a helpful financial analyst assistant."

const alternativesPrompt = `You are a financial analyst assistant. The original question failed to find relevant data. Generate 3 alternative ways to ask the same question that might find the information in financial reports.

Original question: %s

Generate alternative questions that:
1. Use different terminology (e.g., "revenue" vs "sales" vs "income")
2. Focus on different aspects (e.g., segment revenue vs total revenue)
3. Use different time references (e.g., "2020" vs "full year 2020")
4. Ask for specific metrics (e.g., "total revenue" vs "consolidated revenue")

Provide 3 alternative questions, one per line, starting with "- ":`

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Failed reports whether an answer carries one of the in-band miss markers.
func Failed(text string) bool {
	return strings.Contains(text, dontKnow) || strings.Contains(text, NoInformation)
}

type AnswererConfig struct {
	TopK            int
	MaxTokens       int // answer generation budget
	MaxAlternatives int
}

// Answerer retrieves supporting chunks for a question and prompts the chat
// model over them.
type Answerer struct {
	config    AnswererConfig
	retriever types.Retriever
	completer types.Completer
}

func NewWithConfig(config AnswererConfig, retriever types.Retriever, completer types.Completer) *Answerer {
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1000
	}
	if config.MaxAlternatives <= 0 {
		config.MaxAlternatives = 3
	}
	return &Answerer{
		config:    config,
		retriever: retriever,
		completer: completer,
	}
}

// Answer retrieves the closest chunks and asks the model to answer from them
// alone. An empty retrieval short-circuits with the no-information sentinel
// rather than calling the model.
func (a *Answerer) Answer(ctx context.Context, question string, targetYear int) (models.Answer, error) {
	hits, err := a.retriever.Retrieve(ctx, question, a.config.TopK, targetYear)
	if err != nil {
		return models.Answer{}, fmt.Errorf("retrieval failed for %q: %w", question, err)
	}

	if len(hits) == 0 {
		return models.Answer{
			Question: question,
			Text:     NoInformation,
		}, nil
	}

	var passages strings.Builder
	for i, hit := range hits {
		if i > 0 {
			passages.WriteString("\n\n")
		}
		fmt.Fprintf(&passages, "[%d] %s", i+1, hit.Text)
	}

	prompt := fmt.Sprintf(answerPrompt, passages.String(), question)
	text, err := a.completer.Complete(ctx, answerSystem, prompt, types.CompletionOptions{
		Temperature: 0.0,
		MaxTokens:   a.config.MaxTokens,
	})
	if err != nil {
		return models.Answer{}, fmt.Errorf("answer generation failed for %q: %w", question, err)
	}

	return models.Answer{
		Question:  question,
		Text:      text,
		Chunks:    hits,
		Citations: parseCitations(text, hits),
	}, nil
}

// AnswerWithFallback answers the question and, when the result carries a miss
// marker, retries with model-generated paraphrases. The first paraphrase that
// produces a real answer wins and is recorded in the answer's question; when
// every attempt misses, the original failed answer is returned.
func (a *Answerer) AnswerWithFallback(ctx context.Context, question string, targetYear int) (models.Answer, error) {
	result, err := a.Answer(ctx, question, targetYear)
	if err != nil {
		return models.Answer{}, err
	}
	if !Failed(result.Text) {
		return result, nil
	}

	alternatives, err := a.Alternatives(ctx, question)
	if err != nil {
		// The original miss is still a usable answer.
		return result, nil
	}

	for _, alt := range alternatives {
		altResult, err := a.Answer(ctx, alt, targetYear)
		if err != nil {
			continue
		}
		if !Failed(altResult.Text) {
			altResult.Question = fmt.Sprintf("%s (tried alternative: %s)", question, alt)
			return altResult, nil
		}
	}

	return result, nil
}

// Alternatives asks the model for rephrasings of a question that missed,
// capped at the configured maximum.
func (a *Answerer) Alternatives(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf(alternativesPrompt, question)
	text, err := a.completer.Complete(ctx, alternativesSystem, prompt, types.CompletionOptions{
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate alternative questions: %w", err)
	}

	alternatives := parse.Bullets(text)
	if len(alternatives) > a.config.MaxAlternatives {
		alternatives = alternatives[:a.config.MaxAlternatives]
	}
	return alternatives, nil
}

// parseCitations extracts the [n] references the model used, resolving each
// in-range reference to its source document. Out-of-range references are
// dropped; duplicates are kept in order of appearance.
func parseCitations(text string, hits []models.ScoredChunk) []models.Citation {
	var citations []models.Citation
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		ref, err := strconv.Atoi(match[1])
		if err != nil || ref < 1 || ref > len(hits) {
			continue
		}
		hit := hits[ref-1]
		citations = append(citations, models.Citation{
			Ref:        ref,
			Source:     hit.Source,
			ChunkIndex: hit.ChunkIndex,
		})
	}
	return citations
}
