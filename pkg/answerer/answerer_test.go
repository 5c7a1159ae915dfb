package answerer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/finsight/internal/models"
	"github.com/xhad/finsight/internal/types"
)

type fakeRetriever struct {
	chunks map[string][]models.ScoredChunk
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _, _ int) ([]models.ScoredChunk, error) {
	return f.chunks[query], nil
}

// fakeCompleter replies per prompt substring and records every prompt it saw.
type fakeCompleter struct {
	replies map[string]string // substring of prompt -> reply
	prompts []string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string, _ types.CompletionOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for key, reply := range f.replies {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return "I don't know based on the provided documents.", nil
}

func scoredChunk(source string, chunkIndex int, text string) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk: models.Chunk{
			Source:     source,
			ChunkIndex: chunkIndex,
			Text:       text,
			Year:       2022,
		},
	}
}

func TestFailed(t *testing.T) {
	assert.True(t, Failed("I don't know based on the provided documents."))
	assert.True(t, Failed(NoInformation))
	assert.True(t, Failed("Partial text. I don't know the rest."))
	assert.False(t, Failed("Revenue was $5.2B in 2022 [1]."))
}

func TestAnswerNoHits(t *testing.T) {
	completer := &fakeCompleter{}
	a := NewWithConfig(AnswererConfig{}, &fakeRetriever{}, completer)

	answer, err := a.Answer(context.Background(), "What was revenue?", 0)
	require.NoError(t, err)
	assert.Equal(t, NoInformation, answer.Text)
	assert.Empty(t, answer.Chunks)
	// The model is never consulted for an empty retrieval.
	assert.Empty(t, completer.prompts)
}

func TestAnswerWithCitations(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[string][]models.ScoredChunk{
		"What was 2022 revenue?": {
			scoredChunk("report_2022.txt", 0, "Total revenue was $5.2B."),
			scoredChunk("report_2022.txt", 3, "Revenue grew 12% year over year."),
		},
	}}
	completer := &fakeCompleter{replies: map[string]string{
		"What was 2022 revenue?": "Revenue was $5.2B [1], up 12% [2]. See [1] again. Ignore [9].",
	}}
	a := NewWithConfig(AnswererConfig{}, retriever, completer)

	answer, err := a.Answer(context.Background(), "What was 2022 revenue?", 2022)
	require.NoError(t, err)
	require.Len(t, answer.Chunks, 2)

	// Passages reach the model numbered from [1].
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "[1] Total revenue was $5.2B.")
	assert.Contains(t, completer.prompts[0], "[2] Revenue grew 12% year over year.")

	// [9] is out of range and dropped; repeated [1] is kept in order.
	require.Len(t, answer.Citations, 3)
	assert.Equal(t, models.Citation{Ref: 1, Source: "report_2022.txt", ChunkIndex: 0}, answer.Citations[0])
	assert.Equal(t, models.Citation{Ref: 2, Source: "report_2022.txt", ChunkIndex: 3}, answer.Citations[1])
	assert.Equal(t, 1, answer.Citations[2].Ref)
}

func TestAnswerWithFallbackFirstAttemptSucceeds(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[string][]models.ScoredChunk{
		"What was net income?": {scoredChunk("report_2022.txt", 1, "Net income was $800M.")},
	}}
	completer := &fakeCompleter{replies: map[string]string{
		"What was net income?": "Net income was $800M [1].",
	}}
	a := NewWithConfig(AnswererConfig{}, retriever, completer)

	answer, err := a.AnswerWithFallback(context.Background(), "What was net income?", 0)
	require.NoError(t, err)
	assert.Equal(t, "What was net income?", answer.Question)
	assert.False(t, Failed(answer.Text))
	// One answer call, no alternatives round-trip.
	assert.Len(t, completer.prompts, 1)
}

func TestAnswerWithFallbackUsesAlternative(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[string][]models.ScoredChunk{
		"What was turnover?":      {scoredChunk("report_2022.txt", 0, "irrelevant")},
		"What was total revenue?": {scoredChunk("report_2022.txt", 2, "Total revenue was $5.2B.")},
	}}
	completer := &fakeCompleter{replies: map[string]string{
		"Generate 3 alternative ways": "- What was gross income?\n- What was total revenue?\n- What were consolidated sales?",
		"What was total revenue?":     "Total revenue was $5.2B [1].",
	}}
	a := NewWithConfig(AnswererConfig{}, retriever, completer)

	answer, err := a.AnswerWithFallback(context.Background(), "What was turnover?", 0)
	require.NoError(t, err)
	assert.Equal(t, "What was turnover? (tried alternative: What was total revenue?)", answer.Question)
	assert.Equal(t, "Total revenue was $5.2B [1].", answer.Text)
}

func TestAnswerWithFallbackAllAlternativesFail(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[string][]models.ScoredChunk{
		"What was turnover?": {scoredChunk("report_2022.txt", 0, "irrelevant")},
	}}
	completer := &fakeCompleter{replies: map[string]string{
		"Generate 3 alternative ways": "- Alt one?\n- Alt two?",
	}}
	a := NewWithConfig(AnswererConfig{}, retriever, completer)

	answer, err := a.AnswerWithFallback(context.Background(), "What was turnover?", 0)
	require.NoError(t, err)
	// Original question and its miss survive when every paraphrase misses.
	assert.Equal(t, "What was turnover?", answer.Question)
	assert.True(t, Failed(answer.Text))
}

func TestAlternativesCapped(t *testing.T) {
	completer := &fakeCompleter{replies: map[string]string{
		"Generate 3 alternative ways": "- a?\n- b?\n- c?\n- d?\n- e?",
	}}
	a := NewWithConfig(AnswererConfig{MaxAlternatives: 3}, &fakeRetriever{}, completer)

	alternatives, err := a.Alternatives(context.Background(), "What was revenue?")
	require.NoError(t, err)
	assert.Equal(t, []string{"a?", "b?", "c?"}, alternatives)
}

func TestAlternativesError(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model offline")}
	a := NewWithConfig(AnswererConfig{}, &fakeRetriever{}, completer)

	_, err := a.Alternatives(context.Background(), "What was revenue?")
	assert.Error(t, err)
}
