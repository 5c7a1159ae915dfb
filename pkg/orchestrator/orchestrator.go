// Package orchestrator drives the full question pipeline: answer the main
// question, analyze what the answer still misses, answer bounded follow-up
// questions, and synthesize one final answer. Stages run strictly forward.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/xhad/finsight/internal/models"
	"github.com/xhad/finsight/internal/parse"
	"github.com/xhad/finsight/internal/runes"
	"github.com/xhad/finsight/internal/types"
	"github.com/xhad/finsight/pkg/retriever"
)

// Stage identifies the pipeline step currently running; the CLI and the
// websocket server surface it as progress.
type Stage string

const (
	StageMainAttempt Stage = "main_attempt"
	StageGapAnalysis Stage = "gap_analysis"
	StageFollowUp    Stage = "follow_up"
	StageSynthesis   Stage = "synthesis"
	StageDone        Stage = "done"
)

const assistantSystem = "You are a helpful financial analyst assistant."

const gapAnalysisPrompt = `You are a financial analyst assistant. I have provided an initial answer to the user's question, but I need to analyze what information is missing and what additional data would make the answer more comprehensive.

Original question: %s

Main answer provided: %s

Available context from retrieved documents:
%s

Please analyze and provide:

1. What specific information is MISSING from the main answer that would be valuable to include?
2. What additional data points, metrics, or details would strengthen the answer?
3. What follow-up questions should be asked to collect this missing information?

Focus on identifying gaps in:
- Specific financial numbers or metrics
- Year-over-year comparisons
- Segment breakdowns
- Key factors or explanations
- Detailed analysis or context

Provide your analysis in this format:
MISSING INFORMATION:
- [List specific missing information]

FOLLOW-UP QUESTIONS NEEDED:
- [Question 1 to collect missing info]
- [Question 2 to collect missing info]
- [Question 3 to collect missing info]`

const decomposePrompt = `You are a financial analyst assistant. Given a complex question about financial data, break it down into 2-4 simple, independent sub-questions that can be answered separately but together help answer the main question.

IMPORTANT RULES:
- Each sub-question should focus on ONE company at a time
- Each sub-question should focus on ONE specific metric
- Keep sub-questions simple and focused
- Avoid asking for multiple companies in one question

Examples of GOOD sub-questions:
- "What was Ford's net profit margin in 2022?"
- "What was Tesla's EBIT margin in 2022?"
- "What was BMW's revenue in 2022?"

Examples of BAD sub-questions:
- "What was the net profit margin for Ford, Tesla, and BMW in 2022?"
- "How did Ford, Tesla, and BMW compare in 2022?"

Original question: %s

Provide 2-4 simple sub-questions, one per line, that are:
1. Focused on ONE company at a time
2. Focused on ONE specific metric
3. Independent and can be answered separately
4. Helpful for answering the main question

Format each sub-question on a new line starting with "- "`

const synthesisPrompt = `You are a financial analyst assistant. Based on the sub-question answers below, provide a comprehensive answer to the original question.

Original question: %s

Sub-question analysis:
%s

Provide a clear, comprehensive answer that:
1. Directly answers the original question
2. Synthesizes information from all sub-questions
3. Includes specific data and metrics where available
4. Creates tables or structured data when relevant
5. Provides year-over-year comparisons
6. Includes detailed breakdowns by segment or category
7. Cites sources appropriately
8. Is well-structured and easy to understand

IMPORTANT: Extract ALL relevant financial data from the sub-question answers. Include specific numbers, percentages, and detailed breakdowns. Create tables when comparing multiple years or metrics.

If the sub-questions don't provide enough information to answer the original question, say so clearly.`

// GapAnalysis is the parsed output of the gap-analysis stage.
type GapAnalysis struct {
	MissingInfo []string
	FollowUps   []string
}

// Result is a fully orchestrated answer with the intermediate work kept for
// display.
type Result struct {
	Question   string
	TargetYear int
	Main       models.Answer
	Gaps       GapAnalysis
	FollowUps  []models.Answer
	Final      string
}

type OrchestratorConfig struct {
	MaxFollowUps    int
	GapChunks       int // chunk excerpts handed to gap analysis
	GapExcerptChars int

	// OnStage is invoked at each stage boundary; may be nil.
	OnStage func(stage Stage, detail string)
}

type Orchestrator struct {
	config    OrchestratorConfig
	answerer  types.Answerer
	completer types.Completer
}

func NewWithConfig(config OrchestratorConfig, answerer types.Answerer, completer types.Completer) *Orchestrator {
	if config.MaxFollowUps <= 0 {
		config.MaxFollowUps = 4
	}
	if config.GapChunks <= 0 {
		config.GapChunks = 3
	}
	if config.GapExcerptChars <= 0 {
		config.GapExcerptChars = 300
	}
	return &Orchestrator{
		config:    config,
		answerer:  answerer,
		completer: completer,
	}
}

// Ask answers the question end to end. The main attempt is mandatory; gaps
// that yield no follow-up questions return the main answer verbatim, and a
// failing follow-up is logged and skipped rather than aborting the run.
func (o *Orchestrator) Ask(ctx context.Context, question string) (Result, error) {
	result := Result{
		Question:   question,
		TargetYear: retriever.YearFromQuery(question),
	}

	o.stage(StageMainAttempt, question)
	main, err := o.answerer.AnswerWithFallback(ctx, question, result.TargetYear)
	if err != nil {
		return result, fmt.Errorf("main attempt failed: %w", err)
	}
	result.Main = main

	o.stage(StageGapAnalysis, "")
	gaps, err := o.analyzeGaps(ctx, question, main)
	if err != nil {
		// An unusable gap analysis degrades to the main answer alone.
		log.Printf("gap analysis failed, returning main answer: %v", err)
		result.Final = main.Text
		o.stage(StageDone, "")
		return result, nil
	}
	result.Gaps = gaps

	if len(gaps.FollowUps) == 0 {
		result.Final = main.Text
		o.stage(StageDone, "")
		return result, nil
	}

	followUps := gaps.FollowUps
	if len(followUps) > o.config.MaxFollowUps {
		followUps = followUps[:o.config.MaxFollowUps]
	}

	for _, followUp := range followUps {
		o.stage(StageFollowUp, followUp)
		answer, err := o.answerer.AnswerWithFallback(ctx, followUp, result.TargetYear)
		if err != nil {
			log.Printf("follow-up %q failed, skipping: %v", followUp, err)
			continue
		}
		result.FollowUps = append(result.FollowUps, answer)
	}

	o.stage(StageSynthesis, "")
	final, err := o.Synthesize(ctx, question, append([]models.Answer{main}, result.FollowUps...))
	if err != nil {
		log.Printf("synthesis failed, returning main answer: %v", err)
		result.Final = main.Text
		o.stage(StageDone, "")
		return result, nil
	}
	result.Final = final

	o.stage(StageDone, "")
	return result, nil
}

// Decompose splits a multi-entity question into simple one-company,
// one-metric sub-questions.
func (o *Orchestrator) Decompose(ctx context.Context, question string) ([]string, error) {
	text, err := o.completer.Complete(ctx, assistantSystem, fmt.Sprintf(decomposePrompt, question), types.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decompose question: %w", err)
	}
	return parse.Bullets(text), nil
}

// analyzeGaps asks the model what the main answer still misses; malformed
// output parses to an empty, valid analysis.
func (o *Orchestrator) analyzeGaps(ctx context.Context, question string, main models.Answer) (GapAnalysis, error) {
	var excerpts []string
	for i, chunk := range main.Chunks {
		if i == o.config.GapChunks {
			break
		}
		excerpts = append(excerpts, runes.Truncate(chunk.Text, o.config.GapExcerptChars))
	}

	prompt := fmt.Sprintf(gapAnalysisPrompt, question, main.Text, strings.Join(excerpts, "\n"))
	text, err := o.completer.Complete(ctx, assistantSystem, prompt, types.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return GapAnalysis{}, fmt.Errorf("gap analysis completion failed: %w", err)
	}

	sections := parse.Sections(text, "MISSING INFORMATION:", "FOLLOW-UP QUESTIONS NEEDED:")
	return GapAnalysis{
		MissingInfo: sections["MISSING INFORMATION:"],
		FollowUps:   sections["FOLLOW-UP QUESTIONS NEEDED:"],
	}, nil
}

// Synthesize merges the main and follow-up answers into one final answer.
func (o *Orchestrator) Synthesize(ctx context.Context, question string, answers []models.Answer) (string, error) {
	var analysis strings.Builder
	for i, answer := range answers {
		fmt.Fprintf(&analysis, "Sub-question %d: %s\n", i+1, answer.Question)
		fmt.Fprintf(&analysis, "Answer: %s\n", answer.Text)
		if len(answer.Citations) > 0 {
			var sources []string
			for _, c := range answer.Citations {
				sources = append(sources, fmt.Sprintf("[%d] %s, chunk %d", c.Ref, c.Source, c.ChunkIndex))
			}
			fmt.Fprintf(&analysis, "Sources: %s\n", strings.Join(sources, "; "))
		}
		analysis.WriteString("\n")
	}

	text, err := o.completer.Complete(ctx, assistantSystem, fmt.Sprintf(synthesisPrompt, question, analysis.String()), types.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis completion failed: %w", err)
	}
	return text, nil
}

func (o *Orchestrator) stage(stage Stage, detail string) {
	if o.config.OnStage != nil {
		o.config.OnStage(stage, detail)
	}
}
