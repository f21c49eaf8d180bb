package drafting

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fabfab/grant-drafter/ingestion"
	"github.com/fabfab/grant-drafter/llm"
)

// ErrNoBudgetSources is returned when neither guidelines nor a form produced
// any text to analyse.
var ErrNoBudgetSources = errors.New("no guideline or application form text to analyse")

type BudgetSummary struct {
	// Text is the model's structured summary, eligible expenses first.
	Text string `json:"text"`
	// MatchedFunding is the value of the "Matched Funding required" line, or
	// empty when the model omitted it.
	MatchedFunding string `json:"matched_funding,omitempty"`
}

// MatchedFundingRequired reports whether the summary names a co-contribution.
func (b BudgetSummary) MatchedFundingRequired() bool {
	v := strings.ToLower(strings.TrimSpace(b.MatchedFunding))
	return v != "" && v != "none" && v != "no" && v != "not required"
}

type BudgetAnalyzer struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewBudgetAnalyzer(client llm.Client, logger *zap.Logger) *BudgetAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetAnalyzer{llm: client, logger: logger}
}

var matchedFundingLine = regexp.MustCompile(`(?im)^.*matched funding required:\s*(.+?)\s*$`)

// Analyze extracts eligible expenses and the matched-funding requirement from
// whichever of the two documents produced text.
func (b *BudgetAnalyzer) Analyze(ctx context.Context, guidelines, form *ingestion.Extraction) (BudgetSummary, error) {
	if b.llm == nil {
		return BudgetSummary{}, fmt.Errorf("llm client is not configured")
	}

	var sections []string
	if text := usableText(guidelines); text != "" {
		sections = append(sections, "---\nGUIDELINES:\n"+text)
	}
	if text := usableText(form); text != "" {
		sections = append(sections, "---\nAPPLICATION FORM:\n"+text)
	}
	if len(sections) == 0 {
		return BudgetSummary{}, ErrNoBudgetSources
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: budgetInstruction + strings.Join(sections, "\n\n")}}
	raw, err := b.llm.Generate(ctx, messages, llm.Params{Temperature: 0})
	if err != nil {
		b.logger.Error("budget analysis failed", zap.Error(err))
		return BudgetSummary{}, fmt.Errorf("%w: budget analysis: %w", ErrGeneration, err)
	}

	summary := BudgetSummary{Text: strings.TrimSpace(raw)}
	if m := matchedFundingLine.FindStringSubmatch(summary.Text); m != nil {
		summary.MatchedFunding = m[1]
	}
	return summary, nil
}

func usableText(e *ingestion.Extraction) string {
	if e == nil || e.Failed() {
		return ""
	}
	return strings.TrimSpace(e.Text)
}
