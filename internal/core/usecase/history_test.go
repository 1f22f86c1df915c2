package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

func turns(contents ...string) []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, 0, len(contents))
	for i, content := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		out = append(out, domain.ConversationTurn{Role: role, Content: content})
	}
	return out
}

func TestHistoryZeroBudgetTrimsEverythingWithoutSummary(t *testing.T) {
	assembler := NewWindowAssembler(nil)
	settings := windowSettings()
	settings.HistoryTokenBudget = 0
	settings.SummaryEnabled = false

	result := assembler.Assemble(nil, turns("one", "two", "three"), settings, false)
	if result.Selection.HistoryIncluded != 0 {
		t.Fatalf("expected empty included history, got %d", result.Selection.HistoryIncluded)
	}
	if len(result.Trimmed) != 3 {
		t.Fatalf("expected all 3 turns trimmed, got %d", len(result.Trimmed))
	}
	for _, item := range result.Trimmed {
		if item.Kind == domain.WindowItemSummary {
			t.Fatalf("summary turn must not be created when summarization is disabled")
		}
	}
	if result.Selection.SummaryCreated {
		t.Fatalf("expected SummaryCreated=false")
	}
}

func TestHistoryKeepsChronologicalOrderMostRecentFirstBudget(t *testing.T) {
	assembler := NewWindowAssembler(nil)
	settings := windowSettings()
	settings.CharsPerToken = 1
	settings.HistoryTokenBudget = 10

	result := assembler.Assemble(nil, turns("aaaaaa", "bbbb", "cccc"), settings, false)
	if result.Selection.HistoryIncluded != 2 {
		t.Fatalf("expected the two most recent turns, got %d", result.Selection.HistoryIncluded)
	}

	var contents []string
	for _, item := range result.Included {
		if item.Kind == domain.WindowItemHistory {
			contents = append(contents, item.Content)
		}
	}
	if len(contents) != 2 || contents[0] != "bbbb" || contents[1] != "cccc" {
		t.Fatalf("expected chronological [bbbb cccc], got %v", contents)
	}
}

func TestHistorySummarizesOlderTurnsWhenOverTrigger(t *testing.T) {
	assembler := NewWindowAssembler(nil)
	settings := windowSettings()
	settings.CharsPerToken = 1
	settings.HistoryTokenBudget = 10000
	settings.SummaryEnabled = true
	settings.SummaryTriggerTokens = 10
	settings.SummaryMaxTurns = 2
	settings.SummaryMaxChars = 500

	history := turns("first question here", "first answer here", "second question", "second answer")
	result := assembler.Assemble(nil, history, settings, false)

	if !result.Selection.SummaryCreated {
		t.Fatalf("expected summary turn created")
	}

	var kinds []string
	for _, item := range result.Included {
		kinds = append(kinds, item.Kind)
	}
	if len(kinds) != 3 || kinds[0] != domain.WindowItemSummary {
		t.Fatalf("expected [summary history history], got %v", kinds)
	}

	summary := result.Included[0]
	if !strings.Contains(summary.Content, "first question here") {
		t.Fatalf("expected summary to mention replaced turns, got %q", summary.Content)
	}
	if summary.Turn.Role != "system" {
		t.Fatalf("expected system role for summary, got %q", summary.Turn.Role)
	}
}

func TestHistorySummaryIsCappedAndDeterministic(t *testing.T) {
	history := turns(strings.Repeat("long question ", 50), strings.Repeat("long answer ", 50))

	first := summarizeTurns(history, 80)
	second := summarizeTurns(history, 80)
	if first != second {
		t.Fatalf("expected deterministic summary")
	}
	if len([]rune(first)) > 80 {
		t.Fatalf("expected summary capped at 80 chars, got %d", len([]rune(first)))
	}
}
