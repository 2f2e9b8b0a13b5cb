package intel

import (
	"context"
	"errors"
	"testing"

	"coinharvest/internal/domain"
)

func TestHeuristicSentiment(t *testing.T) {
	t.Parallel()

	score, conf, label := HeuristicSentiment("Bitcoin breakout as ETF sees surge", "rally continues")
	if score <= 0.2 || label != "bullish" {
		t.Fatalf("expected bullish, got score=%f label=%s", score, label)
	}
	if conf < 0.25 || conf > 0.70 {
		t.Fatalf("confidence out of range: %f", conf)
	}

	score, _, label = HeuristicSentiment("Exchange hack triggers crash and liquidation", "")
	if score >= -0.2 || label != "bearish" {
		t.Fatalf("expected bearish, got score=%f label=%s", score, label)
	}

	score, conf, label = HeuristicSentiment("Protocol publishes quarterly report", "")
	if score != 0 || label != "neutral" {
		t.Fatalf("expected neutral, got score=%f label=%s", score, label)
	}

	score, conf, label = HeuristicSentiment("", "")
	if score != 0 || conf != 0.25 || label != "neutral" {
		t.Fatalf("empty input should be low-confidence neutral: %f %f %s", score, conf, label)
	}
}

type mockBatchScorer struct {
	calls    int
	lastSize int
	resp     []SentimentScore
	err      error
}

func (m *mockBatchScorer) ScoreBatch(ctx context.Context, items []domain.IntelItem) ([]SentimentScore, error) {
	m.calls++
	m.lastSize = len(items)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestScorerHeuristicOnly(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil, 0)
	items := []domain.IntelItem{
		{ID: 1, Title: "Massive rally and breakout"},
		{ID: 2, Title: "Hack and lawsuit hit exchange"},
	}

	scored, err := s.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scored))
	}
	if scored[0].Model != "heuristic:v1" || scored[0].Label != "bullish" {
		t.Fatalf("unexpected first score: %+v", scored[0])
	}
	if scored[1].Label != "bearish" {
		t.Fatalf("unexpected second score: %+v", scored[1])
	}
}

func TestScorerLLMOverrides(t *testing.T) {
	t.Parallel()

	llm := &mockBatchScorer{resp: []SentimentScore{
		{ItemID: 1, Score: 1.7, Confidence: 0.95, Label: "POSITIVE", Model: "llm:test"},
		{ItemID: 99, Score: 0.5, Confidence: 0.5, Label: "neutral", Model: "llm:test"},
	}}
	s := NewScorer(llm, 10)
	items := []domain.IntelItem{
		{ID: 1, Title: "Massive rally"},
		{ID: 2, Title: "Hack hits exchange"},
	}

	scored, err := s.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 1 || llm.lastSize != 2 {
		t.Fatalf("expected one batch of 2, got calls=%d size=%d", llm.calls, llm.lastSize)
	}
	// LLM result wins, clamped and label-normalized; unknown item 99 dropped.
	if scored[0].ItemID != 1 || scored[0].Score != 1.0 || scored[0].Label != "bullish" || scored[0].Model != "llm:test" {
		t.Fatalf("unexpected override: %+v", scored[0])
	}
	// Item 2 keeps the heuristic score.
	if scored[1].ItemID != 2 || scored[1].Model != "heuristic:v1" {
		t.Fatalf("expected heuristic fallback: %+v", scored[1])
	}
}

func TestScorerFailedBatchKeepsHeuristic(t *testing.T) {
	t.Parallel()

	llm := &mockBatchScorer{err: errors.New("rate limited")}
	s := NewScorer(llm, 1)
	items := []domain.IntelItem{
		{ID: 1, Title: "rally"},
		{ID: 2, Title: "crash"},
	}

	scored, err := s.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 2 {
		t.Fatalf("expected one call per batch of 1, got %d", llm.calls)
	}
	for _, row := range scored {
		if row.Model != "heuristic:v1" {
			t.Fatalf("expected heuristic result to survive, got %+v", row)
		}
	}
}

func TestScorerEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil, 24)
	scored, err := s.Score(context.Background(), nil)
	if err != nil || scored != nil {
		t.Fatalf("expected nil/nil, got %v %v", scored, err)
	}
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Bullish":  "bullish",
		"positive": "bullish",
		"BEAR":     "bearish",
		"negative": "bearish",
		"neutral":  "neutral",
		"garbage":  "neutral",
		"":         "neutral",
	}
	for in, want := range cases {
		if got := normalizeLabel(in); got != want {
			t.Fatalf("normalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrimCodeFence(t *testing.T) {
	t.Parallel()

	want := `[{"id":1}]`
	cases := []string{
		want,
		"```json\n[{\"id\":1}]\n```",
		"```\n[{\"id\":1}]\n```",
		"  ```JSON\n[{\"id\":1}]\n```  ",
	}
	for _, in := range cases {
		if got := trimCodeFence(in); got != want {
			t.Fatalf("trimCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewOpenAIScorerWithoutKey(t *testing.T) {
	t.Parallel()

	if s := NewOpenAIScorer("", "gpt-4o-mini"); s != nil {
		t.Fatal("expected nil scorer without an API key")
	}
	if s := NewOpenAIScorer("   ", ""); s != nil {
		t.Fatal("expected nil scorer for blank API key")
	}
}
