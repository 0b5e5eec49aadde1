package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/chorus/internal/embedding"
	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/memory"
	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

const (
	judgeModel   = "judge-model"
	personaModel = "persona-model"
)

var testAgents = []models.AgentDefinition{
	{Name: "Mistral", Model: "m-logic", Specialty: models.SpecialtyLogicalAnalysis, Instructions: "Be logical."},
	{Name: "LLaMA", Model: "m-creative", Specialty: models.SpecialtyCreativeProblemSolving, Instructions: "Be creative."},
	{Name: "Qwen", Model: "m-ethics", Specialty: models.SpecialtyEthicalGuidance, Instructions: "Be ethical."},
	{Name: "Phi", Model: "m-empathy", Specialty: models.SpecialtyEmotionalIntelligence, Instructions: "Be kind."},
}

type generateCall struct {
	model  string
	prompt string
	opts   llm.SamplingOptions
}

// fakeGenerator answers by model id. Models listed in fail return an error,
// models in hang block until release is closed, ignoring cancellation.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []generateCall
	fail    map[string]error
	hang    map[string]bool
	release chan struct{}
	reply   func(model, prompt string) string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		fail:    map[string]error{},
		hang:    map[string]bool{},
		release: make(chan struct{}),
	}
}

func (g *fakeGenerator) Generate(_ context.Context, model, prompt string, opts llm.SamplingOptions) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, generateCall{model: model, prompt: prompt, opts: opts})
	err := g.fail[model]
	hang := g.hang[model]
	g.mu.Unlock()

	if hang {
		<-g.release
		return "too late", nil
	}
	if err != nil {
		return "", err
	}
	if g.reply != nil {
		return g.reply(model, prompt), nil
	}
	switch model {
	case judgeModel:
		return "merged: audit the contract and use checks-effects-interactions", nil
	case personaModel:
		return "Oh dear, here is what I think: " + lastLine(prompt), nil
	}
	return "answer from " + model, nil
}

func (g *fakeGenerator) callsFor(model string) []generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []generateCall
	for _, c := range g.calls {
		if c.model == model {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGenerator) unblock() {
	close(g.release)
}

func lastLine(prompt string) string {
	i := strings.Index(prompt, "Analysis:\n")
	if i < 0 {
		return prompt
	}
	rest := prompt[i+len("Analysis:\n"):]
	if j := strings.Index(rest, "\n"); j >= 0 {
		return rest[:j]
	}
	return rest
}

type fakeClassifier struct {
	label models.Label
	err   error
}

func (c fakeClassifier) Classify(context.Context, string) (models.Label, error) {
	return c.label, c.err
}

// keywordEmbedder maps text onto a fixed vocabulary, so texts sharing
// topic words are close and unrelated texts are far apart.
type keywordEmbedder struct {
	fail bool
}

var vocabulary = []string{"smart", "contract", "secure", "audit", "weather", "garden", "tomato", "rain"}

func (e keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedding service down")
	}
	v := make([]float32, len(vocabulary)+1)
	lower := strings.ToLower(text)
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(lower, w))
	}
	v[len(vocabulary)] = 0.1

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	for i := range v {
		v[i] /= float32(math.Sqrt(norm))
	}
	return v, nil
}

func (e keywordEmbedder) Model() string  { return "keywords" }
func (e keywordEmbedder) Dimension() int { return len(vocabulary) + 1 }

type testPipeline struct {
	gen     *fakeGenerator
	store   *memory.ChromemStore
	metrics *metrics.Collector
	service *ChatService
}

type pipelineOptions struct {
	embedder          keywordEmbedder
	noEmbedder        bool
	sentiment         fakeClassifier
	emotion           fakeClassifier
	specialistTimeout time.Duration
}

func newTestPipeline(opts pipelineOptions) (*testPipeline, error) {
	gen := newFakeGenerator()
	collector := metrics.NewCollector()

	store, err := memory.NewChromemStore("", keywordEmbedder{}.Dimension())
	if err != nil {
		return nil, err
	}
	mem := memory.NewAdapter(store, memory.AdapterConfig{Timeout: time.Second}, collector, nil)

	var emb embedding.Embedder = opts.embedder
	if opts.noEmbedder {
		emb = nil
	}

	if opts.sentiment == (fakeClassifier{}) {
		opts.sentiment = fakeClassifier{label: models.Label{Label: "POSITIVE", Score: 0.9}}
	}
	if opts.emotion == (fakeClassifier{}) {
		opts.emotion = fakeClassifier{label: models.Label{Label: "joy", Score: 0.8}}
	}
	if opts.specialistTimeout == 0 {
		opts.specialistTimeout = time.Second
	}

	analyzer := NewAnalyzer(opts.sentiment, opts.emotion, emb, mem,
		AnalyzerConfig{TopK: 5, ClassifyTimeout: time.Second, EmbedTimeout: time.Second}, collector, nil)

	svc := NewChatService(Components{
		Analyzer:     analyzer,
		Orchestrator: NewOrchestrator(testAgents, gen, opts.specialistTimeout, nil),
		Synthesizer:  NewSynthesizer(gen, judgeModel, time.Second, nil),
		Persona:      NewPersonaTransformer(gen, personaModel, "Ms. Jarvis", time.Second, nil),
		Memory:       mem,
		Embedder:     emb,
		EmbedTimeout: time.Second,
		Metrics:      collector,
	})

	return &testPipeline{gen: gen, store: store, metrics: collector, service: svc}, nil
}
