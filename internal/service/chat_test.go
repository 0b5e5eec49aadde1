package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chorus/internal/memory"
	"github.com/raphaelgruber/chorus/internal/models"
)

func TestHandleChatHealthy(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{})
	require.NoError(t, err)
	defer p.service.Close()

	result := p.service.HandleChat(context.Background(), "How do I secure a smart contract?", "u1")

	assert.NotEmpty(t, result.Response)
	assert.Contains(t, result.Response, "Oh dear")
	d := result.Diagnostics
	assert.Equal(t, len(testAgents), d.AgentsConsulted)
	assert.Equal(t, len(testAgents), d.SpecialistsUsed)
	assert.Len(t, d.Agents, len(testAgents))
	assert.Equal(t, 0, d.MemoryHits, "first call for a user has no memories")
	assert.Equal(t, "POSITIVE", d.Sentiment.Label)
	assert.Equal(t, "joy", d.Emotion.Label)
	assert.Equal(t, models.StageResponded, d.Stage)
	assert.NotEmpty(t, d.RequestID)
	assert.Empty(t, d.Degraded)

	p.service.Wait()
	assert.Equal(t, 1, p.store.Count(), "exchange is stored")
}

func TestHandleChatEmbeddingDown(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{embedder: keywordEmbedder{fail: true}})
	require.NoError(t, err)
	defer p.service.Close()

	result := p.service.HandleChat(context.Background(), "How do I secure a smart contract?", "u1")

	assert.NotEmpty(t, result.Response)
	assert.Equal(t, 0, result.Diagnostics.MemoryHits)
	assert.Equal(t, "POSITIVE", result.Diagnostics.Sentiment.Label)
	assert.Equal(t, "joy", result.Diagnostics.Emotion.Label)
	assert.Contains(t, result.Diagnostics.Degraded, DegradedEmbedding)

	p.service.Wait()
	assert.Equal(t, 0, p.store.Count(), "nothing to index without an embedding")
}

func TestHandleChatSpecialistTimeout(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{specialistTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer p.service.Close()
	p.gen.hang["m-empathy"] = true
	defer p.gen.unblock()

	result := p.service.HandleChat(context.Background(), "How do I secure a smart contract?", "u1")

	d := result.Diagnostics
	assert.Equal(t, 4, d.AgentsConsulted)
	assert.Equal(t, 3, d.SpecialistsUsed)
	require.Len(t, d.Agents, 4)
	assert.True(t, d.Agents[3].Degraded)
	assert.Zero(t, d.Agents[3].Confidence)

	judge := p.gen.callsFor(judgeModel)
	require.Len(t, judge, 1)
	assert.Contains(t, judge[0].prompt, "answer from m-logic")
	assert.NotContains(t, judge[0].prompt, "### Phi")
	assert.Contains(t, result.Response, "merged:")
}

func TestHandleChatJudgeFails(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{})
	require.NoError(t, err)
	defer p.service.Close()
	p.gen.fail[judgeModel] = errors.New("judge offline")

	result := p.service.HandleChat(context.Background(), "How do I secure a smart contract?", "u1")

	persona := p.gen.callsFor(personaModel)
	require.Len(t, persona, 1, "fallback synthesis still goes through the persona once")
	assert.Contains(t, persona[0].prompt, FallbackSynthesis)
	assert.Equal(t, "Oh dear, here is what I think: "+FallbackSynthesis, result.Response)
	assert.Contains(t, result.Diagnostics.Degraded, DegradedJudge)
}

func TestHandleChatJudgeAndPersonaFail(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{})
	require.NoError(t, err)
	defer p.service.Close()
	p.gen.fail[judgeModel] = errors.New("judge offline")
	p.gen.fail[personaModel] = errors.New("persona offline")

	result := p.service.HandleChat(context.Background(), "hi", "u1")
	assert.Equal(t, FallbackSynthesis, result.Response)
	assert.Equal(t, []string{DegradedJudge, DegradedPersona}, result.Diagnostics.Degraded)
}

func TestHandleChatRecallsEarlierExchange(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{})
	require.NoError(t, err)
	defer p.service.Close()

	first := p.service.HandleChat(context.Background(), "How do I secure a smart contract?", "u1")
	require.NotEmpty(t, first.Response)
	p.service.Wait()

	second := p.service.HandleChat(context.Background(), "Should I audit my smart contract before deploying?", "u1")
	assert.Greater(t, second.Diagnostics.MemoryHits, 0)

	p.service.Wait()
	hits, err := p.service.SearchMemory(context.Background(), "audit smart contract", "u1", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	var found bool
	for _, h := range hits {
		if strings.Contains(h.Content, "User: How do I secure a smart contract?") {
			found = true
			assert.Less(t, h.Distance, memory.DefaultMaxDistance)
		}
	}
	assert.True(t, found, "first exchange is recalled")

	specialist := p.gen.callsFor("m-logic")
	require.Len(t, specialist, 2)
	assert.Contains(t, specialist[1].prompt, "1 relevant memories found")

	unrelated, err := p.service.SearchMemory(context.Background(), "tomato garden rain", "u1", 5)
	require.NoError(t, err)
	assert.Empty(t, unrelated)
}

func TestHandleChatEverythingFails(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{
		embedder:  keywordEmbedder{fail: true},
		sentiment: fakeClassifier{err: errors.New("down")},
		emotion:   fakeClassifier{err: errors.New("down")},
	})
	require.NoError(t, err)
	defer p.service.Close()

	for _, a := range testAgents {
		p.gen.fail[a.Model] = errors.New("down")
	}
	p.gen.fail[judgeModel] = errors.New("down")
	p.gen.fail[personaModel] = errors.New("down")

	result := p.service.HandleChat(context.Background(), "anyone there?", "u1")
	assert.NotEmpty(t, result.Response)
	assert.Equal(t, FallbackSynthesis, result.Response)
	assert.Equal(t, 4, result.Diagnostics.AgentsConsulted)
	assert.Equal(t, 0, result.Diagnostics.SpecialistsUsed)
	assert.Empty(t, p.gen.callsFor(judgeModel))
	assert.Equal(t, models.NeutralSentiment, result.Diagnostics.Sentiment)
}

func TestHandleChatRecoversFromPanic(t *testing.T) {
	gen := newFakeGenerator()
	svc := NewChatService(Components{
		Analyzer:     NewAnalyzer(nil, nil, nil, nil, AnalyzerConfig{}, nil, nil),
		Orchestrator: NewOrchestrator(testAgents, gen, time.Second, nil),
		Synthesizer:  NewSynthesizer(gen, judgeModel, time.Second, nil),
		// Persona left unset so the pipeline fails after synthesis.
	})

	result := svc.HandleChat(context.Background(), "hi", "u1")
	assert.Equal(t, FallbackResponse, result.Response)
	assert.Equal(t, models.StageFailed, result.Diagnostics.Stage)
	assert.NotContains(t, result.Response, "nil pointer")
}

func TestHandleChatMemoryStorePanics(t *testing.T) {
	gen := newFakeGenerator()
	mem := memory.NewAdapter(brokenStore{panics: true}, memory.AdapterConfig{}, nil, nil)
	svc := NewChatService(Components{
		Analyzer: NewAnalyzer(fakeClassifier{label: models.NeutralSentiment}, fakeClassifier{label: models.NeutralEmotion},
			keywordEmbedder{}, mem, AnalyzerConfig{}, nil, nil),
		Orchestrator: NewOrchestrator(testAgents, gen, time.Second, nil),
		Synthesizer:  NewSynthesizer(gen, judgeModel, time.Second, nil),
		Persona:      NewPersonaTransformer(gen, personaModel, "Ms. Jarvis", time.Second, nil),
		Memory:       mem,
		Embedder:     keywordEmbedder{},
	})

	result := svc.HandleChat(context.Background(), "secure smart contract", "u1")
	assert.Contains(t, result.Response, "Oh dear")
	assert.Equal(t, models.StageResponded, result.Diagnostics.Stage)
	assert.Contains(t, result.Diagnostics.Degraded, DegradedMemory)
	assert.Equal(t, 0, result.Diagnostics.MemoryHits)

	require.NoError(t, svc.Close())
}

func TestSearchMemoryWithoutEmbedder(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{noEmbedder: true})
	require.NoError(t, err)
	defer p.service.Close()

	_, err = p.service.SearchMemory(context.Background(), "anything", "u1", 3)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestHandleChatConcurrentRequests(t *testing.T) {
	p, err := newTestPipeline(pipelineOptions{})
	require.NoError(t, err)
	defer p.service.Close()

	users := []string{"a", "b", "c", "d", "e"}
	results := make(chan models.ChatResult, len(users))
	for _, u := range users {
		go func() {
			results <- p.service.HandleChat(context.Background(), "secure smart contract", u)
		}()
	}
	for range users {
		r := <-results
		assert.Equal(t, 4, r.Diagnostics.AgentsConsulted)
	}

	p.service.Wait()
	assert.Equal(t, len(users), p.store.Count())
}
