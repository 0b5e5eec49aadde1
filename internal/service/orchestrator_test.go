package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/models"
)

func TestConsultAllHealthy(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := newFakeGenerator()
	o := NewOrchestrator(testAgents, gen, time.Second, nil)

	responses := o.Consult(context.Background(), "hello", models.ConversationContext{})
	require.Len(t, responses, len(testAgents))
	for i, r := range responses {
		assert.Equal(t, testAgents[i].Name, r.Agent)
		assert.Equal(t, testAgents[i].Specialty, r.Specialty)
		assert.Equal(t, "answer from "+testAgents[i].Model, r.Text)
		assert.InDelta(t, specialistConfidence, r.Confidence, 1e-9)
		assert.False(t, r.Degraded)
		assert.False(t, r.Timestamp.IsZero())
	}

	for _, a := range testAgents {
		calls := gen.callsFor(a.Model)
		require.Len(t, calls, 1)
		assert.InDelta(t, 0.7, calls[0].opts.Temperature, 1e-9)
		assert.InDelta(t, 0.9, calls[0].opts.TopP, 1e-9)
	}
}

func TestConsultIdentityNotCompletionOrder(t *testing.T) {
	gen := newFakeGenerator()
	delays := map[string]time.Duration{"m-logic": 40 * time.Millisecond, "m-creative": 0, "m-ethics": 20 * time.Millisecond, "m-empathy": 5 * time.Millisecond}
	gen.reply = func(model, _ string) string {
		time.Sleep(delays[model])
		return "from " + model
	}
	o := NewOrchestrator(testAgents, gen, time.Second, nil)

	responses := o.Consult(context.Background(), "x", models.ConversationContext{})
	for i, r := range responses {
		assert.Equal(t, "from "+testAgents[i].Model, r.Text)
	}
}

func TestConsultDegradedAgents(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := newFakeGenerator()
	gen.fail["m-ethics"] = llm.ErrFatalAPI
	gen.hang["m-empathy"] = true
	defer gen.unblock()

	o := NewOrchestrator(testAgents, gen, 30*time.Millisecond, nil)

	start := time.Now()
	responses := o.Consult(context.Background(), "x", models.ConversationContext{})
	assert.Less(t, time.Since(start), time.Second, "a stuck specialist must not hold the barrier")

	require.Len(t, responses, 4)
	assert.False(t, responses[0].Degraded)
	assert.False(t, responses[1].Degraded)

	for _, r := range responses[2:] {
		assert.True(t, r.Degraded)
		assert.Zero(t, r.Confidence)
		assert.Equal(t, "Agent "+r.Agent+" is currently processing your request...", r.Text)
	}
	assert.Len(t, healthy(responses), 2)
}

func TestConsultEmptyAnswerIsDegraded(t *testing.T) {
	gen := newFakeGenerator()
	gen.reply = func(model, _ string) string {
		if model == "m-logic" {
			return "   "
		}
		return "ok"
	}
	o := NewOrchestrator(testAgents, gen, time.Second, nil)

	responses := o.Consult(context.Background(), "x", models.ConversationContext{})
	assert.True(t, responses[0].Degraded)
	assert.False(t, responses[1].Degraded)
}

func TestConsultEmptyRoster(t *testing.T) {
	o := NewOrchestrator(nil, newFakeGenerator(), time.Second, nil)
	assert.Empty(t, o.Consult(context.Background(), "x", models.ConversationContext{}))
	assert.Empty(t, o.Agents())
}

func TestOrchestratorCopiesRoster(t *testing.T) {
	agents := append([]models.AgentDefinition(nil), testAgents...)
	o := NewOrchestrator(agents, newFakeGenerator(), time.Second, nil)
	agents[0].Name = "changed"
	assert.Equal(t, "Mistral", o.Agents()[0].Name)
}
