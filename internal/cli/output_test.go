package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/chorus/internal/models"
)

func TestPrinterResult(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	assert.False(t, p.styled, "buffers are never styled")

	result := &models.ChatResult{
		Response: "Oh dear, audit it first.",
		Diagnostics: models.Diagnostics{
			RequestID:       "req-1",
			AgentsConsulted: 2,
			SpecialistsUsed: 1,
			Agents: []models.AgentDiagnostic{
				{Agent: "Mistral", Specialty: models.SpecialtyLogicalAnalysis, Confidence: 0.85},
				{Agent: "Phi", Specialty: models.SpecialtyEmotionalIntelligence, Degraded: true},
			},
			Sentiment:  models.NeutralSentiment,
			Emotion:    models.Label{Label: "fear", Score: 0.9},
			MemoryHits: 3,
			Degraded:   []string{"embedding"},
		},
	}

	p.result("Ms. Jarvis", result, false)
	assert.Equal(t, "Ms. Jarvis: Oh dear, audit it first.\n", buf.String())

	buf.Reset()
	p.result("", result, true)
	out := buf.String()
	assert.Contains(t, out, "Oh dear, audit it first.\n")
	assert.Contains(t, out, "request: req-1")
	assert.Contains(t, out, "agents: 2 consulted, 1 used")
	assert.Contains(t, out, "0.85")
	assert.Contains(t, out, "degraded\n")
	assert.Contains(t, out, "emotion: fear (0.90)")
	assert.Contains(t, out, "memories: 3")
	assert.Contains(t, out, "degraded: embedding")
}

func TestPrinterMemories(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.memories(nil)
	assert.Equal(t, "No memories found.\n", buf.String())

	buf.Reset()
	p.memories([]models.MemoryHit{{
		ID:       "u1_1",
		Content:  "User: water the tomatoes\nMs. Jarvis: every morning, dear",
		Distance: 0.123,
		Metadata: models.MemoryMetadata{
			Sentiment: models.Label{Label: "POSITIVE"},
			Emotion:   models.Label{Label: "joy"},
			Timestamp: time.Unix(1700000000, 0),
		},
	}})
	out := buf.String()
	assert.Contains(t, out, "distance 0.123  POSITIVE/joy")
	assert.Contains(t, out, "   User: water the tomatoes\n")
	assert.Contains(t, out, "   Ms. Jarvis: every morning, dear\n")
}

func TestPrinterAgents(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.agents("Ms. Jarvis", []models.AgentDefinition{
		{Name: "Qwen", Model: "qwen2:7b", Specialty: models.SpecialtyEthicalGuidance},
	})
	out := buf.String()
	assert.Contains(t, out, "persona: Ms. Jarvis")
	assert.Contains(t, out, "Qwen")
	assert.Contains(t, out, "qwen2:7b")
	assert.Contains(t, out, "ethical_guidance")
}
