package service

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

// FallbackSynthesis replaces the judge's answer when merging fails.
const FallbackSynthesis = "I've analyzed your request from multiple perspectives and I'm ready to help you. " +
	"Could you tell me a little more about what you need so I can give you a focused answer?"

// FallbackResponse is returned when the pipeline fails outright.
const FallbackResponse = "Oh sweetie, I'm having some technical difficulties with my thinking processes right now. " +
	"Could you try rephrasing your question? I'm here to help you."

// specialistConfidence is reported for a specialist that answered.
const specialistConfidence = 0.85

// Sampling per stage. The judge is more conservative than the specialists
// it reconciles, and the persona rewrite sits between the two.
var (
	specialistSampling = llm.SamplingOptions{Temperature: 0.7, TopP: 0.9, MetricsOp: metrics.OpSpecialist}
	judgeSampling      = llm.SamplingOptions{Temperature: 0.4, TopP: 0.9, MetricsOp: metrics.OpJudge}
	personaSampling    = llm.SamplingOptions{Temperature: 0.6, TopP: 0.9, MetricsOp: metrics.OpPersona}
)

func degradedText(agent string) string {
	return fmt.Sprintf("Agent %s is currently processing your request...", agent)
}

// BuildAgentPrompt assembles a specialist prompt. The output depends only on
// its arguments.
func BuildAgentPrompt(agent models.AgentDefinition, message string, cctx models.ConversationContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(agent.Instructions))
	b.WriteString("\n\nContext Information:\n")
	fmt.Fprintf(&b, "- User's emotional state: %s\n", cctx.Emotion.Label)
	fmt.Fprintf(&b, "- User's sentiment: %s\n", cctx.Sentiment.Label)
	fmt.Fprintf(&b, "- Previous conversations: %d relevant memories found\n", cctx.MemoryCount())
	b.WriteString("\n")
	b.WriteString(agent.Specialty.Framing())
	b.WriteString("\n\nUser Message: ")
	b.WriteString(message)
	return b.String()
}

func buildJudgePrompt(message string, responses []models.AgentResponse, cctx models.ConversationContext) string {
	var b strings.Builder
	b.WriteString("You are the judge. Evaluate and synthesize the answers of the specialist agents " +
		"below into one coherent, technically accurate response.\n\n")
	fmt.Fprintf(&b, "Original User Message: %s\n\n", message)
	b.WriteString("Agent Responses to Synthesize:\n")
	for _, r := range responses {
		if r.Degraded {
			continue
		}
		fmt.Fprintf(&b, "\n### %s (%s)\n%s\n", r.Agent, r.Specialty, strings.TrimSpace(r.Text))
	}
	b.WriteString("\nUser Context:\n")
	fmt.Fprintf(&b, "- Emotional state: %s\n", cctx.Emotion.Label)
	fmt.Fprintf(&b, "- Sentiment: %s\n", cctx.Sentiment.Label)
	fmt.Fprintf(&b, "- Number of relevant memories: %d\n", cctx.MemoryCount())
	b.WriteString(`
Instructions:
1. Evaluate each agent's contribution for accuracy and relevance.
2. Keep the best insights and drop contradictions you cannot resolve.
3. Produce a single actionable answer that keeps technical details exact.
4. Take the user's emotional state into account.

Provide your final synthesized response:`)
	return b.String()
}

func buildPersonaPrompt(personaName, merged string, emotion, sentiment models.Label) string {
	return fmt.Sprintf(`You are %s, a warm, humble and nurturing assistant who is also a technical expert.

Rewrite the analysis below in your own caring voice. Keep every technical fact, step and caveat exactly as given.

Analysis:
%s

User's Current State:
- Emotional tone: %s
- Sentiment: %s

Guidelines:
- Speak like someone who genuinely wants the user to succeed.
- Use warm language naturally, without overdoing it.
- Do not add new technical claims.

Your response:`, personaName, strings.TrimSpace(merged), emotion.Label, sentiment.Label)
}

// ExchangeText formats a completed exchange for the memory store.
func ExchangeText(personaName, message, response string) string {
	return fmt.Sprintf("User: %s\n%s: %s", message, personaName, response)
}
