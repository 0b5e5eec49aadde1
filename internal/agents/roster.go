// Package agents provides the specialist roster.
package agents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/chorus/internal/models"
)

// Default returns the built-in four-specialist roster.
func Default() []models.AgentDefinition {
	return []models.AgentDefinition{
		{
			Name:      "Mistral",
			Model:     "mistral:7b",
			Specialty: models.SpecialtyLogicalAnalysis,
			Instructions: "You are Mistral, the logical reasoning specialist. Focus on analytical thinking, " +
				"mathematical precision and systematic approaches to smart contract logic, blockchain " +
				"security and technical architecture.",
		},
		{
			Name:      "LLaMA",
			Model:     "llama3.1:8b",
			Specialty: models.SpecialtyCreativeProblemSolving,
			Instructions: "You are LLaMA, the creative problem-solving specialist. Think innovatively about " +
				"ecosystem challenges and propose creative solutions for community governance, user " +
				"experience and novel applications.",
		},
		{
			Name:      "Qwen",
			Model:     "qwen2:7b",
			Specialty: models.SpecialtyEthicalGuidance,
			Instructions: "You are Qwen, the ethical advisory specialist. Evaluate every suggestion through " +
				"ethical principles and spiritual integrity, and make sure proposals align with community " +
				"values and moral standards.",
		},
		{
			Name:      "Phi",
			Model:     "phi3:mini",
			Specialty: models.SpecialtyEmotionalIntelligence,
			Instructions: "You are Phi, the emotional intelligence specialist. Focus on empathy and the " +
				"user's emotional needs. Understand how the user feels and answer with compassion.",
		},
	}
}

type rosterFile struct {
	Agents []models.AgentDefinition `yaml:"agents"`
}

// LoadFile reads a roster from a YAML file of the form:
//
//	agents:
//	  - name: Mistral
//	    model: mistral:7b
//	    specialty: logical_analysis
//	    instructions: ...
func LoadFile(path string) ([]models.AgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML roster.
func Parse(data []byte) ([]models.AgentDefinition, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("roster has no agents")
	}

	seen := make(map[string]bool, len(f.Agents))
	for _, a := range f.Agents {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}
	return f.Agents, nil
}

// Load returns the roster from path, or the default roster when path is empty.
func Load(path string) ([]models.AgentDefinition, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
