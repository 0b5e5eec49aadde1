// Package models defines the data structures shared by the chorus pipeline.
package models

import "fmt"

// Specialty is the reasoning focus of a specialist agent.
// The set is closed: only the constants below are valid.
type Specialty string

const (
	SpecialtyLogicalAnalysis        Specialty = "logical_analysis"
	SpecialtyCreativeProblemSolving Specialty = "creative_problem_solving"
	SpecialtyEthicalGuidance        Specialty = "ethical_guidance"
	SpecialtyEmotionalIntelligence  Specialty = "emotional_intelligence"
)

// Specialties lists every valid specialty in roster order.
var Specialties = []Specialty{
	SpecialtyLogicalAnalysis,
	SpecialtyCreativeProblemSolving,
	SpecialtyEthicalGuidance,
	SpecialtyEmotionalIntelligence,
}

// Valid reports whether s is one of the known specialties.
func (s Specialty) Valid() bool {
	switch s {
	case SpecialtyLogicalAnalysis, SpecialtyCreativeProblemSolving,
		SpecialtyEthicalGuidance, SpecialtyEmotionalIntelligence:
		return true
	}
	return false
}

// Framing returns the closing instruction appended to a specialist prompt.
func (s Specialty) Framing() string {
	switch s {
	case SpecialtyLogicalAnalysis:
		return "Please provide your specialized analysis from the perspective of logical_analysis: " +
			"reason step by step and be precise about technical details."
	case SpecialtyCreativeProblemSolving:
		return "Please provide your specialized analysis from the perspective of creative_problem_solving: " +
			"propose options the user may not have considered."
	case SpecialtyEthicalGuidance:
		return "Please provide your specialized analysis from the perspective of ethical_guidance: " +
			"weigh the fairness, integrity and community impact of each path."
	case SpecialtyEmotionalIntelligence:
		return "Please provide your specialized analysis from the perspective of emotional_intelligence: " +
			"address how the user feels as well as what they asked."
	}
	return fmt.Sprintf("Please provide your specialized analysis from the perspective of %s:", string(s))
}

// AgentDefinition binds a specialist persona to a model.
// Definitions are loaded once at startup and never mutated.
type AgentDefinition struct {
	Name         string    `json:"name" yaml:"name"`
	Model        string    `json:"model" yaml:"model"`
	Specialty    Specialty `json:"specialty" yaml:"specialty"`
	Instructions string    `json:"instructions" yaml:"instructions"`
}

// Validate checks that all fields are set and the specialty is known.
func (a AgentDefinition) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if a.Model == "" {
		return fmt.Errorf("agent %s: model is required", a.Name)
	}
	if !a.Specialty.Valid() {
		return fmt.Errorf("agent %s: unknown specialty %q", a.Name, a.Specialty)
	}
	if a.Instructions == "" {
		return fmt.Errorf("agent %s: instructions are required", a.Name)
	}
	return nil
}
