// Package generator implements the meal plan generator on top of a text LLM.
// The model is treated as an opaque provider: one prompt in, one strict
// Day1..DayN JSON document out, any failure collapsed into a single error.
package generator

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"meal-planner-api/internal/account"
	"meal-planner-api/internal/llm"
	"meal-planner-api/internal/metrics"
	"meal-planner-api/internal/planner"
)

//go:embed plan_prompt.md
var planPrompt string

// profileSnapshot is the profile block embedded verbatim in the prompt.
type profileSnapshot struct {
	Profile struct {
		Days         int      `json:"days"`
		Restrictions []string `json:"restrictions"`
		Allergies    []string `json:"allergies"`
	} `json:"profile"`
	Preferences struct {
		Dislikes          []string `json:"dislikes"`
		PreferredCuisines []string `json:"preferred_cuisines"`
	} `json:"preferences"`
	Goals struct {
		TargetDailyCalories int            `json:"target_daily_calories"`
		TargetMacrosPct     map[string]int `json:"target_macros_pct"`
	} `json:"goals"`
}

type promptData struct {
	Days        int
	ProfileJSON string
}

// Generator asks a text model for day plans and validates the response
// against the Day1..DayN contract. It satisfies planner.Generator.
type Generator struct {
	textGen llm.TextGenerator
	metrics *metrics.Store // optional
}

// New creates a Generator. metricsStore may be nil.
func New(textGen llm.TextGenerator, metricsStore *metrics.Store) *Generator {
	return &Generator{textGen: textGen, metrics: metricsStore}
}

// GenerateDays produces day plans for days days tailored to the profile.
func (g *Generator) GenerateDays(ctx context.Context, profile account.Profile, days int) (map[string]planner.DayPlan, error) {
	prompt, err := buildPlanPrompt(profile, days)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}
	g.record(ctx, resp.Usage, time.Since(start))

	generated, err := parseDays(resp.Content, days)
	if err != nil {
		return nil, fmt.Errorf("%w. Response: %s", err, resp.Content)
	}
	return generated, nil
}

func (g *Generator) record(ctx context.Context, usage llm.TokenUsage, latency time.Duration) {
	if g.metrics == nil {
		return
	}
	if err := g.metrics.Record(ctx, metrics.MapUsage("PlanGenerator", usage, latency)); err != nil {
		log.Printf("Warning: failed to record generator metrics: %v", err)
	}
}

func buildPlanPrompt(profile account.Profile, days int) (string, error) {
	var snapshot profileSnapshot
	snapshot.Profile.Days = days
	snapshot.Profile.Restrictions = profile.DietaryRestrictions
	snapshot.Profile.Allergies = profile.Allergies
	snapshot.Preferences.Dislikes = profile.DislikedIngredients
	snapshot.Preferences.PreferredCuisines = profile.PreferredCuisines
	snapshot.Goals.TargetDailyCalories = profile.TargetDailyCalories
	snapshot.Goals.TargetMacrosPct = profile.TargetMacrosPct

	profileJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile snapshot: %w", err)
	}

	tmpl, err := template.New("plan").Parse(planPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to parse plan prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{Days: days, ProfileJSON: string(profileJSON)}); err != nil {
		return "", fmt.Errorf("failed to build plan prompt: %w", err)
	}
	return buf.String(), nil
}

// parseDays validates the model output: every label Day1..DayN present, every
// meal named, and no negative prep or cook times.
func parseDays(content string, days int) (map[string]planner.DayPlan, error) {
	var generated map[string]planner.DayPlan
	if err := json.Unmarshal([]byte(stripFences(content)), &generated); err != nil {
		return nil, fmt.Errorf("failed to parse meal plan JSON: %w", err)
	}

	for i := 1; i <= days; i++ {
		label := planner.DayLabel(i)
		day, ok := generated[label]
		if !ok {
			return nil, fmt.Errorf("meal plan response is missing %q", label)
		}
		for slot, meal := range map[string]planner.Meal{
			"Breakfast": day.Breakfast,
			"Lunch":     day.Lunch,
			"Dinner":    day.Dinner,
		} {
			if meal.Name == "" {
				return nil, fmt.Errorf("%s of %s has no name", slot, label)
			}
			if meal.Recipe.PrepTimeMins < 0 || meal.Recipe.CookTimeMins < 0 {
				return nil, fmt.Errorf("%s of %s has a negative prep or cook time", slot, label)
			}
		}
	}
	return generated, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
