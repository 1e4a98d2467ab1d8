// Package prompt assembles the system prompt and user instructions sent with
// each pairing request.
package prompt

import (
	"strings"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

const addendumSeparator = "\n\n"

// Inputs are the request facts the user suffix depends on.
type Inputs struct {
	Options     pairing.PairingOptions
	HasWineList bool
}

// Prompt is a built prompt. System is stable per task type; UserSuffix goes
// after all source material.
type Prompt struct {
	System     string
	UserSuffix string

	// Addenda names the fragments included in UserSuffix, in order.
	Addenda []string
}

// Build is a pure function of the task and inputs. Options should already
// have defaults applied.
func Build(task pairing.TaskType, in Inputs) Prompt {
	system, addenda := menuSystemPrompt, menuAddenda
	if task == pairing.TaskRecipe {
		system, addenda = recipeSystemPrompt, recipeAddenda
	}

	var (
		parts []string
		names []string
	)
	for _, a := range addenda {
		if !a.applies(in) {
			continue
		}
		parts = append(parts, a.render(in))
		names = append(names, a.name)
	}

	return Prompt{
		System:     system,
		UserSuffix: strings.Join(parts, addendumSeparator),
		Addenda:    names,
	}
}

// System returns the stable system prompt for a task.
func System(task pairing.TaskType) string {
	if task == pairing.TaskRecipe {
		return recipeSystemPrompt
	}
	return menuSystemPrompt
}
