package engage

import (
	"strings"

	"aireplay/internal/storage"
)

// promptContext carries the values available to prompt templates.
type promptContext struct {
	Now            string
	LastUser       string
	LastAI         string
	ConversationID string
}

// expandPrompt substitutes the closed placeholder set. Unknown placeholders
// pass through untouched; templates are plain text, never evaluated.
func expandPrompt(tpl string, pc promptContext) string {
	r := strings.NewReplacer(
		"{now}", pc.Now,
		"{last_user}", pc.LastUser,
		"{last_ai}", pc.LastAI,
		"{umo}", pc.ConversationID,
	)
	return r.Replace(tpl)
}

// pickPrompt selects one template uniformly at random. ok is false when the
// list is empty, which tells the dispatcher to let the model continue the
// conversation naturally.
func pickPrompt(prompts []string, intn func(int) int) (string, bool) {
	if len(prompts) == 0 {
		return "", false
	}
	return prompts[intn(len(prompts))], true
}

// lastTurns returns the most recent user and assistant turn contents.
func lastTurns(history []storage.Turn) (lastUser, lastAI string) {
	for i := len(history) - 1; i >= 0; i-- {
		switch history[i].Role {
		case "user":
			if lastUser == "" {
				lastUser = history[i].Content
			}
		case "assistant":
			if lastAI == "" {
				lastAI = history[i].Content
			}
		}
		if lastUser != "" && lastAI != "" {
			break
		}
	}
	return lastUser, lastAI
}
