package hint

import (
	"fmt"
	"strings"

	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/puzzle"
)

const maxChars = 100

func hintPrompt(s puzzle.State, plan []puzzle.Step) string {
	var b strings.Builder
	b.WriteString("You are an assistant for the Lake Crossing Game. The current game state is:\n")
	b.WriteString(s.Describe())
	b.WriteString("\n\n")
	if len(plan) > 0 {
		b.WriteString("Based on this optimal solution sequence:\n")
		side := core.Left
		for i, st := range plan {
			fmt.Fprintf(&b, "%d. %s\n", i+1, st.Describe(side))
			side = side.Opposite()
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `Provide a strategic hint that:
1. Is concise (max %d characters)
2. Guides towards the next optimal move
3. Maintains safety (never more carnivores than priests)
4. Focuses on progress towards the goal

Hint:`, maxChars)
	return b.String()
}

func narrationPrompt(s puzzle.State) string {
	return fmt.Sprintf(`You are a creative narrator for the Lake Crossing Game. The current game state is:

%s

Provide a brief, engaging narration about the current situation. Your narration should:
1. Be very concise (max %d characters)
2. Focus on the tension between the carnivores and priests
3. Avoid repetitive phrases and questioning tones
4. Be varied in tone (sometimes humorous, sometimes tense)
5. Portray the carnivores as predators eager to outnumber the priests

Narration (max %d characters):`, s.Describe(), maxChars, maxChars)
}

// clip trims generated text to one paragraph of at most maxChars runes.
func clip(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	r := []rune(text)
	if len(r) > maxChars {
		text = strings.TrimSpace(string(r[:maxChars-3])) + "..."
	}
	return text
}
