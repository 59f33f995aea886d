package actions

import "fmt"

const (
	selUsername    = "#username"
	selPassword    = "#password"
	selLoginSubmit = `[type="submit"]`

	selStartPost  = `//button[contains(., 'Start a post') or contains(@aria-label, 'Start a post')]`
	selPostEditor = `//*[@role='textbox' and contains(@aria-label, 'Text editor for creating')]`
	selPostSubmit = `//button[normalize-space(.)='Post']`

	selCommentBox      = ".comments-comment-box__form-container"
	selCommentFallback = `//button[contains(., 'Comment')]`
	selCommentEditor   = ".ql-editor"
	selCommentSubmit   = "button.comments-comment-box__submit-button"

	selReactTrigger = "button.react-button__trigger"
)

// reactionLabels maps reaction names to the accessible label of their
// control in the reaction picker.
var reactionLabels = map[string]string{
	"celebrate":  "PRAISE",
	"support":    "EMPATHY",
	"love":       "APPRECIATION",
	"insightful": "INTEREST",
	"funny":      "ENTERTAINMENT",
}

// ReactionLabel returns the picker label for reaction, LIKE when unknown.
func ReactionLabel(reaction string) string {
	if l, ok := reactionLabels[reaction]; ok {
		return l
	}
	return "LIKE"
}

func reactionSelector(label string) string {
	return fmt.Sprintf("button[aria-label='%s']", label)
}
