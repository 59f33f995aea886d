package domain

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionPost    Action = "post"
	ActionComment Action = "comment"
	ActionReact   Action = "react"
)

func (a Action) Known() bool {
	switch a {
	case ActionPost, ActionComment, ActionReact:
		return true
	}
	return false
}

// Job is one requested action, immutable once accepted. Its JSON form is the
// single positional argument handed to the action process.
type Job struct {
	Action   Action `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PostID   string `json:"post_id,omitempty"`
	Content  string `json:"content,omitempty"`
	PostURL  string `json:"post_url,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Reaction string `json:"reaction,omitempty"`
}

// CorrelationID is the external id used to mirror the outcome, if any.
func (j Job) CorrelationID() string { return j.PostID }

// Identity is the key of the persistent browsing profile.
func (j Job) Identity() string { return strings.ToLower(strings.TrimSpace(j.Email)) }

// Validate checks the fields every worker needs. Unknown action names are not
// rejected here: the action process reports them.
func (j Job) Validate() error {
	var missing []string
	if j.Action == "" {
		missing = append(missing, "action")
	}
	if j.Email == "" {
		missing = append(missing, "email")
	}
	if j.Password == "" {
		missing = append(missing, "password")
	}
	switch j.Action {
	case ActionPost:
		if j.Content == "" {
			missing = append(missing, "content")
		}
	case ActionComment:
		if j.PostURL == "" {
			missing = append(missing, "post_url")
		}
		if j.Comment == "" {
			missing = append(missing, "comment")
		}
	case ActionReact:
		if j.PostURL == "" {
			missing = append(missing, "post_url")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedJob, strings.Join(missing, ", "))
	}
	return nil
}

// Reaction names the reaction to apply, defaulting to like.
func (j Job) ReactionOrDefault() string {
	if j.Reaction == "" {
		return "like"
	}
	return j.Reaction
}
