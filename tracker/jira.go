package tracker

import (
	"context"
	"fmt"

	jira "github.com/andygrunwald/go-jira"
)

// Jira is the Gateway implementation backed by a Jira instance.
type Jira struct {
	client        *jira.Client
	estimateField string
}

// NewJira connects to a Jira instance with basic auth. estimateField is
// the custom field id holding story points.
func NewJira(baseURL, username, token, estimateField string) (*Jira, error) {
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: token,
	}
	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	return &Jira{client: client, estimateField: estimateField}, nil
}

// PushEstimate writes the estimate into the configured custom field.
func (j *Jira) PushEstimate(ctx context.Context, externalID string, estimate int) error {
	data := map[string]interface{}{
		"fields": map[string]interface{}{
			j.estimateField: estimate,
		},
	}
	if _, err := j.client.Issue.UpdateIssueWithContext(ctx, externalID, data); err != nil {
		return fmt.Errorf("update issue %s: %w", externalID, err)
	}
	return nil
}

// AddComment posts a comment on the issue.
func (j *Jira) AddComment(ctx context.Context, externalID, body string) error {
	comment := &jira.Comment{Body: body}
	if _, _, err := j.client.Issue.AddCommentWithContext(ctx, externalID, comment); err != nil {
		return fmt.Errorf("add comment to %s: %w", externalID, err)
	}
	return nil
}

// Search returns the issues matching a JQL query.
func (j *Jira) Search(ctx context.Context, jql string) ([]IssueRef, error) {
	issues, _, err := j.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", jql, err)
	}
	refs := make([]IssueRef, 0, len(issues))
	for _, issue := range issues {
		ref := IssueRef{Key: issue.Key}
		if issue.Fields != nil {
			ref.Summary = issue.Fields.Summary
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
