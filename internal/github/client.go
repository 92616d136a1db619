package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v60/github"
)

// Client wraps the GitHub API for release operations on one repository.
type Client struct {
	gh    *gh.Client
	owner string
	repo  string
}

// New creates a GitHub client with the given token for repository "owner/repo".
func New(token, repository string) (*Client, error) {
	owner, repo, err := ParseRepository(repository)
	if err != nil {
		return nil, err
	}
	return newWithClient(gh.NewClient(&http.Client{}).WithAuthToken(token), owner, repo), nil
}

// newWithClient creates a Client with an injected GitHub client (for testing).
func newWithClient(ghClient *gh.Client, owner, repo string) *Client {
	return &Client{gh: ghClient, owner: owner, repo: repo}
}

// PublishNote sets body as the description of the release tagged tag,
// creating the release if the tag has none yet.
func (c *Client) PublishNote(ctx context.Context, tag, title, body string) error {
	release, _, err := c.gh.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if isNotFound(err) {
		_, _, err = c.gh.Repositories.CreateRelease(ctx, c.owner, c.repo, &gh.RepositoryRelease{
			TagName: gh.String(tag),
			Name:    gh.String(title),
			Body:    gh.String(body),
		})
		if err != nil {
			return fmt.Errorf("creating release %s for %s/%s: %w", tag, c.owner, c.repo, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting release %s for %s/%s: %w", tag, c.owner, c.repo, err)
	}

	_, _, err = c.gh.Repositories.EditRelease(ctx, c.owner, c.repo, release.GetID(), &gh.RepositoryRelease{
		Body: gh.String(body),
	})
	if err != nil {
		return fmt.Errorf("updating release %s for %s/%s: %w", tag, c.owner, c.repo, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var resp *gh.ErrorResponse
	return errors.As(err, &resp) && resp.Response != nil && resp.Response.StatusCode == http.StatusNotFound
}
