package github

import (
	"fmt"
	"strings"
)

// ParseRepository splits an "owner/repo" string as found in GITHUB_REPOSITORY.
func ParseRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q; expected owner/repo", s)
	}
	return owner, repo, nil
}
