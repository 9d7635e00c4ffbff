package github

import (
	"context"
	"strings"
	"time"

	"github.com/alleycatassetacquisitions/pdn/internal/source"
)

const (
	sshPrefix  = "git@github.com:"
	httpsInfix = "github.com/"
)

// ParseRemote extracts "owner/repo" from a GitHub remote URL in SSH
// (git@github.com:owner/repo.git) or HTTPS (https://github.com/owner/repo)
// form. ok is false for anything else.
func ParseRemote(url string) (repo string, ok bool) {
	url = strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(url, sshPrefix):
		repo = strings.TrimPrefix(url, sshPrefix)
	case strings.Contains(url, httpsInfix):
		repo = url[strings.Index(url, httpsInfix)+len(httpsInfix):]
	default:
		return "", false
	}
	repo = strings.TrimSuffix(strings.TrimSuffix(repo, "/"), ".git")
	if repo == "" {
		return "", false
	}
	return repo, true
}

// DetectRepo asks git for the origin remote of dir and parses it. Any
// failure, including an unrecognized remote, yields fallback.
func DetectRepo(ctx context.Context, r source.Runner, timeout time.Duration, git, dir, fallback string) string {
	res := source.Command(ctx, r, timeout, dir, git, "remote", "get-url", "origin")
	if !res.OK() {
		return fallback
	}
	if repo, ok := ParseRemote(string(res.Value)); ok {
		return repo
	}
	return fallback
}
