package github

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Issue and pull request states as reported by gh.
const (
	StateOpen   = "OPEN"
	StateClosed = "CLOSED"
	StateMerged = "MERGED"
)

const (
	unassigned    = "unassigned"
	unknownAuthor = "unknown"
)

var errNotArray = errors.New("github: expected a JSON array")

// Issue is one element of `gh issue list --json`.
type Issue struct {
	Number    string
	Title     string
	State     string
	CreatedAt string
	// Assignee is the login of the first assignee, or "unassigned".
	Assignee string
}

// PullRequest is one element of `gh pr list --json`.
type PullRequest struct {
	Number    string
	Title     string
	State     string
	Author    string
	Additions int64
	Deletions int64
}

// Changes returns additions plus deletions.
func (p PullRequest) Changes() int64 { return p.Additions + p.Deletions }

// Issues decodes a gh issue listing. Elements are decoded field by field; an
// element that is not an object is dropped without affecting the others.
type Issues []Issue

func (is *Issues) UnmarshalJSON(data []byte) error {
	elems, err := array(data)
	if err != nil {
		return err
	}
	out := make(Issues, 0, len(elems))
	for _, e := range elems {
		f := fields(e)
		if f == nil {
			continue
		}
		out = append(out, Issue{
			Number:    number(f["number"]),
			Title:     str(f["title"]),
			State:     str(f["state"]),
			CreatedAt: str(f["createdAt"]),
			Assignee:  firstLogin(f["assignees"]),
		})
	}
	*is = out
	return nil
}

// PullRequests decodes a gh pr listing with the same leniency as Issues.
type PullRequests []PullRequest

func (ps *PullRequests) UnmarshalJSON(data []byte) error {
	elems, err := array(data)
	if err != nil {
		return err
	}
	out := make(PullRequests, 0, len(elems))
	for _, e := range elems {
		f := fields(e)
		if f == nil {
			continue
		}
		out = append(out, PullRequest{
			Number:    number(f["number"]),
			Title:     str(f["title"]),
			State:     str(f["state"]),
			Author:    login(f["author"], unknownAuthor),
			Additions: count(f["additions"]),
			Deletions: count(f["deletions"]),
		})
	}
	*ps = out
	return nil
}

// array rejects null and non-array documents.
func array(data []byte) ([]json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, errNotArray
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, errNotArray
	}
	return elems, nil
}

func fields(data json.RawMessage) map[string]json.RawMessage {
	var f map[string]json.RawMessage
	if json.Unmarshal(data, &f) != nil {
		return nil
	}
	return f
}

func str(raw json.RawMessage) string {
	var s string
	if raw == nil || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// number renders an integer (or string) issue number as its literal.
func number(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return str(raw)
}

// count returns a non-negative integer member, 0 for anything else.
func count(raw json.RawMessage) int64 {
	var n json.Number
	if raw == nil || json.Unmarshal(raw, &n) != nil {
		return 0
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func login(raw json.RawMessage, def string) string {
	var u struct {
		Login string `json:"login"`
	}
	if raw == nil || json.Unmarshal(raw, &u) != nil || u.Login == "" {
		return def
	}
	return u.Login
}

func firstLogin(raw json.RawMessage) string {
	var users []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &users) != nil || len(users) == 0 {
		return unassigned
	}
	return login(users[0], unassigned)
}
