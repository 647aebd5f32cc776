// Package runinfo collects CI/run metadata for result summaries.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

var githubPullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

// BasicInfo captures CI/run metadata attached to result dumps.
type BasicInfo struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Workflow    string `json:"workflow,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	Actor       string `json:"actor,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

// FromEnv builds run metadata from environment variables. Explicit
// VMC_CI_* values take precedence over provider defaults. It returns
// nil outside any CI environment.
func FromEnv() *BasicInfo {
	info := detectBase()
	applyOverrides(&info)
	normalize(&info)
	if info == (BasicInfo{}) {
		return nil
	}
	return &info
}

func detectBase() BasicInfo {
	info := BasicInfo{}
	if isTruthy(env("GITHUB_ACTIONS")) {
		info.CI = true
		info.Provider = "github_actions"
		info.Repository = env("GITHUB_REPOSITORY")
		info.Branch = envFirst("GITHUB_HEAD_REF", "GITHUB_REF_NAME")
		info.Commit = env("GITHUB_SHA")
		info.Workflow = env("GITHUB_WORKFLOW")
		info.RunID = env("GITHUB_RUN_ID")
		info.Actor = env("GITHUB_ACTOR")
		info.PullRequest = githubPullRequestFromRef(env("GITHUB_REF"))
		serverURL := env("GITHUB_SERVER_URL")
		if serverURL == "" {
			serverURL = "https://github.com"
		}
		if info.Repository != "" && info.RunID != "" {
			info.BuildURL = strings.TrimRight(serverURL, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
		}
		return info
	}
	if isTruthy(env("CI")) {
		info.CI = true
		info.Provider = "generic"
		info.Branch = envFirst("CI_COMMIT_REF_NAME", "BRANCH_NAME", "GIT_BRANCH")
		info.Commit = envFirst("CI_COMMIT_SHA", "GIT_COMMIT")
		info.RunID = envFirst("CI_PIPELINE_ID", "BUILD_ID")
		info.BuildURL = envFirst("CI_JOB_URL", "BUILD_URL")
	}
	return info
}

func applyOverrides(info *BasicInfo) {
	overrides := map[string]*string{
		"VMC_CI_PROVIDER":     &info.Provider,
		"VMC_CI_REPOSITORY":   &info.Repository,
		"VMC_CI_BRANCH":       &info.Branch,
		"VMC_CI_COMMIT":       &info.Commit,
		"VMC_CI_WORKFLOW":     &info.Workflow,
		"VMC_CI_RUN_ID":       &info.RunID,
		"VMC_CI_PULL_REQUEST": &info.PullRequest,
		"VMC_CI_ACTOR":        &info.Actor,
		"VMC_CI_BUILD_URL":    &info.BuildURL,
	}
	overridden := false
	for key, dst := range overrides {
		if v := env(key); v != "" {
			*dst = v
			overridden = true
		}
	}
	if v, ok := os.LookupEnv("VMC_CI"); ok && strings.TrimSpace(v) != "" {
		info.CI = isTruthy(v)
	} else if overridden {
		info.CI = true
	}
}

func normalize(info *BasicInfo) {
	info.Provider = strings.ToLower(strings.TrimSpace(info.Provider))
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(info.Branch), "refs/heads/"), "origin/")
	if info.CI && info.Provider == "" {
		info.Provider = "generic"
	}
}

func githubPullRequestFromRef(ref string) string {
	m := githubPullRefPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if value := env(key); value != "" {
			return value
		}
	}
	return ""
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
