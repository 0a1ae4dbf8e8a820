// Package workflow drives branch creation and switching: name validation,
// the prompt sequence a UI walks through, and the ordered git steps that
// carry out the final choice.
package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxBranchNameLength = 255

var branchNameRe = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)

// ValidationError rejects user input before any git command runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateBranchName checks a candidate name for a new branch.
func ValidateBranchName(name string, existing []string) error {
	switch {
	case name == "":
		return &ValidationError{Field: "branch name", Reason: "must not be empty"}
	case len(name) > MaxBranchNameLength:
		return &ValidationError{Field: "branch name", Reason: fmt.Sprintf("longer than %d characters", MaxBranchNameLength)}
	case !branchNameRe.MatchString(name):
		return &ValidationError{Field: "branch name", Reason: "only letters, digits, '_', '/' and '-' are allowed"}
	}
	for _, b := range existing {
		if b == name {
			return &ValidationError{Field: "branch name", Reason: fmt.Sprintf("branch %q already exists", name)}
		}
	}
	return nil
}

// ValidateBase accepts main and current only.
func ValidateBase(b Base) error {
	switch b {
	case BaseMain, BaseCurrent:
		return nil
	}
	return &ValidationError{Field: "base branch", Reason: fmt.Sprintf("%q is not one of main, current", b)}
}

// ValidateStashAction accepts leave, bring or no choice at all.
func ValidateStashAction(a StashAction) error {
	switch a {
	case StashNone, StashLeave, StashBring:
		return nil
	}
	return &ValidationError{Field: "stash action", Reason: fmt.Sprintf("%q is not one of leave, bring", a)}
}

// ValidateCommitMessage rejects blank messages.
func ValidateCommitMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return &ValidationError{Field: "commit message", Reason: "must not be empty"}
	}
	return nil
}

// FilterBranches returns the branches containing query, case-insensitively.
func FilterBranches(branches []string, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0, len(branches))
	for _, b := range branches {
		if q == "" || strings.Contains(strings.ToLower(b), q) {
			out = append(out, b)
		}
	}
	return out
}
