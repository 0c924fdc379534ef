// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package workflow

import "fmt"

// Condition is the policy deciding whether a job runs given the terminal
// states of its dependencies.
type Condition string

const (
	// OnSuccess runs the job only when every dependency succeeded. Default.
	OnSuccess Condition = "on_success"
	// OnFailure runs the job only when at least one dependency failed.
	OnFailure Condition = "on_failure"
	// Always runs the job regardless of dependency outcomes.
	Always Condition = "always"
)

// ParseCondition maps a document string onto a Condition. The empty string
// yields the OnSuccess default.
func ParseCondition(s string) (Condition, error) {
	switch Condition(s) {
	case "":
		return OnSuccess, nil
	case OnSuccess, OnFailure, Always:
		return Condition(s), nil
	}
	return "", fmt.Errorf("unknown condition %q: must be one of 'on_success', 'on_failure', 'always'", s)
}
