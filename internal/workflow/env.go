// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package workflow

import "dario.cat/mergo"

// MergeEnv layers environment maps left to right, later maps overriding
// earlier ones. The inputs are never mutated. Nil maps are allowed.
//
// The layering order used by executors is: workflow env, then the job's
// container env, then the step's env, then runner-injected variables.
func MergeEnv(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		// mergo never fails for flat map[string]string inputs.
		_ = mergo.Merge(&merged, layer, mergo.WithOverride)
	}
	return merged
}
