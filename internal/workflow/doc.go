// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package workflow defines the format-agnostic, in-memory representation of a
// workflow document: an ordered set of container jobs, their declared
// dependencies, run conditions, and step sequences.
//
// # Why a format-agnostic model?
//
// Workflow documents arrive in more than one concrete syntax (YAML is the
// native boot-time format, HCL is supported as an alternative). Every loader
// translates its syntax into this one model, so the graph builder and the
// execution coordinator never see a parser type. The model is pure data: it
// carries no behavior beyond environment layering helpers.
//
// # Lifecycle
//
// A Workflow is produced once per run by a Loader, validated by the graph
// builder, and read-only from that point on. Nothing in the execution path
// mutates it.
package workflow
