// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dmerr defines the error kinds the activation planner core
// recognizes, so callers can distinguish them with errors.Is.
package dmerr

import "errors"

var (
	// ErrOutOfSpace is returned when a target's formatted parameter string
	// would not fit in the kernel's fixed-size ioctl buffer.
	ErrOutOfSpace = errors.New("dmplanner: parameter string too large")

	// ErrMissingDependency indicates a pre_create name has no corresponding
	// layer in the index -- a graph-builder bug, never a user error.
	ErrMissingDependency = errors.New("dmplanner: missing dependency layer")

	// ErrCircularDependency is returned by the reconciler's cycle check.
	ErrCircularDependency = errors.New("dmplanner: circular dependency")

	// ErrMapperFailure wraps a failed mapper task; the device name and
	// action are included in the wrapping message.
	ErrMapperFailure = errors.New("dmplanner: mapper operation failed")

	// ErrScanFailure indicates the mapper device directory could not be read.
	ErrScanFailure = errors.New("dmplanner: mapper directory scan failed")

	// ErrRecursiveSnapshot is returned for a snapshot-of-snapshot LV, which
	// this planner (like its source) does not support.
	ErrRecursiveSnapshot = errors.New("dmplanner: recursive snapshots are not supported")
)
