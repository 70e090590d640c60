// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !linux && !freebsd

package cloudpv

import "context"

func (a *Attacher) WaitForDevice(ctx context.Context, lun int64) (string, error) {
	panic("cloudpv.Attacher does not work on this platform")
}
