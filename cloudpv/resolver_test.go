// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"context"
	"testing"

	"github.com/hashicorp/go-azure-sdk/resource-manager/compute/2022-03-02/disks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalResolverPassesThroughUnchanged(t *testing.T) {
	dev, err := LocalResolver{}.Resolve(context.Background(), "/dev/sdb1")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb1", dev)
}

func TestAzureResolverPassesThroughNonResourceID(t *testing.T) {
	r := NewAzureResolver(NewAttacher(&fakeVMClientSet{sub: "sub1"}))

	dev, err := r.Resolve(context.Background(), "/dev/sdb1")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb1", dev)
}

func TestAzureResolverRejectsMalformedResourceID(t *testing.T) {
	r := NewAzureResolver(NewAttacher(&fakeVMClientSet{sub: "sub1"}))

	_, err := r.Resolve(context.Background(), "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/vm0")
	assert.Error(t, err)
}

func TestAzureResolverAttachesThenWaitsForDevice(t *testing.T) {
	id := disks.NewDiskID("sub1", "rg1", "disk0").ID()
	azcli := &fakeVMClientSet{sub: "sub1"}
	r := NewAzureResolver(NewAttacher(azcli))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx2, cancel2 := context.WithTimeout(ctx, 0)
	defer cancel2()

	_, err := r.Resolve(ctx2, id)
	assert.Error(t, err, "WaitForDevice must eventually surface the context deadline since no udev symlink exists in this test environment")
}
