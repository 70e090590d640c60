// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"context"
	"errors"

	"github.com/hashicorp/go-azure-helpers/resourcemanager/commonids"
	"github.com/hashicorp/go-azure-sdk/resource-manager/compute/2022-03-02/disks"
	hashiVMSDK "github.com/hashicorp/go-azure-sdk/resource-manager/compute/2022-03-01/virtualmachines"

	"github.com/hashicorp/go-dmplanner/builder/azure/common/client"

	"github.com/hashicorp/go-dmplanner/internal/dmlog"
)

// clientSetAdapter narrows a client.AzureClientSet (this planner's
// existing Azure wiring, shared with the config loader) down to the VM
// read/update operations cloudpv needs, caching the VM identity the way
// diskattacher.go's diskAttacher caches it in da.vm.
type clientSetAdapter struct {
	azcli             client.AzureClientSet
	resourceGroupName string
	vmName            string
}

// NewVMClientSet adapts azcli into the VMClientSet Attacher consumes,
// identifying the current VM via its metadata service info.
func NewVMClientSet(azcli client.AzureClientSet) (VMClientSet, error) {
	info, err := azcli.MetadataClient().GetComputeInfo()
	if err != nil {
		return nil, err
	}
	dmlog.Printf("resolved current VM %q under %s", info.Name, SubscriptionScope(azcli.SubscriptionID()))
	return &clientSetAdapter{azcli: azcli, resourceGroupName: info.ResourceGroupName, vmName: info.Name}, nil
}

func (a *clientSetAdapter) SubscriptionID() string { return a.azcli.SubscriptionID() }

func (a *clientSetAdapter) vmID() hashiVMSDK.VirtualMachineId {
	return hashiVMSDK.NewVirtualMachineID(a.azcli.SubscriptionID(), a.resourceGroupName, a.vmName)
}

func (a *clientSetAdapter) ThisVM(ctx context.Context) (hashiVMSDK.VirtualMachine, error) {
	resp, err := a.azcli.VirtualMachinesClient().Get(ctx, a.vmID(), hashiVMSDK.DefaultGetOperationOptions())
	if err != nil {
		return hashiVMSDK.VirtualMachine{}, err
	}
	if resp.Model == nil {
		return hashiVMSDK.VirtualMachine{}, errors.New("cloudpv: azure API returned no VM model")
	}
	return *resp.Model, nil
}

func (a *clientSetAdapter) UpdateVM(ctx context.Context, vm hashiVMSDK.VirtualMachine) error {
	vm.Resources = nil
	_, err := a.azcli.VirtualMachinesClient().CreateOrUpdate(ctx, a.vmID(), vm)
	return err
}

// ParseDiskResourceID validates that id names a Microsoft.Compute/disks
// resource and extracts its subscription/resource group/disk name,
// using the disks client's own typed ID parser the same way
// disks.NewDiskID constructs one on the write path in
// step_create_new_diskset.go.
func ParseDiskResourceID(id string) (subscriptionID, resourceGroup, diskName string, err error) {
	parsed, err := disks.ParseDiskID(id)
	if err != nil {
		return "", "", "", err
	}
	return parsed.SubscriptionId, parsed.ResourceGroupName, parsed.DiskName, nil
}

// SubscriptionScope returns subscriptionID's canonical ARM scope string
// ("/subscriptions/<id>"), using go-azure-helpers' commonids the same way
// config.go builds a typed subscription ID before calling the
// Subscriptions API.
func SubscriptionScope(subscriptionID string) string {
	return commonids.NewSubscriptionID(subscriptionID).ID()
}
