// Copyright IBM Corp. 2013, 2025
// SPDX-License-Identifier: MPL-2.0

package client

import (
	"time"

	"github.com/hashicorp/go-azure-sdk/resource-manager/compute/2022-03-01/virtualmachines"
)

var _ AzureClientSet = &AzureClientSetMock{}

// AzureClientSetMock provides a generic mock for AzureClientSet, trimmed
// to the same VM/metadata surface AzureClientSet itself was trimmed to.
type AzureClientSetMock struct {
	VirtualMachinesClientMock virtualmachines.VirtualMachinesClient
	MetadataClientMock        MetadataClientAPI
	SubscriptionIDMock        string
	PollingDurationMock       time.Duration
}

// VirtualMachinesClient returns a VirtualMachinesClient
func (m *AzureClientSetMock) VirtualMachinesClient() virtualmachines.VirtualMachinesClient {
	return m.VirtualMachinesClientMock
}

// MetadataClient returns a MetadataClient
func (m *AzureClientSetMock) MetadataClient() MetadataClientAPI {
	return m.MetadataClientMock
}

// SubscriptionID returns SubscriptionIDMock
func (m *AzureClientSetMock) SubscriptionID() string {
	return m.SubscriptionIDMock
}

func (m *AzureClientSetMock) PollingDelay() time.Duration {
	return m.PollingDurationMock
}
