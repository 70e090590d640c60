// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package client

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/packer-plugin-sdk/useragent"

	"github.com/Azure/go-autorest/autorest"
	"github.com/hashicorp/go-azure-sdk/resource-manager/compute/2022-03-01/virtualmachines"
	"github.com/hashicorp/go-azure-sdk/sdk/auth"
	authWrapper "github.com/hashicorp/go-azure-sdk/sdk/auth/autorest"
)

// clientVersion tags every request this client set issues, the way the
// teacher's plugin build tagged requests with its own release version;
// this planner has no plugin version concept, so it carries its own
// fixed identifier instead.
const clientVersion = "go-dmplanner/1.0"

// AzureClientSet is trimmed to the VM read/update and instance-metadata
// surface cloudpv actually calls -- attaching/detaching a managed disk on
// the running VM. The teacher's AzureClientSet additionally exposed
// Disks/Snapshots/Images/GalleryImages/GalleryImageVersions/
// VirtualMachineImages clients for its image-build pipeline; none of
// those are reachable from volume group activation, so they are not
// carried here.
type AzureClientSet interface {
	MetadataClient() MetadataClientAPI

	VirtualMachinesClient() virtualmachines.VirtualMachinesClient

	// SubscriptionID returns the subscription ID that this client set was created for
	SubscriptionID() string

	PollingDelay() time.Duration
}

var _ AzureClientSet = &azureClientSet{}

type azureClientSet struct {
	sender                  autorest.Sender
	authorizer              auth.Authorizer
	subscriptionID          string
	pollingDelay            time.Duration
	ResourceManagerEndpoint string
}

func New(c Config, say func(string)) (AzureClientSet, error) {
	return new(c, say)
}

func new(c Config, say func(string)) (*azureClientSet, error) {
	// Pass in relevant auth information for hashicorp/go-azure-sdk
	authOptions := AzureAuthOptions{
		AuthType:       c.AuthType(),
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
		ClientJWT:      c.ClientJWT,
		ClientCertPath: c.ClientCertPath,
		TenantID:       c.TenantID,
		SubscriptionID: c.SubscriptionID,
	}
	cloudEnv := c.cloudEnvironment
	resourceManagerEndpoint, _ := cloudEnv.ResourceManager.Endpoint()
	authorizer, err := BuildResourceManagerAuthorizer(context.TODO(), authOptions, *cloudEnv)
	if err != nil {
		return nil, err
	}
	return &azureClientSet{
		authorizer:              authorizer,
		subscriptionID:          c.SubscriptionID,
		sender:                  http.DefaultClient,
		pollingDelay:            time.Second,
		ResourceManagerEndpoint: *resourceManagerEndpoint,
	}, nil
}

func (s azureClientSet) SubscriptionID() string {
	return s.subscriptionID
}

func (s azureClientSet) PollingDelay() time.Duration {
	return s.pollingDelay
}

func (s azureClientSet) configureTrack1Client(c *autorest.Client) {
	err := c.AddToUserAgent(useragent.String(clientVersion))
	if err != nil {
		log.Printf("Error appending client version to user agent.")
	}
	c.Authorizer = authWrapper.AutorestAuthorizer(s.authorizer)
	c.Sender = s.sender
}

func (s azureClientSet) MetadataClient() MetadataClientAPI {
	return metadataClient{
		s.sender,
		useragent.String(clientVersion),
	}
}

func (s azureClientSet) VirtualMachinesClient() virtualmachines.VirtualMachinesClient {
	c := virtualmachines.NewVirtualMachinesClientWithBaseURI(s.ResourceManagerEndpoint)
	s.configureTrack1Client(&c.Client)
	c.Client.PollingDelay = s.pollingDelay
	return c
}
