// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-dmplanner/builder/azure/common/client"

	"github.com/hashicorp/go-dmplanner/metadata"
)

// NewResolverFromConfig builds the Resolver a VG's cloud_pv block
// describes: an Azure client authenticated per cfg, identifying the
// current VM, ready to attach cfg's cloud-backed PVs on demand. A nil cfg
// returns LocalResolver{}, matching a VG with no cloud_pv block at all.
func NewResolverFromConfig(ctx context.Context, cfg *metadata.CloudPVConfig) (Resolver, error) {
	if cfg == nil {
		return LocalResolver{}, nil
	}

	clientSecret := cfg.ClientSecret
	if clientSecret == "" && cfg.VaultName != "" {
		secret, err := FetchSecret(ctx, SecretRef{
			VaultName:  cfg.VaultName,
			SecretName: cfg.SecretName,
			Version:    cfg.SecretVersion,
			TenantID:   cfg.TenantID,
			ClientID:   cfg.ClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("cloudpv: fetching client secret: %w", err)
		}
		clientSecret = secret
	}

	azCfg := client.Config{
		SubscriptionID: cfg.SubscriptionID,
		TenantID:       cfg.TenantID,
		ClientID:       cfg.ClientID,
		ClientSecret:   clientSecret,
	}
	if err := azCfg.SetDefaultValues(); err != nil {
		return nil, fmt.Errorf("cloudpv: %w", err)
	}
	if err := azCfg.FillParameters(); err != nil {
		return nil, fmt.Errorf("cloudpv: %w", err)
	}

	azcli, err := client.New(azCfg, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("cloudpv: building Azure client: %w", err)
	}

	vmcli, err := NewVMClientSet(azcli)
	if err != nil {
		return nil, fmt.Errorf("cloudpv: identifying current VM: %w", err)
	}

	return NewAzureResolver(NewAttacher(vmcli)), nil
}
