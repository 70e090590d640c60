// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/keyvault/azsecrets"

	"github.com/hashicorp/go-dmplanner/internal/dmlog"
)

// SecretRef names a single Key Vault secret, used when a VG's cloud_pv
// config authenticates via a stored service-principal secret instead of
// an inline credential or managed identity -- mirrors
// datasource/keyvaultsecret's VaultName/SecretName/Version fields.
type SecretRef struct {
	VaultName  string
	SecretName string
	Version    string

	TenantID     string
	ClientID     string
	ClientSecret string
}

// Credential builds an azcore.TokenCredential for r, using a client
// secret credential when TenantID/ClientID/ClientSecret are all set, and
// DefaultAzureCredential (environment, managed identity, Azure CLI)
// otherwise -- the same branch keyvaultsecret's Datasource.Execute takes.
func Credential(r SecretRef) (azcore.TokenCredential, error) {
	if r.TenantID != "" && r.ClientID != "" && r.ClientSecret != "" {
		dmlog.Printf("using client secret credential for vault %q", r.VaultName)
		return azidentity.NewClientSecretCredential(r.TenantID, r.ClientID, r.ClientSecret, nil)
	}
	dmlog.Printf("using default Azure credential for vault %q", r.VaultName)
	return azidentity.NewDefaultAzureCredential(nil)
}

// FetchSecret retrieves r's secret value from Key Vault, used to obtain
// the service-principal secret the planner's own VMClientSet
// authenticates with when it is not supplied inline.
func FetchSecret(ctx context.Context, r SecretRef) (string, error) {
	cred, err := Credential(r)
	if err != nil {
		return "", fmt.Errorf("cloudpv: obtaining credential for vault %q: %w", r.VaultName, err)
	}

	vaultURI := fmt.Sprintf("https://%s.vault.azure.net", r.VaultName)
	client, err := azsecrets.NewClient(vaultURI, cred, nil)
	if err != nil {
		return "", fmt.Errorf("cloudpv: creating key vault client for %q: %w", r.VaultName, err)
	}

	resp, err := client.GetSecret(ctx, r.SecretName, r.Version, nil)
	if err != nil {
		return "", fmt.Errorf("cloudpv: fetching secret %q from vault %q: %w", r.SecretName, r.VaultName, err)
	}
	if resp.Value == nil {
		body, _ := json.Marshal(resp.SecretBundle)
		return "", fmt.Errorf("cloudpv: secret %q in vault %q has no value (%s)", r.SecretName, r.VaultName, body)
	}
	return *resp.Value, nil
}
