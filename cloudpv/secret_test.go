// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudpv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialUsesClientSecretWhenFullySpecified(t *testing.T) {
	cred, err := Credential(SecretRef{
		VaultName:    "myvault",
		TenantID:     "tenant0",
		ClientID:     "client0",
		ClientSecret: "s3cr3t",
	})
	require.NoError(t, err)
	assert.NotNil(t, cred)
}

func TestCredentialFallsBackToDefaultWhenPartiallySpecified(t *testing.T) {
	// Only ClientID set: not enough for a client secret credential, so
	// Credential must fall through to DefaultAzureCredential rather than
	// erroring out on the missing fields.
	cred, err := Credential(SecretRef{VaultName: "myvault", ClientID: "client0"})
	require.NoError(t, err)
	assert.NotNil(t, cred)
}
