// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package client

// getSubscriptionFromIMDS resolves the subscription ID of the VM this
// process is running on from the instance metadata service, the same
// endpoint DefaultMetadataClient.GetComputeInfo queries. It is a package
// variable, not a plain function, so config_retriever_test.go can stub it
// out without reaching the network.
var getSubscriptionFromIMDS = func() (string, error) {
	info, err := DefaultMetadataClient.GetComputeInfo()
	if err != nil {
		return "", err
	}
	return info.SubscriptionID, nil
}
