// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHCL(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vg.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewHCLStoreParsesLinearVG(t *testing.T) {
	path := writeHCL(t, `
volume_group "vg0" {
  extent_size = 8192

  physical_volume "sda" {
    dev      = "/dev/sda"
    pe_start = 384
  }

  logical_volume "lvol0" {
    size = 8192

    segment {
      le  = 0
      len = 1

      area {
        pv = "sda"
        pe = 0
      }
    }
  }
}
`)

	store, err := NewHCLStore(path)
	require.NoError(t, err)

	vg, err := store.VolumeGroup("vg0")
	require.NoError(t, err)
	assert.Equal(t, "vg0", vg.Name)
	assert.Equal(t, uint64(8192), vg.ExtentSize)
	require.Len(t, vg.PVs, 1)
	assert.Equal(t, "/dev/sda", vg.PVs[0].Dev.Name)
	assert.Nil(t, vg.CloudPV)

	lv := vg.LV("lvol0")
	require.NotNil(t, lv)
	require.Len(t, lv.Segments, 1)
	require.Len(t, lv.Segments[0].Areas, 1)
	assert.Same(t, vg.PVs[0], lv.Segments[0].Areas[0].PV)
}

func TestNewHCLStoreResolvesSnapshotRelation(t *testing.T) {
	path := writeHCL(t, `
volume_group "vg0" {
  extent_size = 8192

  physical_volume "sda" {
    dev      = "/dev/sda"
    pe_start = 0
  }

  logical_volume "orig" {
    size = 1000
    segment {
      le  = 0
      len = 1
      area {
        pv = "sda"
        pe = 0
      }
    }
  }

  logical_volume "snap_cow" {
    size = 200
    segment {
      le  = 0
      len = 1
      area {
        pv = "sda"
        pe = 10
      }
    }
  }

  logical_volume "snap" {
    size = 0
    snapshot {
      origin     = "orig"
      cow        = "snap_cow"
      chunk_size = 16
    }
  }
}
`)

	store, err := NewHCLStore(path)
	require.NoError(t, err)

	vg, err := store.VolumeGroup("vg0")
	require.NoError(t, err)

	snap := vg.LV("snap")
	require.NotNil(t, snap)
	rel := snap.FindCow()
	require.NotNil(t, rel)
	assert.Same(t, vg.LV("orig"), rel.Origin)
	assert.Same(t, vg.LV("snap_cow"), rel.Cow)
	assert.Equal(t, uint64(16), rel.ChunkSize)
}

func TestNewHCLStoreDecodesCloudPVBlock(t *testing.T) {
	path := writeHCL(t, `
volume_group "vg0" {
  extent_size = 8192

  cloud_pv {
    subscription_id = "sub1"
    tenant_id        = "tenant1"
    client_id        = "client1"
    client_secret    = "s3cr3t"
  }

  physical_volume "sda" {
    dev      = "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.Compute/disks/disk0"
    pe_start = 0
  }
}
`)

	store, err := NewHCLStore(path)
	require.NoError(t, err)

	vg, err := store.VolumeGroup("vg0")
	require.NoError(t, err)
	require.NotNil(t, vg.CloudPV)
	assert.Equal(t, "sub1", vg.CloudPV.SubscriptionID)
	assert.Equal(t, "tenant1", vg.CloudPV.TenantID)
	assert.Equal(t, "client1", vg.CloudPV.ClientID)
	assert.Equal(t, "s3cr3t", vg.CloudPV.ClientSecret)
}

func TestNewHCLStoreUnknownAreaPVFails(t *testing.T) {
	path := writeHCL(t, `
volume_group "vg0" {
  extent_size = 8192

  logical_volume "lvol0" {
    size = 8192
    segment {
      le  = 0
      len = 1
      area {
        pv = "ghost"
        pe = 0
      }
    }
  }
}
`)

	_, err := NewHCLStore(path)
	assert.Error(t, err)
}

func TestNewHCLStoreUnknownVGNameFails(t *testing.T) {
	path := writeHCL(t, `
volume_group "vg0" {
  extent_size = 8192
}
`)

	store, err := NewHCLStore(path)
	require.NoError(t, err)

	_, err = store.VolumeGroup("ghost")
	assert.Error(t, err)
}
