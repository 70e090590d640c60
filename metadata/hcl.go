// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/mitchellh/mapstructure"
)

// rawConfig mirrors the HCL schema for a single volume group. Decoding
// happens in two passes, the way generated hcl2spec structs are decoded
// and then squashed into a plain Go config: gohcl (via
// hclsimple) walks the HCL body into these intermediate structs, and
// mapstructure.Decode then copies the scalar fields into the public
// metadata types while this package resolves name references (PV, origin,
// cow) into pointers by hand.
type rawConfig struct {
	VG rawVolumeGroup `hcl:"volume_group,block"`
}

type rawVolumeGroup struct {
	Name       string        `hcl:"name,label" mapstructure:"name"`
	ExtentSize uint64        `hcl:"extent_size" mapstructure:"extent_size"`
	PVs        []rawPV       `hcl:"physical_volume,block"`
	LVs        []rawLV       `hcl:"logical_volume,block"`
	CloudPV    *rawCloudPV   `hcl:"cloud_pv,block"`
}

// rawCloudPV is the optional cloud_pv block naming the Azure identity used
// to attach cloud-backed physical volumes before activation. Absent
// entirely, every PV in the VG is treated as already-local.
type rawCloudPV struct {
	SubscriptionID string `hcl:"subscription_id" mapstructure:"subscription_id"`
	TenantID       string `hcl:"tenant_id,optional" mapstructure:"tenant_id"`
	ClientID       string `hcl:"client_id,optional" mapstructure:"client_id"`
	ClientSecret   string `hcl:"client_secret,optional" mapstructure:"client_secret"`
	VaultName      string `hcl:"vault_name,optional" mapstructure:"vault_name"`
	SecretName     string `hcl:"secret_name,optional" mapstructure:"secret_name"`
	SecretVersion  string `hcl:"secret_version,optional" mapstructure:"secret_version"`
}

type rawPV struct {
	Name    string `hcl:"name,label" mapstructure:"name"`
	Dev     string `hcl:"dev" mapstructure:"dev"`
	PEStart uint64 `hcl:"pe_start" mapstructure:"pe_start"`
}

type rawLV struct {
	Name     string        `hcl:"name,label" mapstructure:"name"`
	Size     uint64        `hcl:"size" mapstructure:"size"`
	Segments []rawSegment  `hcl:"segment,block"`
	Snapshot *rawSnapshot  `hcl:"snapshot,block"`
}

type rawSegment struct {
	LE         uint64    `hcl:"le" mapstructure:"le"`
	Len        uint64    `hcl:"len" mapstructure:"len"`
	StripeSize uint64    `hcl:"stripe_size,optional" mapstructure:"stripe_size"`
	Areas      []rawArea `hcl:"area,block"`
}

type rawArea struct {
	PV string `hcl:"pv,optional" mapstructure:"pv"`
	PE uint64 `hcl:"pe,optional" mapstructure:"pe"`
}

type rawSnapshot struct {
	Origin    string `hcl:"origin" mapstructure:"origin"`
	Cow       string `hcl:"cow" mapstructure:"cow"`
	ChunkSize uint64 `hcl:"chunk_size" mapstructure:"chunk_size"`
}

// HCLStore loads volume group metadata from an HCL file when it is
// constructed and keeps it in memory. It is the reference metadata.Store implementation used by the
// CLI and by the planner's own tests; parsing the real on-disk LVM
// metadata format is out of scope for this planner.
type HCLStore struct {
	path string
	vgs  map[string]*VolumeGroup
}

// NewHCLStore creates a store backed by the HCL document at path. The file
// is parsed eagerly so configuration errors surface at construction time.
func NewHCLStore(path string) (*HCLStore, error) {
	var raw rawConfig
	if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
		return nil, fmt.Errorf("metadata: decoding %s: %w", path, err)
	}

	vg, err := buildVolumeGroup(raw.VG)
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", path, err)
	}

	return &HCLStore{
		path: path,
		vgs:  map[string]*VolumeGroup{vg.Name: vg},
	}, nil
}

func (s *HCLStore) VolumeGroup(name string) (*VolumeGroup, error) {
	vg, ok := s.vgs[name]
	if !ok {
		return nil, fmt.Errorf("metadata: no such volume group %q in %s", name, s.path)
	}
	return vg, nil
}

// buildVolumeGroup resolves a decoded rawVolumeGroup into the linked
// metadata.VolumeGroup object graph (PV/LV pointers, snapshot relations).
func buildVolumeGroup(raw rawVolumeGroup) (*VolumeGroup, error) {
	vg := &VolumeGroup{}
	if err := mapstructure.Decode(map[string]any{
		"name":        raw.Name,
		"extent_size": raw.ExtentSize,
	}, vg); err != nil {
		return nil, err
	}

	if raw.CloudPV != nil {
		cfg := &CloudPVConfig{}
		if err := mapstructure.Decode(map[string]any{
			"subscription_id": raw.CloudPV.SubscriptionID,
			"tenant_id":       raw.CloudPV.TenantID,
			"client_id":       raw.CloudPV.ClientID,
			"client_secret":   raw.CloudPV.ClientSecret,
			"vault_name":      raw.CloudPV.VaultName,
			"secret_name":     raw.CloudPV.SecretName,
			"secret_version":  raw.CloudPV.SecretVersion,
		}, cfg); err != nil {
			return nil, err
		}
		vg.CloudPV = cfg
	}

	pvByName := map[string]*PhysicalVolume{}
	for _, rp := range raw.PVs {
		pv := &PhysicalVolume{}
		if err := mapstructure.Decode(map[string]any{
			"dev":      Device{Name: rp.Dev},
			"pe_start": rp.PEStart,
		}, pv); err != nil {
			return nil, err
		}
		pvByName[rp.Name] = pv
		vg.PVs = append(vg.PVs, pv)
	}

	lvByName := map[string]*LogicalVolume{}
	for _, rl := range raw.LVs {
		lv := &LogicalVolume{Name: rl.Name, VG: vg, Size: rl.Size}
		for _, rs := range rl.Segments {
			seg := StripeSegment{LE: rs.LE, Len: rs.Len, StripeSize: rs.StripeSize}
			for _, ra := range rs.Areas {
				area := Area{PE: ra.PE}
				if ra.PV != "" {
					pv, ok := pvByName[ra.PV]
					if !ok {
						return nil, fmt.Errorf("segment of %q references unknown PV %q", rl.Name, ra.PV)
					}
					area.PV = pv
				}
				seg.Areas = append(seg.Areas, area)
			}
			lv.Segments = append(lv.Segments, seg)
		}
		lvByName[rl.Name] = lv
		vg.LVs = append(vg.LVs, lv)
	}

	// Second pass: resolve snapshot origin/cow references now that every
	// LV in the VG has been constructed.
	for _, rl := range raw.LVs {
		if rl.Snapshot == nil {
			continue
		}
		lv := lvByName[rl.Name]
		origin, ok := lvByName[rl.Snapshot.Origin]
		if !ok {
			return nil, fmt.Errorf("snapshot %q references unknown origin %q", rl.Name, rl.Snapshot.Origin)
		}
		cow, ok := lvByName[rl.Snapshot.Cow]
		if !ok {
			return nil, fmt.Errorf("snapshot %q references unknown cow LV %q", rl.Name, rl.Snapshot.Cow)
		}
		lv.SetSnapshot(&Snapshot{Origin: origin, Cow: cow, ChunkSize: rl.Snapshot.ChunkSize})
	}

	return vg, nil
}
