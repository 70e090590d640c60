// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dmtable translates a logical volume's segment list, or its
// snapshot/origin metadata, into mapper.Target rows.
package dmtable

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-dmplanner/internal/dmerr"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
)

// persistentChunkMetadataSize is the hardcoded trailing parameter of a
// persistent-type snapshot target.
const persistentChunkMetadataSize = 128

// maxParamLen bounds the formatted parameter string the way the source's
// fixed 1KiB/PATH_MAX-sized C buffers did; growable buffers (strings.Builder)
// are used for the formatting itself, but this still bounds pathological
// input the way the real kernel ioctl buffer would.
const maxParamLen = 4096

// EmitSegment produces the mapper.Target for one stripe_segment of lv,
// following the per-area/per-stripe-count rules below. extentSize is the
// VG's extent size in sectors.
func EmitSegment(seg metadata.StripeSegment, extentSize uint64) (mapper.Target, error) {
	start := extentSize * seg.LE
	length := extentSize * seg.Len

	if len(seg.Areas) == 1 && seg.Areas[0].PV == nil {
		return mapper.Target{Start: start, Length: length, Type: "error"}, nil
	}

	if len(seg.Areas) == 1 {
		area := seg.Areas[0]
		offset := area.PV.PEStart + extentSize*area.PE
		params := fmt.Sprintf("%s %d", area.PV.Dev.Name, offset)
		if err := checkLen(params); err != nil {
			return mapper.Target{}, err
		}
		return mapper.Target{Start: start, Length: length, Type: "linear", Params: params}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %d", len(seg.Areas), seg.StripeSize)
	for _, area := range seg.Areas {
		if area.PV == nil {
			fmt.Fprintf(&b, " %s %d", "/dev/ioerror", 0)
			continue
		}
		offset := area.PV.PEStart + extentSize*area.PE
		fmt.Fprintf(&b, " %s %d", area.PV.Dev.Name, offset)
	}
	if err := checkLen(b.String()); err != nil {
		return mapper.Target{}, err
	}
	return mapper.Target{Start: start, Length: length, Type: "striped", Params: b.String()}, nil
}

// EmitSnapshot produces the top-layer "snapshot" target for a snapshot LV,
// covering (0, origin.size).
func EmitSnapshot(dmDir, originRealName, cowName string, chunkSize, originSize uint64) (mapper.Target, error) {
	params := fmt.Sprintf("%s/%s %s/%s P %d %d", dmDir, originRealName, dmDir, cowName, chunkSize, persistentChunkMetadataSize)
	if err := checkLen(params); err != nil {
		return mapper.Target{}, err
	}
	return mapper.Target{Start: 0, Length: originSize, Type: "snapshot", Params: params}, nil
}

// EmitOrigin produces the top-layer "snapshot-origin" target for an origin
// LV with active snapshots, covering (0, origin.size).
func EmitOrigin(dmDir, realName string, size uint64) (mapper.Target, error) {
	params := fmt.Sprintf("%s/%s", dmDir, realName)
	if err := checkLen(params); err != nil {
		return mapper.Target{}, err
	}
	return mapper.Target{Start: 0, Length: size, Type: "snapshot-origin", Params: params}, nil
}

func checkLen(params string) error {
	if len(params) > maxParamLen {
		return fmt.Errorf("%w: parameter string is %d bytes", dmerr.ErrOutOfSpace, len(params))
	}
	return nil
}
