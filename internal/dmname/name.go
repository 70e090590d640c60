// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dmname encodes and decodes mapper device names as the hyphen-
// doubled triple (vg, lv, layer). Every literal hyphen inside vg, lv, or
// layer is doubled in the encoded form so that the triple can always be
// split back out unambiguously.
package dmname

import "strings"

// Encode joins vg, lv, and the optional layer into a single mapper device
// name, doubling every hyphen already present in each component. layer may
// be empty for the top (user-visible) device.
func Encode(vg, lv, layer string) string {
	parts := []string{escape(vg), escape(lv)}
	if layer != "" {
		parts = append(parts, escape(layer))
	}
	return strings.Join(parts, "-")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "-", "--")
}

// Decode splits a mapper device name back into (vg, lv, layer). It returns
// ok=false if name is not a well-formed encoding (e.g. an odd run of
// trailing hyphens that can't be resolved to component boundaries).
//
// The algorithm scans left to right. A run of hyphens of even length is an
// escaped literal hyphen run of length/2 inside the current component; a
// run of odd length is an escaped literal run of (length-1)/2 followed by
// one unescaped component separator.
func Decode(name string) (vg, lv, layer string, ok bool) {
	components, ok := splitComponents(name)
	if !ok || len(components) < 2 || len(components) > 3 {
		return "", "", "", false
	}
	vg = components[0]
	lv = components[1]
	if len(components) == 3 {
		layer = components[2]
	}
	return vg, lv, layer, true
}

func splitComponents(name string) ([]string, bool) {
	if name == "" {
		return nil, false
	}

	var components []string
	var current strings.Builder

	i := 0
	for i < len(name) {
		if name[i] != '-' {
			current.WriteByte(name[i])
			i++
			continue
		}

		// count the run of hyphens starting here
		j := i
		for j < len(name) && name[j] == '-' {
			j++
		}
		run := j - i

		// every pair of hyphens is one literal hyphen in the component
		current.WriteString(strings.Repeat("-", run/2))

		if run%2 == 1 {
			// odd run: the final hyphen is an unescaped separator
			components = append(components, current.String())
			current.Reset()
		}

		i = j
	}
	components = append(components, current.String())

	for _, c := range components {
		if c == "" {
			return nil, false
		}
	}
	return components, true
}

// BelongsToVG reports whether name is a mapper device belonging to vg. It
// decodes name and compares the decoded vg field exactly, rather than doing
// a prefix match, so VG names that are prefixes of one another (or that
// themselves contain hyphens) are classified correctly.
func BelongsToVG(vg, name string) bool {
	decodedVG, _, _, ok := Decode(name)
	if !ok {
		return false
	}
	return decodedVG == vg
}
