// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dmlog is a drop-in replacement for the standard `log` package that
// additionally scrubs values Packer has flagged as secrets (e.g. cloud PV
// credentials injected via cloudpv) before they reach the log output.
package dmlog

import (
	"fmt"
	"log"

	"github.com/hashicorp/packer-plugin-sdk/packer"

	"github.com/hashicorp/go-dmplanner/builder/azure/common/logutil"
)

func Print(v ...any) {
	raw := string(fmt.Append(nil, v...))
	log.Print(packer.LogSecretFilter.FilterString(raw))
}

func Printf(format string, v ...any) {
	raw := string(fmt.Appendf(nil, format, v...))
	log.Print(packer.LogSecretFilter.FilterString(raw))
}

func Println(v ...any) {
	raw := string(fmt.Appendln(nil, v...))
	log.Print(packer.LogSecretFilter.FilterString(raw))
}

// Fields is the key=value field set used by PrintFields.
type Fields = logutil.Fields

// PrintFields logs msg followed by fields rendered as " key=value" pairs,
// for log lines where a single interpolated sentence would bury the
// dm task's actual target count and device kind.
func PrintFields(msg string, fields Fields) {
	raw := string(fmt.Appendf(nil, "%s%s", msg, fields.String()))
	log.Print(packer.LogSecretFilter.FilterString(raw))
}
