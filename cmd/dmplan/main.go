// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// dmplan is a thin CLI wrapper around the dmplanner.Manager: activate,
// deactivate, or report the status of one logical volume in a volume
// group described by an HCL metadata file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	dmplanner "github.com/hashicorp/go-dmplanner"
	"github.com/hashicorp/go-dmplanner/cloudpv"
	"github.com/hashicorp/go-dmplanner/internal/fsnode"
	"github.com/hashicorp/go-dmplanner/mapper"
	"github.com/hashicorp/go-dmplanner/metadata"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: dmplan <activate|deactivate|info> -config PATH -vg NAME -lv NAME [-dir PATH]")
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	config := fs.String("config", "", "path to the HCL volume group metadata file")
	vgName := fs.String("vg", "", "volume group name")
	lvName := fs.String("lv", "", "logical volume name")
	dir := fs.String("dir", "", "published LV directory root (defaults to /dev)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *config == "" || *vgName == "" || *lvName == "" {
		return fmt.Errorf("dmplan %s: -config, -vg, and -lv are all required", cmd)
	}

	store, err := metadata.NewHCLStore(*config)
	if err != nil {
		return err
	}
	vg, err := store.VolumeGroup(*vgName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	resolver, err := cloudpv.NewResolverFromConfig(ctx, vg.CloudPV)
	if err != nil {
		return err
	}

	publishDir := *dir
	if publishDir == "" {
		publishDir = "/dev"
	}
	dm := &mapper.CLI{}
	pub := fsnode.New(publishDir, dm.Dir())

	mgr := dmplanner.NewWithResolver(vg, dm, dm, pub, resolver)

	switch cmd {
	case "activate":
		return mgr.Activate(ctx, *lvName)
	case "deactivate":
		return mgr.Deactivate(ctx, *lvName)
	case "info":
		info, err := mgr.Info(*lvName)
		if err != nil {
			return err
		}
		fmt.Printf("exists=%v suspended=%v major=%d minor=%d open=%d\n",
			info.Exists, info.Suspended, info.Major, info.Minor, info.OpenCount)
		return nil
	default:
		return fmt.Errorf("dmplan: unknown command %q", cmd)
	}
}
