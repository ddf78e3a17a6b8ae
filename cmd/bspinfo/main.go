// bspinfo is a CLI utility for inspecting Source BSP maps.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Faultbox/srcview/internal/engine/bsptree"
	"github.com/Faultbox/srcview/internal/engine/scene"
	"github.com/Faultbox/srcview/internal/export"
	"github.com/Faultbox/srcview/pkg/formats"
	"github.com/Faultbox/srcview/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "leaf":
		cmdLeaf(args)
	case "vis":
		cmdVis(args)
	case "lockgroups", "lg":
		cmdLockGroups(args)
	case "lightmaps":
		cmdLightmaps(args)
	case "gltf":
		cmdGLTF(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bspinfo - Source BSP map utility

Usage:
  bspinfo <command> [options]

Commands:
  info <map.bsp>                   Show lump and entity summary
  leaf <map.bsp> <x> <y> <z>       Classify a point and list visible leaves
  vis <map.bsp>                    Show per-cluster visibility counts
  lockgroups <map.bsp>             Show the partitioned lock groups
  lightmaps <map.bsp> <dir>        Export lightmap pages as WebP
  gltf <map.bsp> <out.glb>         Export the partitioned world as glTF

Examples:
  bspinfo info maps/de_dust2.bsp
  bspinfo leaf maps/de_dust2.bsp 0 0 64
  bspinfo gltf maps/de_dust2.bsp dust2.glb`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func usage(line string) {
	fmt.Fprintln(os.Stderr, "Usage: bspinfo "+line)
	os.Exit(1)
}

func openMap(path string) (*formats.BSP, *bsptree.Tree) {
	b, err := formats.ParseBSPFile(path)
	if err != nil {
		fail(err)
	}
	tree, err := bsptree.Build(bsptree.InputFromBSP(b))
	if err != nil {
		fail(err)
	}
	return b, tree
}

func buildScene(b *formats.BSP, tree *bsptree.Tree) *scene.Scene {
	s, err := scene.Build(b, tree, nil, scene.Options{})
	if err != nil {
		fail(err)
	}
	if err := s.Validate(); err != nil {
		fail(err)
	}
	return s
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		usage("info <map.bsp>")
	}
	b, tree := openMap(args[0])

	fmt.Printf("Map: %s\n", args[0])
	fmt.Printf("Version: %d (revision %d)\n", b.Version, b.MapRevision)
	fmt.Printf("Planes: %d\n", len(b.Planes))
	fmt.Printf("Nodes: %d\n", len(b.Nodes))
	fmt.Printf("Leaves: %d\n", tree.NumLeaves())
	fmt.Printf("Clusters: %d\n", tree.NumClusters())
	fmt.Printf("Faces: %d\n", len(b.Faces))
	fmt.Printf("Textures: %d\n", len(b.TexData))
	fmt.Printf("Lighting: %d bytes\n", len(b.Lighting))
	fmt.Printf("Pakfile: %d bytes\n", len(b.Pakfile))
	fmt.Printf("Entities: %d\n", len(b.Entities))
	if b.StaticProps != nil {
		fmt.Printf("Static props: %d (%d models, lump version %d)\n",
			len(b.StaticProps.Props), len(b.StaticProps.Names), b.StaticProps.Version)
	}
	if ws := b.Worldspawn(); ws != nil {
		if sky := ws.Get("skyname"); sky != "" {
			fmt.Printf("Sky: %s\n", sky)
		}
	}
}

func cmdLeaf(args []string) {
	if len(args) < 4 {
		usage("leaf <map.bsp> <x> <y> <z>")
	}
	var p [3]float32
	for i := range p {
		v, err := strconv.ParseFloat(args[1+i], 32)
		if err != nil {
			fail(fmt.Errorf("bad coordinate %q: %w", args[1+i], err))
		}
		p[i] = float32(v)
	}

	_, tree := openMap(args[0])
	leaf := tree.ClassifyPoint(math.V3(p))
	fmt.Printf("Leaf: %d\n", leaf)
	fmt.Printf("Cluster: %d\n", tree.ClusterOf(leaf))
	fmt.Printf("Faces: %d\n", len(tree.FacesOfLeaf(leaf)))
	if !tree.IsVisibilityLeaf(leaf) {
		fmt.Println("Outside visibility data; every leaf is drawn")
		return
	}
	visible := tree.VisibleLeaves(leaf)
	fmt.Printf("Visible leaves: %d of %d\n", len(visible), tree.NumLeaves())
	for _, l := range visible {
		fmt.Printf("  %d (cluster %d)\n", l, tree.ClusterOf(l))
	}
}

func cmdVis(args []string) {
	if len(args) < 1 {
		usage("vis <map.bsp>")
	}
	_, tree := openMap(args[0])
	vis := tree.Visibility()
	n := vis.NumClusters()
	if n == 0 {
		fmt.Println("No visibility data")
		return
	}

	total := 0
	for c := 0; c < n; c++ {
		count := vis.CountVisible(c)
		total += count
		fmt.Printf("  cluster %5d: %5d visible\n", c, count)
	}
	fmt.Printf("Clusters: %d, average visible: %.1f (%.1f%%)\n",
		n, float64(total)/float64(n), 100*float64(total)/float64(n*n))
}

func cmdLockGroups(args []string) {
	if len(args) < 1 {
		usage("lockgroups <map.bsp>")
	}
	s := buildScene(openMap(args[0]))

	for i, g := range s.LockGroups {
		fmt.Printf("  group %3d: %6d vertices @ %-9d %7d indices @ %-9d %5d patches\n",
			i, g.VertexCount, g.VertexOffset, g.IndexCount, g.IndexOffset, g.NumPatches)
	}
	translucent := 0
	for _, p := range s.Patches {
		if p.Translucent {
			translucent++
		}
	}
	fmt.Printf("Lock groups: %d\n", len(s.LockGroups))
	fmt.Printf("Tri-patches: %d (%d translucent)\n", len(s.Patches), translucent)
	fmt.Printf("Lightmap pages: %d\n", len(s.Atlas.Pages))
	fmt.Printf("Props: %d (%d models)\n", len(s.Props), len(s.Dicts))
}

func cmdLightmaps(args []string) {
	if len(args) < 2 {
		usage("lightmaps <map.bsp> <dir>")
	}
	s := buildScene(openMap(args[0]))

	paths, err := export.WriteLightmaps(args[1], s.Atlas)
	if err != nil {
		fail(err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Printf("Wrote %d pages\n", len(paths))
}

func cmdGLTF(args []string) {
	if len(args) < 2 {
		usage("gltf <map.bsp> <out.glb>")
	}
	s := buildScene(openMap(args[0]))

	if err := export.WriteGLB(args[1], s); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s: %d lock groups, %d patches, %d props\n",
		args[1], len(s.LockGroups), len(s.Patches), len(s.Props))
}
