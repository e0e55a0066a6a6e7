package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/carve/pkg/csg"
	"github.com/chazu/carve/pkg/export"
	"github.com/chazu/carve/pkg/kernel"
	"github.com/chazu/carve/pkg/model"
)

func (c *cli) booleanCmd() *cobra.Command {
	var (
		opName       string
		out          string
		invertFirst  bool
		invertSecond bool
	)
	cmd := &cobra.Command{
		Use:   "boolean FIRST SECOND",
		Short: "Combine two closed meshes",
		Long: `Combine two closed meshes (.stl, .glb or .gltf) and write the result as STL.

The operation is a name (union, intersect, subtract, identity) or raw keep
flags joined by "|": fi, fo, si and so keep the first operand's part inside
or outside the second, and the second operand's part inside or outside the
first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := csg.ParseOperation(opName)
			if err != nil {
				return err
			}
			first, err := loadMesh(args[0])
			if err != nil {
				return err
			}
			second, err := loadMesh(args[1])
			if err != nil {
				return err
			}

			a, b := csg.NewInput(first), csg.NewInput(second)
			a.InvertNormals, b.InvertNormals = op.Inversions()
			if cmd.Flags().Changed("invert-first") {
				a.InvertNormals = invertFirst
			}
			if cmd.Flags().Changed("invert-second") {
				b.InvertNormals = invertSecond
			}

			merged, res, err := c.app.Boolean(a, b, op)
			if err != nil {
				return err
			}
			if err := model.SaveSTL(out, merged); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d triangles, %d cut edges, %d+%d regions -> %s\n",
				op, merged.TriangleCount(), len(res.CutEdges), res.Stats.Regions[0], res.Stats.Regions[1], out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opName, "op", "union", `operation name or raw flags such as "fo|si"`)
	f.StringVarP(&out, "out", "o", "", "output STL path")
	f.BoolVar(&invertFirst, "invert-first", false, "flip the kept part of the first operand (default depends on --op)")
	f.BoolVar(&invertSecond, "invert-second", false, "flip the kept part of the second operand (default depends on --op)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (c *cli) evalCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "eval DESIGN",
		Short: "Evaluate a design and tessellate its parts",
		Long: `Evaluate a design file and tessellate every part.

With --out the parts are written to one file: .stl merges them into a
single mesh, .glb and .gltf keep one named node per part. Without --out a
summary of each part is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			result := c.app.EvaluateContext(cmd.Context(), string(source))
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e)
				}
				return fmt.Errorf("%s: %d evaluation errors", args[0], len(result.Errors))
			}

			if out == "" {
				return printParts(cmd.OutOrStdout(), result.Meshes)
			}
			if err := writeMeshes(out, result.Meshes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d parts to %s\n", len(result.Meshes), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (.stl, .glb or .gltf)")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats MESH",
		Short: "Print triangle count, volume, area and bounds of a mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMesh(args[0])
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

// loadMesh reads an STL or glTF file into a single model.
func loadMesh(path string) (*model.Model, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return model.LoadSTL(path)
	case ".glb", ".gltf":
		meshes, err := export.ReadGLTF(path)
		if err != nil {
			return nil, err
		}
		return meshModel(meshes)
	default:
		return nil, fmt.Errorf("%s: unsupported mesh format", path)
	}
}

func writeMeshes(path string, meshes []*kernel.Mesh) error {
	if strings.ToLower(filepath.Ext(path)) != ".stl" {
		return export.WriteGLTF(path, meshes)
	}
	m, err := meshModel(meshes)
	if err != nil {
		return err
	}
	return model.SaveSTL(path, m)
}

func printParts(w io.Writer, meshes []*kernel.Mesh) error {
	for _, mesh := range meshes {
		m, err := meshModel([]*kernel.Mesh{mesh})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-16s %6d triangles  volume %.3f\n", mesh.PartName, m.TriangleCount(), m.SignedVolume())
	}
	return nil
}

func printStats(w io.Writer, m *model.Model) {
	b := m.Bounds()
	fmt.Fprintf(w, "triangles: %d\n", m.TriangleCount())
	fmt.Fprintf(w, "volume:    %.4f\n", m.SignedVolume())
	fmt.Fprintf(w, "area:      %.4f\n", m.SurfaceArea())
	fmt.Fprintf(w, "bounds:    [%.4f %.4f %.4f] - [%.4f %.4f %.4f]\n",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}
