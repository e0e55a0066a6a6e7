// Package export writes tessellated meshes to interchange formats.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/chazu/carve/pkg/kernel"
)

// ErrUnsupportedFormat is returned for file extensions other than .gltf
// and .glb.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Document builds a glTF document with one node per non-empty mesh. Node
// and mesh names come from PartName.
func Document(meshes []*kernel.Mesh) *gltf.Document {
	doc := gltf.NewDocument()
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, new(gltf.Buffer))
	}
	if len(doc.Scenes) == 0 {
		doc.Scenes = append(doc.Scenes, &gltf.Scene{Name: "Root Scene"})
		doc.Scene = gltf.Index(0)
	}

	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		positions := triples(m.Vertices)
		attrs := map[string]int{
			gltf.POSITION: modeler.WritePosition(doc, positions),
		}
		if len(m.Normals) == len(m.Vertices) {
			attrs[gltf.NORMAL] = modeler.WriteNormal(doc, triples(m.Normals))
		}
		indices := modeler.WriteIndices(doc, m.Indices)

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: m.PartName,
			Primitives: []*gltf.Primitive{{
				Indices:    gltf.Index(indices),
				Attributes: attrs,
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: m.PartName,
			Mesh: gltf.Index(len(doc.Meshes) - 1),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
	}
	return doc
}

// WriteGLTF writes meshes to path. A .glb extension selects the binary
// container; .gltf writes JSON with the buffer embedded as a data URI.
func WriteGLTF(path string, meshes []*kernel.Mesh) error {
	doc := Document(meshes)

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glb":
		err = gltf.SaveBinary(doc, path)
	case ".gltf":
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
		err = gltf.Save(doc, path)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ReadGLTF loads the meshes written by WriteGLTF, one per node, in node
// order. Only the first primitive of each mesh is read.
func ReadGLTF(path string) ([]*kernel.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	var meshes []*kernel.Mesh
	for _, node := range doc.Nodes {
		if node.Mesh == nil {
			continue
		}
		gm := doc.Meshes[*node.Mesh]
		if len(gm.Primitives) == 0 {
			continue
		}
		p := gm.Primitives[0]

		pos, err := modeler.ReadPosition(doc, doc.Accessors[p.Attributes[gltf.POSITION]], nil)
		if err != nil {
			return nil, fmt.Errorf("export: mesh %q positions: %w", gm.Name, err)
		}
		m := &kernel.Mesh{PartName: node.Name, Vertices: flatten(pos)}

		if na, ok := p.Attributes[gltf.NORMAL]; ok {
			normals, err := modeler.ReadNormal(doc, doc.Accessors[na], nil)
			if err != nil {
				return nil, fmt.Errorf("export: mesh %q normals: %w", gm.Name, err)
			}
			m.Normals = flatten(normals)
		}
		if p.Indices != nil {
			m.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("export: mesh %q indices: %w", gm.Name, err)
			}
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

func triples(flat []float32) [][3]float32 {
	out := make([][3]float32, len(flat)/3)
	for i := range out {
		out[i] = [3]float32{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out
}

func flatten(v [][3]float32) []float32 {
	out := make([]float32, 0, len(v)*3)
	for _, p := range v {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}
