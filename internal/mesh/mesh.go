// Package mesh loads STL files and answers the geometric questions a quote
// needs: does the surface enclose a volume, and how large is it.
//
// Decoding (ASCII and binary), coordinate scaling and the topology checks are
// delegated to github.com/hschendel/stl.
package mesh

import (
	"fmt"
	"math"

	"github.com/hschendel/stl"

	"stlquote/internal/domain"
)

// Units is the length unit mesh coordinates are expressed in. STL does not
// record units, so the caller decides.
type Units string

const (
	Millimetres Units = "mm"
	Centimetres Units = "cm"
	Metres      Units = "m"
	Inches      Units = "in"
)

// ParseUnits validates s as a supported unit name.
func ParseUnits(s string) (Units, error) {
	switch u := Units(s); u {
	case Millimetres, Centimetres, Metres, Inches:
		return u, nil
	}
	return "", fmt.Errorf("unsupported mesh units %q", s)
}

// ToCentimetres returns the factor that converts a length in u to centimetres.
func (u Units) ToCentimetres() float64 {
	switch u {
	case Millimetres:
		return 0.1
	case Metres:
		return 100
	case Inches:
		return 2.54
	default:
		return 1
	}
}

// Extents is the axis-aligned bounding box of a mesh.
type Extents struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Size returns the edge lengths of the box.
func (e Extents) Size() [3]float64 {
	return [3]float64{e.Max[0] - e.Min[0], e.Max[1] - e.Min[1], e.Max[2] - e.Min[2]}
}

// Mesh is a triangle surface loaded from one STL file. It is not safe for
// concurrent use.
type Mesh struct {
	solid *stl.Solid
}

// Load parses the STL file at path. Decoding errors and meshes without
// triangles wrap domain.ErrParseFailed.
func Load(path string) (*Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrParseFailed, err)
	}
	if len(solid.Triangles) == 0 {
		return nil, fmt.Errorf("%w: mesh contains no triangles", domain.ErrParseFailed)
	}
	return &Mesh{solid: solid}, nil
}

// TriangleCount returns the number of facets in the mesh.
func (m *Mesh) TriangleCount() int { return len(m.solid.Triangles) }

// ScaleToCentimetres rescales the coordinates in place from u to centimetres.
func (m *Mesh) ScaleToCentimetres(u Units) {
	if f := u.ToCentimetres(); f != 1 {
		m.solid.Scale(f)
	}
}

// Extents returns the bounding box in the mesh's current units.
func (m *Mesh) Extents() Extents {
	ms := m.solid.Measure()
	var e Extents
	for i := 0; i < 3; i++ {
		e.Min[i] = float64(ms.Min[i])
		e.Max[i] = float64(ms.Max[i])
	}
	return e
}

// IsClosed reports whether the surface is watertight and consistently wound,
// going by stl.Solid.Validate: no triangle repeats a vertex, no directed edge
// is shared by two triangles, and every edge has exactly one counter edge.
// Stored normals are not checked; many exporters write zero normals.
func (m *Mesh) IsClosed() bool {
	for _, te := range m.solid.Validate() {
		if te.HasEqualVertices {
			return false
		}
		for _, ee := range te.EdgeErrors {
			if ee != nil && (ee.IsUsedInOtherTriangles() || len(ee.CounterEdgeTriangles) != 1) {
				return false
			}
		}
	}
	return true
}

// Volume returns the signed enclosed volume in cubic units of the current
// coordinates. It is only meaningful when IsClosed is true, and is negative
// when every face is wound inward.
func (m *Mesh) Volume() float64 {
	var sum float64
	for _, t := range m.solid.Triangles {
		a, b, c := vec(t.Vertices[0]), vec(t.Vertices[1]), vec(t.Vertices[2])
		sum += a[0]*(b[1]*c[2]-b[2]*c[1]) +
			a[1]*(b[2]*c[0]-b[0]*c[2]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
	}
	return sum / 6
}

func vec(v stl.Vec3) [3]float64 {
	return [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}
}

// minVolume is the smallest volume, in the mesh's current cubic units,
// treated as enclosing anything.
const minVolume = 1e-9

// ClosedVolume checks closedness and returns the enclosed volume, or an error
// wrapping domain.ErrNotWatertight. Inside-out meshes have no positive volume
// and are rejected.
func (m *Mesh) ClosedVolume() (float64, error) {
	if !m.IsClosed() {
		return 0, domain.ErrNotWatertight
	}
	v := m.Volume()
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= minVolume {
		return 0, fmt.Errorf("%w: enclosed volume is not positive", domain.ErrNotWatertight)
	}
	return v, nil
}
