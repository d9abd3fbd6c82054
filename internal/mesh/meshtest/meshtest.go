// Package meshtest builds small STL payloads for tests.
package meshtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Triangle is three vertices in counter-clockwise order seen from outside.
type Triangle [3][3]float32

// Box returns the 12 outward-wound triangles of an axis-aligned box with one
// corner at the origin.
func Box(sx, sy, sz float32) []Triangle {
	return []Triangle{
		// z = 0
		{{0, 0, 0}, {0, sy, 0}, {sx, sy, 0}},
		{{0, 0, 0}, {sx, sy, 0}, {sx, 0, 0}},
		// z = sz
		{{0, 0, sz}, {sx, 0, sz}, {sx, sy, sz}},
		{{0, 0, sz}, {sx, sy, sz}, {0, sy, sz}},
		// y = 0
		{{0, 0, 0}, {sx, 0, 0}, {sx, 0, sz}},
		{{0, 0, 0}, {sx, 0, sz}, {0, 0, sz}},
		// y = sy
		{{0, sy, 0}, {0, sy, sz}, {sx, sy, sz}},
		{{0, sy, 0}, {sx, sy, sz}, {sx, sy, 0}},
		// x = 0
		{{0, 0, 0}, {0, 0, sz}, {0, sy, sz}},
		{{0, 0, 0}, {0, sy, sz}, {0, sy, 0}},
		// x = sx
		{{sx, 0, 0}, {sx, sy, 0}, {sx, sy, sz}},
		{{sx, 0, 0}, {sx, sy, sz}, {sx, 0, sz}},
	}
}

// Cube is Box with equal edges.
func Cube(edge float32) []Triangle { return Box(edge, edge, edge) }

// OpenBox is a box missing its top face.
func OpenBox(edge float32) []Triangle {
	tris := Cube(edge)
	return append(tris[:2:2], tris[4:]...)
}

// Flipped reverses the winding of every triangle.
func Flipped(tris []Triangle) []Triangle {
	out := make([]Triangle, len(tris))
	for i, t := range tris {
		out[i] = Triangle{t[0], t[2], t[1]}
	}
	return out
}

// Mixed flips the winding of a single triangle so orientation is inconsistent.
func Mixed(tris []Triangle) []Triangle {
	out := append([]Triangle(nil), tris...)
	out[0] = Triangle{out[0][0], out[0][2], out[0][1]}
	return out
}

func normal(t Triangle) [3]float32 {
	u := [3]float64{float64(t[1][0] - t[0][0]), float64(t[1][1] - t[0][1]), float64(t[1][2] - t[0][2])}
	v := [3]float64{float64(t[2][0] - t[0][0]), float64(t[2][1] - t[0][1]), float64(t[2][2] - t[0][2])}
	n := [3]float64{u[1]*v[2] - u[2]*v[1], u[2]*v[0] - u[0]*v[2], u[0]*v[1] - u[1]*v[0]}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return [3]float32{}
	}
	return [3]float32{float32(n[0] / l), float32(n[1] / l), float32(n[2] / l)}
}

// Binary encodes tris as a binary STL file.
func Binary(tris []Triangle) []byte { return encodeBinary(tris, normal) }

// BinaryZeroNormals encodes tris with every stored normal set to zero, as
// some exporters do.
func BinaryZeroNormals(tris []Triangle) []byte {
	return encodeBinary(tris, func(Triangle) [3]float32 { return [3]float32{} })
}

func encodeBinary(tris []Triangle, normalOf func(Triangle) [3]float32) []byte {
	var buf bytes.Buffer
	header := make([]byte, 80)
	copy(header, "binary fixture")
	buf.Write(header)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, t := range tris {
		_ = binary.Write(&buf, binary.LittleEndian, normalOf(t))
		for _, v := range t {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

// ASCII encodes tris as an ASCII STL file.
func ASCII(name string, tris []Triangle) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "solid %s\n", name)
	for _, t := range tris {
		n := normal(t)
		fmt.Fprintf(&buf, "  facet normal %g %g %g\n    outer loop\n", n[0], n[1], n[2])
		for _, v := range t {
			fmt.Fprintf(&buf, "      vertex %g %g %g\n", v[0], v[1], v[2])
		}
		buf.WriteString("    endloop\n  endfacet\n")
	}
	fmt.Fprintf(&buf, "endsolid %s\n", name)
	return buf.Bytes()
}
