// Package stl reads and writes binary STL triangle meshes.
//
// The binary layout is an 80 byte header, a little-endian uint32 triangle
// count, then one 50 byte record per triangle (normal, three vertices, and
// a two byte attribute field).
package stl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// HeaderSize is the fixed binary STL header length.
	HeaderSize = 80
	// TriangleRecordSize is the on-disk size of one triangle record.
	TriangleRecordSize = 50
)

// Triangle is a single mesh facet.
type Triangle struct {
	Normal   [3]float32
	Vertices [3][3]float32
}

// Mesh is a decoded binary STL body.
type Mesh struct {
	Header    string
	Triangles []Triangle
}

// TriangleCount returns the number of facets in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// ExpectedSize returns the byte size a binary STL with n triangles occupies.
func ExpectedSize(n int) int64 {
	return int64(HeaderSize + 4 + n*TriangleRecordSize)
}

// IsASCII reports whether data looks like an ASCII STL body. Binary files
// may legally begin with arbitrary header bytes, so the check requires both
// the solid keyword and a facet keyword near the start.
func IsASCII(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("solid")) && bytes.Contains(head, []byte("facet"))
}

// Info describes a binary STL body without decoding its triangles.
type Info struct {
	TriangleCount int
	SizeBytes     int64
}

// ReadInfo extracts the triangle count from a binary STL body.
func ReadInfo(data []byte) (Info, error) {
	if IsASCII(data) {
		return Info{}, fmt.Errorf("ascii stl carries no binary triangle count")
	}
	if len(data) < HeaderSize+4 {
		return Info{}, fmt.Errorf("stl body too short: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[HeaderSize:])
	if int64(len(data)) < ExpectedSize(int(count)) {
		return Info{}, fmt.Errorf("stl body truncated: %d bytes for %d triangles", len(data), count)
	}
	return Info{TriangleCount: int(count), SizeBytes: int64(len(data))}, nil
}

// Decode reads a full binary STL stream.
func Decode(r io.Reader) (*Mesh, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read stl header: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read triangle count: %w", err)
	}

	mesh := &Mesh{
		Header:    string(bytes.TrimRight(header[:], "\x00 ")),
		Triangles: make([]Triangle, 0, count),
	}

	record := make([]byte, TriangleRecordSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("read triangle %d of %d: %w", i+1, count, err)
		}

		var t Triangle
		off := 0
		for n := 0; n < 3; n++ {
			t.Normal[n] = math.Float32frombits(binary.LittleEndian.Uint32(record[off:]))
			off += 4
		}
		for v := 0; v < 3; v++ {
			for n := 0; n < 3; n++ {
				t.Vertices[v][n] = math.Float32frombits(binary.LittleEndian.Uint32(record[off:]))
				off += 4
			}
		}
		mesh.Triangles = append(mesh.Triangles, t)
	}

	return mesh, nil
}

// Encode writes mesh as binary STL. The header is truncated or zero padded
// to the fixed 80 bytes; a leading "solid" is avoided so readers never
// mistake the output for ASCII.
func Encode(w io.Writer, header string, triangles []Triangle) error {
	var head [HeaderSize]byte
	copy(head[:], header)
	if bytes.HasPrefix(head[:], []byte("solid")) {
		copy(head[:], "binary")
	}
	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("write triangle count: %w", err)
	}

	record := make([]byte, TriangleRecordSize)
	for i, t := range triangles {
		off := 0
		for n := 0; n < 3; n++ {
			binary.LittleEndian.PutUint32(record[off:], math.Float32bits(t.Normal[n]))
			off += 4
		}
		for v := 0; v < 3; v++ {
			for n := 0; n < 3; n++ {
				binary.LittleEndian.PutUint32(record[off:], math.Float32bits(t.Vertices[v][n]))
				off += 4
			}
		}
		record[48] = 0
		record[49] = 0
		if _, err := w.Write(record); err != nil {
			return fmt.Errorf("write triangle %d: %w", i+1, err)
		}
	}

	return nil
}

// EncodeASCII writes the triangles as an ASCII STL solid.
func EncodeASCII(w io.Writer, name string, triangles []Triangle) error {
	if name == "" {
		name = "mesh"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "solid %s\n", name)
	for _, t := range triangles {
		fmt.Fprintf(&buf, "  facet normal %g %g %g\n", t.Normal[0], t.Normal[1], t.Normal[2])
		buf.WriteString("    outer loop\n")
		for _, v := range t.Vertices {
			fmt.Fprintf(&buf, "      vertex %g %g %g\n", v[0], v[1], v[2])
		}
		buf.WriteString("    endloop\n")
		buf.WriteString("  endfacet\n")
	}
	fmt.Fprintf(&buf, "endsolid %s\n", name)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write ascii stl: %w", err)
	}
	return nil
}

// Stats summarizes a mesh for inspection output.
type Stats struct {
	TriangleCount int
	BBoxMin       [3]float64
	BBoxMax       [3]float64
	SurfaceArea   float64
	AreaMean      float64
	AreaStdDev    float64
	AreaMedian    float64
	AreaP95       float64
}

// ComputeStats derives bounding box and facet area statistics.
func ComputeStats(m *Mesh) Stats {
	s := Stats{TriangleCount: len(m.Triangles)}
	if len(m.Triangles) == 0 {
		return s
	}

	for i := 0; i < 3; i++ {
		s.BBoxMin[i] = math.Inf(1)
		s.BBoxMax[i] = math.Inf(-1)
	}

	areas := make([]float64, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		for _, v := range t.Vertices {
			for i := 0; i < 3; i++ {
				c := float64(v[i])
				if c < s.BBoxMin[i] {
					s.BBoxMin[i] = c
				}
				if c > s.BBoxMax[i] {
					s.BBoxMax[i] = c
				}
			}
		}
		areas = append(areas, triangleArea(t))
	}

	for _, a := range areas {
		s.SurfaceArea += a
	}
	s.AreaMean = stat.Mean(areas, nil)
	if len(areas) > 1 {
		s.AreaStdDev = stat.StdDev(areas, nil)
	}

	sorted := append([]float64(nil), areas...)
	sort.Float64s(sorted)
	s.AreaMedian = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.AreaP95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	return s
}

func triangleArea(t Triangle) float64 {
	ax := float64(t.Vertices[1][0] - t.Vertices[0][0])
	ay := float64(t.Vertices[1][1] - t.Vertices[0][1])
	az := float64(t.Vertices[1][2] - t.Vertices[0][2])
	bx := float64(t.Vertices[2][0] - t.Vertices[0][0])
	by := float64(t.Vertices[2][1] - t.Vertices[0][1])
	bz := float64(t.Vertices[2][2] - t.Vertices[0][2])

	cx := ay*bz - az*by
	cy := az*bx - ax*bz
	cz := ax*by - ay*bx

	return 0.5 * math.Sqrt(cx*cx+cy*cy+cz*cz)
}
