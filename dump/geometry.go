package dump

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/gogpu/texcache"
)

// Topology is the primitive assembly mode of the emulated GPU.
type Topology uint8

const (
	TopologyList        Topology = 0
	TopologyStrip       Topology = 1
	TopologyFan         Topology = 2
	TopologyListIndexed Topology = 3
)

func (t Topology) String() string {
	switch t {
	case TopologyList:
		return "List"
	case TopologyStrip:
		return "Strip"
	case TopologyFan:
		return "Fan"
	case TopologyListIndexed:
		return "ListIndexed"
	default:
		return fmt.Sprintf("Topology(%d)", uint8(t))
	}
}

// GeometryDumper collects assembled vertices and writes them as a
// Wavefront OBJ mesh.
type GeometryDumper struct {
	vertices [][3]float32
	faces    [][3]int
}

// AddVertex appends a vertex. Every third vertex of a list closes a face.
// Strips and fans are not supported.
func (g *GeometryDumper) AddVertex(pos [3]float32, topology Topology) error {
	switch topology {
	case TopologyList, TopologyListIndexed:
	default:
		texcache.Logger().Error("dump: unknown triangle topology", "topology", topology)
		return &texcache.UnsupportedConfigurationError{What: "triangle topology", Detail: topology.String()}
	}
	g.vertices = append(g.vertices, pos)
	if n := len(g.vertices); n%3 == 0 {
		g.faces = append(g.faces, [3]int{n - 3, n - 2, n - 1})
	}
	return nil
}

// Len returns the number of collected vertices.
func (g *GeometryDumper) Len() int { return len(g.vertices) }

// Reset drops all collected geometry.
func (g *GeometryDumper) Reset() {
	g.vertices = g.vertices[:0]
	g.faces = g.faces[:0]
}

// WriteOBJ writes one "v x y z" line per vertex followed by one "f a b c"
// line per face. Face indices are 1-based.
func (g *GeometryDumper) WriteOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var line []byte
	for _, v := range g.vertices {
		line = append(line[:0], 'v')
		for _, c := range v {
			line = append(line, ' ')
			line = strconv.AppendFloat(line, float64(c), 'g', -1, 32)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("dump: write obj: %w", err)
		}
	}
	for _, f := range g.faces {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return fmt.Errorf("dump: write obj: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("dump: write obj: %w", err)
	}
	return nil
}
