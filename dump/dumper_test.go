package dump

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestDumperDisabled(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{Dir: dir})
	if d.Enabled() {
		t.Fatal("zero Config is enabled")
	}
	info, tiled := tiledBGR(t)
	if path, err := d.DumpTexture(info, tiled); path != "" || err != nil {
		t.Errorf("DumpTexture = %q, %v", path, err)
	}
	if path, err := d.DumpShader(testProgram()); path != "" || err != nil {
		t.Errorf("DumpShader = %q, %v", path, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("disabled dumper wrote %d files", len(entries))
	}
}

func TestDumperNames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	d := New(Config{Enabled: true, Dir: dir})

	for _, want := range []string{"shader_dump1.shbin", "shader_dump2.shbin"} {
		path, err := d.DumpShader(testProgram())
		if err != nil {
			t.Fatal(err)
		}
		if path != filepath.Join(dir, want) {
			t.Errorf("path = %q, want %s", path, want)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "shader_dump1.shbin"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadShader(bytes.NewReader(data)); err != nil {
		t.Errorf("dumped shader does not parse: %v", err)
	}

	info, tiled := tiledBGR(t)
	if path, err := d.DumpTexture(info, tiled); err != nil || filepath.Base(path) != "texture_dump1.png" {
		t.Errorf("DumpTexture = %q, %v", path, err)
	}

	var g GeometryDumper
	for range 3 {
		_ = g.AddVertex([3]float32{1, 2, 3}, TopologyList)
	}
	if path, err := d.DumpGeometry(&g); err != nil || filepath.Base(path) != "geometry_dump1.obj" {
		t.Errorf("DumpGeometry = %q, %v", path, err)
	}
}

func TestDumperRejectsBadShader(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{Enabled: true, Dir: dir})
	p := testProgram()
	p.Outputs[0].MapX = 0x1e
	if _, err := d.DumpShader(p); err == nil {
		t.Fatal("bad mapping accepted")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed dump left %d files", len(entries))
	}
}

func TestDumperConcurrent(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{Enabled: true, Dir: dir})
	info, tiled := tiledBGR(t)

	const n = 8
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.DumpTexture(info, tiled); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	entries, _ := os.ReadDir(dir)
	if len(entries) != n {
		t.Errorf("wrote %d files, want %d", len(entries), n)
	}
}

func TestDumperGeometryFile(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{Enabled: true, Dir: dir})

	var g GeometryDumper
	for _, v := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0.5}} {
		if err := g.AddVertex(v, TopologyList); err != nil {
			t.Fatal(err)
		}
	}
	path, err := d.DumpGeometry(&g)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "v 0 0 0\nv 1 0 0\nv 0 1 0.5\nf 1 2 3\n"
	if string(data) != want {
		t.Errorf("geometry_dump1.obj = %q, want %q", data, want)
	}
}
