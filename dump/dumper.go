// Package dump writes diagnostic snapshots of emulated GPU state: shader
// binaries in the shbin container, de-tiled textures as PNG or BMP images
// and assembled geometry as Wavefront OBJ meshes.
//
// The encoders (WriteShader, WriteTexture, GeometryDumper.WriteOBJ) work on
// any io.Writer. Dumper is the file-writing front end used by the renderer.
// It is off unless Config.Enabled is set, and every dump is written
// synchronously, so enable it only while debugging.
package dump

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gogpu/texcache"
)

// Config controls a Dumper.
type Config struct {
	// Enabled turns dumping on. A disabled Dumper writes nothing.
	Enabled bool

	// Dir is the output directory. It is created on first use.
	// Empty means the working directory.
	Dir string
}

// Dumper writes dumps to sequentially numbered files. It is safe for
// concurrent use.
type Dumper struct {
	cfg Config
	log *slog.Logger

	shaders    atomic.Uint64
	textures   atomic.Uint64
	geometries atomic.Uint64
}

// Option configures a Dumper.
type Option func(*Dumper)

// WithLogger sets the logger. It defaults to texcache.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dumper) { d.log = l }
}

// New returns a Dumper for cfg.
func New(cfg Config, opts ...Option) *Dumper {
	d := &Dumper{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enabled reports whether the Dumper writes files.
func (d *Dumper) Enabled() bool { return d.cfg.Enabled }

func (d *Dumper) logger() *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return texcache.Logger()
}

// DumpShader writes p to shader_dump<N>.shbin and returns the path.
// It returns "" and no error when the Dumper is disabled.
func (d *Dumper) DumpShader(p *ShaderProgram) (string, error) {
	if !d.cfg.Enabled {
		return "", nil
	}
	// Reject bad mappings before a file is created.
	if _, err := p.OutputRegisters(); err != nil {
		d.logger().Error("dump: unknown output attribute mapping", "err", err)
		return "", err
	}
	name := fmt.Sprintf("shader_dump%d.shbin", d.shaders.Add(1))
	return d.create(name, func(w io.Writer) error {
		return writeShader(w, p, d.logger())
	})
}

// DumpTexture writes a de-tiled BGR888 texture to texture_dump<N>.png and
// returns the path.
func (d *Dumper) DumpTexture(info TextureInfo, tiled []byte) (string, error) {
	if !d.cfg.Enabled {
		return "", nil
	}
	img, err := DecodeTexture(info, tiled)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("texture_dump%d.png", d.textures.Add(1))
	return d.create(name, func(w io.Writer) error {
		return encodePNG(w, img)
	})
}

// DumpGeometry writes g to geometry_dump<N>.obj and returns the path.
func (d *Dumper) DumpGeometry(g *GeometryDumper) (string, error) {
	if !d.cfg.Enabled {
		return "", nil
	}
	name := fmt.Sprintf("geometry_dump%d.obj", d.geometries.Add(1))
	return d.create(name, g.WriteOBJ)
}

func (d *Dumper) create(name string, write func(w io.Writer) error) (path string, err error) {
	if d.cfg.Dir != "" {
		if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
			return "", fmt.Errorf("dump: %w", err)
		}
	}
	full := filepath.Join(d.cfg.Dir, name)
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("dump: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
		if err != nil {
			_ = os.Remove(full)
			path = ""
		}
	}()
	if err := write(f); err != nil {
		return "", err
	}
	d.logger().Debug("dump: wrote file", "path", full)
	return full, nil
}
