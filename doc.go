// Package texcache caches host GPU textures for an emulated GPU.
//
// # Overview
//
// An emulated GPU addresses textures and render targets by guest memory
// address. texcache maps each (address, parameters) pair to a Surface that
// owns a wgpu HAL resource, and records the copies, blits and barriers that
// keep those resources coherent with the emulated command stream.
//
// # Quick Start
//
//	sched := texcache.NewHALScheduler(device, queue)
//	m, err := texcache.NewManager(device, sched,
//		texcache.WithLogger(slog.Default()),
//		texcache.WithSurfaceLimit(1024),
//	)
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	s, err := m.GetSurface(0x1800_0000, texcache.SurfaceParams{
//		Format: texcache.FormatRGBA8, Target: texcache.Target2D,
//		Width: 256, Height: 256, Depth: 1, NumLayers: 1, NumLevels: 1, Tiled: true,
//	})
//	if err != nil {
//		return err
//	}
//	if err := s.UploadTexture(ctx, pixels); err != nil {
//		return err
//	}
//
// A host application that already owns a device can share it through
// NewManagerFromProvider.
//
// # Backing
//
// Formats with a host equivalent are stored in a hal.Texture holding linear
// texels, so views can be sampled. Formats without one (RGB8, RGB565,
// RGB5A1, RGBA4, IA4, D24, D24S8) are stored as raw bytes in a
// hal.Buffer that mirrors guest memory, including the 8x8 Morton tiling of
// tiled surfaces. See package tiling for the layout. Formats with 4-bit or
// block-compressed texels cannot back a surface.
//
// # Synchronization
//
// Every subresource carries a tracked SyncState. Transition records a
// barrier only for subresources whose state changes. Operations record
// commands through a Scheduler and return immediately; the modification
// tick of a written surface is the scheduler's CurrentTick at record time.
//
// # Observability
//
// Logging goes through log/slog (see SetLogger and WithLogger). Counters are
// exported with OpenTelemetry metrics (WithMeterProvider) and uploads,
// downloads and flushes are traced (WithTracerProvider).
//
// # Thread Safety
//
// Manager, Surface and View are not safe for concurrent use. Uploads and
// downloads re-tile on a bounded worker pool (WithRetileWorkers).
//
// # Diagnostics
//
// Package regtrace records register writes between Start and Finish.
// Package dump writes shader binaries, de-tiled textures and geometry for
// offline inspection, and cmd/texdump converts those files from the command
// line.
package texcache
