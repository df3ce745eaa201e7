// Command viewer opens a window, brings up the renderer, uploads a mesh and
// a mipmapped test texture, and runs the acquire/present loop until the
// window closes. It exercises the whole resource path without drawing
// geometry yet.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"runtime"

	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/basalt3d/basalt/mesh"
	"github.com/basalt3d/basalt/render"
	"github.com/basalt3d/basalt/wsi"
)

func init() {
	// SDL event handling must stay on the thread that created the window.
	runtime.LockOSThread()
}

func main() {
	meshPath := flag.String("mesh", "", "OBJ file to load")
	materialPath := flag.String("mtl", "", "MTL file matching the mesh")
	validation := flag.Bool("validation", false, "enable the Khronos validation layer")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	window, err := wsi.NewWindow("basalt viewer", 1280, 720)
	if err != nil {
		logger.Error("opening window", "err", err)
		os.Exit(1)
	}
	defer window.Destroy()

	backend, err := render.NewBackend(window, render.Options{
		AppName:          "basalt viewer",
		EnableValidation: *validation,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("bringing up backend", "err", err)
		os.Exit(1)
	}
	defer backend.Destroy()

	device, err := backend.NewDeviceContext(window.DrawableExtent())
	if err != nil {
		logger.Error("bringing up device", "err", err)
		os.Exit(1)
	}
	defer device.Destroy()

	err = uploadScene(device, logger, *meshPath, *materialPath)
	if err != nil {
		logger.Error("uploading scene", "err", err)
		os.Exit(1)
	}

	runLoop(window, device, logger)

	if err := device.WaitIdle(); err != nil {
		logger.Error("draining device", "err", err)
	}
}

// uploadScene pushes the mesh (if given) and a generated checkerboard
// texture through the synchronous upload path.
func uploadScene(device *render.DeviceContext, logger *slog.Logger, meshPath, materialPath string) error {
	start := hrtime.Now()

	if meshPath != "" {
		meshes, err := mesh.DecodeFiles(context.Background(), []mesh.Source{
			{MeshPath: meshPath, MaterialPath: materialPath},
		})
		if err != nil {
			return err
		}
		loaded := meshes[0]

		vertexData, err := loaded.Interleave()
		if err != nil {
			return err
		}
		indexData, err := loaded.IndexBytes()
		if err != nil {
			return err
		}

		if _, err = device.CreateVertexBuffer(vertexData); err != nil {
			return err
		}
		if _, err = device.CreateIndexBuffer(indexData); err != nil {
			return err
		}
		logger.Info("mesh uploaded", "path", meshPath,
			"vertices", len(loaded.Vertices), "indices", len(loaded.Indices))
	}

	const checkerSize = 256
	_, err := device.CreateTextureFromPixels(core1_0.FormatR8G8B8A8SRGB,
		checkerSize, checkerSize, checkerboard(checkerSize), true)
	if err != nil {
		return err
	}

	logger.Info("scene ready", "duration", hrtime.Since(start))
	return nil
}

// checkerboard builds a size x size RGBA test pattern with 32-pixel tiles.
func checkerboard(size int) []byte {
	pixels := make([]byte, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			shade := byte(40)
			if (x/32+y/32)%2 == 0 {
				shade = 220
			}
			offset := (y*size + x) * 4
			pixels[offset] = shade
			pixels[offset+1] = shade
			pixels[offset+2] = shade
			pixels[offset+3] = 255
		}
	}
	return pixels
}

// recordAndSubmitClear rerecords the frame context with a backbuffer clear
// and blocks until the GPU has executed it, so the image is presentable by
// the time Present runs.
func recordAndSubmitClear(device *render.DeviceContext, cc *render.CommandContext, color core1_0.ClearValueFloat) error {
	if err := cc.Reset(); err != nil {
		return err
	}
	if err := cc.Begin(true); err != nil {
		return err
	}
	if err := device.RecordBackbufferClear(cc, color); err != nil {
		return err
	}
	if err := cc.End(); err != nil {
		return err
	}
	return device.SubmitAndWait(cc)
}

func runLoop(window *wsi.Window, device *render.DeviceContext, logger *slog.Logger) {
	frameContext, err := device.AllocateCommandContext(render.QueueDirect)
	if err != nil {
		logger.Error("allocating frame command context", "err", err)
		return
	}
	defer device.FreeCommandContext(frameContext)

	clearColor := core1_0.ClearValueFloat{0.05, 0.05, 0.08, 1.0}
	rendering := true
	frames := 0
	windowStart := hrtime.Now()

appLoop:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					if err := device.ResizeSwapResources(window.DrawableExtent()); err != nil {
						logger.Error("resizing swapchain", "err", err)
						return
					}
				}
			}
		}

		if !rendering {
			sdl.Delay(16)
			continue
		}

		if !device.NewFrame() {
			if err := device.ResizeSwapResources(window.DrawableExtent()); err != nil {
				logger.Error("resizing swapchain", "err", err)
				return
			}
			continue
		}

		// The acquired image starts with undefined contents; clearing it is
		// the smallest submission that leaves it in the present layout.
		if err := recordAndSubmitClear(device, frameContext, clearColor); err != nil {
			logger.Error("clearing backbuffer", "err", err)
			return
		}

		if !device.Present() {
			if err := device.ResizeSwapResources(window.DrawableExtent()); err != nil {
				logger.Error("resizing swapchain", "err", err)
				return
			}
		}

		frames++
		if frames%600 == 0 {
			elapsed := hrtime.Since(windowStart)
			logger.Debug("frame timing", "frames", frames, "avg", elapsed/600)
			windowStart = hrtime.Now()
		}
	}
}
