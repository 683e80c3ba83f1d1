package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"hallucinator/internal/capture"
	"hallucinator/internal/config"
	"hallucinator/internal/gui"
	"hallucinator/internal/gui/widgets"
	"hallucinator/internal/logger"
	"hallucinator/internal/opencv"
	"hallucinator/internal/opencv/memory"
	"hallucinator/internal/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const (
	AppName    = "Hallucinator"
	AppID      = "com.imageprocessing.hallucinator"
	AppVersion = "1.0.0"
)

type shutdownHandler interface {
	Shutdown()
}

type Application struct {
	fyneApp       fyne.App
	window        fyne.Window
	guiManager    *gui.Manager
	coordinator   *pipeline.Coordinator
	memoryManager *memory.Manager
	logger        logger.Logger
	shutdownables []shutdownHandler
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdown      chan struct{}
	menuSetup     bool
}

func NewApplication(cfg config.Config) (*Application, error) {
	app.SetMetadata(fyne.AppMetadata{
		ID:      AppID,
		Name:    AppName,
		Version: AppVersion,
		Build:   1,
	})

	fyneApp := app.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)

	windowSize := calculateMinimumWindowSize()
	window.Resize(windowSize)
	window.SetFixedSize(false)
	window.SetPadded(false)
	window.CenterOnScreen()
	window.SetMaster()

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log := logger.NewConsoleLogger(logLevel)

	log.Info("Application", "starting application", logger.Fields{
		"version":       AppVersion,
		"window_width":  windowSize.Width,
		"window_height": windowSize.Height,
		"log_level":     logLevel.String(),
	})

	memoryManager := memory.NewManager(log)
	processor := opencv.NewProcessor(memoryManager, log)
	coordinator, err := pipeline.NewCoordinator(cfg, processor, log)
	if err != nil {
		return nil, err
	}
	coordinator.SetCameraOpener(func(device int) (capture.Source, error) {
		return capture.OpenCamera(device, memoryManager, log)
	})

	guiManager, err := gui.NewManager(window, coordinator, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	application := &Application{
		fyneApp:       fyneApp,
		window:        window,
		guiManager:    guiManager,
		coordinator:   coordinator,
		memoryManager: memoryManager,
		logger:        log,
		ctx:           ctx,
		cancel:        cancel,
		shutdown:      make(chan struct{}),
		shutdownables: []shutdownHandler{
			shutdownFunc(memoryManager.Cleanup),
			coordinator,
			guiManager,
		},
	}

	application.setupSignalHandling()
	log.Info("Application", "initialization complete", nil)
	return application, nil
}

type shutdownFunc func()

func (f shutdownFunc) Shutdown() { f() }

func (a *Application) setupMenu() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", a.guiManager.OpenImage),
		fyne.NewMenuItem("Open Camera", a.guiManager.OpenCamera),
	)
	processingMenu := fyne.NewMenu("Processing",
		fyne.NewMenuItem("Start Processing", a.guiManager.StartProcessing),
		fyne.NewMenuItem("Stop Processing", a.guiManager.StopProcessing),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", func() {
			fyne.Do(a.showAbout)
		}),
	)

	a.window.SetMainMenu(fyne.NewMainMenu(fileMenu, processingMenu, helpMenu))

	a.logger.Info("Application", "menu setup completed", logger.Fields{
		"menus": []string{"File", "Processing", "Help"},
	})
}

func (a *Application) showAbout() {
	metadata := a.fyneApp.Metadata()
	stats := a.memoryManager.Stats()
	lib := a.coordinator.Library()

	aboutContent := container.NewVBox(
		widget.NewLabel(metadata.Name),
		widget.NewLabel(fmt.Sprintf("Version: %s", metadata.Version)),
		widget.NewLabel(fmt.Sprintf("Build: %d", metadata.Build)),
		widget.NewLabel(""),
		widget.NewLabel(fmt.Sprintf("Library: %d images, %d features", lib.Len(), lib.FeatureCount())),
		widget.NewLabel(fmt.Sprintf("Strategy: %s", a.coordinator.Strategy())),
		widget.NewLabel(""),
		widget.NewLabel("Runtime Info:"),
		widget.NewLabel(fmt.Sprintf("Go: %s", runtime.Version())),
		widget.NewLabel(fmt.Sprintf("Platform: %s/%s", runtime.GOOS, runtime.GOARCH)),
		widget.NewLabel(fmt.Sprintf("OpenCV Mats: %d active, peak %d bytes", stats.ActiveMats, stats.PeakBytes)),
	)

	dialog.ShowCustom("About", "Close", aboutContent, a.window)
}

func calculateMinimumWindowSize() fyne.Size {
	imageDisplayWidth := widgets.ImageAreaWidth * 2
	toolbarHeight := float32(50)

	return fyne.Size{
		Width:  float32(imageDisplayWidth + 100),
		Height: float32(widgets.ImageAreaHeight) + toolbarHeight + 100,
	}
}

func (a *Application) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("Application", "shutdown signal received", logger.Fields{
				"signal": sig.String(),
			})
			a.initiateShutdown()
		case <-a.ctx.Done():
			return
		}
	}()
}

// Run loads the reference library in the background, shows the window and
// blocks until the application quits.
func (a *Application) Run() error {
	if !a.menuSetup {
		a.setupMenu()
		a.menuSetup = true
	}

	a.window.SetCloseIntercept(func() {
		a.logger.Info("Application", "shutdown requested via window close", nil)
		a.initiateShutdown()
		a.window.Close()
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if _, err := a.coordinator.LoadLibrary(a.ctx); err != nil && a.ctx.Err() == nil {
			a.guiManager.ShowError("Library error", err)
		}
	}()

	fyne.Do(func() {
		a.guiManager.Show(a.ctx)
	})

	go func() {
		<-a.shutdown
		fyne.Do(func() {
			a.fyneApp.Quit()
		})
	}()

	a.fyneApp.Run()
	a.initiateShutdown()
	a.wg.Wait()
	return nil
}

func (a *Application) initiateShutdown() {
	select {
	case <-a.shutdown:
		return
	default:
		close(a.shutdown)
	}

	a.logger.Info("Application", "shutdown sequence initiated", logger.Fields{
		"components": len(a.shutdownables),
	})

	a.cancel()

	for i := len(a.shutdownables) - 1; i >= 0; i-- {
		component := a.shutdownables[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			component.Shutdown()
		}()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			a.logger.Warning("Application", "component shutdown timeout", logger.Fields{
				"component_index": i,
			})
		}
	}

	a.logger.Info("Application", "shutdown sequence completed", nil)
}

func (a *Application) Shutdown(ctx context.Context) error {
	a.initiateShutdown()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
