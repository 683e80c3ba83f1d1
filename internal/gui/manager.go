package gui

import (
	"context"

	"hallucinator/internal/logger"

	"fyne.io/fyne/v2"
)

type Manager struct {
	window     fyne.Window
	controller *Controller
	view       *View
	logger     logger.Logger
	isShutdown bool
}

func NewManager(window fyne.Window, coordinator Coordinator, log logger.Logger) (*Manager, error) {
	manager := &Manager{
		window: window,
		logger: log,
	}

	manager.view = NewView(window, coordinator.Strategies(), coordinator.Strategy())
	manager.controller = NewController(coordinator, log)
	manager.view.SetController(manager.controller)
	manager.controller.SetView(manager.view)

	log.Info("GUIManager", "initialized with MVC pattern", logger.Fields{
		"window_title": window.Title(),
	})

	return manager, nil
}

func (m *Manager) GetMainContainer() *fyne.Container {
	return m.view.GetMainContainer()
}

// Show displays the window and starts the frame loop.
func (m *Manager) Show(ctx context.Context) {
	m.view.Show()
	m.controller.StartLoop(ctx)
	m.logger.Info("GUIManager", "GUI displayed", nil)
}

func (m *Manager) StartProcessing() {
	m.controller.StartProcessing()
}

func (m *Manager) StopProcessing() {
	m.controller.StopProcessing()
}

func (m *Manager) ShowError(title string, err error) {
	fyne.Do(func() {
		m.view.ShowError(title, err)
	})
}

func (m *Manager) Shutdown() {
	if m.isShutdown {
		return
	}

	m.isShutdown = true
	m.logger.Info("GUIManager", "shutdown initiated", nil)

	if m.controller != nil {
		m.controller.Shutdown()
	}

	m.logger.Info("GUIManager", "shutdown completed", nil)
}

func (m *Manager) OpenImage() {
	fyne.Do(m.controller.OpenImage)
}

func (m *Manager) OpenCamera() {
	m.controller.OpenCamera()
}
