package channel

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

// connectLoop connects r and retries failed attempts until ctx ends.
func (m *Manager) connectLoop(ctx context.Context, r Receiver) {
	name := r.Name()
	for {
		conn, err := r.Connect(ctx, m.HandleInbound)
		if err == nil {
			m.mu.Lock()
			m.connections[name] = conn
			m.setConnectionStatusLocked(name, true, nil)
			m.mu.Unlock()
			m.logger.Info("receiver connected", slog.String("receiver", name))
			return
		}
		m.markConnectionStatus(name, false, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retryInterval):
		}
	}
}

func (m *Manager) stopAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, conn := range m.connections {
		if conn == nil {
			continue
		}
		m.logger.Info("receiver stop", slog.String("receiver", name))
		if err := conn.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) {
			m.logger.Warn("receiver stop failed", slog.String("receiver", name), slog.Any("error", err))
		}
		delete(m.connections, name)
		m.setConnectionStatusLocked(name, false, nil)
	}
}

// ConnectionStatuses returns the observed status of every receiver, refreshed
// from the live connections.
func (m *Manager) ConnectionStatuses() []ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, conn := range m.connections {
		if conn == nil {
			continue
		}
		prev := m.connectionMeta[name]
		if prev.Running != conn.Running() {
			m.setConnectionStatusLocked(name, conn.Running(), nil)
		}
	}
	items := make([]ConnectionStatus, 0, len(m.connectionMeta))
	for _, status := range m.connectionMeta {
		items = append(items, status)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

func (m *Manager) markConnectionStatus(name string, running bool, checkErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setConnectionStatusLocked(name, running, checkErr)
}

func (m *Manager) setConnectionStatusLocked(name string, running bool, checkErr error) {
	if name == "" {
		return
	}
	previous, hasPrevious := m.connectionMeta[name]
	status := ConnectionStatus{
		Name:      name,
		Running:   running,
		UpdatedAt: time.Now().UTC(),
	}
	if checkErr != nil {
		status.LastError = checkErr.Error()
	}
	m.connectionMeta[name] = status
	if checkErr != nil && (!hasPrevious || previous.LastError != status.LastError || previous.Running != status.Running) {
		m.logger.Warn("receiver connect failed", slog.String("receiver", name), slog.Any("error", checkErr))
	}
	if running && hasPrevious && previous.LastError != "" {
		m.logger.Info("receiver recovered", slog.String("receiver", name))
	}
}
