package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConnectionStatus describes runtime status for one receiver connection.
type ConnectionStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pipeline is the mirroring flow for one post: route check, classify,
// schedule, assemble, dispatch.
type Pipeline interface {
	Process(ctx context.Context, msg IncomingMessage) DispatchReport
}

type inboundTask struct {
	ctx context.Context
	msg IncomingMessage
}

// Manager owns receiver connections and runs every inbound post through
// the pipeline on a bounded worker pool.
// Connection lifecycle lives in connection.go.
type Manager struct {
	routes      RouteLookup
	classifier  *Classifier
	scheduler   *FetchScheduler
	coordinator *DispatchCoordinator
	logger      *slog.Logger

	receivers []Receiver

	inboundQueue   chan inboundTask
	inboundWorkers int
	inboundOnce    sync.Once
	inboundCtx     context.Context
	inboundCancel  context.CancelFunc
	inboundWG      sync.WaitGroup

	mu             sync.Mutex
	connections    map[string]Connection
	connectionMeta map[string]ConnectionStatus
	retryInterval  time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithWorkers sets the worker count and queue size of the inbound pool.
func WithWorkers(workers, queueSize int) ManagerOption {
	return func(m *Manager) {
		if workers > 0 {
			m.inboundWorkers = workers
		}
		if queueSize > 0 {
			m.inboundQueue = make(chan inboundTask, queueSize)
		}
	}
}

// WithReconnectInterval sets how long to wait before retrying a failed Connect.
func WithReconnectInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.retryInterval = d
		}
	}
}

// NewManager creates a Manager wiring the pipeline components together.
func NewManager(log *slog.Logger, routes RouteLookup, classifier *Classifier, scheduler *FetchScheduler, coordinator *DispatchCoordinator, opts ...ManagerOption) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		routes:         routes,
		classifier:     classifier,
		scheduler:      scheduler,
		coordinator:    coordinator,
		logger:         log.With(slog.String("component", "channel")),
		inboundQueue:   make(chan inboundTask, 256),
		inboundWorkers: 4,
		connections:    map[string]Connection{},
		connectionMeta: map[string]ConnectionStatus{},
		retryInterval:  30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// AddReceiver registers a receiver to be connected on Start.
func (m *Manager) AddReceiver(r Receiver) {
	if r == nil {
		return
	}
	m.mu.Lock()
	m.receivers = append(m.receivers, r)
	m.mu.Unlock()
	m.logger.Info("receiver registered", slog.String("receiver", r.Name()))
}

// Start begins the inbound worker pool and connects every receiver.
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("manager start")
	m.startInboundWorkers(ctx)
	m.mu.Lock()
	receivers := append([]Receiver(nil), m.receivers...)
	m.mu.Unlock()
	for _, r := range receivers {
		go m.connectLoop(ctx, r)
	}
}

// Shutdown stops all connections and waits for in-flight work to drain.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopAll(ctx)
	if m.inboundCancel != nil {
		m.inboundCancel()
	}
	done := make(chan struct{})
	go func() {
		m.inboundWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleInbound enqueues msg for asynchronous processing. It is the
// InboundHandler given to receivers.
func (m *Manager) HandleInbound(ctx context.Context, msg IncomingMessage) error {
	m.startInboundWorkers(ctx)
	select {
	case m.inboundQueue <- inboundTask{ctx: context.WithoutCancel(ctx), msg: msg}:
		return nil
	default:
		m.logger.Warn("inbound queue full, post dropped",
			slog.String("channel_id", msg.ChannelID.String()),
			slog.Int("message_id", msg.MessageID),
		)
		return ErrQueueFull
	}
}

// Process runs msg through the pipeline synchronously. Unmapped channels
// are skipped before any fetch is scheduled.
func (m *Manager) Process(ctx context.Context, msg IncomingMessage) DispatchReport {
	if m.routes != nil {
		if endpoints, ok := m.routes.Lookup(msg.ChannelID); !ok || len(endpoints) == 0 {
			m.logger.Debug("channel not routed", slog.String("channel_id", msg.ChannelID.String()))
			now := time.Now().UTC()
			return DispatchReport{ChannelID: msg.ChannelID, MessageID: msg.MessageID, StartedAt: now, FinishedAt: now}
		}
	}
	refs, errs := m.classifier.Classify(msg)
	for _, err := range errs {
		m.logger.Warn("attachment classification failed",
			slog.String("channel_id", msg.ChannelID.String()),
			slog.Int("message_id", msg.MessageID),
			slog.Any("error", err),
		)
	}
	pending := m.scheduler.ScheduleAll(ctx, refs)
	unified := Assemble(msg.Text, pending)
	unified.MessageID = msg.MessageID
	return m.coordinator.Dispatch(ctx, msg.ChannelID, unified)
}

func (m *Manager) startInboundWorkers(ctx context.Context) {
	m.inboundOnce.Do(func() {
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.inboundCtx = workerCtx
		m.inboundCancel = cancel
		for i := 0; i < m.inboundWorkers; i++ {
			m.inboundWG.Add(1)
			go m.runInboundWorker(workerCtx)
		}
	})
}

func (m *Manager) runInboundWorker(ctx context.Context) {
	defer m.inboundWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-m.inboundQueue:
			m.processTask(task)
		}
	}
}

func (m *Manager) processTask(task inboundTask) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("inbound processing panic",
				slog.String("channel_id", task.msg.ChannelID.String()),
				slog.Any("panic", r),
			)
		}
	}()
	report := m.Process(task.ctx, task.msg)
	if report.Matched {
		m.logger.Info("post mirrored",
			slog.String("channel_id", report.ChannelID.String()),
			slog.Int("message_id", report.MessageID),
			slog.Int("attachments", len(report.Delivered)),
			slog.Int("dropped", len(report.Dropped)),
			slog.Int("endpoints", len(report.Endpoints)),
			slog.Int("failed", report.Failed()),
			slog.Bool("skipped", report.Skipped),
		)
	}
}
