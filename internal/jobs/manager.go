package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/config"
	"github.com/yourusername/excel-translator/internal/progress"
	"github.com/yourusername/excel-translator/internal/session"
	"github.com/yourusername/excel-translator/internal/translate"
)

const (
	taskTypeTranslate = "translate:process"
	queueName         = "translate"
)

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	cfg      *config.Config
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	store    *Store
	registry *session.Registry
	service  *translate.Service
	logger   *zap.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, service *translate.Service, store *Store, registry *session.Registry, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if service == nil {
		return nil, errors.New("service is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:      cfg,
		client:   client,
		server:   server,
		mux:      mux,
		store:    store,
		registry: registry,
		service:  service,
		logger:   logger,
	}
	mux.HandleFunc(taskTypeTranslate, manager.handleTranslateTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Error("asynq server stopped with error", zap.Error(err))
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Schedule は翻訳ジョブをキューに投入します。
// リトライは行いません。再実行すると同じセッションへイベントが二重に
// 流れるためです。
func (m *Manager) Schedule(ctx context.Context, job *translate.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if job.JobID == "" {
		return fmt.Errorf("job.JobID is required")
	}

	record := &Record{
		JobID:     job.JobID,
		SessionID: job.SessionID,
		Status:    StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeTranslate, body, asynq.Queue(queueName))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return err
	}
	return nil
}

// handleTranslateTask はワーカー側で翻訳ジョブを実行します。
// ドメインエラーはイベント経由でクライアントへ報告済みのためnilを返し、
// Asynq側での再試行は発生させません。
func (m *Manager) handleTranslateTask(ctx context.Context, task *asynq.Task) error {
	var job translate.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return err
	}
	if job.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}

	if err := m.store.updatePartial(ctx, job.JobID, func(record *Record) {
		record.Status = StatusRunning
	}); err != nil {
		m.logger.Warn("failed to mark job running",
			zap.String("jobId", job.JobID), zap.Error(err))
	}

	// セッションが未作成でもジョブは進める（購読前の投稿に対応）
	queue := m.registry.Ensure(job.SessionID)
	emitter := &recordingEmitter{queue: queue, store: m.store, jobID: job.JobID}
	jobLogger := session.NewSessionLogger(m.logger, queue).With(
		zap.String("jobId", job.JobID))
	tracker := progress.NewTracker(emitter, jobLogger)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("translation job panicked",
				zap.String("jobId", job.JobID), zap.Any("panic", r))
			m.finishWithError(ctx, &job, queue,
				fmt.Errorf("unexpected panic: %v", r))
		}
	}()

	result, err := m.service.RunJob(ctx, &job, tracker, jobLogger)
	if err != nil {
		m.finishWithError(ctx, &job, queue, err)
		return nil
	}

	if err := m.store.MarkDone(ctx, job.JobID, result.DownloadURL, &ResultMeta{
		Filename:        result.OutputFilename,
		SheetsProcessed: result.SheetsProcessed,
	}); err != nil {
		m.logger.Warn("failed to mark job done",
			zap.String("jobId", job.JobID), zap.Error(err))
	}
	return nil
}

// finishWithError は失敗をジョブストアへ記録し、終端イベントを送出します。
func (m *Manager) finishWithError(ctx context.Context, job *translate.Job, queue *session.Queue, err error) {
	code := "INTERNAL_ERROR"
	message := err.Error()
	var transErr *translate.Error
	if errors.As(err, &transErr) {
		code = transErr.Code
		message = transErr.Message
	}

	m.logger.Error("translation job failed",
		zap.String("jobId", job.JobID),
		zap.String("code", code),
		zap.Error(err))

	queue.Emit(session.NewTerminalLogEvent("ERROR",
		fmt.Sprintf("TRANSLATION_FAILED: %s", message), time.Now()))

	if storeErr := m.store.MarkFailed(ctx, job.JobID, &ErrorInfo{
		Code:    code,
		Message: message,
	}); storeErr != nil {
		m.logger.Warn("failed to mark job failed",
			zap.String("jobId", job.JobID), zap.Error(storeErr))
	}
}

// recordingEmitter はイベントをセッションキューへ流しつつ、進捗の節目を
// ジョブストアにも書き込みます。
type recordingEmitter struct {
	queue *session.Queue
	store *Store
	jobID string
}

func (e *recordingEmitter) Emit(evt session.Event) {
	e.queue.Emit(evt)

	switch v := evt.(type) {
	case session.MilestoneEvent:
		_ = e.store.UpdateProgress(context.Background(), e.jobID, ProgressInfo{
			Percent: v.Percentage,
			Stage:   v.Stage,
			Message: v.Message,
		})
	case session.ProgressEvent:
		_ = e.store.UpdateProgress(context.Background(), e.jobID, ProgressInfo{
			Percent: v.Percentage,
			Stage:   v.Stage,
			Message: v.Message,
		})
	}
}
