// Package progress は翻訳ジョブの段階的な進捗管理を提供します。
package progress

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/session"
)

// Stage は翻訳ジョブの処理段階を表します。
type Stage string

const (
	StageUpload          Stage = "upload"
	StagePreparation     Stage = "preparation"
	StageTranslation     Stage = "translation"
	StageExcelGeneration Stage = "excel_generation"
	StageComplete        Stage = "complete"
)

// stageOrder は段階の進行順です。巻き戻りの検出に使います。
var stageOrder = []Stage{
	StageUpload,
	StagePreparation,
	StageTranslation,
	StageExcelGeneration,
	StageComplete,
}

// stageWeights は各段階が全体進捗に占める割合です。合計は100になります。
var stageWeights = map[Stage]int{
	StageUpload:          10,
	StagePreparation:     10,
	StageTranslation:     60,
	StageExcelGeneration: 15,
	StageComplete:        5,
}

func stageIndex(stage Stage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// StageStart は指定段階の開始時点の全体進捗率を返します。
func StageStart(stage Stage) int {
	start := 0
	for _, s := range stageOrder {
		if s == stage {
			return start
		}
		start += stageWeights[s]
	}
	return start
}

// Tracker は1ジョブ分の進捗状態を保持し、変化をイベントとして送出します。
// 単一のジョブゴルーチンからのみ使用される前提で、ロックは持ちません。
type Tracker struct {
	current         Stage
	totalChunks     int
	completedChunks int
	emitter         session.Emitter
	logger          *zap.Logger
}

// NewTracker はアップロード段階を初期状態とする Tracker を生成します。
func NewTracker(emitter session.Emitter, logger *zap.Logger) *Tracker {
	return &Tracker{
		current: StageUpload,
		emitter: emitter,
		logger:  logger,
	}
}

// Current は現在の段階を返します。
func (t *Tracker) Current() Stage {
	return t.current
}

// Progress は現在の全体進捗率を返します。翻訳段階では完了チャンク数に
// 応じて段階開始値から按分します。
func (t *Tracker) Progress() int {
	base := StageStart(t.current)
	if t.current == StageTranslation && t.totalChunks > 0 {
		return base + t.completedChunks*stageWeights[StageTranslation]/t.totalChunks
	}
	return base
}

// SetStage は段階を進め、開始マイルストーンを送出します。
// 進行順に逆行する指定は無視します。
func (t *Tracker) SetStage(stage Stage, message string) {
	if stageIndex(stage) < stageIndex(t.current) {
		t.logger.Warn("ignoring backward stage transition",
			zap.String("from", string(t.current)), zap.String("to", string(stage)))
		return
	}
	t.current = stage

	pct := StageStart(stage)
	t.emitter.Emit(session.MilestoneEvent{
		Type:       "milestone",
		Stage:      string(stage),
		Percentage: pct,
		Message:    message,
	})
	t.logger.Info(fmt.Sprintf("MILESTONE: %s (%d%%)", message, pct))
}

// CompleteStage は現在の段階の完了マイルストーンを送出します。
// 最終段階の完了はストリーム終端の合図になります。
func (t *Tracker) CompleteStage(stage Stage, message string) {
	if stage != t.current {
		t.current = stage
	}
	pct := StageStart(stage) + stageWeights[stage]

	t.emitter.Emit(session.MilestoneEvent{
		Type:       "milestone",
		Stage:      string(stage),
		Percentage: pct,
		Message:    message,
		Completed:  true,
	})
	t.logger.Info(fmt.Sprintf("COMPLETE: %s (%d%%)", message, pct))
}

// SetChunks は翻訳段階のチャンク総数を設定し、完了数をリセットします。
func (t *Tracker) SetChunks(total int) {
	t.totalChunks = total
	t.completedChunks = 0
}

// IncrementChunk はチャンク1件の完了を記録し、進捗イベントを送出します。
func (t *Tracker) IncrementChunk(current, total int, message string) {
	if total > 0 {
		t.totalChunks = total
	}
	t.completedChunks = current
	if message == "" {
		message = fmt.Sprintf("チャンク %d/%d 翻訳完了", current, total)
	}

	pct := t.Progress()
	t.emitter.Emit(session.ProgressEvent{
		Type:       "progress",
		Stage:      string(t.current),
		Current:    current,
		Total:      total,
		Percentage: pct,
		Message:    message,
	})
	t.logger.Info(fmt.Sprintf("PROGRESS: %s (%d%%)", message, pct))
}
