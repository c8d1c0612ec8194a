package translate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/convert"
	"github.com/yourusername/excel-translator/internal/progress"
)

// translateTable は表データをチャンク単位で翻訳します。行数がチャンクサイズ
// 以下なら1回の呼び出し、超える場合は分割して順番に処理します。
func translateTable(ctx context.Context, translator RowTranslator, table *convert.Table, sourceLang, targetLang string, chunkSize int, tracker *progress.Tracker, logger *zap.Logger) ([]convert.Row, error) {
	rows := table.Rows
	if len(rows) == 0 {
		return nil, nil
	}

	if len(rows) <= chunkSize {
		return translator.TranslateRows(ctx, rows, sourceLang, targetLang)
	}

	totalChunks := (len(rows) + chunkSize - 1) / chunkSize
	logger.Info("splitting rows into chunks",
		zap.Int("rows", len(rows)),
		zap.Int("chunkSize", chunkSize),
		zap.Int("chunks", totalChunks))
	tracker.SetChunks(totalChunks)

	translated := make([]convert.Row, 0, len(rows))
	for i := 0; i < len(rows); i += chunkSize {
		end := i + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunkNum := i/chunkSize + 1

		chunkRows, err := translator.TranslateRows(ctx, rows[i:end], sourceLang, targetLang)
		if err != nil {
			return nil, newError("GPT_API_ERROR",
				fmt.Sprintf("チャンク %d/%d の翻訳に失敗しました。", chunkNum, totalChunks), err)
		}
		translated = append(translated, chunkRows...)

		tracker.IncrementChunk(chunkNum, totalChunks, "")
	}

	if len(translated) < len(rows) {
		logger.Warn("translated row count is smaller than input",
			zap.Int("input", len(rows)), zap.Int("output", len(translated)))
	}

	return translated, nil
}
