package translate

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/convert"
	"github.com/yourusername/excel-translator/internal/progress"
	"github.com/yourusername/excel-translator/internal/storage"
)

// Service は翻訳パイプライン全体を実行します。
type Service struct {
	store         *storage.Local
	newTranslator TranslatorFactory
	chunkSize     int
}

// NewService は Service を生成します。factory が nil の場合はOpenAIの
// 実装を使います。
func NewService(store *storage.Local, chunkSize int, factory TranslatorFactory) *Service {
	if factory == nil {
		factory = NewOpenAITranslator
	}
	if chunkSize <= 0 {
		chunkSize = 5
	}
	return &Service{store: store, newTranslator: factory, chunkSize: chunkSize}
}

// RunJob は翻訳ジョブを最後まで実行します。進捗とログは tracker と logger を
// 通じてセッションへ届きます。入力ファイルは完了・失敗を問わず削除します。
func (s *Service) RunJob(ctx context.Context, job *Job, tracker *progress.Tracker, logger *zap.Logger) (_ *Result, err error) {
	defer s.store.Cleanup(job.InputPath)

	tracker.SetStage(progress.StageUpload, "ファイルを受け付けました")
	logger.Info("file uploaded",
		zap.String("jobId", job.JobID),
		zap.String("filename", job.OriginalFilename))
	tracker.CompleteStage(progress.StageUpload, "アップロード完了")

	tracker.SetStage(progress.StagePreparation, "ファイルを解析しています")
	sheets, err := s.loadSheets(job.InputPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(sheets))
	for i, sheet := range sheets {
		names[i] = sheet.Name
	}
	logger.Info("sheets loaded",
		zap.Strings("sheets", names),
		zap.String("direction", job.SourceLang+" -> "+job.TargetLang))
	tracker.CompleteStage(progress.StagePreparation, "ファイル解析完了")

	tracker.SetStage(progress.StageTranslation, "翻訳を開始します")
	translator := s.newTranslator(job.APIKey, job.Model, logger)

	translated := make([]convert.Sheet, 0, len(sheets))
	for idx, sheet := range sheets {
		logger.Info(fmt.Sprintf("translating sheet %d/%d: %s", idx+1, len(sheets), sheet.Name))

		table, parseErr := convert.ParseCSV(sheet.CSV)
		if parseErr != nil {
			return nil, newError("CONVERSION_FAILED",
				fmt.Sprintf("シート %s の解析に失敗しました。", sheet.Name), parseErr)
		}

		rows, transErr := translateTable(ctx, translator, table, job.SourceLang, job.TargetLang, s.chunkSize, tracker, logger)
		if transErr != nil {
			return nil, transErr
		}

		csvText, extras, formatErr := convert.FormatCSV(table.Columns, rows)
		if formatErr != nil {
			return nil, newError("CONVERSION_FAILED",
				fmt.Sprintf("シート %s の出力生成に失敗しました。", sheet.Name), formatErr)
		}
		if len(extras) > 0 {
			logger.Warn("found extra keys in translated rows",
				zap.String("sheet", sheet.Name), zap.Strings("keys", extras))
		}

		translated = append(translated, convert.Sheet{Name: sheet.Name, CSV: csvText})
		logger.Info(fmt.Sprintf("completed sheet %d/%d: %s", idx+1, len(sheets), sheet.Name))
	}
	tracker.CompleteStage(progress.StageTranslation, "全シートの翻訳完了")

	tracker.SetStage(progress.StageExcelGeneration, "Excelファイルを生成しています")
	outputFilename := storage.OutputFilename(job.OriginalFilename)
	outputPath := s.store.OutputPath(outputFilename)
	if err := convert.SheetsToExcel(translated, outputPath); err != nil {
		return nil, newError("CONVERSION_FAILED", "Excelファイルの生成に失敗しました。", err)
	}
	logger.Info("output file created", zap.String("path", outputPath))
	tracker.CompleteStage(progress.StageExcelGeneration, "Excelファイル生成完了")

	result := &Result{
		JobID:           job.JobID,
		OutputPath:      outputPath,
		OutputFilename:  outputFilename,
		DownloadURL:     "/api/download/" + url.PathEscape(outputFilename),
		SheetsProcessed: len(translated),
	}

	tracker.SetStage(progress.StageComplete, "仕上げ処理中")
	logger.Info("TRANSLATION_COMPLETE download_url=" + result.DownloadURL)
	tracker.CompleteStage(progress.StageComplete, "翻訳が完了しました")

	return result, nil
}

// loadSheets は入力ファイルをシート単位のCSVへ展開します。
// CSVファイルは単一シートとして扱います。
func (s *Service) loadSheets(inputPath string) ([]convert.Sheet, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext == ".xlsx" {
		sheets, err := convert.ExcelToSheets(inputPath)
		if err != nil {
			return nil, newError("CONVERSION_FAILED", "Excelファイルの読み込みに失敗しました。", err)
		}
		if len(sheets) == 0 {
			return nil, newError("INVALID_INPUT", "翻訳対象のシートが見つかりません。", nil)
		}
		return sheets, nil
	}

	text, err := convert.ReadFileWithEncoding(inputPath)
	if err != nil {
		return nil, newError("ENCODING_ERROR", "ファイルの文字コードを判定できませんでした。", err)
	}
	return []convert.Sheet{{Name: "Sheet1", CSV: text}}, nil
}
