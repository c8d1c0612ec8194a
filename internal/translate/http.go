package translate

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/config"
	"github.com/yourusername/excel-translator/internal/session"
	"github.com/yourusername/excel-translator/internal/storage"
)

// Scheduler は翻訳ジョブを非同期実行のためにキューへ登録します。
type Scheduler interface {
	Schedule(ctx context.Context, job *Job) error
}

// HandlerOptions はHTTPハンドラー群の依存をまとめます。
type HandlerOptions struct {
	Config    *config.Config
	Store     *storage.Local
	Registry  *session.Registry
	Scheduler Scheduler
	Logger    *zap.Logger
}

// TranslateHandler はファイルを受け付けて翻訳ジョブを登録するハンドラーを
// 返します。処理はバックグラウンドで行われ、202で受付応答を返します。
func TranslateHandler(opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			respondWithError(c, newError("INVALID_INPUT", "翻訳するファイルを選択してください。", err))
			return
		}

		apiKey := c.PostForm("api_key")
		if apiKey == "" {
			apiKey = opts.Config.OpenAIAPIKey
		}
		if apiKey == "" {
			respondWithError(c, newError("MISSING_API_KEY",
				"APIキーを指定するか、サーバー側でOPENAI_API_KEYを設定してください。", nil))
			return
		}

		sourceLang := c.DefaultPostForm("source_lang", "ko")
		targetLang := c.DefaultPostForm("target_lang", "en")
		if !IsSupportedLanguage(sourceLang) {
			respondWithError(c, newError("INVALID_INPUT",
				"対応していない翻訳元の言語コードです: "+sourceLang, nil))
			return
		}
		if !IsSupportedLanguage(targetLang) {
			respondWithError(c, newError("INVALID_INPUT",
				"対応していない翻訳先の言語コードです: "+targetLang, nil))
			return
		}
		model := c.PostForm("model")
		if model == "" {
			model = opts.Config.GPTModel
		}

		var sessionID string
		if given := c.PostForm("session_id"); given != "" {
			sessionID = given
			opts.Registry.Ensure(sessionID)
		} else {
			sessionID, _ = opts.Registry.Create()
		}

		inputPath, err := opts.Store.SaveUpload(c, file)
		if err != nil {
			respondWithError(c, err)
			return
		}

		job := &Job{
			JobID:            uuid.NewString(),
			SessionID:        sessionID,
			InputPath:        inputPath,
			OriginalFilename: file.Filename,
			SourceLang:       sourceLang,
			TargetLang:       targetLang,
			APIKey:           apiKey,
			Model:            model,
		}

		if err := opts.Scheduler.Schedule(c.Request.Context(), job); err != nil {
			opts.Store.Cleanup(inputPath)
			opts.Logger.Error("failed to schedule translation job",
				zap.String("jobId", job.JobID), zap.Error(err))
			respondWithError(c, newError("INTERNAL_ERROR", "ジョブの登録に失敗しました。", err))
			return
		}

		opts.Logger.Info("translation job accepted",
			zap.String("jobId", job.JobID),
			zap.String("sessionId", sessionID),
			zap.String("filename", file.Filename))

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":     job.JobID,
			"sessionId": sessionID,
		})
	}
}

// LanguagesHandler は対応言語の一覧を返すハンドラーを返します。
func LanguagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, AvailableLanguages())
	}
}

// DownloadHandler は生成済みの翻訳ファイルを返すハンドラーを返します。
func DownloadHandler(store *storage.Local) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")
		if filename == "" || filename != filepath.Base(filename) {
			respondWithError(c, newError("INVALID_INPUT", "ファイル名の指定が正しくありません。", nil))
			return
		}

		path := store.OutputPath(filename)
		if !fileExists(path) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "指定されたファイルが見つかりません。",
			}})
			return
		}

		c.FileAttachment(path, filename)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// respondWithError はエラーの種類に応じてHTTPステータスとボディを決めます。
func respondWithError(c *gin.Context, err error) {
	var transErr *Error
	if errors.As(err, &transErr) {
		status := http.StatusBadRequest
		switch transErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "INTERNAL_ERROR", "GPT_API_ERROR", "CONVERSION_FAILED":
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": gin.H{
			"code":    transErr.Code,
			"message": transErr.Message,
		}})
		return
	}

	switch {
	case errors.Is(err, storage.ErrInvalidExtension):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "INVALID_INPUT",
			"message": "xlsxまたはcsvファイルのみアップロードできます。",
		}})
	case errors.Is(err, storage.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{
			"code":    "LIMIT_EXCEEDED",
			"message": "ファイルサイズが上限を超えています。",
		}})
	case errors.Is(err, storage.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "INVALID_INPUT",
			"message": "ファイルの内容が拡張子と一致しません。",
		}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		}})
	}
}
