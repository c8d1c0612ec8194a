// Package storage はアップロードファイルと生成物のローカル保存を提供します。
package storage

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	// ErrInvalidExtension は対応していない拡張子のアップロードを表します。
	ErrInvalidExtension = errors.New("unsupported file extension")
	// ErrFileTooLarge はサイズ上限を超えるアップロードを表します。
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrInvalidContent は拡張子と実際の内容が一致しないアップロードを表します。
	ErrInvalidContent = errors.New("file content does not match extension")
)

// Local は一時ディレクトリ配下でファイルを管理します。
type Local struct {
	dir         string
	maxFileSize int64
}

// NewLocal は保存先ディレクトリを作成して Local を生成します。
func NewLocal(dir string, maxFileSize int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{dir: dir, maxFileSize: maxFileSize}, nil
}

// SaveUpload はアップロードファイルを検証して一意な名前で保存し、
// 保存先のパスを返します。
func (l *Local) SaveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".xlsx" && ext != ".csv" {
		return "", ErrInvalidExtension
	}
	if file.Size > l.maxFileSize {
		return "", ErrFileTooLarge
	}

	storedPath := filepath.Join(l.dir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		return "", fmt.Errorf("failed to save uploaded file: %w", err)
	}

	if err := l.verifyContent(storedPath, ext); err != nil {
		os.Remove(storedPath)
		return "", err
	}

	return storedPath, nil
}

// verifyContent は保存済みファイルのMIMEタイプが拡張子に見合うか確認します。
func (l *Local) verifyContent(path, ext string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	switch ext {
	case ".xlsx":
		// xlsxはzipコンテナなので、zipとして判定される場合も受け入れる
		if mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") ||
			mtype.Is("application/zip") {
			return nil
		}
	case ".csv":
		if strings.HasPrefix(mtype.String(), "text/") ||
			mtype.Is("application/octet-stream") {
			return nil
		}
	}
	return ErrInvalidContent
}

// Cleanup は保存済みファイルを削除します。存在しない場合は無視します。
func (l *Local) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return
	}
}

// OutputPath は生成物ファイル名に対応する保存先パスを返します。
func (l *Local) OutputPath(filename string) string {
	return filepath.Join(l.dir, filename)
}

// OutputFilename は元のファイル名から翻訳結果のファイル名を導出します。
func OutputFilename(originalFilename string) string {
	base := filepath.Base(originalFilename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_translated.xlsx"
}

// Dir は保存先ディレクトリを返します。
func (l *Local) Dir() string {
	return l.dir
}
