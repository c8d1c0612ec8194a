// Package logging はzapロガーの生成ヘルパーを提供します。
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New は実行モードに応じたzapロガーを生成します。
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build dev logger: %w", err)
		}
		return logger, nil
	}

	cfg := zap.NewProductionConfig()
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build prod logger: %w", err)
	}
	return logger, nil
}
