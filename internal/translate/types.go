// Package translate はExcel/CSVファイルの翻訳パイプラインを提供します。
package translate

// Job は1件の翻訳依頼を表します。キューを経由するためJSONで直列化可能です。
type Job struct {
	JobID            string `json:"jobId"`
	SessionID        string `json:"sessionId"`
	InputPath        string `json:"inputPath"`
	OriginalFilename string `json:"originalFilename"`
	SourceLang       string `json:"sourceLang"`
	TargetLang       string `json:"targetLang"`
	APIKey           string `json:"apiKey"`
	Model            string `json:"model"`
}

// Result は翻訳ジョブの成果物を表します。
type Result struct {
	JobID           string `json:"jobId"`
	OutputPath      string `json:"outputPath"`
	OutputFilename  string `json:"outputFilename"`
	DownloadURL     string `json:"downloadUrl"`
	SheetsProcessed int    `json:"sheetsProcessed"`
}
