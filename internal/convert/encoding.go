// Package convert はCSV・Excel・文字コード間のデータ変換を提供します。
package convert

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// fallbackEncodings は自動判定に失敗した場合に順番に試す文字コードです。
// 韓国語圏のレガシーCSVを想定しています。
var fallbackEncodings = []string{"utf-8", "euc-kr", "cp949", "utf-16"}

func encodingByName(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "utf-8", "ascii":
		return unicode.UTF8
	case "euc-kr", "cp949", "windows-949", "uhc":
		return korean.EUCKR
	case "utf-16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return nil
	}
}

func decodeAs(data []byte, name string) (string, bool) {
	lower := strings.ToLower(name)
	if lower == "utf-8" || lower == "ascii" {
		// UTF-8のデコーダーは不正なバイトを置換文字に差し替えてしまうため、
		// フォールバック順を壊さないよう厳密に検査する
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}

	enc := encodingByName(lower)
	if enc == nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}

// DecodeText はバイト列の文字コードを判定してUTF-8文字列へ変換します。
// 判定結果で復号できない場合は既定の候補を順に試します。
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(data); err == nil && result.Confidence > 0 {
		if text, ok := decodeAs(data, result.Charset); ok {
			return text, nil
		}
	}

	for _, name := range fallbackEncodings {
		if text, ok := decodeAs(data, name); ok {
			return text, nil
		}
	}

	return "", fmt.Errorf("unable to decode text with any known encoding")
}

// ReadFileWithEncoding はファイルを読み込み、文字コードを判定して
// UTF-8文字列として返します。
func ReadFileWithEncoding(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	text, err := DecodeText(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	// BOMが残るとCSVの先頭カラム名が壊れる
	return strings.TrimPrefix(text, "\uFEFF"), nil
}
