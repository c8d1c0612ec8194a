package translate

import "github.com/yourusername/excel-translator/internal/convert"

// systemPrompt は翻訳の役割と制約を定義するシステムプロンプトです。
// JSON構造で渡すことで指示の遵守率を上げています。
var systemPrompt = map[string]interface{}{
	"role": "professional_translator",
	"capabilities": []string{
		"Translate text content between languages",
		"Preserve data structure and formatting",
		"Handle technical and business terminology",
	},
	"constraints": []string{
		"Never modify keys or field names",
		"Never change numbers, dates, or technical values",
		"Never add or remove data entries",
		"Never truncate or summarize content",
		"Always maintain exact array length",
	},
	"output_requirements": []string{
		"Return valid JSON only",
		"No explanations or comments",
		"Same structure as input",
		"Complete translation of all entries",
	},
}

// languageNames は対応言語のコードと表示名の対応です。
var languageNames = map[string]string{
	"en": "English",
	"ko": "Korean",
	"ja": "Japanese",
	"zh": "Chinese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ru": "Russian",
	"pt": "Portuguese",
	"it": "Italian",
	"ar": "Arabic",
	"hi": "Hindi",
	"th": "Thai",
	"vi": "Vietnamese",
	"id": "Indonesian",
}

// AvailableLanguages は対応言語の一覧を返します。
func AvailableLanguages() map[string]string {
	return languageNames
}

// IsSupportedLanguage は言語コードが対応済みかどうかを返します。
func IsSupportedLanguage(code string) bool {
	_, ok := languageNames[code]
	return ok
}

// buildUserPrompt は翻訳対象の行データを含むユーザープロンプトを組み立てます。
func buildUserPrompt(sourceLang, targetLang string, rows []convert.Row) map[string]interface{} {
	return map[string]interface{}{
		"task":            "translate",
		"source_language": sourceLang,
		"target_language": targetLang,
		"rules": []string{
			"Translate ONLY the text values in each object",
			"Keep all keys (field names) in English unchanged",
			"Keep numbers, dates, URLs, and special characters unchanged",
			"Preserve empty or null values as-is",
			"Maintain the exact same array length and structure",
			"Do not add, remove, or reorder any objects",
			"Do not add explanations or metadata",
		},
		"input_data": rows,
		"output_format": map[string]interface{}{
			"type":        "array",
			"description": "Return a JSON array with the same structure as input_data, but with text values translated",
		},
	}
}
