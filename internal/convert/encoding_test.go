package convert

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

func TestDecodeTextUTF8(t *testing.T) {
	text, err := DecodeText([]byte("name,price\n사과,100\n"))
	if err != nil {
		t.Fatalf("DecodeText returned error: %v", err)
	}
	if text != "name,price\n사과,100\n" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestDecodeTextEUCKR(t *testing.T) {
	source := "이름,가격\n사과,100\n"
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte(source))
	if err != nil {
		t.Fatalf("failed to build euc-kr fixture: %v", err)
	}

	text, err := DecodeText(encoded)
	if err != nil {
		t.Fatalf("DecodeText returned error: %v", err)
	}
	if text != source {
		t.Fatalf("decoded = %q, want %q", text, source)
	}
}

func TestDecodeTextUTF16(t *testing.T) {
	source := "col\nvalue\n"
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte(source))
	if err != nil {
		t.Fatalf("failed to build utf-16 fixture: %v", err)
	}

	text, err := DecodeText(encoded)
	if err != nil {
		t.Fatalf("DecodeText returned error: %v", err)
	}
	if text != source {
		t.Fatalf("decoded = %q, want %q", text, source)
	}
}

func TestDecodeTextEmpty(t *testing.T) {
	text, err := DecodeText(nil)
	if err != nil {
		t.Fatalf("DecodeText returned error: %v", err)
	}
	if text != "" {
		t.Fatalf("decoded = %q, want empty", text)
	}
}

func TestReadFileWithEncodingStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,price\n")...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	text, err := ReadFileWithEncoding(path)
	if err != nil {
		t.Fatalf("ReadFileWithEncoding returned error: %v", err)
	}
	if text != "name,price\n" {
		t.Fatalf("BOM not stripped: %q", text)
	}
}

func TestReadFileWithEncodingMissingFile(t *testing.T) {
	if _, err := ReadFileWithEncoding(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
