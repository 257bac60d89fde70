package document

import (
	"bytes"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestPDF 用gofpdf生成一个内存中的PDF测试文件
func buildTestPDF(t *testing.T, title string, pages []string) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAuthor("Test Author", false)
	for _, content := range pages {
		pdf.AddPage()
		pdf.SetFont("Arial", "", 12)
		pdf.MultiCell(190, 10, content, "", "L", false)
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf), "生成测试PDF不应失败")
	return buf.Bytes()
}

// encodeUTF16 把字符串编码为带BOM的UTF-16字节序列
func encodeUTF16(text string, bigEndian bool) []byte {
	var buf bytes.Buffer
	if bigEndian {
		buf.Write([]byte{0xFE, 0xFF})
	} else {
		buf.Write([]byte{0xFF, 0xFE})
	}
	for _, r := range text {
		hi, lo := byte(r>>8), byte(r&0xFF)
		if bigEndian {
			buf.WriteByte(hi)
			buf.WriteByte(lo)
		} else {
			buf.WriteByte(lo)
			buf.WriteByte(hi)
		}
	}
	return buf.Bytes()
}

// TestExtractPDF 测试PDF文本提取
func TestExtractPDF(t *testing.T) {
	extractor := NewTextExtractor()

	t.Run("single page", func(t *testing.T) {
		content := buildTestPDF(t, "Quarterly Report", []string{"Hello compliance team"})
		doc, err := extractor.Extract(content, "report.pdf")
		require.NoError(t, err)
		assert.Contains(t, doc.Text, "Hello compliance team")
		assert.Equal(t, FileTypePDF, doc.Metadata.FileType)
		assert.Equal(t, "Quarterly Report", doc.Metadata.Title)
		assert.Equal(t, "Test Author", doc.Metadata.Author)
		assert.Equal(t, 1, doc.Metadata.Pages)
	})

	t.Run("multi page preserves order", func(t *testing.T) {
		content := buildTestPDF(t, "Handbook", []string{"first page text", "second page text"})
		doc, err := extractor.Extract(content, "handbook.pdf")
		require.NoError(t, err)
		assert.Equal(t, 2, doc.Metadata.Pages)
		firstIdx := bytes.Index([]byte(doc.Text), []byte("first page text"))
		secondIdx := bytes.Index([]byte(doc.Text), []byte("second page text"))
		require.GreaterOrEqual(t, firstIdx, 0)
		require.GreaterOrEqual(t, secondIdx, 0)
		assert.Less(t, firstIdx, secondIdx, "文本应保持页码顺序")
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		_, err := extractor.Extract([]byte("%PDF-1.7\ngarbage body without structure"), "broken.pdf")
		require.Error(t, err)
		procErr := AsProcessingError(err)
		assert.Equal(t, ErrCodePDFExtraction, procErr.Code)
		assert.False(t, procErr.Retryable, "内容类失败不可重试")
	})
}

// TestExtractPlainText 测试纯文本提取和编码处理
func TestExtractPlainText(t *testing.T) {
	extractor := NewTextExtractor()

	t.Run("utf8", func(t *testing.T) {
		doc, err := extractor.Extract([]byte("Plain UTF-8 content with 中文"), "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "Plain UTF-8 content with 中文", doc.Text)
		assert.Equal(t, FileTypeTXT, doc.Metadata.FileType)
	})

	t.Run("utf8 bom stripped", func(t *testing.T) {
		content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("content after BOM")...)
		doc, err := extractor.Extract(content, "bom.txt")
		require.NoError(t, err)
		assert.Equal(t, "content after BOM", doc.Text)
	})

	t.Run("utf16 little endian", func(t *testing.T) {
		doc, err := extractor.Extract(encodeUTF16("utf-16 text content", false), "le.txt")
		require.NoError(t, err)
		assert.Equal(t, "utf-16 text content", doc.Text)
	})

	t.Run("utf16 big endian", func(t *testing.T) {
		doc, err := extractor.Extract(encodeUTF16("utf-16 text content", true), "be.txt")
		require.NoError(t, err)
		assert.Equal(t, "utf-16 text content", doc.Text)
	})

	t.Run("non utf8 falls back without error", func(t *testing.T) {
		// Latin-1编码的文本不是合法UTF-8，应走解码回退链而不是报错
		latin1 := []byte{'c', 'a', 'f', 0xE9, ' ', 'm', 'e', 'n', 'u'}
		doc, err := extractor.Extract(latin1, "latin.txt")
		require.NoError(t, err)
		assert.NotEmpty(t, doc.Text)
	})

	t.Run("whitespace only is empty document", func(t *testing.T) {
		_, err := extractor.Extract([]byte("   \n\t  "), "blank.txt")
		require.Error(t, err)
		assert.Equal(t, ErrCodeEmptyDocument, AsProcessingError(err).Code)
	})
}

// TestExtractRTF 测试RTF控制字剥离
func TestExtractRTF(t *testing.T) {
	extractor := NewTextExtractor()

	t.Run("basic content", func(t *testing.T) {
		content := []byte(`{\rtf1\ansi{\fonttbl{\f0 Times New Roman;}}\f0\fs24 Hello\par World\par}`)
		doc, err := extractor.Extract(content, "memo.rtf")
		require.NoError(t, err)
		assert.Equal(t, "Hello\nWorld", doc.Text)
		assert.Equal(t, FileTypeRTF, doc.Metadata.FileType)
	})

	t.Run("escapes", func(t *testing.T) {
		content := []byte(`{\rtf1 a\~b\{c\}}`)
		doc, err := extractor.Extract(content, "esc.rtf")
		require.NoError(t, err)
		assert.Equal(t, "a b{c}", doc.Text)
	})

	t.Run("hex escapes are dropped", func(t *testing.T) {
		content := []byte(`{\rtf1 caf\'e9 au lait}`)
		doc, err := extractor.Extract(content, "hex.rtf")
		require.NoError(t, err)
		assert.Equal(t, "caf au lait", doc.Text)
	})

	t.Run("metadata groups skipped", func(t *testing.T) {
		content := []byte(`{\rtf1{\info{\title Secret Title}}Visible body text}`)
		doc, err := extractor.Extract(content, "meta.rtf")
		require.NoError(t, err)
		assert.Equal(t, "Visible body text", doc.Text)
		assert.NotContains(t, doc.Text, "Secret Title")
	})
}

// TestExtractWordFailures 测试损坏的Word文档的错误分类
func TestExtractWordFailures(t *testing.T) {
	extractor := NewTextExtractor()

	t.Run("corrupt docx", func(t *testing.T) {
		_, err := extractor.Extract([]byte("PK\x03\x04 not actually a zip archive"), "fake.docx")
		require.Error(t, err)
		assert.Equal(t, ErrCodeWordExtraction, AsProcessingError(err).Code)
	})

	t.Run("corrupt doc", func(t *testing.T) {
		garbage := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, bytes.Repeat([]byte{0x00}, 64)...)
		_, err := extractor.Extract(garbage, "fake.doc")
		require.Error(t, err)
		assert.Equal(t, ErrCodeWordExtraction, AsProcessingError(err).Code)
	})
}

// TestResolveFileType 测试文件类型解析
func TestResolveFileType(t *testing.T) {
	extractor := NewTextExtractor()

	t.Run("content sniffing wins over extension", func(t *testing.T) {
		pdf := buildTestPDF(t, "", []string{"content"})
		fileType, err := extractor.ResolveFileType(pdf, "mislabeled.txt")
		require.NoError(t, err)
		assert.Equal(t, FileTypePDF, fileType, "内容嗅探应优先于扩展名")
	})

	t.Run("extension fallback for ambiguous content", func(t *testing.T) {
		fileType, err := extractor.ResolveFileType([]byte("just plain text"), "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, FileTypeTXT, fileType)
	})

	t.Run("undeterminable type", func(t *testing.T) {
		_, err := extractor.ResolveFileType([]byte("mystery bytes"), "unknown.xyz")
		require.Error(t, err)
		assert.Equal(t, ErrCodeUnknownFileType, AsProcessingError(err).Code)
	})
}
