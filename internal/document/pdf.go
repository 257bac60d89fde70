package document

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF 从PDF字节中提取文本和元数据
// pdfcpu的提取接口按文件路径工作，所以先把缓冲区落到临时文件
func extractPDF(buffer []byte) (*ExtractedDocument, error) {
	tmpFile, err := os.CreateTemp("", "docaudit_pdf_*.pdf")
	if err != nil {
		return nil, WrapProcessingError(ErrCodePDFExtraction, "failed to create temp file", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(buffer); err != nil {
		tmpFile.Close()
		return nil, WrapProcessingError(ErrCodePDFExtraction, "failed to write temp file", err)
	}
	tmpFile.Close()

	// 提取文本到临时目录，每页一个txt文件
	tmpDir, err := os.MkdirTemp("", "docaudit_pdf_extract_")
	if err != nil {
		return nil, WrapProcessingError(ErrCodePDFExtraction, "failed to create temp dir", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tmpFile.Name(), tmpDir, nil, conf); err != nil {
		return nil, WrapProcessingError(ErrCodePDFExtraction, "failed to extract text from PDF", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, WrapProcessingError(ErrCodePDFExtraction, "failed to read extracted text dir", err)
	}

	// 按文件名排序以保持页码顺序
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".txt") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var allText strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			continue
		}
		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.Write(data)
	}

	doc := &ExtractedDocument{
		Text:     strings.TrimSpace(allText.String()),
		Metadata: scanPDFInfo(buffer),
	}

	// 页数单独获取，失败不影响文本结果
	if pages, err := api.PageCountFile(tmpFile.Name()); err == nil {
		doc.Metadata.Pages = pages
	}

	return doc, nil
}

// scanPDFInfo 从原始字节中尽力扫描Info字典的常见键
// 只处理字面量字符串形式的值，提取不到就留空
func scanPDFInfo(buffer []byte) DocumentMetadata {
	return DocumentMetadata{
		Title:        scanPDFInfoString(buffer, "/Title"),
		Author:       scanPDFInfoString(buffer, "/Author"),
		CreationDate: scanPDFInfoString(buffer, "/CreationDate"),
	}
}

// scanPDFInfoString 查找形如 /Key (value) 的字面量字符串值
func scanPDFInfoString(buffer []byte, key string) string {
	idx := bytes.Index(buffer, []byte(key))
	if idx < 0 {
		return ""
	}

	rest := buffer[idx+len(key):]
	// 跳过键后面的空白
	start := 0
	for start < len(rest) && (rest[start] == ' ' || rest[start] == '\r' || rest[start] == '\n' || rest[start] == '\t') {
		start++
	}
	if start >= len(rest) || rest[start] != '(' {
		return ""
	}

	// 解析可能包含嵌套括号和反斜杠转义的字面量字符串
	var value strings.Builder
	depth := 1
	for i := start + 1; i < len(rest) && value.Len() < 512; i++ {
		c := rest[i]
		switch c {
		case '\\':
			if i+1 < len(rest) {
				value.WriteByte(rest[i+1])
				i++
			}
		case '(':
			depth++
			value.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(value.String())
			}
			value.WriteByte(c)
		default:
			value.WriteByte(c)
		}
	}
	return ""
}
