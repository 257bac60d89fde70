package document

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// TextExtractor 文本提取器
// 负责识别文件类型并分发到对应格式的提取实现
// 每个格式的提取器都是无共享状态的纯函数，按标签分发而不是继承
type TextExtractor struct{}

// NewTextExtractor 创建文本提取器
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract 从原始字节中提取文本和元数据
// 任何失败都返回带分类错误码的*ProcessingError，内容类失败不可重试
func (e *TextExtractor) Extract(buffer []byte, filename string) (*ExtractedDocument, error) {
	fileType, err := e.ResolveFileType(buffer, filename)
	if err != nil {
		return nil, err
	}

	var doc *ExtractedDocument
	switch fileType {
	case FileTypePDF:
		doc, err = extractPDF(buffer)
	case FileTypeDOCX:
		doc, err = extractDOCX(buffer)
	case FileTypeDOC:
		doc, err = extractDOC(buffer)
	case FileTypeTXT:
		doc, err = extractPlainText(buffer)
	case FileTypeRTF:
		doc, err = extractRTF(buffer)
	default:
		return nil, NewProcessingError(ErrCodeUnknownFileType,
			"unsupported file type: "+string(fileType))
	}

	if err != nil {
		return nil, AsProcessingError(err)
	}

	// 提取成功时文本必须非空，否则视为空文档
	if strings.TrimSpace(doc.Text) == "" {
		return nil, NewProcessingError(ErrCodeEmptyDocument,
			"no text content could be extracted from the document")
	}

	doc.Metadata.FileType = fileType
	return doc, nil
}

// ResolveFileType 解析文件类型
// 优先使用内容嗅探的MIME类型，其次回退到文件扩展名
func (e *TextExtractor) ResolveFileType(buffer []byte, filename string) (FileType, error) {
	// 内容嗅探优先
	if len(buffer) > 0 {
		if fileType := fileTypeFromMime(mimetype.Detect(buffer)); fileType != FileTypeUnknown {
			return fileType, nil
		}
	}

	// 回退到扩展名
	ext := strings.ToLower(filepath.Ext(filename))
	if fileType, ok := supportedExtensions[ext]; ok {
		return fileType, nil
	}

	return FileTypeUnknown, NewProcessingError(ErrCodeUnknownFileType,
		"unable to determine file type from content or filename").
		WithDetail("filename", filename)
}

// fileTypeFromMime 将嗅探到的MIME类型映射为文件类型
// 模糊的通用类型（zip、octet-stream、text/plain）返回Unknown，让扩展名决定
func fileTypeFromMime(m *mimetype.MIME) FileType {
	switch {
	case m.Is("application/pdf"):
		return FileTypePDF
	case m.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return FileTypeDOCX
	case m.Is("application/msword"), m.Is("application/x-ole-storage"):
		return FileTypeDOC
	case m.Is("text/rtf"), m.Is("application/rtf"):
		return FileTypeRTF
	default:
		return FileTypeUnknown
	}
}
