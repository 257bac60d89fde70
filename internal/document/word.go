package document

import (
	"bytes"

	"code.sajari.com/docconv"
)

// extractDOCX 从OOXML格式的Word文档中提取文本
func extractDOCX(buffer []byte) (*ExtractedDocument, error) {
	body, meta, err := docconv.ConvertDocx(bytes.NewReader(buffer))
	if err != nil {
		return nil, WrapProcessingError(ErrCodeWordExtraction, "failed to extract text from DOCX", err)
	}

	return &ExtractedDocument{
		Text:     body,
		Metadata: wordMetadata(meta),
	}, nil
}

// extractDOC 从旧版OLE复合文件格式的Word文档中提取文本
func extractDOC(buffer []byte) (*ExtractedDocument, error) {
	body, meta, err := docconv.ConvertDoc(bytes.NewReader(buffer))
	if err != nil {
		return nil, WrapProcessingError(ErrCodeWordExtraction, "failed to extract text from DOC", err)
	}

	return &ExtractedDocument{
		Text:     body,
		Metadata: wordMetadata(meta),
	}, nil
}

// wordMetadata 从docconv返回的元数据映射中尽力提取标准字段
// 不同生产工具写入的键名不一致，依次尝试几个常见写法
func wordMetadata(meta map[string]string) DocumentMetadata {
	return DocumentMetadata{
		Title:        firstMetaValue(meta, "Title", "title"),
		Author:       firstMetaValue(meta, "Author", "creator", "LastModifiedBy"),
		CreationDate: firstMetaValue(meta, "CreatedDate", "CreationDate", "created"),
	}
}

// firstMetaValue 返回第一个存在且非空的键对应的值
func firstMetaValue(meta map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := meta[key]; ok && v != "" {
			return v
		}
	}
	return ""
}
