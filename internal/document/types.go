package document

// FileType 支持的文档文件类型
type FileType string

const (
	// FileTypePDF PDF文档
	FileTypePDF FileType = "pdf"
	// FileTypeDOCX Word文档(OOXML格式)
	FileTypeDOCX FileType = "docx"
	// FileTypeDOC 旧版Word文档(OLE复合文件格式)
	FileTypeDOC FileType = "doc"
	// FileTypeTXT 纯文本文档
	FileTypeTXT FileType = "txt"
	// FileTypeRTF 富文本格式文档
	FileTypeRTF FileType = "rtf"
	// FileTypeUnknown 未知类型
	FileTypeUnknown FileType = "unknown"
)

// FileMetadata 验证阶段收集的文件元数据
type FileMetadata struct {
	Filename string   `json:"filename"`  // 原始文件名
	FileSize int64    `json:"file_size"` // 文件大小（字节）
	FileType FileType `json:"file_type"` // 根据扩展名识别的文件类型
}

// ValidationResult 文件验证结果
// 对相同的输入和配置，验证结果是确定性的
type ValidationResult struct {
	Valid    bool         `json:"valid"`    // 是否通过验证
	Errors   []string     `json:"errors"`   // 硬错误列表，非空时Valid为false
	Warnings []string     `json:"warnings"` // 警告列表，不影响Valid
	Metadata FileMetadata `json:"metadata"` // 文件元数据
}

// DocumentMetadata 提取阶段收集的文档元数据
// 所有字段都是尽力而为的，可能为空
type DocumentMetadata struct {
	Title        string   `json:"title,omitempty"`         // 文档标题
	Author       string   `json:"author,omitempty"`        // 作者
	CreationDate string   `json:"creation_date,omitempty"` // 创建日期（原始字符串）
	Pages        int      `json:"pages,omitempty"`         // 页数（仅PDF）
	FileType     FileType `json:"file_type"`               // 文件类型
}

// ExtractedDocument 文本提取结果
// 提取成功时Text保证非空
type ExtractedDocument struct {
	Text     string           `json:"text"`     // 提取的纯文本内容
	Metadata DocumentMetadata `json:"metadata"` // 文档元数据
}

// SemanticType 语义单元类型
type SemanticType string

const (
	// TypeParagraph 普通段落
	TypeParagraph SemanticType = "paragraph"
	// TypeHeading 标题
	TypeHeading SemanticType = "heading"
	// TypeList 列表
	TypeList SemanticType = "list"
	// TypeTable 表格
	TypeTable SemanticType = "table"
	// TypeOther 其他类型
	TypeOther SemanticType = "other"
)

// semanticUnit 分块过程中的中间语义单元
// 仅在chunker内部使用，构建分块后即丢弃
type semanticUnit struct {
	content       string       // 单元文本内容
	semanticType  SemanticType // 语义类型
	startPosition int          // 在规范化文本中的起始位置
	endPosition   int          // 在规范化文本中的结束位置
	tokenCount    int          // 估算的token数量
}

// ChunkMetadata 分块元数据
type ChunkMetadata struct {
	UnitCount        int                  `json:"unit_count"`        // 组成该分块的语义单元数量
	TypeDistribution map[SemanticType]int `json:"type_distribution"` // 各语义类型的单元数量分布
}

// DocumentChunk 文档分块
// 分块按Index从0开始连续递增，TokenCount是估算值而非精确的tokenizer结果
type DocumentChunk struct {
	Index         int           `json:"index"`          // 分块索引，从0开始连续递增
	Content       string        `json:"content"`        // 分块文本内容
	TokenCount    int           `json:"token_count"`    // 估算的token数量
	StartPosition int           `json:"start_position"` // 在规范化文本中的起始位置
	EndPosition   int           `json:"end_position"`   // 在规范化文本中的结束位置
	SemanticType  SemanticType  `json:"semantic_type"`  // 主导语义类型（按单元数量多数决定）
	Metadata      ChunkMetadata `json:"metadata"`       // 分块元数据
}
