package document

import (
	"regexp"
	"strings"
)

// ChunkerConfig 语义分块器配置
type ChunkerConfig struct {
	MaxTokens     int // 单个分块的最大token数（估算值）
	OverlapTokens int // 相邻分块之间的重叠token数
	MinChunkSize  int // 保留分块的最小token数
}

// DefaultChunkerConfig 返回默认分块器配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     1500,
		OverlapTokens: 150,
		MinChunkSize:  100,
	}
}

// 语义类型识别的模式表
// 以数据形式表达启发式规则，便于测试和扩展
var (
	// markdown风格的标题
	headingMarkdownPattern = regexp.MustCompile(`^#{1,6}\s+\S`)
	// 列表项标记：无序符号、数字编号、字母编号
	listItemPattern = regexp.MustCompile(`^\s*([-*+•]|\d{1,3}[.)]|[a-zA-Z][.)])\s+\S`)
	// 包含字母的检测，用于全大写标题判断
	letterPattern = regexp.MustCompile(`[A-Za-z]`)
)

// 启发式判断的阈值
const (
	headingMaxLength   = 80 // 标题行的最大长度
	tableMinAlignRuns  = 2  // 对齐表格每行至少需要的空白列分隔数
)

// SemanticChunker 语义分块器
// 把提取出的纯文本切分为有序的、受token预算约束的分块
// 分块边界尽量落在语义单元（段落/标题/列表/表格）之间
type SemanticChunker struct {
	cfg ChunkerConfig
}

// NewSemanticChunker 创建语义分块器
func NewSemanticChunker(cfg ChunkerConfig) *SemanticChunker {
	def := DefaultChunkerConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = def.OverlapTokens
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	return &SemanticChunker{cfg: cfg}
}

// Chunk 把文本分割为文档分块
// 对相同的规范化文本和配置，分块边界是幂等的
// 非空文本至少产生一个分块，即使它低于最小分块大小
func (c *SemanticChunker) Chunk(text string) ([]DocumentChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewProcessingError(ErrCodeEmptyText, "cannot chunk empty text")
	}

	normalized := NormalizeText(text)

	// 切分并分类语义单元
	units := c.buildUnits(normalized)
	if len(units) == 0 {
		return nil, NewProcessingError(ErrCodeChunkingFailed, "no semantic units could be built from text")
	}

	// 贪心装箱，带重叠前移
	groups := c.packUnits(units)

	// 组装分块并过滤过小的分块
	chunks := c.assembleChunks(groups)
	return chunks, nil
}

// NormalizeText 文本规范化
// 统一换行符为\n，连续空行压缩为一个，行内空格和制表符的连续串压缩为单个空格
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	var out strings.Builder
	out.Grow(len(text))

	blankRun := 0
	for _, line := range lines {
		collapsed := collapseSpaces(line)
		if collapsed == "" {
			blankRun++
			continue
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
			// 连续空行最多保留一个
			if blankRun > 0 {
				out.WriteByte('\n')
			}
		}
		blankRun = 0
		out.WriteString(collapsed)
	}

	return out.String()
}

// collapseSpaces 把行内连续的空格和制表符压缩为单个空格
func collapseSpaces(line string) string {
	var out strings.Builder
	inSpace := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == ' ' || c == '\t' {
			inSpace = true
			continue
		}
		if inSpace && out.Len() > 0 {
			out.WriteByte(' ')
		}
		inSpace = false
		out.WriteByte(c)
	}
	return out.String()
}

// buildUnits 把规范化文本切分为语义单元
// 超过token预算的段落按句子预切分
func (c *SemanticChunker) buildUnits(normalized string) []semanticUnit {
	var units []semanticUnit

	for _, p := range splitParagraphSpans(normalized) {
		content := normalized[p.start:p.end]
		unit := semanticUnit{
			content:       content,
			semanticType:  classifyUnit(content),
			startPosition: p.start,
			endPosition:   p.end,
			tokenCount:    EstimateTokens(content),
		}

		if unit.tokenCount <= c.cfg.MaxTokens {
			units = append(units, unit)
			continue
		}

		// 超长段落按句子边界强制切分
		units = append(units, c.splitOversizedUnit(unit)...)
	}

	return units
}

// splitParagraphSpans 按空行边界把文本切分为段落区间
func splitParagraphSpans(text string) []textSpan {
	var spans []textSpan
	start := 0
	for {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			break
		}
		end := start + idx
		if strings.TrimSpace(text[start:end]) != "" {
			spans = append(spans, textSpan{start, end})
		}
		start = end + 2
	}
	if start < len(text) && strings.TrimSpace(text[start:]) != "" {
		spans = append(spans, textSpan{start, len(text)})
	}
	return spans
}

// classifyUnit 用模式启发式对段落做语义分类
func classifyUnit(content string) SemanticType {
	lines := strings.Split(content, "\n")

	if isHeading(content, lines) {
		return TypeHeading
	}
	if isList(lines) {
		return TypeList
	}
	if isTable(lines) {
		return TypeTable
	}
	if strings.TrimSpace(content) == "" {
		return TypeOther
	}
	return TypeParagraph
}

// isHeading 标题判断：markdown风格标题，或较短的全大写单行
func isHeading(content string, lines []string) bool {
	if len(lines) != 1 {
		return false
	}
	line := strings.TrimSpace(lines[0])
	if headingMarkdownPattern.MatchString(line) {
		return true
	}
	// 全大写短行：包含字母、没有小写字母、长度受限
	if len(line) > 0 && len(line) <= headingMaxLength &&
		letterPattern.MatchString(line) && line == strings.ToUpper(line) {
		return true
	}
	return false
}

// isList 列表判断：至少两行匹配列表项标记
func isList(lines []string) bool {
	if len(lines) < 2 {
		return false
	}
	marked := 0
	for _, line := range lines {
		if listItemPattern.MatchString(line) {
			marked++
		}
	}
	return marked >= 2
}

// isTable 表格判断：多行且以竖线分隔，或多行按空白列对齐
func isTable(lines []string) bool {
	if len(lines) < 2 {
		return false
	}

	piped := 0
	aligned := 0
	for _, line := range lines {
		if strings.Count(line, "|") >= 2 {
			piped++
		}
		if countAlignRuns(line) >= tableMinAlignRuns {
			aligned++
		}
	}
	return piped >= 2 || aligned >= 2
}

// countAlignRuns 统计行内两个以上连续空格形成的分隔数
// 规范化之后行内空格已被压缩，这里检查的是原始对齐留下的制表痕迹
func countAlignRuns(line string) int {
	runs := 0
	spaceLen := 0
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			spaceLen++
			continue
		}
		if spaceLen >= 2 {
			runs++
		}
		spaceLen = 0
	}
	return runs
}

// splitOversizedUnit 把超过token预算的单元沿句子边界切分为多个子单元
// 单个句子就超预算的极端情况下，该句子单独成为一个单元
func (c *SemanticChunker) splitOversizedUnit(unit semanticUnit) []semanticUnit {
	sentences := splitSentences(unit.content)
	if len(sentences) <= 1 {
		return []semanticUnit{unit}
	}

	var result []semanticUnit
	groupStart := -1
	groupEnd := 0
	groupTokens := 0

	flush := func() {
		if groupStart < 0 {
			return
		}
		content := strings.TrimSpace(unit.content[groupStart:groupEnd])
		if content == "" {
			groupStart = -1
			return
		}
		result = append(result, semanticUnit{
			content:       content,
			semanticType:  unit.semanticType,
			startPosition: unit.startPosition + groupStart,
			endPosition:   unit.startPosition + groupEnd,
			tokenCount:    EstimateTokens(content),
		})
		groupStart = -1
	}

	for _, s := range sentences {
		tokens := EstimateTokens(unit.content[s.start:s.end])
		if groupStart >= 0 && groupTokens+tokens > c.cfg.MaxTokens {
			flush()
		}
		if groupStart < 0 {
			groupStart = s.start
			groupTokens = 0
		}
		groupEnd = s.end
		groupTokens += tokens
	}
	flush()

	return result
}

// packUnits 贪心装箱
// 当加入下一个单元会超过MaxTokens且当前分组非空时关闭分组，
// 新分组以上一个分组尾部约OverlapTokens的单元作为种子（原样前移，不重新估算）
func (c *SemanticChunker) packUnits(units []semanticUnit) [][]semanticUnit {
	var groups [][]semanticUnit
	var current []semanticUnit
	currentTokens := 0

	for _, unit := range units {
		if len(current) > 0 && currentTokens+unit.tokenCount > c.cfg.MaxTokens {
			groups = append(groups, current)
			overlap := c.overlapTail(current)
			current = append([]semanticUnit{}, overlap...)
			currentTokens = 0
			for _, o := range overlap {
				currentTokens += o.tokenCount
			}
		}
		current = append(current, unit)
		currentTokens += unit.tokenCount
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}

// overlapTail 取分组尾部不超过OverlapTokens预算的单元序列
func (c *SemanticChunker) overlapTail(group []semanticUnit) []semanticUnit {
	if c.cfg.OverlapTokens <= 0 {
		return nil
	}

	tokens := 0
	i := len(group)
	for i > 0 {
		next := group[i-1].tokenCount
		if tokens+next > c.cfg.OverlapTokens {
			break
		}
		tokens += next
		i--
	}
	// 至少前移一个单元才有重叠意义，但不能把整组都当作重叠
	if i == len(group) || i == 0 {
		return nil
	}
	return group[i:]
}

// assembleChunks 把单元分组组装成文档分块
// 低于MinChunkSize的分块被丢弃，除非全文只产生了唯一一个分块
func (c *SemanticChunker) assembleChunks(groups [][]semanticUnit) []DocumentChunk {
	var chunks []DocumentChunk

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}

		var sb strings.Builder
		tokens := 0
		distribution := make(map[SemanticType]int)
		var firstSeen []SemanticType

		for i, unit := range group {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(unit.content)
			tokens += unit.tokenCount
			if distribution[unit.semanticType] == 0 {
				firstSeen = append(firstSeen, unit.semanticType)
			}
			distribution[unit.semanticType]++
		}

		chunks = append(chunks, DocumentChunk{
			Content:       sb.String(),
			TokenCount:    tokens,
			StartPosition: group[0].startPosition,
			EndPosition:   group[len(group)-1].endPosition,
			SemanticType:  dominantType(distribution, firstSeen),
			Metadata: ChunkMetadata{
				UnitCount:        len(group),
				TypeDistribution: distribution,
			},
		})
	}

	// 小分块过滤，唯一分块豁免
	if len(chunks) > 1 {
		kept := chunks[:0]
		for _, chunk := range chunks {
			if chunk.TokenCount >= c.cfg.MinChunkSize {
				kept = append(kept, chunk)
			}
		}
		if len(kept) > 0 {
			chunks = kept
		}
	}

	// 过滤后重排索引，保证从0连续递增
	for i := range chunks {
		chunks[i].Index = i
	}

	return chunks
}

// dominantType 按单元数量多数决定主导语义类型
// 数量相同时按首次出现的顺序决定
func dominantType(distribution map[SemanticType]int, firstSeen []SemanticType) SemanticType {
	best := TypeOther
	bestCount := 0
	for _, t := range firstSeen {
		if distribution[t] > bestCount {
			best = t
			bestCount = distribution[t]
		}
	}
	return best
}
