package document

import (
	"bytes"
	"strings"
)

// extractRTF 从RTF文档中提取文本
// 实现是对控制字和花括号的保守剥离，属于有损提取：
// 样式、表格结构等排版信息会丢失，但不会因此报错，
// 只有头部签名不匹配才算提取失败
func extractRTF(buffer []byte) (*ExtractedDocument, error) {
	if !bytes.HasPrefix(buffer, rtfHeader) {
		return nil, NewProcessingError(ErrCodeRTFExtraction,
			`file does not begin with the {\rtf header`)
	}

	return &ExtractedDocument{Text: stripRTF(string(buffer))}, nil
}

// rtfEscapes 控制符号的转义映射
var rtfEscapes = map[byte]string{
	'\\': "\\",
	'{':  "{",
	'}':  "}",
	'~':  " ",  // 不间断空格
	'-':  "",   // 可选连字符
	'_':  "-",  // 不间断连字符
}

// rtfLineBreaks 产生换行的控制字
var rtfLineBreaks = map[string]string{
	"par":  "\n",
	"line": "\n",
	"sect": "\n\n",
	"page": "\n\n",
	"tab":  "\t",
	"cell": " ",
	"row":  "\n",
}

// stripRTF 剥离RTF控制字和分组花括号，保留纯文本
func stripRTF(input string) string {
	var out strings.Builder
	out.Grow(len(input) / 2)

	// 跳过字体表、颜色表等纯元数据分组
	skipGroups := map[string]bool{
		"fonttbl": true, "colortbl": true, "stylesheet": true,
		"info": true, "pict": true, "header": true, "footer": true,
	}

	skipDepth := 0
	depth := 0

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch c {
		case '{':
			depth++
		case '}':
			if skipDepth > 0 && depth <= skipDepth {
				skipDepth = 0
			}
			depth--
		case '\\':
			if i+1 >= len(input) {
				break
			}
			next := input[i+1]

			// 符号转义
			if esc, ok := rtfEscapes[next]; ok {
				if skipDepth == 0 {
					out.WriteString(esc)
				}
				i++
				continue
			}

			// \'hh 十六进制转义，保守处理为跳过
			if next == '\'' && i+3 < len(input) {
				i += 3
				continue
			}

			// 控制字：字母序列加可选的数字参数
			j := i + 1
			for j < len(input) && isRTFLetter(input[j]) {
				j++
			}
			word := input[i+1 : j]
			// 跳过数字参数
			if j < len(input) && (input[j] == '-' || isRTFDigit(input[j])) {
				j++
				for j < len(input) && isRTFDigit(input[j]) {
					j++
				}
			}
			// 控制字后的单个空格是定界符，一并吞掉
			if j < len(input) && input[j] == ' ' {
				j++
			}

			if skipGroups[word] && skipDepth == 0 {
				skipDepth = depth
			}
			if skipDepth == 0 {
				if br, ok := rtfLineBreaks[word]; ok {
					out.WriteString(br)
				}
			}
			i = j - 1
		case '\r', '\n':
			// RTF源码里的换行不是内容
		default:
			if skipDepth == 0 {
				out.WriteByte(c)
			}
		}
	}

	return strings.TrimSpace(out.String())
}

func isRTFLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isRTFDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
