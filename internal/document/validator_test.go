package document

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF 构造一个带合法头部的PDF字节序列
func minimalPDF(version string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

// TestValidateFileSize 测试文件大小相关的验证
func TestValidateFileSize(t *testing.T) {
	validator := NewFileValidator(DefaultValidatorConfig())

	t.Run("empty file", func(t *testing.T) {
		result := validator.Validate(nil, "test.txt")
		assert.False(t, result.Valid, "空文件应验证失败")
		require.NotEmpty(t, result.Errors)
		assert.Equal(t, "File is empty", result.Errors[0])
	})

	t.Run("oversized file", func(t *testing.T) {
		small := NewFileValidator(ValidatorConfig{MaxFileSize: 10})
		result := small.Validate([]byte("this content is longer than ten bytes"), "test.txt")
		assert.False(t, result.Valid, "超过大小限制的文件应验证失败")
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "exceeds maximum allowed size")
	})

	t.Run("metadata is populated", func(t *testing.T) {
		content := []byte("hello world, this is a plain text file")
		result := validator.Validate(content, "notes.txt")
		assert.Equal(t, "notes.txt", result.Metadata.Filename)
		assert.Equal(t, int64(len(content)), result.Metadata.FileSize)
		assert.Equal(t, FileTypeTXT, result.Metadata.FileType)
	})
}

// TestValidateExtensions 测试扩展名检查
func TestValidateExtensions(t *testing.T) {
	validator := NewFileValidator(DefaultValidatorConfig())

	t.Run("unsupported extension", func(t *testing.T) {
		result := validator.Validate([]byte("content"), "image.png")
		assert.False(t, result.Valid, "不支持的扩展名应验证失败")
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "Unsupported file extension")
	})

	t.Run("dangerous extension", func(t *testing.T) {
		for _, name := range []string{"setup.exe", "script.bat", "payload.dll", "run.sh"} {
			result := validator.Validate([]byte("whatever"), name)
			assert.False(t, result.Valid, "危险扩展名 %s 应被拒绝", name)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0], "not allowed for security reasons")
		}
	})

	t.Run("case insensitive extension", func(t *testing.T) {
		result := validator.Validate([]byte("plain text content here"), "REPORT.TXT")
		assert.True(t, result.Valid, "大写扩展名应被正常识别")
		assert.Equal(t, FileTypeTXT, result.Metadata.FileType)
	})
}

// TestValidateExecutableContent 测试可执行文件魔数检查
func TestValidateExecutableContent(t *testing.T) {
	validator := NewFileValidator(ValidatorConfig{StrictMIMECheck: false})

	t.Run("windows PE disguised as txt", func(t *testing.T) {
		pe := append([]byte("MZ"), make([]byte, 100)...)
		result := validator.Validate(pe, "innocent.txt")
		assert.False(t, result.Valid, "PE魔数应被拒绝，不管扩展名是什么")
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "signature and is not allowed")
	})

	t.Run("ELF disguised as doc", func(t *testing.T) {
		elf := append([]byte{0x7F, 'E', 'L', 'F'}, make([]byte, 100)...)
		result := validator.Validate(elf, "innocent.doc")
		assert.False(t, result.Valid, "ELF魔数应被拒绝")
	})

	t.Run("allow executables option", func(t *testing.T) {
		permissive := NewFileValidator(ValidatorConfig{AllowExecutables: true, StrictMIMECheck: false})
		pe := append([]byte("MZ"), make([]byte, 100)...)
		result := permissive.Validate(pe, "tool.txt")
		// 开启AllowExecutables后魔数检查被跳过，剩余检查照常进行
		for _, e := range result.Errors {
			assert.NotContains(t, e, "signature and is not allowed")
		}
	})
}

// TestValidateStructure 测试格式特定的结构检查
func TestValidateStructure(t *testing.T) {
	validator := NewFileValidator(ValidatorConfig{StrictMIMECheck: false})

	t.Run("valid pdf header", func(t *testing.T) {
		result := validator.Validate(minimalPDF("1.7"), "report.pdf")
		assert.True(t, result.Valid, "合法PDF头部应通过验证: %v", result.Errors)
	})

	t.Run("pdf without header", func(t *testing.T) {
		result := validator.Validate([]byte("definitely not a pdf document body"), "report.pdf")
		assert.False(t, result.Valid)
		assert.Contains(t, strings.Join(result.Errors, ";"), "%PDF header")
	})

	t.Run("high pdf version warning", func(t *testing.T) {
		result := validator.Validate(minimalPDF("2.3"), "future.pdf")
		assert.True(t, result.Valid, "高版本PDF只是警告，不是错误")
		require.NotEmpty(t, result.Warnings)
		assert.Contains(t, result.Warnings[0], "above 2.0")
	})

	t.Run("docx without zip signature", func(t *testing.T) {
		result := validator.Validate([]byte("not a zip archive at all"), "contract.docx")
		assert.False(t, result.Valid)
		assert.Contains(t, strings.Join(result.Errors, ";"), "ZIP signature")
	})

	t.Run("doc without ole signature", func(t *testing.T) {
		result := validator.Validate([]byte("not an ole compound file"), "legacy.doc")
		assert.False(t, result.Valid)
		assert.Contains(t, strings.Join(result.Errors, ";"), "OLE compound file signature")
	})

	t.Run("rtf without header", func(t *testing.T) {
		result := validator.Validate([]byte("plain text pretending to be rtf"), "memo.rtf")
		assert.False(t, result.Valid)
		assert.Contains(t, strings.Join(result.Errors, ";"), `{\rtf header`)
	})

	t.Run("valid rtf", func(t *testing.T) {
		result := validator.Validate([]byte(`{\rtf1\ansi Hello World}`), "memo.rtf")
		assert.True(t, result.Valid, "合法RTF应通过验证: %v", result.Errors)
	})
}

// TestValidateTextContent 测试txt文件的二进制嗅探
func TestValidateTextContent(t *testing.T) {
	validator := NewFileValidator(ValidatorConfig{StrictMIMECheck: false})

	t.Run("normal text has no warning", func(t *testing.T) {
		result := validator.Validate([]byte("Regular text with\nnewlines and\ttabs."), "notes.txt")
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings, "普通文本不应产生二进制警告")
	})

	t.Run("binary content warns", func(t *testing.T) {
		// 控制字符比例远超10%
		binary := bytes.Repeat([]byte{0x01, 0x02, 'a', 'b'}, 100)
		result := validator.Validate(binary, "data.txt")
		assert.Contains(t, strings.Join(result.Warnings, ";"), "control characters",
			"高控制字符比例应产生警告")
	})

	t.Run("binary content passes with warning under default config", func(t *testing.T) {
		// 这种内容会被嗅探成application/octet-stream，
		// 默认的严格MIME检查下也必须降级为警告而不是拒绝
		strict := NewFileValidator(DefaultValidatorConfig())
		binary := bytes.Repeat([]byte{0x01, 0x02, 'a', 'b'}, 100)
		result := strict.Validate(binary, "data.txt")
		assert.True(t, result.Valid, "二进制嫌疑的txt应通过验证: %v", result.Errors)
		assert.Empty(t, result.Errors)
		assert.Contains(t, strings.Join(result.Warnings, ";"), "control characters")
	})
}

// TestValidateMIMEMismatch 测试MIME嗅探与扩展名的比对
func TestValidateMIMEMismatch(t *testing.T) {
	t.Run("strict mode rejects mismatch", func(t *testing.T) {
		strict := NewFileValidator(ValidatorConfig{StrictMIMECheck: true})
		// PDF内容但扩展名是docx
		result := strict.Validate(minimalPDF("1.5"), "mislabeled.docx")
		assert.False(t, result.Valid, "严格模式下MIME不匹配应拒绝")
	})

	t.Run("lenient mode warns on mismatch", func(t *testing.T) {
		lenient := NewFileValidator(ValidatorConfig{StrictMIMECheck: false})
		result := lenient.Validate(minimalPDF("1.5"), "mislabeled.txt")
		assert.NotEmpty(t, result.Warnings, "宽松模式下MIME不匹配只产生警告")
	})
}

// TestValidateDeterminism 相同输入多次验证结果应完全一致
func TestValidateDeterminism(t *testing.T) {
	validator := NewFileValidator(DefaultValidatorConfig())
	content := minimalPDF("2.5")

	first := validator.Validate(content, "repeat.pdf")
	for i := 0; i < 5; i++ {
		result := validator.Validate(content, "repeat.pdf")
		assert.Equal(t, first, result, "验证结果应是确定性的")
	}
}
