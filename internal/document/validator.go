package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxFileSize 默认的最大文件大小限制（100MB）
const DefaultMaxFileSize = 100 * 1024 * 1024

// txt文件二进制嗅探的采样窗口和控制字符比例阈值
const (
	textScanWindow      = 1000
	controlByteThreshold = 0.10
)

// ValidatorConfig 文件验证器配置
type ValidatorConfig struct {
	MaxFileSize      int64 // 最大文件大小（字节），0表示使用默认值
	StrictMIMECheck  bool  // 是否启用严格MIME检查
	AllowExecutables bool  // 是否允许可执行文件（跳过安全检查，默认关闭）
}

// DefaultValidatorConfig 返回默认验证器配置
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxFileSize:      DefaultMaxFileSize,
		StrictMIMECheck:  true,
		AllowExecutables: false,
	}
}

// FileValidator 文件验证器
// 对上传的原始字节做结构性、安全性和内容合理性检查
// 验证过程不访问网络和存储，对相同输入的结果是确定性的
type FileValidator struct {
	cfg ValidatorConfig
}

// NewFileValidator 创建文件验证器
func NewFileValidator(cfg ValidatorConfig) *FileValidator {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &FileValidator{cfg: cfg}
}

// Validate 验证文件内容
// 缓冲区是调用方所有的只读数据，验证过程不会修改它
func (v *FileValidator) Validate(buffer []byte, filename string) ValidationResult {
	result := ValidationResult{
		Valid: true,
		Metadata: FileMetadata{
			Filename: filename,
			FileSize: int64(len(buffer)),
			FileType: FileTypeUnknown,
		},
	}

	// 大小检查
	if len(buffer) == 0 {
		result.addError("File is empty")
		return result
	}
	if int64(len(buffer)) > v.cfg.MaxFileSize {
		result.addError(fmt.Sprintf("File size %d exceeds maximum allowed size %d", len(buffer), v.cfg.MaxFileSize))
		return result
	}

	// 扩展名检查
	ext := strings.ToLower(filepath.Ext(filename))
	if !v.cfg.AllowExecutables && dangerousExtensions[ext] {
		result.addError(fmt.Sprintf("File type %s is not allowed for security reasons", ext))
		return result
	}

	fileType, ok := supportedExtensions[ext]
	if !ok {
		result.addError(fmt.Sprintf("Unsupported file extension %q, supported types: pdf, docx, doc, txt, rtf", ext))
		return result
	}
	result.Metadata.FileType = fileType

	// 可执行文件魔数检查，不管扩展名声明什么
	if !v.cfg.AllowExecutables {
		if name := matchesExecutableSignature(buffer); name != "" {
			result.addError(fmt.Sprintf("File content matches %s signature and is not allowed", name))
			return result
		}
	}

	// MIME嗅探检查
	v.checkMimeType(buffer, fileType, &result)

	// 格式特定的结构检查
	v.checkStructure(buffer, fileType, &result)

	return result
}

// checkMimeType 基于魔数嗅探内容类型并与扩展名比对
func (v *FileValidator) checkMimeType(buffer []byte, fileType FileType, result *ValidationResult) {
	sniffed := mimetype.Detect(buffer)
	sniffedMime := sniffed.String()
	// 去掉charset等参数部分再比对
	if idx := strings.Index(sniffedMime, ";"); idx >= 0 {
		sniffedMime = strings.TrimSpace(sniffedMime[:idx])
	}

	for _, expected := range expectedMimeTypes[fileType] {
		if sniffed.Is(expected) || sniffedMime == expected {
			return
		}
	}

	// 已知的误标组合降级为警告
	if mislabelExceptions[mislabelException{fileType, sniffedMime}] {
		result.addWarning(fmt.Sprintf("Detected MIME type %s differs from expected type for .%s files (commonly mislabeled)", sniffedMime, fileType))
		return
	}

	if v.cfg.StrictMIMECheck {
		result.addError(fmt.Sprintf("Detected MIME type %s does not match file extension .%s", sniffedMime, fileType))
	} else {
		result.addWarning(fmt.Sprintf("Detected MIME type %s does not match file extension .%s", sniffedMime, fileType))
	}
}

// checkStructure 格式特定的结构完整性检查
func (v *FileValidator) checkStructure(buffer []byte, fileType FileType, result *ValidationResult) {
	switch fileType {
	case FileTypePDF:
		v.checkPDFStructure(buffer, result)
	case FileTypeDOCX:
		if !bytes.HasPrefix(buffer, zipLocalFileHeader) && !bytes.HasPrefix(buffer, zipEmptyArchive) {
			result.addError("DOCX file does not begin with a valid ZIP signature")
		}
	case FileTypeDOC:
		if !bytes.HasPrefix(buffer, oleHeader) {
			result.addError("DOC file does not begin with a valid OLE compound file signature")
		}
	case FileTypeRTF:
		if !bytes.HasPrefix(buffer, rtfHeader) {
			result.addError(`RTF file does not begin with the {\rtf header`)
		}
	case FileTypeTXT:
		v.checkTextContent(buffer, result)
	}
}

// checkPDFStructure 检查PDF文件头和版本号
func (v *FileValidator) checkPDFStructure(buffer []byte, result *ValidationResult) {
	if !bytes.HasPrefix(buffer, pdfHeader) {
		result.addError("PDF file does not begin with the %PDF header")
		return
	}

	// 头部形如 %PDF-1.7，版本高于2.0只是警告
	if version, ok := parsePDFVersion(buffer); ok && version > 2.0 {
		result.addWarning(fmt.Sprintf("PDF version %.1f is above 2.0 and may not be fully supported", version))
	}
}

// parsePDFVersion 从文件头解析PDF版本号
func parsePDFVersion(buffer []byte) (float64, bool) {
	// 最短合法头部 %PDF-a.b 占8字节
	if len(buffer) < 8 || buffer[4] != '-' {
		return 0, false
	}
	end := 5
	for end < len(buffer) && end < 12 && (buffer[end] == '.' || (buffer[end] >= '0' && buffer[end] <= '9')) {
		end++
	}
	version, err := strconv.ParseFloat(string(buffer[5:end]), 64)
	if err != nil {
		return 0, false
	}
	return version, true
}

// checkTextContent 检查txt文件的前1000字节
// 控制字符（tab/LF/CR除外）超过10%时发出可能是二进制文件的警告
func (v *FileValidator) checkTextContent(buffer []byte, result *ValidationResult) {
	window := buffer
	if len(window) > textScanWindow {
		window = window[:textScanWindow]
	}

	controlCount := 0
	for _, b := range window {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			controlCount++
		}
	}

	if float64(controlCount)/float64(len(window)) > controlByteThreshold {
		result.addWarning("Text file contains a high ratio of control characters and may be mislabeled binary data")
	}
}

// addError 添加硬错误并标记验证失败
func (r *ValidationResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// addWarning 添加警告，不影响验证结果
func (r *ValidationResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
