package document

import "bytes"

// 本文件集中定义验证器使用的静态特征表
// 以不可变数据的形式表达，便于测试和扩展，不散落在控制流中

// supportedExtensions 支持的文件扩展名到文件类型的映射
var supportedExtensions = map[string]FileType{
	".pdf":  FileTypePDF,
	".docx": FileTypeDOCX,
	".doc":  FileTypeDOC,
	".txt":  FileTypeTXT,
	".rtf":  FileTypeRTF,
}

// expectedMimeTypes 各文件类型允许的MIME类型集合
// 嗅探结果不在集合中时视为MIME不匹配
var expectedMimeTypes = map[FileType][]string{
	FileTypePDF:  {"application/pdf"},
	FileTypeDOCX: {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	FileTypeDOC:  {"application/msword", "application/x-ole-storage"},
	FileTypeTXT:  {"text/plain", "text/plain; charset=utf-8"},
	FileTypeRTF:  {"text/rtf", "application/rtf"},
}

// mislabelException MIME误标例外
// 某些生产工具会把文件上报成通用MIME类型，这种不匹配降级为警告而非错误
type mislabelException struct {
	FileType    FileType // 声明的文件类型
	SniffedMime string   // 嗅探到的MIME类型
}

// mislabelExceptions 已知的"常见误标"组合
// 这个列表刻意保持窄范围，不要随意扩大
var mislabelExceptions = map[mislabelException]bool{
	{FileTypePDF, "application/octet-stream"}:  true,
	{FileTypePDF, "text/plain"}:                true,
	{FileTypeDOCX, "application/octet-stream"}: true,
	{FileTypeDOCX, "text/plain"}:               true,
	// 控制字符占比高的txt会被嗅探成octet-stream，二进制嫌疑由内容检查负责告警
	{FileTypeTXT, "application/octet-stream"}: true,
}

// dangerousExtensions 永远拒绝的危险扩展名
var dangerousExtensions = map[string]bool{
	".exe": true,
	".dll": true,
	".so":  true,
	".bat": true,
	".cmd": true,
	".com": true,
	".scr": true,
	".pif": true,
	".msi": true,
	".vbs": true,
	".ps1": true,
	".sh":  true,
	".app": true,
	".jar": true,
}

// executableSignature 可执行文件的魔数特征
type executableSignature struct {
	Name  string // 特征名称，用于错误信息
	Magic []byte // 文件起始字节
}

// executableSignatures 原生可执行文件的魔数列表
// 不管扩展名声明什么，命中即拒绝
var executableSignatures = []executableSignature{
	{"PE executable", []byte{0x4D, 0x5A}},                   // MZ
	{"ELF executable", []byte{0x7F, 0x45, 0x4C, 0x46}},      // \x7fELF
	{"Mach-O executable", []byte{0xFE, 0xED, 0xFA, 0xCE}},   // 32位大端
	{"Mach-O executable", []byte{0xFE, 0xED, 0xFA, 0xCF}},   // 64位大端
	{"Mach-O executable", []byte{0xCE, 0xFA, 0xED, 0xFE}},   // 32位小端
	{"Mach-O executable", []byte{0xCF, 0xFA, 0xED, 0xFE}},   // 64位小端
	{"Mach-O universal binary", []byte{0xCA, 0xFE, 0xBA, 0xBE}}, // fat binary
}

// 格式结构特征
var (
	pdfHeader = []byte("%PDF")
	// ZIP本地文件头和空归档两种签名都允许（DOCX本质是ZIP容器）
	zipLocalFileHeader = []byte{0x50, 0x4B, 0x03, 0x04}
	zipEmptyArchive    = []byte{0x50, 0x4B, 0x05, 0x06}
	oleHeader          = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	rtfHeader          = []byte(`{\rtf`)
)

// matchesExecutableSignature 检查缓冲区是否匹配可执行文件魔数
// 返回匹配的特征名称，不匹配时返回空字符串
func matchesExecutableSignature(buffer []byte) string {
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(buffer, sig.Magic) {
			return sig.Name
		}
	}
	return ""
}
