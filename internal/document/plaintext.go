package document

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// textDecoder 纯文本解码尝试项
type textDecoder struct {
	name    string
	decoder *encoding.Decoder
}

// plainTextDecoders 按顺序尝试的解码器列表
// UTF-8优先，然后是带BOM判断的UTF-16两种字节序，最后回退到Latin-1
var plainTextDecoders = []textDecoder{
	{"utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()},
	{"utf-16be", unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()},
	{"latin-1", charmap.ISO8859_1.NewDecoder()},
}

// extractPlainText 解码纯文本内容
// 依次尝试一组编码，全部失败才报错
func extractPlainText(buffer []byte) (*ExtractedDocument, error) {
	// 有效的UTF-8直接使用
	if utf8.Valid(buffer) {
		return &ExtractedDocument{Text: string(stripUTF8BOM(buffer))}, nil
	}

	for _, d := range plainTextDecoders {
		decoded, err := d.decoder.Bytes(buffer)
		if err != nil {
			continue
		}
		if utf8.Valid(decoded) && len(bytes.TrimSpace(decoded)) > 0 {
			return &ExtractedDocument{Text: string(decoded)}, nil
		}
	}

	return nil, NewProcessingError(ErrCodeTextExtraction,
		"unable to decode text file with any supported encoding")
}

// stripUTF8BOM 去掉UTF-8字节序标记
func stripUTF8BOM(buffer []byte) []byte {
	return bytes.TrimPrefix(buffer, []byte{0xEF, 0xBB, 0xBF})
}
