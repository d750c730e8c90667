package form

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errNotDataURL = errors.New("signature is not a base64 data URL")

var signatureExt = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// DecodeDataURL turns a "data:<media type>;base64,<payload>" string into a binary file named
// signature.<ext>. The file's content type is the URL's media type.
func DecodeDataURL(s string) (*File, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, errNotDataURL
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, errNotDataURL
	}
	params := strings.Split(meta, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, errNotDataURL
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Canvas exports sometimes drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, err
		}
	}

	ext, ok := signatureExt[mediaType]
	if !ok {
		ext = "bin"
	}
	return &File{Name: "signature." + ext, ContentType: mediaType, Data: data}, nil
}

// HasSignature reports whether key holds a usable signature: an attached image, or a value that
// decodes as a base64 data URL. A typed name is not a signature.
func (f *Form) HasSignature(key string) bool {
	if file := f.File(key); file != nil {
		return strings.HasPrefix(file.ContentType, "image/")
	}
	_, err := DecodeDataURL(f.Value(key))
	return err == nil
}
