package submission

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/formdef"
)

// payload is an encoded multipart body and its content type.
type payload struct {
	body        *bytes.Buffer
	contentType string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildPayload serializes every scalar value as text, every flag as "1"/"0", every file under
// its field name and the form's discriminator. Signature fields go out as binary files only.
func buildPayload(def *formdef.Definition, f *form.Form) (*payload, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField(def.Discriminator.Field, def.Discriminator.Value); err != nil {
		return nil, err
	}

	signatures := make(map[string]bool)
	flags := make(map[string]bool)
	for _, key := range def.FieldKeys() {
		field, _ := def.Field(key)
		switch field.Kind {
		case domain.FieldKindSignature:
			signatures[key] = true
		case domain.FieldKindFlag:
			flags[key] = true
		}
	}
	for _, key := range f.FlagKeys() {
		flags[key] = true
	}

	for _, key := range f.ValueKeys() {
		if signatures[key] || flags[key] || key == def.Discriminator.Field {
			continue
		}
		if err := w.WriteField(key, f.Value(key)); err != nil {
			return nil, err
		}
	}

	for _, key := range sortedSet(flags) {
		v := "0"
		if f.Flag(key) {
			v = "1"
		}
		if err := w.WriteField(key, v); err != nil {
			return nil, err
		}
	}

	for _, key := range f.FileKeys() {
		if err := writeFile(w, key, f.File(key)); err != nil {
			return nil, err
		}
	}

	for _, key := range sortedSet(signatures) {
		if f.HasFile(key) {
			continue
		}
		raw := f.Value(key)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		sig, err := form.DecodeDataURL(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		if err := writeFile(w, key, sig); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &payload{body: buf, contentType: w.FormDataContentType()}, nil
}

func writeFile(w *multipart.Writer, field string, file *form.File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name)))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}

func sortedSet(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
