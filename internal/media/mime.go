package media

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrUnknownFiletype = errors.New("unknown filetype")

const (
	MimeSVG  = "image/svg+xml"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

// DetectMIME sniffs data with mimetype, falling back to net/http's sniffer.
// SVG is checked first since both detectors report it as XML or text.
func DetectMIME(data []byte) (string, error) {
	if isSVG(data) {
		return MimeSVG, nil
	}

	if detected := essence(mimetype.Detect(data).String()); !isGeneric(detected) {
		return detected, nil
	}

	if detected := essence(http.DetectContentType(data)); !isGeneric(detected) {
		return detected, nil
	}

	return "", ErrUnknownFiletype
}

func isSVG(data []byte) bool {
	head := bytes.TrimSpace(data)
	if len(head) > 4096 {
		head = head[:4096]
	}
	if !bytes.HasPrefix(head, []byte("<?xml")) && !bytes.HasPrefix(head, []byte("<svg")) {
		return false
	}
	return bytes.Contains(head, []byte("<svg"))
}

func essence(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

func isGeneric(mime string) bool {
	return mime == "" || mime == "application/octet-stream" || mime == "text/plain"
}

var extensions = map[string]string{
	MimeWebP:     "webp",
	MimePNG:      "png",
	MimeJPEG:     "jpg",
	MimeSVG:      "svg",
	"image/gif":  "gif",
	"video/mp4":  "mp4",
	"video/webm": "webm",
	"audio/mpeg": "mp3",
	"audio/ogg":  "ogg",
}

// Extension returns the file extension, without a dot, used for objects of this type.
func Extension(mime string) string {
	mime = essence(mime)
	if ext, ok := extensions[mime]; ok {
		return ext
	}
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return "bin"
}
