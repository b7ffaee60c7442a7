package main

import (
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ObjectCompression int

const (
	NotCompressed ObjectCompression = iota
	Gzipped
)

func (c ObjectCompression) String() string {
	if c == Gzipped {
		return "gzip"
	}
	return "none"
}

var gzipMagic = []byte{0x1f, 0x8b}

func sniffCompression(b []byte) ObjectCompression {
	if bytes.HasPrefix(b, gzipMagic) {
		return Gzipped
	}
	return NotCompressed
}

// ExtractText returns the UTF-8 text of a stored object, gunzipping it first
// when it carries the gzip magic prefix.
func ExtractText(raw []byte, log *zap.SugaredLogger) ([]byte, error) {

	compression := sniffCompression(raw)
	log.Debugf("Object compression=%s (%d bytes)", compression, len(raw))

	content := raw
	if compression == Gzipped {
		var err error
		if content, err = gunzipBytes(raw); err != nil {
			return nil, err
		}
	}

	if !utf8.Valid(content) {
		return nil, errors.New("object content is not valid UTF-8")
	}
	return content, nil
}

func gunzipBytes(b []byte) ([]byte, error) {

	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "UnGzip Error")
	}
	defer zr.Close()

	content, err := ioutil.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "UnGzip Error")
	}
	return content, nil
}
