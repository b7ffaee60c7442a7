package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf16"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultEventName = "CreateUser"

	recordsKey   = "Records"
	eventNameKey = "eventName"
)

// AuditRecord is one CloudTrail record, kept as the raw JSON object it was
// delivered as so it can be forwarded without reordering its keys.
type AuditRecord struct {
	EventName string
	Raw       []byte
}

// ParseEnvelope reads the Records array of a CloudTrail log file.
func ParseEnvelope(text []byte, log *zap.SugaredLogger) ([]AuditRecord, error) {

	if !json.Valid(text) {
		return nil, &MalformedLogError{Reason: "not valid JSON"}
	}

	_, dataType, _, err := jsonparser.Get(text, recordsKey)
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil, &MalformedLogError{Reason: fmt.Sprintf("missing %q field", recordsKey)}
		}
		return nil, &MalformedLogError{Reason: fmt.Sprintf("reading %q field", recordsKey), Err: err}
	}
	if dataType != jsonparser.Array {
		return nil, &MalformedLogError{Reason: fmt.Sprintf("%q is a %s, not an array", recordsKey, dataType)}
	}

	var (
		records   []AuditRecord
		recordErr error
	)
	_, err = jsonparser.ArrayEach(text, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if recordErr != nil {
			return
		}
		if err != nil {
			recordErr = &MalformedLogError{Reason: fmt.Sprintf("record %d", len(records)), Err: err}
			return
		}
		record, err := parseRecord(value, dataType)
		if err != nil {
			recordErr = &MalformedLogError{Reason: fmt.Sprintf("record %d", len(records)), Err: err}
			return
		}
		records = append(records, record)
	}, recordsKey)
	if err != nil {
		return nil, &MalformedLogError{Reason: fmt.Sprintf("iterating %q", recordsKey), Err: err}
	}
	if recordErr != nil {
		return nil, recordErr
	}

	log.Debugf("Parsed %d audit records", len(records))
	return records, nil
}

func parseRecord(value []byte, dataType jsonparser.ValueType) (AuditRecord, error) {

	if dataType != jsonparser.Object {
		return AuditRecord{}, errors.Errorf("expected an object, got %s", dataType)
	}

	name, nameType, _, err := jsonparser.Get(value, eventNameKey)
	if err != nil {
		return AuditRecord{}, errors.Wrapf(err, "reading %q", eventNameKey)
	}

	record := AuditRecord{Raw: value}
	// A non-string eventName is kept, it simply never matches
	if nameType == jsonparser.String {
		if record.EventName, err = jsonparser.ParseString(name); err != nil {
			return AuditRecord{}, errors.Wrapf(err, "decoding %q", eventNameKey)
		}
	}
	return record, nil
}

func FilterRecords(records []AuditRecord, eventName string) []AuditRecord {
	var matched []AuditRecord
	for _, record := range records {
		if record.EventName == eventName {
			matched = append(matched, record)
		}
	}
	return matched
}

func NotificationSubject(eventName string) string {
	return fmt.Sprintf("%s Event Notification", eventName)
}

// NotificationMessage renders the record with a two-space indent after a fixed
// prefix. String values are re-escaped so the message body is plain ASCII.
func NotificationMessage(eventName string, record AuditRecord) (string, error) {
	var indented bytes.Buffer
	if err := json.Indent(&indented, record.Raw, "", "  "); err != nil {
		return "", errors.Wrap(err, "indenting record")
	}
	ascii, err := asciiStrings(indented.Bytes())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s event detected: %s", eventName, ascii), nil
}

// asciiStrings rewrites every string literal of a valid JSON document with
// non-ASCII runes as \uXXXX escapes and no redundant escapes such as \/.
func asciiStrings(doc []byte) ([]byte, error) {
	out := make([]byte, 0, len(doc))
	for i := 0; i < len(doc); i++ {
		if doc[i] != '"' {
			out = append(out, doc[i])
			continue
		}
		end := i + 1
		for ; end < len(doc) && doc[end] != '"'; end++ {
			if doc[end] == '\\' {
				end++
			}
		}
		if end >= len(doc) {
			return nil, errors.New("unterminated string in record")
		}
		s, err := jsonparser.ParseString(doc[i+1 : end])
		if err != nil {
			return nil, errors.Wrap(err, "decoding record string")
		}
		out = appendASCIIString(out, s)
		i = end
	}
	return out, nil
}

const hexDigits = "0123456789abcdef"

func appendASCIIString(out []byte, s string) []byte {
	out = append(out, '"')
	for _, r := range s {
		switch {
		case r == '"':
			out = append(out, '\\', '"')
		case r == '\\':
			out = append(out, '\\', '\\')
		case r == '\n':
			out = append(out, '\\', 'n')
		case r == '\r':
			out = append(out, '\\', 'r')
		case r == '\t':
			out = append(out, '\\', 't')
		case r == '\b':
			out = append(out, '\\', 'b')
		case r == '\f':
			out = append(out, '\\', 'f')
		case r < 0x20 || (r > 0x7e && r <= 0xffff):
			out = appendUnicodeEscape(out, r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			out = appendUnicodeEscape(appendUnicodeEscape(out, hi), lo)
		default:
			out = append(out, byte(r))
		}
	}
	return append(out, '"')
}

func appendUnicodeEscape(out []byte, r rune) []byte {
	return append(out, '\\', 'u',
		hexDigits[r>>12&0xf], hexDigits[r>>8&0xf], hexDigits[r>>4&0xf], hexDigits[r&0xf])
}
