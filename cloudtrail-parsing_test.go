package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseEnvelope(t *testing.T) {

	tests := []struct {
		name       string
		input      string
		wantEvents []string
		wantErr    bool
	}{
		{name: "empty records", input: `{"Records": []}`, wantEvents: nil},
		{name: "records in order", input: `{"Records": [{"eventName":"A"},{"eventName":"B"},{"eventName":"C"}]}`, wantEvents: []string{"A", "B", "C"}},
		{name: "escaped event name", input: `{"Records": [{"eventName":"Create\u0055ser"}]}`, wantEvents: []string{"CreateUser"}},
		{name: "non-string event name never matches", input: `{"Records": [{"eventName":42}]}`, wantEvents: []string{""}},
		{name: "extra top level fields", input: `{"Digest": "x", "Records": [{"eventName":"A"}]}`, wantEvents: []string{"A"}},
		{name: "truncated", input: `{"Records": [`, wantErr: true},
		{name: "not JSON", input: `CreateUser`, wantErr: true},
		{name: "empty text", input: ``, wantErr: true},
		{name: "missing Records", input: `{"records": []}`, wantErr: true},
		{name: "Records is not an array", input: `{"Records": {"eventName":"CreateUser"}}`, wantErr: true},
		{name: "top level array", input: `[{"eventName":"CreateUser"}]`, wantErr: true},
		{name: "record is not an object", input: `{"Records": ["CreateUser"]}`, wantErr: true},
		{name: "record without eventName", input: `{"Records": [{"eventSource":"iam.amazonaws.com"}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseEnvelope([]byte(tt.input), zap.NewNop().Sugar())
			if tt.wantErr {
				require.Error(t, err)
				var malformed *MalformedLogError
				assert.True(t, errors.As(err, &malformed), "want MalformedLogError, got %T", err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, r := range records {
				names = append(names, r.EventName)
			}
			assert.Equal(t, tt.wantEvents, names)
		})
	}
}

func TestParseEnvelopeKeepsRawRecord(t *testing.T) {
	records, err := ParseEnvelope([]byte(`{"Records":[{"z":1,"eventName":"CreateUser","a":1.50}]}`), zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, `{"z":1,"eventName":"CreateUser","a":1.50}`, string(records[0].Raw))
}

func TestFilterRecords(t *testing.T) {
	records := []AuditRecord{
		{EventName: "CreateUser", Raw: []byte(`{"n":1}`)},
		{EventName: "createuser", Raw: []byte(`{"n":2}`)},
		{EventName: "DeleteUser", Raw: []byte(`{"n":3}`)},
		{EventName: "CreateUser", Raw: []byte(`{"n":4}`)},
	}
	matched := FilterRecords(records, DefaultEventName)
	require.Len(t, matched, 2)
	assert.Equal(t, `{"n":1}`, string(matched[0].Raw))
	assert.Equal(t, `{"n":4}`, string(matched[1].Raw))

	assert.Empty(t, FilterRecords(nil, DefaultEventName))
}

func TestNotificationMessage(t *testing.T) {

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "nested object",
			raw:  `{"eventName":"CreateUser","userIdentity":{"type":"Root"},"resources":[1,2]}`,
			want: "CreateUser event detected: {\n  \"eventName\": \"CreateUser\",\n  \"userIdentity\": {\n    \"type\": \"Root\"\n  },\n  \"resources\": [\n    1,\n    2\n  ]\n}",
		},
		{
			name: "whitespace is normalised",
			raw:  "{ \"eventName\" :\t\"CreateUser\" }",
			want: "CreateUser event detected: {\n  \"eventName\": \"CreateUser\"\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NotificationMessage(DefaultEventName, AuditRecord{EventName: DefaultEventName, Raw: []byte(tt.raw)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "CreateUser Event Notification", NotificationSubject(DefaultEventName))
}

func TestNotificationMessageEscaping(t *testing.T) {

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "non-ASCII and escaped slash",
			raw:  `{"userAgent":"José\/1.0"}`,
			want: "{\n  \"userAgent\": \"Jos\\u00e9/1.0\"\n}",
		},
		{
			name: "astral rune becomes a surrogate pair",
			raw:  `{"userName":"ops😀"}`,
			want: "{\n  \"userName\": \"ops\\ud83d\\ude00\"\n}",
		},
		{
			name: "needless unicode escape is decoded",
			raw:  `{"eventName":"Create\u0055ser"}`,
			want: "{\n  \"eventName\": \"CreateUser\"\n}",
		},
		{
			name: "quotes, backslashes and control characters",
			raw:  `{"policy":"a\"b\\c\td\u0001\u007f"}`,
			want: "{\n  \"policy\": \"a\\\"b\\\\c\\td\\u0001\\u007f\"\n}",
		},
		{
			name: "non-ASCII key",
			raw:  `{"clé":[1,"ü"]}`,
			want: "{\n  \"cl\\u00e9\": [\n    1,\n    \"\\u00fc\"\n  ]\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NotificationMessage(DefaultEventName, AuditRecord{EventName: DefaultEventName, Raw: []byte(tt.raw)})
			require.NoError(t, err)
			assert.Equal(t, "CreateUser event detected: "+tt.want, got)
		})
	}
}
