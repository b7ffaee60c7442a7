package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io/ioutil"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	Bucket string
	Key    string
}

// fakeFetcher serves objects from memory, keyed by "bucket/key".
type fakeFetcher struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []fetchCall
	err     error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{objects: map[string][]byte{}}
}

func (f *fakeFetcher) Put(bucket string, key string, b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = b
}

func (f *fakeFetcher) Fetch(ctx context.Context, bucket string, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{Bucket: bucket, Key: key})
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, &ObjectNotFoundError{Bucket: bucket, Key: key, Err: fmt.Errorf("NoSuchKey")}
	}
	return b, nil
}

type publishCall struct {
	TopicArn string
	Subject  string
	Message  string
}

// fakeNotifier records publishes. failAt is the 1-based call that fails, 0 never fails.
type fakeNotifier struct {
	mu     sync.Mutex
	calls  []publishCall
	failAt int
}

func (n *fakeNotifier) Publish(ctx context.Context, topicArn string, subject string, message string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, publishCall{TopicArn: topicArn, Subject: subject, Message: message})
	if n.failAt > 0 && len(n.calls) == n.failAt {
		return "", fmt.Errorf("SNS unavailable")
	}
	return fmt.Sprintf("msg-%d", len(n.calls)), nil
}

func (n *fakeNotifier) Calls() []publishCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]publishCall(nil), n.calls...)
}

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	b, err := ioutil.ReadFile(filename)
	require.NoError(t, err, "reading %s", filename)
	return b
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func s3EventJSON(records ...fetchCall) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"Records":[`)
	for i, r := range records {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf,
			`{"eventSource":"aws:s3","awsRegion":"us-east-1","eventName":"ObjectCreated:Put","s3":{"bucket":{"name":%q},"object":{"key":%q,"size":1024}}}`,
			r.Bucket, r.Key)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}
