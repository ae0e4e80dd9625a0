package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// s3RoundTripper fakes the small S3 subset the driver uses, without network
// access: Head/Get/Put/Delete plus ListObjectsV2 with one pagination step.
type s3RoundTripper struct{ state map[string]s3Object }

type s3Object struct {
	body        []byte
	contentType string
}

func (m *s3RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		return m.list(req)
	}
	switch req.Method {
	case http.MethodHead:
		if obj, ok := m.state[key]; ok {
			return s3Resp(http.StatusOK, nil, http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
				"Content-Type":   {obj.contentType},
				"Etag":           {"\"etag123\""},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			}), nil
		}
		return s3Resp(http.StatusNotFound, nil, http.Header{}), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeAWSChunked(body); ok {
			body = dec
		}
		if _, exists := m.state[key]; !exists {
			m.state[key] = s3Object{body: body, contentType: req.Header.Get("Content-Type")}
		}
		return s3Resp(http.StatusOK, nil, http.Header{"Etag": {"\"etag\""}}), nil
	case http.MethodGet:
		if obj, ok := m.state[key]; ok {
			return s3Resp(http.StatusOK, obj.body, http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
				"Content-Type":   {obj.contentType},
				"Etag":           {"\"etag\""},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			}), nil
		}
		return s3Resp(http.StatusNotFound, nil, http.Header{}), nil
	case http.MethodDelete:
		delete(m.state, key)
		return s3Resp(http.StatusNoContent, nil, http.Header{}), nil
	}
	return s3Resp(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (m *s3RoundTripper) list(req *http.Request) (*http.Response, error) {
	prefix := req.URL.Query().Get("prefix")
	cont := req.URL.Query().Get("continuation-token")
	var keys []string
	for k := range m.state {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult>`)
	writeContents := func(ks []string) {
		for _, k := range ks {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>",
				k, len(m.state[k].body))
		}
	}
	if cont == "" && len(keys) > 1 {
		b.WriteString("<IsTruncated>true</IsTruncated><NextContinuationToken>tok123</NextContinuationToken>")
		writeContents(keys[:1])
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
		start := 0
		if cont != "" && len(keys) > 1 {
			start = 1
		}
		writeContents(keys[start:])
	}
	b.WriteString("</ListBucketResult>")
	return s3Resp(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
}

func s3Resp(status int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

// decodeAWSChunked unwraps a minimal single-chunk aws-chunked payload:
// <hex>\r\n<body>\r\n0\r\n...
func decodeAWSChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newMockS3(t *testing.T) *S3 {
	t.Helper()
	rt := &s3RoundTripper{state: make(map[string]s3Object)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
	})
	return &S3{client: client, bucket: "test-bucket", presign: awsS3.NewPresignClient(client)}
}

func TestS3MockedBasicFlow(t *testing.T) {
	ctx := context.Background()
	store := newMockS3(t)
	assert.Equal(t, DriverS3, store.Driver())

	info, err := store.Put(ctx, "logs/92-450.log", bytes.NewReader([]byte("old run\n")), WriteOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "logs/92-450.log", info.Key)
	assert.Equal(t, "text/plain", info.ContentType)
	assert.Equal(t, int64(8), info.Size)

	_, err = store.Put(ctx, "logs/92-450.log", bytes.NewReader([]byte("again")), WriteOptions{})
	assert.Error(t, err, "head-based create-only emulation")

	got, rc, err := store.Get(ctx, "logs/92-450.log")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "old run\n", string(data))
	assert.Equal(t, "etag", got.ETag)

	url, err := store.PresignURL(ctx, "logs/92-450.log", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	existed, err := store.Delete(ctx, "logs/92-450.log")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestS3MockedErrorPaths(t *testing.T) {
	ctx := context.Background()
	store := newMockS3(t)

	_, err := store.Head(ctx, "nope")
	assert.Error(t, err)
	_, _, err = store.Get(ctx, "nope")
	assert.Error(t, err)
}

func TestS3MockedListPaginates(t *testing.T) {
	ctx := context.Background()
	store := newMockS3(t)
	_, err := store.Put(ctx, "logs/a.log", bytes.NewReader([]byte("a")), WriteOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "logs/b.log", bytes.NewReader([]byte("b")), WriteOptions{})
	require.NoError(t, err)

	infos, err := store.List(ctx, "logs/")
	require.NoError(t, err)
	require.Len(t, infos, 2, "both pages collected")
	assert.Equal(t, "logs/a.log", infos[0].Key)

	infos, err = store.List(ctx, "no-such-prefix/")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)

	t.Setenv("LIMSEPP_BLOB_S3_BUCKET", "")
	_, err = OpenS3FromEnv(context.Background())
	assert.Error(t, err)
}
