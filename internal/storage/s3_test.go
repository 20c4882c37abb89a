package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sroanalysis/internal/config"
)

// fakeS3 is an in-memory stand-in for the PutObject endpoint
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	status  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string), status: http.StatusOK}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	empty := io.NopCloser(bytes.NewReader(nil))
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}}, nil
	}
	if f.status != http.StatusOK {
		body := `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`
		return &http.Response{StatusCode: f.status, Body: io.NopCloser(strings.NewReader(body)),
			Header: http.Header{"Content-Type": {"application/xml"}}}, nil
	}

	body, _ := io.ReadAll(req.Body)
	if dec, ok := decodeChunked(body); ok {
		body = dec
	}
	// path style: /<bucket>/<key>
	key := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)[1]
	f.objects[key] = body
	f.types[key] = req.Header.Get("Content-Type")
	return &http.Response{StatusCode: http.StatusOK, Body: empty, Header: http.Header{"ETag": {`"etag"`}}}, nil
}

// decodeChunked decodes a single-chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	size, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || int64(len(parts[1])) != size || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newTestS3Sink(t *testing.T, fake *fakeS3, prefix string) *S3Sink {
	t.Helper()
	sink, err := NewS3Sink(context.Background(), config.S3Config{
		Bucket:          "sro-results",
		Region:          "eu-west-2",
		Endpoint:        "https://mock.s3.local",
		Prefix:          prefix,
		UsePathStyle:    true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, nil, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	require.NoError(t, err)
	return sink
}

func TestS3Sink(t *testing.T) {
	fake := newFakeS3()
	sink := newTestS3Sink(t, fake, "/runs/2021/")
	assert.Equal(t, "s3", sink.Name())
	assert.Equal(t, "runs/2021/rate_table_sex.csv", sink.Key("rate_table_sex"))

	require.NoError(t, sink.WriteTable(context.Background(), "rate_table_sex", rateTable(t)))
	require.NoError(t, sink.Close())

	body, ok := fake.objects["runs/2021/rate_table_sex.csv"]
	require.True(t, ok, "object uploaded under the prefix")
	assert.Equal(t, "date,sex,event,rate\n2021-01-01,F,12,0.12\n2021-01-01,M,,\n", string(body))
	assert.Equal(t, "text/csv; charset=utf-8", fake.types["runs/2021/rate_table_sex.csv"])
}

func TestS3SinkNoPrefix(t *testing.T) {
	sink := newTestS3Sink(t, newFakeS3(), "")
	assert.Equal(t, "top_5_code_table.csv", sink.Key("top_5_code_table"))
}

func TestS3SinkUploadError(t *testing.T) {
	fake := newFakeS3()
	fake.status = http.StatusForbidden
	sink := newTestS3Sink(t, fake, "runs")

	err := sink.WriteTable(context.Background(), "rate_table_sex", rateTable(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://sro-results/runs/rate_table_sex.csv")
}

func TestNewS3SinkRequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), config.S3Config{}, nil)
	assert.ErrorContains(t, err, "bucket required")
}
