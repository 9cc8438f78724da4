package submission

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
)

var ErrExportDisabled = errors.New("export storage is not configured")

// Uploader stores an export file and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// S3Config points exports at an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	Prefix          string
}

// S3Uploader puts export files into a bucket.
type S3Uploader struct {
	client *awss3.Client
	bucket string
	prefix string
	url    string
}

// NewS3Uploader returns nil when no bucket is configured.
func NewS3Uploader(cfg S3Config) *S3Uploader {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg := aws.Config{Region: region}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
		}
		o.UsePathStyle = cfg.PathStyle
	})

	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	if cfg.Endpoint != "" {
		ep := strings.TrimRight(cfg.Endpoint, "/")
		base = ep + "/" + cfg.Bucket
		if !cfg.PathStyle {
			if scheme, host, ok := strings.Cut(ep, "://"); ok {
				base = scheme + "://" + cfg.Bucket + "." + host
			}
		}
	}
	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		url:    base,
	}
}

func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}
	_, err := u.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.url + "/" + key, nil
}

// DirUploader writes export files under a local directory.
type DirUploader struct {
	dir string
}

func NewDirUploader(dir string) *DirUploader {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return &DirUploader{dir: dir}
}

func (u *DirUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return path, nil
}

// ExportResult describes an uploaded export.
type ExportResult struct {
	Key      string    `json:"key"`
	URL      string    `json:"url"`
	Rows     int       `json:"rows"`
	Exported time.Time `json:"exported_at"`
}

// Columns lists the input names of a tree in layout order.
func Columns(tree []*layout.Node) []string {
	var out []string
	seen := map[string]bool{}
	layout.Walk(tree, func(n *layout.Node, _ int) bool {
		f := n.Field()
		if f == nil {
			return true
		}
		if displayOnlyFields[f.FieldType] {
			return false
		}
		name := f.InputName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		// repeater rows are exported as one JSON cell
		return f.FieldType != layout.FieldTypeRepeater
	})
	return out
}

// WriteCSV writes one row per submission. Columns come first, followed by
// any other submitted key in name order.
func WriteCSV(buf *bytes.Buffer, columns []string, items []models.SubmissionModel) error {
	known := map[string]bool{}
	for _, c := range columns {
		known[c] = true
	}
	var extra []string
	for _, it := range items {
		for k := range it.Values {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	all := append(append([]string{}, columns...), extra...)

	w := csv.NewWriter(buf)
	header := append([]string{"id", "submitted_at", "version"}, all...)
	header = append(header, "ip", "user_agent")
	if err := w.Write(header); err != nil {
		return err
	}
	for _, it := range items {
		row := []string{it.ID, it.CreatedAt.UTC().Format(time.RFC3339), fmt.Sprint(it.FormVersion)}
		for _, c := range all {
			row = append(row, cell(it.Values[c]))
		}
		row = append(row, it.IP, it.UserAgent)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func cell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []interface{}:
		flat := make([]string, 0, len(t))
		for _, item := range t {
			if _, nested := item.(map[string]interface{}); nested {
				b, _ := json.Marshal(t)
				return string(b)
			}
			flat = append(flat, stringOf(item))
		}
		return strings.Join(flat, ", ")
	case map[string]interface{}:
		b, _ := json.Marshal(t)
		return string(b)
	}
	return stringOf(v)
}
