// Package storage uploads local audio files to Aliyun OSS so that the
// recognition service can fetch them by URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/lemos/y7converter/internal/config"
	"github.com/lemos/y7converter/internal/errs"
	"github.com/lemos/y7converter/pkg/log"
)

// UploadHandle identifies an uploaded object. The pipeline that created it
// must delete it before discarding the handle.
type UploadHandle struct {
	Key  string
	URL  string
	Size int64
}

// objectAPI is the subset of *oss.Bucket used by the client.
type objectAPI interface {
	PutObjectFromFile(objectKey, filePath string, options ...oss.Option) error
	DeleteObject(objectKey string, options ...oss.Option) error
}

type Client struct {
	cfg       config.StorageConfig
	host      string
	scheme    string
	bucket    objectAPI
	transport *http.Transport

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	closed bool
}

// New validates cfg and creates an OSS client. No network call is made.
func New(cfg config.StorageConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(err, errs.Config, "invalid object storage configuration")
	}

	endpoint := endpointURL(cfg)
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   time.Duration(cfg.ConnectionTimeout) * time.Millisecond,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxConnections,
		MaxIdleConnsPerHost:   cfg.MaxConnections,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.SocketTimeout) * time.Millisecond,
	}

	client, err := oss.New(endpoint, cfg.AccessKeyID, cfg.AccessKeySecret,
		oss.Timeout(int64(cfg.ConnectionTimeout/1000), int64(cfg.SocketTimeout/1000)),
		oss.HTTPClient(&http.Client{Transport: transport}),
		oss.UseCname(false),
	)
	if err != nil {
		return nil, errs.Wrap(err, errs.Config, "failed to create OSS client").WithContext("endpoint", endpoint)
	}
	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, errs.Wrap(err, errs.Config, "invalid OSS bucket").WithContext("bucket", cfg.BucketName)
	}

	c := newWithAPI(cfg, bucket)
	c.transport = transport
	log.Debug("OSS client created for bucket %s at %s", cfg.BucketName, c.host)
	return c, nil
}

func newWithAPI(cfg config.StorageConfig, api objectAPI) *Client {
	scheme := "http"
	if cfg.UseHTTPS {
		scheme = "https"
	}
	return &Client{
		cfg:    cfg,
		host:   endpointHost(cfg.Endpoint),
		scheme: scheme,
		bucket: api,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Upload stores the local file under a unique key and returns its handle.
func (c *Client) Upload(ctx context.Context, localPath string) (UploadHandle, error) {
	if err := c.checkOpen(); err != nil {
		return UploadHandle{}, err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return UploadHandle{}, errs.Wrap(err, errs.FileIO, "file to upload does not exist").WithContext("path", localPath)
	}
	if !info.Mode().IsRegular() {
		return UploadHandle{}, errs.New(errs.FileIO, "file to upload is not a regular file").WithContext("path", localPath)
	}
	if ctx.Err() != nil {
		return UploadHandle{}, errs.FromContext(ctx, "upload")
	}

	key := c.objectKey(filepath.Base(localPath))
	start := time.Now()
	if err := c.bucket.PutObjectFromFile(key, localPath, oss.WithContext(ctx)); err != nil {
		if ctx.Err() != nil {
			return UploadHandle{}, errs.FromContext(ctx, "upload")
		}
		return UploadHandle{}, storageError(err, "failed to upload file").
			WithContext("path", localPath).
			WithContext("key", key)
	}

	handle := UploadHandle{
		Key:  key,
		URL:  c.objectURL(key),
		Size: info.Size(),
	}
	log.Info("Uploaded %s (%s) to %s in %s", filepath.Base(localPath),
		humanize.Bytes(uint64(handle.Size)), key, time.Since(start).Round(time.Millisecond))
	return handle, nil
}

// Delete removes the object and reports whether it succeeded. Failures are
// logged and never returned.
func (c *Client) Delete(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	if err := c.checkOpen(); err != nil {
		log.Warn("Failed to delete %s: %v", key, err)
		return false
	}
	if err := c.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		log.Warn("Failed to delete remote object %s: %v", key, err)
		return false
	}
	log.Debug("Deleted remote object %s", key)
	return true
}

// Close releases pooled connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errs.New(errs.Storage, "object storage client is closed")
	}
	return nil
}

// objectKey builds {prefix}{yyyy}/{mm}/{uuid}_{name}.
func (c *Client) objectKey(name string) string {
	return normalizePrefix(c.cfg.ObjectKeyPrefix) +
		c.now().Format("2006/01") + "/" +
		c.newID() + "_" + name
}

// objectURL escapes every key segment so names with spaces or reserved
// characters still form a valid URL.
func (c *Client) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s://%s.%s/%s", c.scheme, c.cfg.BucketName, c.host, strings.Join(segments, "/"))
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// endpointHost strips the scheme and any trailing path from the endpoint.
func endpointHost(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.Contains(endpoint, "://") {
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.SplitN(endpoint, "/", 2)[0]
}

func endpointURL(cfg config.StorageConfig) string {
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseHTTPS {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

func storageError(err error, message string) *errs.Error {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		e := errs.Wrap(err, errs.Storage, message).
			WithContext("code", svcErr.Code).
			WithContext("status", svcErr.StatusCode)
		if svcErr.StatusCode == http.StatusForbidden || svcErr.Code == "InvalidAccessKeyId" || svcErr.Code == "SignatureDoesNotMatch" {
			e.Kind = errs.Auth
		}
		return e
	}
	return errs.Wrap(err, errs.Storage, message)
}
