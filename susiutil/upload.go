/*
Copyright © 2024 the SUSI authors.
This file is part of SUSI.

SUSI is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SUSI is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SUSI.  If not, see <http://www.gnu.org/licenses/>.
*/

package susiutil

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// IsS3 returns whether path refers to an S3 location.
func IsS3(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// Uploader copies experiment outputs to S3 or an S3-compatible store.
type Uploader struct {
	client *s3.Client
}

// NewUploader creates an uploader using the default AWS credential
// chain. If endpoint is not empty it replaces the AWS endpoint and
// path-style addressing is used.
func NewUploader(ctx context.Context, region, endpoint string) (*Uploader, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("susi: loading AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &Uploader{client: client}, nil
}

// splitS3 returns the bucket and key prefix of an s3://bucket/prefix
// location.
func splitS3(loc string) (bucket, prefix string, err error) {
	if !IsS3(loc) {
		return "", "", fmt.Errorf("susi: upload location %q is not an s3:// url", loc)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", "", fmt.Errorf("susi: parsing upload location: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("susi: upload location %q has no bucket", loc)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// UploadDir copies every file below dir to dest, an s3://bucket/prefix
// location, under the key prefix/<base name of dir>/<relative path>.
// It returns the keys written.
func (u *Uploader) UploadDir(ctx context.Context, dir, dest string) ([]string, error) {
	bucket, prefix, err := splitS3(dest)
	if err != nil {
		return nil, err
	}
	var keys []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.Base(dir), filepath.ToSlash(rel))
		if err := u.put(ctx, bucket, key, p); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (u *Uploader) put(ctx context.Context, bucket, key, file string) error {
	r, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("susi: opening file '%s' for upload: %w", file, err)
	}
	defer r.Close()
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("susi: uploading file '%s' to 's3://%s/%s': %w", file, bucket, key, err)
	}
	return nil
}
