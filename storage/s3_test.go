package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewS3Storage(t *testing.T) {
	tests := []struct {
		name      string
		bucket    string
		region    string
		wantError bool
	}{
		{name: "valid bucket and region", bucket: "formbot-screenshots", region: "us-east-1"},
		{name: "empty bucket", bucket: "", region: "us-east-1", wantError: true},
		{name: "empty region", bucket: "formbot-screenshots", region: "", wantError: true},
		{name: "both empty", bucket: "", region: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewS3Storage(tt.bucket, tt.region)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.bucket != tt.bucket {
				t.Errorf("bucket = %q, want %q", store.bucket, tt.bucket)
			}
			if store.presignExpiration != 15*time.Minute {
				t.Errorf("default presign expiration = %v, want 15m", store.presignExpiration)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{name: "screenshot key", path: "42/exec-1_final.png"},
		{name: "dry run key", path: "42/exec-2_dryrun.png"},
		{name: "nested upload fixture", path: "uploads/7/forms/resume.pdf"},
		{name: "empty key", path: "", wantError: true},
		{name: "leading traversal", path: "../outside.png", wantError: true},
		// Clean normalizes an interior traversal back inside the prefix.
		{name: "interior traversal cleans to valid", path: "42/../7/shot.png"},
		{name: "absolute path", path: "/etc/passwd", wantError: true},
		{name: "leading dot cleans to valid", path: "./shot.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantError && err == nil {
				t.Errorf("expected error for path %q", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error for path %q: %v", tt.path, err)
			}
		})
	}
}

func TestS3Storage_RejectsEscapingKeys(t *testing.T) {
	store, err := NewS3Storage("formbot-screenshots", "us-east-1")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	ctx := context.Background()
	escaping := []string{
		"",
		"../../../etc/passwd",
		"../../outside.png",
		"/absolute/shot.png",
	}

	for _, key := range escaping {
		if err := store.Upload(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("Upload should have rejected key %q", key)
		}
		if _, err := store.Download(ctx, key); err == nil {
			t.Errorf("Download should have rejected key %q", key)
		}
		if err := store.Delete(ctx, key); err == nil {
			t.Errorf("Delete should have rejected key %q", key)
		}
		if _, err := store.Exists(ctx, key); err == nil {
			t.Errorf("Exists should have rejected key %q", key)
		}
		if _, err := store.GetURL(ctx, key); err == nil {
			t.Errorf("GetURL should have rejected key %q", key)
		}
	}
}

func TestNewBlobStorage(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
	}{
		{name: "local backend", cfg: Config{Type: "local", BaseDir: t.TempDir()}},
		{name: "local backend uppercase type", cfg: Config{Type: "LOCAL", BaseDir: t.TempDir()}},
		{name: "local backend missing base dir", cfg: Config{Type: "local"}, wantError: true},
		{name: "s3 backend", cfg: Config{Type: "s3", Bucket: "formbot-screenshots", Region: "us-east-1"}},
		{name: "s3 backend missing bucket", cfg: Config{Type: "s3", Region: "us-east-1"}, wantError: true},
		{name: "s3 backend missing region", cfg: Config{Type: "s3", Bucket: "formbot-screenshots"}, wantError: true},
		{name: "unsupported type", cfg: Config{Type: "gcs"}, wantError: true},
		{name: "empty type", cfg: Config{}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewBlobStorage(tt.cfg)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatal("expected storage but got nil")
			}
		})
	}
}

func TestNewBlobStorage_S3PresignExpiryOverride(t *testing.T) {
	store, err := NewBlobStorage(Config{
		Type:          "s3",
		Bucket:        "formbot-screenshots",
		Region:        "us-east-1",
		PresignExpiry: time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s3Store, ok := store.(*S3Storage)
	if !ok {
		t.Fatalf("expected *S3Storage, got %T", store)
	}
	if s3Store.presignExpiration != time.Hour {
		t.Errorf("presign expiration = %v, want 1h", s3Store.presignExpiration)
	}
}

func TestIsS3NotFoundError(t *testing.T) {
	if isS3NotFoundError(nil) {
		t.Error("nil error is not a not-found error")
	}
	if isS3NotFoundError(context.Canceled) {
		t.Error("unrelated error is not a not-found error")
	}
}
