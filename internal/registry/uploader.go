package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// LogCallback is an optional function for forwarding log messages (e.g. to WebSocket).
type LogCallback func(message, level string)

// Artifact is a single file produced by a hoist run, ready for upload.
type Artifact struct {
	Root     string // hoist root the artifact was produced for, e.g. "." or "packages/api"
	Version  string // run identifier, e.g. a UUID or a timestamp string
	Filename string // "tree.json", "report.json", "ai-explanation.json"
	Data     []byte
}

// Uploader handles uploading hoist run artifacts to a Gitea generic package registry
type Uploader struct {
	BaseURL     string
	Owner       string
	Token       string
	Concurrency int
	HTTPClient  *http.Client
	logCb       LogCallback
}

// NewUploader creates a new registry uploader
func NewUploader(baseURL, owner, token string) *Uploader {
	return &Uploader{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Owner:       owner,
		Token:       token,
		Concurrency: 10,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetLogCallback sets an optional callback for forwarding log messages.
func (u *Uploader) SetLogCallback(cb LogCallback) {
	u.logCb = cb
}

// logMsg prints to console and optionally forwards via the log callback.
func (u *Uploader) logMsg(message, level string) {
	log.Printf("%s", message)
	if u.logCb != nil {
		u.logCb(message, level)
	}
}

// ArtifactExists checks whether a specific artifact file already exists in
// the registry, using Gitea's generic package API:
// HEAD /api/packages/{owner}/generic/{package}/{version}/{filename}
func (u *Uploader) ArtifactExists(ctx context.Context, packageName, version, filename string) (bool, error) {
	url := fmt.Sprintf("%s/api/packages/%s/generic/%s/%s/%s",
		u.BaseURL, u.Owner, normalizePackageName(packageName), version, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.Token)

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check artifact existence: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// UploadArtifact uploads a single hoist artifact file to the generic package registry.
func (u *Uploader) UploadArtifact(ctx context.Context, a Artifact) error {
	packageName := artifactPackageName(a.Root)
	url := fmt.Sprintf("%s/api/packages/%s/generic/%s/%s/%s",
		u.BaseURL, u.Owner, normalizePackageName(packageName), a.Version, a.Filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(a.Data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.Token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	if resp.StatusCode == http.StatusConflict {
		// Same run id, same filename: treat as already delivered.
		return nil
	}

	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	return fmt.Errorf("failed to upload artifact: status %d, body: %s", resp.StatusCode, body.String())
}

// UploadHoistArtifact marshals a value to JSON and uploads it as a single
// artifact file. It's the common case: uploading a *models.OutputNode tree
// or an *aggregate.Report.
func (u *Uploader) UploadHoistArtifact(ctx context.Context, root, version, filename string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", filename, err)
	}

	return u.UploadArtifact(ctx, Artifact{
		Root:     root,
		Version:  version,
		Filename: filename,
		Data:     data,
	})
}

// UploadArtifacts uploads a batch of artifacts concurrently, failing fast on
// the first error, mirroring the teacher's worker-pool-with-cancellation
// shape.
func (u *Uploader) UploadArtifacts(ctx context.Context, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	u.logMsg(fmt.Sprintf("Uploading %d hoist artifacts...", len(artifacts)), "info")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, u.Concurrency)
	errChan := make(chan error, 1)
	var processedCount int
	var mu sync.Mutex
	stopChan := make(chan struct{})

	for _, artifact := range artifacts {
		wg.Add(1)
		go func(a Artifact) {
			defer wg.Done()

			select {
			case <-stopChan:
				return
			default:
			}

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := u.UploadArtifact(ctx, a); err != nil {
				select {
				case errChan <- fmt.Errorf("failed to upload %s/%s: %w", a.Root, a.Filename, err):
					close(stopChan)
				default:
				}
				return
			}

			mu.Lock()
			processedCount++
			u.logMsg(fmt.Sprintf("[%d/%d] Uploaded: %s/%s", processedCount, len(artifacts), a.Root, a.Filename), "info")
			mu.Unlock()
		}(artifact)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return err
	}

	u.logMsg(fmt.Sprintf("Successfully uploaded %d artifacts", len(artifacts)), "success")
	return nil
}

// artifactPackageName turns a hoist root path into a package-registry-safe
// name, reusing the scope-flattening convention the teacher's module-type
// detector used for on-disk synthetic package names.
func artifactPackageName(root string) string {
	if root == "" || root == "." {
		return "workspace-root"
	}
	return strings.ReplaceAll(NormalizePackageName(root), "/", "__")
}

// normalizePackageName normalizes a package name for a registry URL path,
// e.g. "@scope/name" -> "@scope%2fname".
func normalizePackageName(name string) string {
	if strings.HasPrefix(name, "@") {
		parts := strings.SplitN(name, "/", 2)
		if len(parts) == 2 {
			return parts[0] + "%2f" + parts[1]
		}
	}
	return name
}

// NormalizePackageName normalizes a package name for use as a filesystem or
// URL path segment, e.g. "@scope/name" -> "scope__name". Salvaged from the
// teacher's module-type detector, which used it to name synthetic packages
// on disk.
func NormalizePackageName(name string) string {
	if strings.HasPrefix(name, "@") {
		parts := strings.SplitN(name, "/", 2)
		if len(parts) == 2 {
			return parts[0][1:] + "__" + parts[1]
		}
	}
	return name
}
