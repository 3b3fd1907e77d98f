package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// StoredFile is a file in the organization's storage.
type StoredFile struct {
	FileID        string         `json:"file_id"`
	Filename      string         `json:"filename,omitempty"`
	Path          string         `json:"path,omitempty"`
	MediaType     string         `json:"media_type,omitempty"`
	Size          int64          `json:"size,omitempty"`
	Status        string         `json:"status,omitempty"`
	ThumbnailURL  string         `json:"thumbnail_url,omitempty"`
	StreamableURL string         `json:"streamable_url,omitempty"`
	DownloadURL   string         `json:"download_url,omitempty"`
	Analysis      map[string]any `json:"analysis,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
}

// StorageFolder is a folder in the organization's storage.
type StorageFolder struct {
	FolderID string `json:"folder_id"`
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
}

// FolderContents lists one storage folder.
type FolderContents struct {
	Path    string          `json:"path,omitempty"`
	Folders []StorageFolder `json:"folders"`
	Files   []StoredFile    `json:"files"`
}

// ListFilesOptions filters GET /storage/folder/contents.
type ListFilesOptions struct {
	Path      string
	Recursive bool
	Detailed  bool
	OrgID     string
}

// UploadLink is a pre-signed upload target.
type UploadLink struct {
	UploadLink string `json:"upload_link"`
	Key        string `json:"key,omitempty"`
	UploadID   string `json:"upload_id"`
	ExpiresIn  int    `json:"expires_in,omitempty"`
}

// UploadLinkRequest asks for a pre-signed upload URL.
type UploadLinkRequest struct {
	Filename   string `validate:"required"`
	FileSize   int64  `validate:"gte=0"`
	FolderPath string
	OrgID      string
}

// CompleteUploadRequest finalizes an upload after the bytes were sent to the pre-signed URL.
type CompleteUploadRequest struct {
	UploadID   string   `json:"upload_id" validate:"required"`
	OrgID      string   `json:"org_id"`
	Filename   string   `json:"filename,omitempty"`
	FolderPath string   `json:"folder_path,omitempty"`
	Context    string   `json:"context,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// CompletedUpload is returned once the platform has registered the file and queued analysis.
type CompletedUpload struct {
	File    StoredFile `json:"file"`
	JobID   string     `json:"job_id,omitempty"`
	Message string     `json:"message,omitempty"`
}

// ListFiles lists a storage folder.
func (c *Client) ListFiles(ctx context.Context, opts ListFilesOptions) (*FolderContents, error) {
	const op = "storage.list"
	org, err := c.orgID(op, opts.OrgID)
	if err != nil {
		return nil, err
	}
	path := opts.Path
	if path == "" {
		path = "/"
	}
	q := linkParams(opts.Detailed, false)
	q.Set("generate_thumbnail", "true")
	q.Set("org_id", org)
	q.Set("path", path)
	q.Set("recursive", boolParam(opts.Recursive))
	var result FolderContents
	if err := c.get(ctx, "/storage/folder/contents", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFile fetches a file with its analysis.
func (c *Client) GetFile(ctx context.Context, fileID string) (*StoredFile, error) {
	if fileID == "" {
		return nil, apierr.Validation("storage.get", "file_id is required")
	}
	q := linkParams(true, true)
	q.Set("file_id", fileID)
	var result StoredFile
	if err := c.get(ctx, "/storage/file/analysis", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUploadLink creates a pre-signed URL the caller uploads bytes to.
func (c *Client) GetUploadLink(ctx context.Context, req UploadLinkRequest) (*UploadLink, error) {
	const op = "storage.upload.link"
	if err := c.check(op, &req); err != nil {
		return nil, err
	}
	org, err := c.orgID(op, req.OrgID)
	if err != nil {
		return nil, err
	}
	folder := req.FolderPath
	if folder == "" {
		folder = "/"
	}
	q := url.Values{
		"org_id":      {org},
		"filename":    {req.Filename},
		"file_size":   {strconv.FormatInt(req.FileSize, 10)},
		"folder_path": {folder},
	}
	var result UploadLink
	if err := c.get(ctx, "/storage/upload/create_link", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteUpload registers an uploaded file.
func (c *Client) CompleteUpload(ctx context.Context, req *CompleteUploadRequest) (*CompletedUpload, error) {
	const op = "storage.upload.complete"
	body := *req
	org, err := c.orgID(op, body.OrgID)
	if err != nil {
		return nil, err
	}
	body.OrgID = org
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	var result CompletedUpload
	if err := c.post(ctx, "/storage/upload/complete", nil, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteFile removes a stored file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) (*StatusMessage, error) {
	if fileID == "" {
		return nil, apierr.Validation("storage.delete", "file_id is required")
	}
	var result StatusMessage
	if err := c.del(ctx, "/storage/file/delete", url.Values{"file_id": {fileID}}, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
