package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// Project is a remote project record.
type Project struct {
	ProjectID        string         `json:"project_id"`
	Name             string         `json:"name"`
	OrgID            string         `json:"org_id,omitempty"`
	Orientation      Orientation    `json:"orientation,omitempty"`
	Purpose          string         `json:"purpose,omitempty"`
	TargetAudience   string         `json:"target_audience,omitempty"`
	Status           string         `json:"status,omitempty"`
	FolderID         string         `json:"folder_id,omitempty"`
	BrandID          string         `json:"brand_id,omitempty"`
	CompanyDetailsID string         `json:"company_details_id,omitempty"`
	AssociatedFiles  []string       `json:"associated_files,omitempty"`
	StockFiles       map[string]any `json:"stock_files,omitempty"`
	CreatedAt        string         `json:"created_at,omitempty"`
	UpdatedAt        string         `json:"updated_at,omitempty"`
}

// CreateProjectRequest is the body of POST /projects/create.
type CreateProjectRequest struct {
	Name             string         `json:"name" validate:"required"`
	OrgID            string         `json:"org_id"`
	Orientation      Orientation    `json:"orientation" validate:"required,oneof=landscape portrait"`
	Purpose          string         `json:"purpose"`
	TargetAudience   string         `json:"target_audience"`
	FolderID         string         `json:"folder_id,omitempty"`
	CompanyDetailsID string         `json:"company_details_id,omitempty"`
	BrandID          string         `json:"brand_id,omitempty"`
	AssociatedFiles  []string       `json:"associated_files,omitempty"`
	Settings         map[string]any `json:"settings,omitempty"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Project Project `json:"project"`
	Message string  `json:"message,omitempty"`
}

// ProjectList is a page of projects.
type ProjectList struct {
	Projects   []Project `json:"projects"`
	Total      int       `json:"total,omitempty"`
	Page       int       `json:"page,omitempty"`
	TotalPages int       `json:"total_pages,omitempty"`
}

// ListProjectsOptions filters GET /projects/get_all.
type ListProjectsOptions struct {
	OrgID  string
	Status ProjectStatus `validate:"omitempty,oneof=draft ongoing error completed"`
	Page   int           `validate:"gte=0"`
	Limit  int           `validate:"gte=0,lte=100"`
}

// UpdateProjectRequest is the body of PUT /projects/update. Nil fields are left unchanged.
type UpdateProjectRequest struct {
	ProjectID        string  `json:"-" validate:"required"`
	Name             *string `json:"name,omitempty"`
	Purpose          *string `json:"purpose,omitempty"`
	TargetAudience   *string `json:"target_audience,omitempty"`
	CompanyDetailsID *string `json:"company_details_id,omitempty"`
	BrandID          *string `json:"brand_id,omitempty"`
	Status           *string `json:"status,omitempty" validate:"omitempty,oneof=draft ongoing error completed"`
}

// StatusMessage is the generic acknowledgement of a mutation.
type StatusMessage struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProjectFiles lists the media attached to a project.
type ProjectFiles struct {
	ProjectID       string           `json:"project_id,omitempty"`
	AssociatedFiles []map[string]any `json:"associated_files,omitempty"`
	StockVideos     []map[string]any `json:"stock_videos,omitempty"`
	StockAudios     []map[string]any `json:"stock_audios,omitempty"`
	StockImages     []map[string]any `json:"stock_images,omitempty"`
	Voiceover       map[string]any   `json:"voiceover,omitempty"`
}

// Folder groups projects.
type Folder struct {
	FolderID    string `json:"folder_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateProject creates a project in the given or default organization.
func (c *Client) CreateProject(ctx context.Context, req *CreateProjectRequest) (*ProjectResponse, error) {
	const op = "projects.create"
	body := *req
	org, err := c.orgID(op, body.OrgID)
	if err != nil {
		return nil, err
	}
	body.OrgID = org
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	var result ProjectResponse
	if err := c.post(ctx, "/projects/create", nil, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*ProjectResponse, error) {
	if projectID == "" {
		return nil, apierr.Validation("projects.get", "project_id is required")
	}
	q := url.Values{"project_id": {projectID}}
	var result ProjectResponse
	if err := c.get(ctx, "/projects/get_one", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProjects lists projects of an organization.
func (c *Client) ListProjects(ctx context.Context, opts ListProjectsOptions) (*ProjectList, error) {
	const op = "projects.list"
	org, err := c.orgID(op, opts.OrgID)
	if err != nil {
		return nil, err
	}
	if err := c.check(op, &opts); err != nil {
		return nil, err
	}
	q := url.Values{"org_id": {org}}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var result ProjectList
	if err := c.get(ctx, "/projects/get_all", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProject changes project metadata.
func (c *Client) UpdateProject(ctx context.Context, req *UpdateProjectRequest) (*ProjectResponse, error) {
	const op = "projects.update"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	q := url.Values{"project_id": {req.ProjectID}}
	var result ProjectResponse
	if err := c.put(ctx, "/projects/update", q, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) (*StatusMessage, error) {
	if projectID == "" {
		return nil, apierr.Validation("projects.delete", "project_id is required")
	}
	q := url.Values{"project_id": {projectID}}
	var result StatusMessage
	if err := c.del(ctx, "/projects/delete", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DuplicateProject copies a project, optionally under a new name.
func (c *Client) DuplicateProject(ctx context.Context, projectID, name string) (*ProjectResponse, error) {
	if projectID == "" {
		return nil, apierr.Validation("projects.duplicate", "project_id is required")
	}
	body := map[string]string{"project_id": projectID}
	if name != "" {
		body["name"] = name
	}
	var result ProjectResponse
	if err := c.post(ctx, "/projects/duplicate", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddAssociatedFile attaches an uploaded file to a project.
func (c *Client) AddAssociatedFile(ctx context.Context, projectID, fileID string) (*StatusMessage, error) {
	const op = "projects.files.add"
	if projectID == "" || fileID == "" {
		return nil, apierr.Validation(op, "project_id and file_id are required")
	}
	q := url.Values{"project_id": {projectID}}
	var result StatusMessage
	if err := c.post(ctx, "/projects/files/add", q, map[string]string{"file_id": fileID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveAssociatedFile detaches a file from a project.
func (c *Client) RemoveAssociatedFile(ctx context.Context, projectID, fileID string) (*StatusMessage, error) {
	const op = "projects.files.remove"
	if projectID == "" || fileID == "" {
		return nil, apierr.Validation(op, "project_id and file_id are required")
	}
	q := url.Values{"project_id": {projectID}}
	var result StatusMessage
	if err := c.del(ctx, "/projects/files/remove", q, map[string]string{"file_id": fileID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type stockFileBody struct {
	StockID   string    `json:"stock_id" validate:"required"`
	MediaType MediaType `json:"media_type" validate:"required,oneof=videos audios images"`
}

// AddStockFile attaches a stock item to a project.
func (c *Client) AddStockFile(ctx context.Context, projectID, stockID string, mediaType MediaType) (*StatusMessage, error) {
	const op = "projects.stock.add"
	if projectID == "" {
		return nil, apierr.Validation(op, "project_id is required")
	}
	body := stockFileBody{StockID: stockID, MediaType: mediaType}
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	q := url.Values{"project_id": {projectID}}
	var result StatusMessage
	if err := c.post(ctx, "/projects/stock-files/add", q, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveStockFile detaches a stock item from a project.
func (c *Client) RemoveStockFile(ctx context.Context, projectID, stockID string, mediaType MediaType) (*StatusMessage, error) {
	const op = "projects.stock.remove"
	if projectID == "" {
		return nil, apierr.Validation(op, "project_id is required")
	}
	body := stockFileBody{StockID: stockID, MediaType: mediaType}
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	q := url.Values{"project_id": {projectID}}
	var result StatusMessage
	if err := c.del(ctx, "/projects/stock-files/remove", q, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProjectFiles lists files and stock media attached to a project.
func (c *Client) GetProjectFiles(ctx context.Context, projectID string, includeDetails bool) (*ProjectFiles, error) {
	if projectID == "" {
		return nil, apierr.Validation("projects.files.list", "project_id is required")
	}
	q := url.Values{"project_id": {projectID}, "include_details": {boolParam(includeDetails)}}
	var result ProjectFiles
	if err := c.get(ctx, "/projects/files/get_all", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateFolder creates a project folder.
func (c *Client) CreateFolder(ctx context.Context, name, description, orgID string) (*Folder, error) {
	const op = "projects.folders.create"
	if name == "" {
		return nil, apierr.Validation(op, "name is required")
	}
	org, err := c.orgID(op, orgID)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"name": name, "description": description, "org_id": org}
	var result struct {
		Folder Folder `json:"folder"`
	}
	if err := c.post(ctx, "/projects/folders/create", nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Folder, nil
}

// ListFolders lists project folders of an organization.
func (c *Client) ListFolders(ctx context.Context, orgID string) ([]Folder, error) {
	const op = "projects.folders.list"
	org, err := c.orgID(op, orgID)
	if err != nil {
		return nil, err
	}
	var result struct {
		Folders []Folder `json:"folders"`
	}
	if err := c.get(ctx, "/projects/folders/get_all", url.Values{"org_id": {org}}, &result); err != nil {
		return nil, err
	}
	return result.Folders, nil
}
