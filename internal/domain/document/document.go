package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryPlan        Category = "plan"
	CategorySiteDiary   Category = "site_diary"
	CategoryRRTART      Category = "rrt_art"
	CategoryMeasurement Category = "measurement"
	CategoryPhotoReport Category = "photo_report"
	CategoryOther       Category = "other"
)

var ErrNotFound = errors.New("document not found")

// Document points at a file stored elsewhere; only the URL is kept here.
type Document struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"projectId"`
	UploadedBy     string    `json:"uploadedBy"`
	Title          string    `json:"title"`
	Category       Category  `json:"category"`
	FileURL        string    `json:"fileUrl"`
	CurrentVersion int       `json:"currentVersion"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Version struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Version    int       `json:"version"`
	FileURL    string    `json:"fileUrl"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ListFilter struct {
	Category *Category
}

type CreateDocumentRequest struct {
	Title    string   `json:"title" binding:"required,min=2,max=255"`
	Category Category `json:"category" binding:"required,oneof=plan site_diary rrt_art measurement photo_report other"`
	FileURL  string   `json:"fileUrl" binding:"required,max=1000"`
	Notes    *string  `json:"notes" binding:"omitempty,max=2000"`
}

type CreateVersionRequest struct {
	FileURL string  `json:"fileUrl" binding:"required,max=1000"`
	Notes   *string `json:"notes" binding:"omitempty,max=2000"`
}

// NewFromCreateRequest returns the document and its first version.
func NewFromCreateRequest(projectID, uploadedBy string, req CreateDocumentRequest) (Document, Version) {
	now := time.Now().UTC()

	d := Document{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		UploadedBy:     uploadedBy,
		Title:          req.Title,
		Category:       req.Category,
		FileURL:        req.FileURL,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	v := Version{
		ID:         uuid.NewString(),
		DocumentID: d.ID,
		Version:    1,
		FileURL:    req.FileURL,
		Notes:      req.Notes,
		CreatedBy:  uploadedBy,
		CreatedAt:  now,
	}

	return d, v
}

// NewVersion builds a version row; the number is assigned by the repository.
func NewVersion(documentID, createdBy string, req CreateVersionRequest) Version {
	return Version{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		FileURL:    req.FileURL,
		Notes:      req.Notes,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
}
