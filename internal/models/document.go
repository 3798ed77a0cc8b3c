package models

import (
	"path"
	"strings"
	"time"
)

type FileType string

const (
	FileTypePDF  FileType = "PDF"
	FileTypeDOCX FileType = "DOCX"
	FileTypeDOC  FileType = "DOC"
)

var fileTypesByMIME = map[string]FileType{
	"application/pdf": FileTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FileTypeDOCX,
	"application/msword":       FileTypeDOC,
	"application/x-ole-storage": FileTypeDOC,
}

// FileTypeForMIME maps a detected MIME type onto a supported document kind.
func FileTypeForMIME(mime string) (FileType, bool) {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	ft, ok := fileTypesByMIME[strings.TrimSpace(strings.ToLower(mime))]
	return ft, ok
}

func (f FileType) Extension() string {
	return "." + strings.ToLower(string(f))
}

type FileInfo struct {
	Name      string   `bson:"name" json:"name"`
	Type      FileType `bson:"type" json:"type"`
	MimeType  string   `bson:"mime_type" json:"mime_type"`
	Size      int64    `bson:"size" json:"size"`
	ObjectKey string   `bson:"object_key" json:"-"`
}

type TailoredFor struct {
	OriginDocumentID string `bson:"origin_document_id" json:"origin_document_id"`
	JobID            string `bson:"job_id" json:"job_id"`
	JobTitle         string `bson:"job_title" json:"job_title"`
	Company          string `bson:"company" json:"company"`
}

type Version struct {
	Number      int       `bson:"number" json:"number"`
	Description string    `bson:"description" json:"description"`
	ArtifactKey string    `bson:"artifact_key" json:"-"`
	JobID       string    `bson:"job_id,omitempty" json:"job_id,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type Document struct {
	ID         string            `bson:"_id" json:"id"`
	UserID     string            `bson:"user_id" json:"user_id"`
	File       FileInfo          `bson:"file" json:"file"`
	Status     ProcessingStatus  `bson:"status" json:"status"`
	Record     *StructuredRecord `bson:"record,omitempty" json:"record,omitempty"`
	Analysis   *Analysis         `bson:"analysis,omitempty" json:"analysis,omitempty"`
	Versions   []Version         `bson:"versions" json:"versions"`
	VersionSeq int               `bson:"version_seq" json:"-"`
	IsTailored bool              `bson:"is_tailored" json:"is_tailored"`
	Tailored   *TailoredFor      `bson:"tailored_for_job,omitempty" json:"tailored_for_job,omitempty"`
	CreatedAt  time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `bson:"updated_at" json:"updated_at"`
}

// ObjectPrefix is the blob prefix under which every artifact of the document lives.
func (d *Document) ObjectPrefix() string {
	return path.Join("documents", d.UserID, d.ID)
}

func (d *Document) OriginalKey() string {
	return path.Join(d.ObjectPrefix(), "original"+d.File.Type.Extension())
}
