package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/yoockh/yoocv/internal/models"
	mongorepo "github.com/yoockh/yoocv/internal/repositories/mongo"
	"github.com/yoockh/yoocv/internal/storage"
	"github.com/yoockh/yoocv/internal/utils"
)

// versionStore snapshots records into blob storage and appends the matching
// Version entry to the document.
type versionStore struct {
	repo  mongorepo.DocumentRepository
	blobs storage.Uploader
	now   func() time.Time
}

func newVersionStore(repo mongorepo.DocumentRepository, blobs storage.Uploader) *versionStore {
	return &versionStore{repo: repo, blobs: blobs, now: time.Now}
}

func versionKey(doc *models.Document, number int) string {
	return path.Join(doc.ObjectPrefix(), "versions", fmt.Sprintf("v%04d.json", number))
}

func (v *versionStore) Append(ctx context.Context, documentID string, rec *models.StructuredRecord, description, jobID string) (models.Version, error) {
	const op = "versionStore.Append"

	body, err := json.Marshal(rec)
	if err != nil {
		return models.Version{}, utils.E(utils.CodeInternal, op, "failed to encode record", err)
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		doc, err := v.repo.GetByID(ctx, documentID)
		if err != nil {
			return models.Version{}, utils.E(utils.CodeOf(err), op, "failed to load document", err)
		}

		ver := models.Version{
			Number:      doc.VersionSeq + 1,
			Description: description,
			JobID:       jobID,
			CreatedAt:   v.now().UTC(),
		}
		key, err := v.blobs.Upload(ctx, versionKey(doc, ver.Number), "application/json", bytes.NewReader(body), int64(len(body)))
		if err != nil {
			return models.Version{}, utils.E(utils.CodeUnavailable, op, "failed to store version snapshot", err)
		}
		ver.ArtifactKey = key

		ok, err := v.repo.AppendVersion(ctx, documentID, ver)
		if err != nil {
			return models.Version{}, utils.E(utils.CodeUnavailable, op, "failed to append version", err)
		}
		if ok {
			return ver, nil
		}
	}
	return models.Version{}, utils.E(utils.CodeConflict, op, "versions changed concurrently", nil)
}
