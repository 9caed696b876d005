package service

import (
	"context"
	"fmt"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/models"
)

type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

type attachmentPlan struct {
	Merged   []models.Attachment
	Dropped  []models.Attachment
	Uploaded []models.Attachment
}

// reconcileAttachments keeps existing attachments listed in keep (all of them
// when keep is nil), uploads files and returns the merged list. The count
// is checked before anything is uploaded, and nothing is deleted here.
func (s *CaseService) reconcileAttachments(ctx context.Context, caseID string, existing []models.Attachment, keep []string, files []FileUpload, actor models.Actor) (attachmentPlan, error) {
	var plan attachmentPlan
	retained := existing
	if keep != nil {
		set := make(map[string]bool, len(keep))
		for _, id := range keep {
			set[id] = true
		}
		retained = nil
		for _, a := range existing {
			if set[a.FileID] {
				retained = append(retained, a)
			} else {
				plan.Dropped = append(plan.Dropped, a)
			}
		}
	}
	if n := len(retained) + len(files); n > models.MaxAttachments {
		return attachmentPlan{}, apperr.New(apperr.LimitExceeded,
			"at most %d attachments per round (requested %d)", models.MaxAttachments, n)
	}
	if len(files) > 0 && s.Files == nil {
		return attachmentPlan{}, apperr.New(apperr.Internal, "file storage is not configured")
	}

	for _, f := range files {
		if len(f.Data) == 0 {
			s.deleteFiles(ctx, caseID, plan.Uploaded)
			return attachmentPlan{}, apperr.New(apperr.InvalidArgument, "file %q is empty", f.Name)
		}
		obj, err := s.Files.Put(ctx, caseID, f.Name, f.Data, f.MimeType)
		if err != nil {
			s.deleteFiles(ctx, caseID, plan.Uploaded)
			return attachmentPlan{}, apperr.Wrap(apperr.UpstreamFailure, err, fmt.Sprintf("failed to store %s", f.Name))
		}
		plan.Uploaded = append(plan.Uploaded, models.Attachment{
			FileID:     obj.ID,
			Name:       f.Name,
			URL:        obj.URL,
			MimeType:   obj.MimeType,
			Size:       obj.Size,
			UploadedAt: s.now(),
			UploadedBy: actor.Email,
		})
	}

	plan.Merged = make([]models.Attachment, 0, len(retained)+len(plan.Uploaded))
	plan.Merged = append(plan.Merged, retained...)
	plan.Merged = append(plan.Merged, plan.Uploaded...)
	return plan, nil
}

// deleteFiles removes stored files, logging and ignoring failures.
func (s *CaseService) deleteFiles(ctx context.Context, caseID string, atts []models.Attachment) {
	if s.Files == nil {
		return
	}
	for _, a := range atts {
		if err := s.Files.Delete(ctx, a.FileID); err != nil {
			s.Logger.Warn().Err(err).
				Str("case_id", caseID).
				Str("file_id", a.FileID).
				Msg("attachment delete failed")
		}
	}
}
