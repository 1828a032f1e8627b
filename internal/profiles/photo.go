package profiles

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
)

var photoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// imageTypeAliases maps non-canonical content types clients send to the
// names http.DetectContentType reports.
var imageTypeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
}

func normalizeImageType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if canonical, ok := imageTypeAliases[ct]; ok {
		return canonical
	}
	return ct
}

// PhotoUpload is a profile photo as sent by the client: raw base64 or a
// data URL. ContentType is optional for data URLs.
type PhotoUpload struct {
	Data        string `json:"data"`
	ContentType string `json:"content_type"`
}

// UploadPhoto stores the caller's profile photo and records its URL.
func (s *Service) UploadPhoto(ctx context.Context, callerProfileID int64, in PhotoUpload) (string, error) {
	declared, data, err := decodePhoto(in)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxPhotoBytes {
		return "", domainerr.Newf(domainerr.CodeInvalidInput, "photo exceeds %d bytes", s.maxPhotoBytes)
	}
	detected := http.DetectContentType(data)
	ext, ok := photoExtensions[detected]
	if !ok {
		return "", domainerr.Newf(domainerr.CodeInvalidInput, "unsupported image type %q", detected)
	}
	if declared != "" && declared != detected {
		return "", domainerr.Newf(domainerr.CodeInvalidInput, "content type %q does not match image data", declared)
	}

	p, err := s.store.GetProfileByID(ctx, callerProfileID)
	if err != nil {
		return "", s.unavailable(ctx, "get profile", err)
	}
	if p == nil {
		return "", domainerr.New(domainerr.CodeNotFound, "profile not found")
	}
	if s.objects == nil {
		return "", domainerr.New(domainerr.CodeUnavailable, "photo storage is not configured")
	}

	key := fmt.Sprintf("profiles/%d/%s.%s", p.ID, uuid.NewString(), ext)
	url, err := s.objects.Put(ctx, key, data, detected)
	if err != nil {
		s.logger.ErrorContext(ctx, "photo upload failed", slog.String("key", key), slog.Any("err", err))
		return "", domainerr.Wrap(err, domainerr.CodeUnavailable, "photo storage unavailable")
	}
	if err := s.store.SetAvatarURL(ctx, p.ID, url); err != nil {
		return "", s.unavailable(ctx, "set avatar", err)
	}
	return url, nil
}

func decodePhoto(in PhotoUpload) (string, []byte, error) {
	declared := normalizeImageType(in.ContentType)
	payload := strings.TrimSpace(in.Data)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, body, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return "", nil, domainerr.New(domainerr.CodeInvalidInput, "data URL must be base64 encoded")
		}
		if ct := normalizeImageType(strings.TrimSuffix(meta, ";base64")); ct != "" {
			if declared != "" && declared != ct {
				return "", nil, domainerr.New(domainerr.CodeInvalidInput, "content type does not match data URL")
			}
			declared = ct
		}
		payload = body
	}
	if payload == "" {
		return "", nil, domainerr.New(domainerr.CodeInvalidInput, "photo data is required")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, domainerr.Wrap(err, domainerr.CodeInvalidInput, "photo data is not valid base64")
	}
	return declared, data, nil
}
