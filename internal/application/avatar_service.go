package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/storage"
)

type AvatarService struct {
	Users    repo.UserRepository
	Storage  storage.Backend
	Index    UserIndex
	MaxBytes int64
	Logger   *logrus.Logger
}

func NewAvatarService(users repo.UserRepository, backend storage.Backend, index UserIndex, maxBytes int64, logger *logrus.Logger) *AvatarService {
	return &AvatarService{Users: users, Storage: backend, Index: index, MaxBytes: maxBytes, Logger: logger}
}

// GenerateUniqueImageName turns "photo.png" into "photo_<32 hex>.png".
// Directories are dropped and the split happens on the last dot.
func GenerateUniqueImageName(filename string) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	dot := strings.LastIndex(base, ".")
	if dot <= 0 || dot == len(base)-1 {
		return "", apperror.InvalidArgument("AVATAR_FILENAME_INVALID", "filename must look like name.ext", "filename", filename)
	}
	name, ext := base[:dot], base[dot+1:]
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return name + "_" + suffix + "." + ext, nil
}

// SaveImageInFolder validates the upload and writes it to filePath, overwriting
// any existing object. It returns the stored location.
func (s *AvatarService) SaveImageInFolder(ctx context.Context, filePath string, r io.Reader) (string, error) {
	key, err := storage.CleanKey(filePath)
	if err != nil {
		return "", apperror.InvalidArgument("AVATAR_PATH_INVALID", "path must be relative without '..'", "path", filePath)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return "", oops.Code("AVATAR_READ_FAILED").Wrap(err)
	}
	if int64(len(data)) > s.MaxBytes {
		return "", apperror.InvalidArgument("AVATAR_TOO_LARGE", "file exceeds the size limit", "max_bytes", s.MaxBytes)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", apperror.InvalidArgument("AVATAR_NOT_IMAGE", "file is not an image", "mime", mime.String())
	}
	loc, err := s.Storage.Save(ctx, key, mime.String(), bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return "", apperror.InvalidArgument("AVATAR_PATH_INVALID", "invalid path", "path", filePath)
		}
		return "", oops.Code("AVATAR_STORE_FAILED").With("path", key).Wrap(err)
	}
	return loc, nil
}

// SaveImageInDb records filePath as the user's avatar.
func (s *AvatarService) SaveImageInDb(ctx context.Context, userID, filePath string) (*entity.User, error) {
	if err := s.Users.UpdateAvatar(ctx, userID, filePath); err != nil {
		return nil, err
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Index != nil {
		if err := s.Index.Index(ctx, u); err != nil {
			helpers.LogError(s.Logger, "es index failed", err, logrus.Fields{"user_id": u.ID})
		}
	}
	return u, nil
}

// UploadAvatar stores r under avatars/<userID>/ with a unique name and updates the user.
func (s *AvatarService) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader) (*entity.User, error) {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	name, err := GenerateUniqueImageName(filename)
	if err != nil {
		return nil, err
	}
	loc, err := s.SaveImageInFolder(ctx, path.Join("avatars", userID, name), r)
	if err != nil {
		return nil, err
	}
	return s.SaveImageInDb(ctx, userID, loc)
}
