package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/dbx"
	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/authz"
	"github.com/dmitrijs2005/villagekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/repomanager"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	DefaultMaxImageSize = 10 << 20
	imagePresignTTL     = 15 * time.Minute
)

type CreateVillageInput struct {
	NameKH string
	NameEN string
	Age    int
	Gender string
	DOB    string
}

// Image is an uploaded file. Content is read at most up to the configured
// maximum size plus one byte.
type Image struct {
	Filename string
	Content  io.Reader
}

// ImageAccess is either a temporary URL or an open stream.
type ImageAccess struct {
	URL         string
	Body        io.ReadCloser
	ContentType string
}

type VillageService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	blobs        blobstore.Store
	maxImageSize int64
	logger       logging.Logger
}

func NewVillageService(db *sql.DB, repomanager repomanager.RepositoryManager, blobs blobstore.Store,
	maxImageSize int64, logger logging.Logger) *VillageService {

	if maxImageSize <= 0 {
		maxImageSize = DefaultMaxImageSize
	}
	return &VillageService{
		db:           db,
		repomanager:  repomanager,
		blobs:        blobs,
		maxImageSize: maxImageSize,
		logger:       logger.With("module", "villages"),
	}
}

// List returns the owner's records only.
func (s *VillageService) List(ctx context.Context, ownerID string) ([]*models.Village, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Villages(s.db).ListByOwner(ctx, ownerID)
}

func (s *VillageService) Get(ctx context.Context, subjectID string, id int64) (*models.Village, error) {
	v, err := s.repomanager.Villages(s.db).GetByID(ctx, id)
	if err := authz.RequireOwner(subjectID, v, err); err != nil {
		return nil, err
	}
	return v, nil
}

func validateVillage(in *CreateVillageInput) error {
	in.NameKH = strings.TrimSpace(in.NameKH)
	in.NameEN = strings.TrimSpace(in.NameEN)
	in.Gender = strings.TrimSpace(in.Gender)
	in.DOB = strings.TrimSpace(in.DOB)

	switch {
	case in.NameKH == "" || in.NameEN == "":
		return fmt.Errorf("%w: name_kh and name_en are required", common.ErrValidation)
	case in.Age < 0:
		return fmt.Errorf("%w: age must not be negative", common.ErrValidation)
	case in.Gender == "":
		return fmt.Errorf("%w: gender is required", common.ErrValidation)
	case in.DOB == "":
		return fmt.Errorf("%w: dob is required", common.ErrValidation)
	}
	return nil
}

// newImageID makes image keys unique per upload.
var newImageID = uuid.NewString

// imageKey builds "{owner}_{name_en}_{imageID}_{filename}" reduced to a
// single path element.
func imageKey(ownerID, nameEN, imageID, filename string) string {
	key := fmt.Sprintf("%s_%s_%s_%s", ownerID, nameEN, imageID, filepath.Base(filepath.Clean("/"+filename)))
	key = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, key)
	return key
}

// Create stores the image first and then the record. If the record cannot be
// stored the image is removed again.
func (s *VillageService) Create(ctx context.Context, ownerID string, in CreateVillageInput, img *Image) (*models.Village, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	if err := validateVillage(&in); err != nil {
		return nil, err
	}

	v := &models.Village{
		UserID: ownerID,
		NameKH: in.NameKH,
		NameEN: in.NameEN,
		Age:    in.Age,
		Gender: in.Gender,
		DOB:    in.DOB,
	}

	if img != nil {
		key, err := s.storeImage(ctx, ownerID, in.NameEN, img)
		if err != nil {
			return nil, err
		}
		v.ImagePath = sql.NullString{String: key, Valid: true}
	}

	created, err := s.repomanager.Villages(s.db).Create(ctx, v)
	if err != nil {
		if v.ImagePath.Valid {
			s.deleteBlob(ctx, v.ImagePath.String)
		}
		return nil, err
	}

	s.logger.Info(ctx, "village created", "id", created.ID, "owner", ownerID)
	return created, nil
}

func (s *VillageService) storeImage(ctx context.Context, ownerID, nameEN string, img *Image) (string, error) {
	data, err := io.ReadAll(io.LimitReader(img.Content, s.maxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", common.ErrValidation)
	}
	if int64(len(data)) > s.maxImageSize {
		return "", fmt.Errorf("%w: image exceeds %d bytes", common.ErrValidation, s.maxImageSize)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: file must be an image, got %s", common.ErrValidation, mt.String())
	}

	key := imageKey(ownerID, nameEN, newImageID(), img.Filename)
	if err := s.blobs.Put(ctx, key, mt.String(), bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

// Delete removes the record inside a transaction that holds the row lock
// across the ownership check. The image is removed after commit.
func (s *VillageService) Delete(ctx context.Context, subjectID string, id int64) error {
	var blobKey string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Villages(tx)

		v, err := repo.GetByIDForUpdate(ctx, id)
		if err := authz.RequireOwner(subjectID, v, err); err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		if v.ImagePath.Valid {
			blobKey = v.ImagePath.String
		}
		return nil
	})
	if err != nil {
		return err
	}

	if blobKey != "" {
		s.deleteBlob(ctx, blobKey)
	}
	s.logger.Info(ctx, "village deleted", "id", id, "owner", subjectID)
	return nil
}

func (s *VillageService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Error(ctx, "image cleanup failed", "key", key, "error", err)
	}
}

// OpenImage returns a presigned URL when the store supports it and a stream
// otherwise. Records without an image report common.ErrorNotFound.
func (s *VillageService) OpenImage(ctx context.Context, subjectID string, id int64) (*ImageAccess, error) {
	v, err := s.Get(ctx, subjectID, id)
	if err != nil {
		return nil, err
	}
	if !v.ImagePath.Valid || v.ImagePath.String == "" {
		return nil, fmt.Errorf("image: %w", common.ErrorNotFound)
	}

	if p, ok := s.blobs.(blobstore.Presigner); ok {
		url, err := p.PresignGet(ctx, v.ImagePath.String, imagePresignTTL)
		if err != nil {
			return nil, fmt.Errorf("presign image: %w", err)
		}
		return &ImageAccess{URL: url}, nil
	}

	body, contentType, err := s.blobs.Open(ctx, v.ImagePath.String)
	if err != nil {
		return nil, err
	}
	return &ImageAccess{Body: body, ContentType: contentType}, nil
}

// PurgeOwner deletes every record of ownerID together with their images.
func (s *VillageService) PurgeOwner(ctx context.Context, ownerID string) (int, error) {
	var keys []string
	var n int

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Villages(tx)

		list, err := repo.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, v := range list {
			if err := repo.Delete(ctx, v.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			if v.ImagePath.Valid {
				keys = append(keys, v.ImagePath.String)
			}
		}
		n = len(list)
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, k := range keys {
		s.deleteBlob(ctx, k)
	}
	if n > 0 {
		s.logger.Info(ctx, "owner records purged", "owner", ownerID, "count", n)
	}
	return n, nil
}
