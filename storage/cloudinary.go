package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(url, folder string) (*Cloudinary, error) {
	if url == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL is required for the cloudinary backend")
	}
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

// Upload stores an image with a square-ish size limit. The key's extension
// is dropped because cloudinary derives the format itself.
func (c *Cloudinary) Upload(ctx context.Context, key string, body io.Reader, _ string) (string, error) {
	publicID := strings.TrimSuffix(key, path.Ext(key))
	res, err := c.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		Folder:         c.folder,
		PublicID:       publicID,
		Overwrite:      api.Bool(true),
		Transformation: "c_limit,w_400,h_400,q_auto",
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
