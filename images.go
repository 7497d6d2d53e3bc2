package pubadmin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth    = 800
	jpegQuality      = 80
	maxUploadSize    = 10 << 20 // 10MB
	uploadsSubdir    = "uploads"
	maxAssetAttempts = 50
)

// AssetStore keeps uploaded images next to the posts.
type AssetStore interface {
	// PutAsset stores data under a name derived from name and returns the
	// path the site serves it from.
	PutAsset(ctx context.Context, name string, data []byte) (string, error)
}

// LocalAssets writes uploads below Dir/uploads, for stores that cannot hold
// binary assets themselves.
type LocalAssets struct {
	Dir string
}

// PutAsset writes data to disk, suffixing the name until it is unused.
func (l LocalAssets) PutAsset(_ context.Context, name string, data []byte) (string, error) {
	dir := filepath.Join(l.Dir, uploadsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	candidate := name
	for i := 2; i < maxAssetAttempts+2; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			candidate = numberedName(name, i)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write image: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write image: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("write image: %w", err)
		}
		return "/public/" + uploadsSubdir + "/" + candidate, nil
	}
	return "", &StoreError{Kind: ErrConflict, Op: "upload", Key: name, Message: "no free asset name"}
}

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and encodes it as JPEG. It returns the asset name and the bytes.
func processImage(src io.Reader, originalName string) (string, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return imageName(originalName), buf.Bytes(), nil
}

// imageName slugifies a filename (without extension) and gives it a .jpg suffix.
func imageName(original string) string {
	base := Slugify(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}

// numberedName turns "a.jpg" into "a-2.jpg".
func numberedName(name string, n int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// assetsFor returns the AssetStore behind store, or local disk storage.
func (a *App) assetsFor(store PostStore) AssetStore {
	if as, ok := Unwrap(store).(AssetStore); ok {
		return as
	}
	return LocalAssets{Dir: a.Config.StaticDir}
}

func (a *App) handleImageUpload(c echo.Context) error {
	ctrl := a.controller(c)
	if ctrl == nil || !ctrl.Authenticated() {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	name, data, err := processImage(src, file.Filename)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}
	sitePath, err := a.assetsFor(ctrl.Store()).PutAsset(c.Request().Context(), name, data)
	if err != nil {
		a.logger.Warn("image upload failed", "name", name, "err", err)
		return c.String(http.StatusBadGateway, ErrorMessage(err))
	}
	a.logger.Info("image uploaded", "path", sitePath, "bytes", len(data))
	return c.String(http.StatusOK, "![]("+sitePath+")")
}
