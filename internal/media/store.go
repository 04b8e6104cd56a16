// Package media はカバー画像の保存とAIによる画像生成を提供する。
package media

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
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxWidth は保存する画像の最大幅（px）。
	DefaultMaxWidth = 1280
	// DefaultMaxBytes はアップロードを受け付ける最大サイズ。
	DefaultMaxBytes = 10 << 20
	jpegQuality     = 82
)

// ErrInvalidImage は画像としてデコードできない入力を表す。
var ErrInvalidImage = errors.New("invalid image")

// ErrImageTooLarge は最大サイズを超える入力を表す。
var ErrImageTooLarge = errors.New("image too large")

// Store はカバー画像を保存し、公開URLを返すインターフェース。
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStore は画像をJPEGに正規化してローカルディレクトリに保存する。
// 保存先はPublicPrefix配下で静的配信される前提。
type LocalStore struct {
	Dir          string
	PublicPrefix string
	MaxWidth     int
	MaxBytes     int64
}

// NewLocalStore はLocalStoreを生成する。0以下の値はデフォルトに置き換える。
func NewLocalStore(dir, publicPrefix string, maxWidth int, maxBytes int64) *LocalStore {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &LocalStore{
		Dir:          dir,
		PublicPrefix: strings.TrimRight(publicPrefix, "/") + "/",
		MaxWidth:     maxWidth,
		MaxBytes:     maxBytes,
	}
}

// Save は画像をデコード・縮小・再エンコードして保存し、公開URLを返す。
// ファイル名はnameのスラッグに一意な接頭辞を付けたもの。
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > s.MaxBytes {
		return "", ErrImageTooLarge
	}

	encoded, err := Process(bytes.NewReader(data), s.MaxWidth)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	filename := FileName(name)
	if err := os.WriteFile(filepath.Join(s.Dir, filename), encoded, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return s.PublicPrefix + filename, nil
}

// Process は画像をデコードし、maxWidthより広ければ縦横比を保って縮小し、JPEGで返す。
// gif・png・jpeg・webpを受け付ける。
func Process(src io.Reader, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxWidth > 0 && w > maxWidth {
		newH := h * maxWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName は保存用のファイル名を返す。拡張子は常に.jpg。
func FileName(name string) string {
	base := Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if len(base) > 40 {
		base = strings.TrimRight(base[:40], "-")
	}
	if base == "" {
		base = "image"
	}
	return uuid.NewString() + "-" + base + ".jpg"
}

// Slugify は英小文字・数字以外をハイフンにまとめたURL安全な文字列を返す。
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
