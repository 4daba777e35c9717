package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hitoshi/mediashare/internal/media"
	"github.com/hitoshi/mediashare/internal/model"
)

// maxFieldSize はマルチパートのテキストフィールド1件あたりの最大バイト数。
const maxFieldSize = 64 << 10

// UploadConfig はマルチパートアップロードの一時保存設定。
type UploadConfig struct {
	TempDir string // 一時ファイルの保存先
	MaxSize int64  // リクエストボディの最大バイト数
}

// uploadSpool はマルチパートリクエストのファイルを一時ディレクトリに書き出した結果。
// Cleanupを呼ぶまで一時ファイルは残る。
type uploadSpool struct {
	fields map[string]string
	files  map[string]*media.Ref
}

// spoolMultipart はマルチパートボディを読み取り、ファイルを一時ディレクトリに書き出す。
// fileFieldsに含まれないファイルパートは読み捨てる。
// テキストフィールドがmaxFieldSizeを超える場合はバリデーションエラーを返す。
// エラー時も書き出し済みのファイルは削除される。
func spoolMultipart(w http.ResponseWriter, r *http.Request, cfg UploadConfig, fileFields ...string) (*uploadSpool, error) {
	if cfg.MaxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxSize)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("failed to read multipart body: %w", err)
	}

	wanted := make(map[string]bool, len(fileFields))
	for _, f := range fileFields {
		wanted[f] = true
	}

	spool := &uploadSpool{
		fields: make(map[string]string),
		files:  make(map[string]*media.Ref),
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return spool, nil
		}
		if err != nil {
			spool.Cleanup()
			return nil, fmt.Errorf("failed to read multipart part: %w", err)
		}

		name := part.FormName()
		switch {
		case part.FileName() == "":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
			if err != nil {
				part.Close()
				spool.Cleanup()
				return nil, fmt.Errorf("failed to read field %s: %w", name, err)
			}
			if len(b) > maxFieldSize {
				part.Close()
				spool.Cleanup()
				return nil, model.NewValidationError(name, fmt.Sprintf("must be at most %d bytes", maxFieldSize))
			}
			spool.fields[name] = string(b)
		case wanted[name] && spool.files[name] == nil:
			ref, err := spoolFile(part, cfg.TempDir)
			if err != nil {
				part.Close()
				spool.Cleanup()
				return nil, err
			}
			spool.files[name] = ref
		default:
			io.Copy(io.Discard, part)
		}
		part.Close()
	}
}

// writeUploadError はspoolMultipartのエラーを400レスポンスとして書き込む。
// フィールド単位のバリデーションエラーはそのまま返す。
func writeUploadError(w http.ResponseWriter, err error) {
	slog.Warn("failed to read upload", slog.String("error", err.Error()))
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
}

// spoolFile はファイルパートを一時ファイルに書き出す。
func spoolFile(part *multipart.Part, dir string) (*media.Ref, error) {
	filename := filepath.Base(part.FileName())
	f, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, copyErr := io.Copy(f, part)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write temp file: %w", errors.Join(copyErr, closeErr))
	}
	if size == 0 {
		os.Remove(f.Name())
		return nil, nil
	}

	return &media.Ref{
		Field:       part.FormName(),
		Path:        f.Name(),
		Filename:    filename,
		ContentType: part.Header.Get("Content-Type"),
		Size:        size,
	}, nil
}

// Field はテキストフィールドの値を返す。
func (s *uploadSpool) Field(name string) string {
	return s.fields[name]
}

// File はファイルフィールドの参照を返す。未添付の場合はnil。
func (s *uploadSpool) File(name string) *media.Ref {
	return s.files[name]
}

// Cleanup は一時ファイルを削除する。
func (s *uploadSpool) Cleanup() {
	for name, ref := range s.files {
		if ref == nil {
			continue
		}
		if err := os.Remove(ref.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove temp upload",
				slog.String("field", name),
				slog.String("path", ref.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}
