package validators

import (
	"errors"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

// multipartOverhead leaves room for text fields next to the file part.
const multipartOverhead = 1 << 20

// ParseMultipart reads a multipart form whose file parts stay under maxFileBytes.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxFileBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxFileBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "upload too large").WithDetails(map[string]any{"max_bytes": maxFileBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return nil
}

// FormFile returns the named file part. A missing or empty part yields (nil, nil).
func FormFile(r *http.Request, field string) (io.ReadCloser, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file upload").WithDetails(map[string]any{"field": field})
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, nil
	}
	return file, nil
}

// FormValue returns a trimmed text field of a parsed multipart form.
func FormValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}
