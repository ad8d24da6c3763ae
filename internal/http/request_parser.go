package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gofinances/internal/core"
	"gofinances/internal/csvimport"
	"gofinances/internal/services"
)

const (
	maxJSONBodyBytes = 64 << 10
	uploadField      = "file"
	uploadTempPrefix = ".upload-"
)

type createTransactionRequest struct {
	Title    string     `json:"title"`
	Value    core.Money `json:"value"`
	Type     string     `json:"type"`
	Category string     `json:"category"`
}

// parseCreateTransaction decodes a JSON body into service input. Syntax and
// field errors are reported as validation errors.
func parseCreateTransaction(w http.ResponseWriter, r *http.Request) (services.CreateTransactionInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req createTransactionRequest
	if err := dec.Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return services.CreateTransactionInput{}, err
		case errors.Is(err, core.ErrInvalidAmount):
			return services.CreateTransactionInput{}, &core.ValidationError{Field: "value", Err: core.ErrInvalidAmount}
		default:
			return services.CreateTransactionInput{}, &core.ValidationError{Field: "body", Err: fmt.Errorf("malformed JSON: %w", err)}
		}
	}
	if dec.More() {
		return services.CreateTransactionInput{}, &core.ValidationError{Field: "body", Err: errors.New("unexpected data after JSON object")}
	}

	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return services.CreateTransactionInput{}, &core.ValidationError{Field: "type", Err: err}
	}

	return services.CreateTransactionInput{
		Title:    req.Title,
		Value:    req.Value,
		Type:     typ,
		Category: req.Category,
	}, nil
}

// saveUpload stores the multipart file under dir as <id>.csv. The file is
// written under a temporary name first so a half-written upload is never
// picked up as an import.
func saveUpload(w http.ResponseWriter, r *http.Request, dir string, maxBytes int64) (string, csvimport.FileSource, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", csvimport.FileSource{}, err
		}
		return "", csvimport.FileSource{}, &core.ValidationError{Field: uploadField, Err: fmt.Errorf("malformed multipart body: %w", err)}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return "", csvimport.FileSource{}, &core.ValidationError{Field: uploadField, Err: errors.New("missing upload")}
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != "" && ext != ".csv" && ext != ".txt" {
		return "", csvimport.FileSource{}, &core.ValidationError{Field: uploadField, Err: fmt.Errorf("unsupported file type %q", ext)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", csvimport.FileSource{}, fmt.Errorf("create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, uploadTempPrefix+"*")
	if err != nil {
		return "", csvimport.FileSource{}, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return "", csvimport.FileSource{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", csvimport.FileSource{}, fmt.Errorf("close upload file: %w", err)
	}

	id := uuid.NewString()
	src := csvimport.NewFileSource(dir, id+".csv")
	path, err := src.Path()
	if err != nil {
		return "", csvimport.FileSource{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", csvimport.FileSource{}, fmt.Errorf("move upload file: %w", err)
	}

	return id, src, nil
}
