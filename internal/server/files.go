package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/hericlibong/Infograph2Data/constants"
	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

// handleUpload stores a multipart upload. PDFs get their page count recorded
// immediately so listings can show it without reopening the document.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: "file exceeds the upload size limit",
				Kind:  common.KindInvalidInput.String(),
			})
			return
		}
		writeError(w, s.logger, common.NewError(common.KindInvalidInput, "multipart form must carry a file field"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: "file exceeds the upload size limit",
				Kind:  common.KindInvalidInput.String(),
			})
			return
		}
		writeError(w, s.logger, common.WrapError(common.KindInternal, err, "read upload"))
		return
	}

	mimeType := uploadMIMEType(header.Header.Get("Content-Type"), header.Filename)

	meta, err := s.files.Save(content, header.Filename, mimeType, nil)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if mimeType == constants.MIMEPDF {
		if meta, err = s.recordPageCount(meta); err != nil {
			writeError(w, s.logger, err)
			return
		}
	}

	s.logger.Info("http.upload.ok", "file_id", meta.ID, "filename", meta.Filename, "size_bytes", meta.SizeBytes)
	writeJSON(w, http.StatusCreated, meta)
}

// recordPageCount counts the PDF's pages and persists the count. A PDF that
// cannot be opened is removed again and rejected.
func (s *Server) recordPageCount(meta *entity.FileMetadata) (*entity.FileMetadata, error) {
	path, err := s.files.Path(meta.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.pages.PageCount(path)
	if err != nil {
		_ = s.files.Delete(meta.ID)
		return nil, common.WrapError(common.KindInvalidInput, err, "file is not a readable PDF")
	}
	if err := s.files.SetPages(meta.ID, count); err != nil {
		return nil, err
	}
	return s.files.Metadata(meta.ID)
}

// uploadMIMEType trusts a recognized part header and otherwise falls back to
// the filename extension. Unknown types pass through so Save rejects them
// with the proper message.
func uploadMIMEType(headerType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(headerType); err == nil && constants.IsAllowedMIMEType(mediaType) {
		return mediaType
	}
	if byExt := constants.MIMEForExtension(filepath.Ext(filename)); constants.IsAllowedMIMEType(byExt) {
		return byExt
	}
	if headerType != "" {
		return headerType
	}
	return "application/octet-stream"
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.files.List()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if files == nil {
		files = []*entity.FileMetadata{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	meta, err := s.files.Metadata(r.PathValue("id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.files.Delete(id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("http.file.deleted", "file_id", id)
	w.WriteHeader(http.StatusNoContent)
}
