package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/service"
)

type imagesView struct {
	Images    []*domain.Image
	Current   domain.ImageID
	ActiveNav string
}

func (s *Server) imagesView(r *http.Request) (*imagesView, error) {
	images, err := s.service.ListImages(r.Context())
	if err != nil {
		return nil, err
	}
	current, _ := s.service.Current()
	return &imagesView{Images: images, Current: current, ActiveNav: "images"}, nil
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		s.renderImageGrid(w, r)
		return
	}

	view, err := s.imagesView(r)
	if err != nil {
		http.Error(w, "failed to list images", http.StatusInternalServerError)
		s.logger.Error("list images failed", "error", err)
		return
	}
	if err := s.renderPage(w, http.StatusOK, view,
		"base.html", "pages/images.html", "partials/image_grid.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) renderImageGrid(w http.ResponseWriter, r *http.Request) {
	view, err := s.imagesView(r)
	if err != nil {
		http.Error(w, "failed to list images", http.StatusInternalServerError)
		s.logger.Error("list images failed", "error", err)
		return
	}
	if err := s.renderPartial(w, http.StatusOK, "partials/image_grid.html", view); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Rescan(r.Context())
	if err != nil {
		http.Error(w, "failed to scan library", http.StatusInternalServerError)
		s.logger.Error("scan failed", "error", err)
		return
	}
	s.logger.Debug("scan requested", "indexed", res.Indexed, "removed", res.Removed)

	if isHTMX(r) {
		s.renderImageGrid(w, r)
		return
	}
	http.Redirect(w, r, "/images", http.StatusSeeOther)
}

func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid image id", http.StatusBadRequest)
		return
	}

	if err := s.service.Select(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to select image", http.StatusInternalServerError)
		s.logger.Error("select image failed", "image_id", id, "error", err)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleImageFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid image id", http.StatusBadRequest)
		return
	}

	reader, mimeType, err := s.service.OpenImage(r.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			s.logger.Error("open image failed", "image_id", id, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "image reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write image failed", "image_id", id, "error", err)
	}
}
