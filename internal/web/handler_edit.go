package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/service"
	"github.com/vbonduro/exifedit/internal/tagform"
)

type homeView struct {
	Image     *domain.Image
	Tags      []tagform.Field
	NoTags    bool
	ActiveNav string
}

type editView struct {
	Image     *domain.Image
	Form      *tagform.State
	ActiveNav string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	view := &homeView{ActiveNav: "home"}

	if id, ok := s.service.Current(); ok {
		img, err := s.service.GetImage(r.Context(), id)
		switch {
		case errors.Is(err, service.ErrNotFound):
			// The file was pruned from the index since it was selected.
		case err != nil:
			http.Error(w, "failed to load image", http.StatusInternalServerError)
			s.logger.Error("get image failed", "image_id", id, "error", err)
			return
		default:
			view.Image = img
			tags := s.service.ReadTags(r.Context(), id)
			view.Tags = tagform.New(tags).Fields()
			view.NoTags = tags.IsEmpty()
		}
	}

	if err := s.renderPage(w, http.StatusOK, view,
		"base.html", "pages/home.html", "partials/tag_list.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// currentImage returns the selected image, redirecting to the chooser when
// there is none. ok is false when a response has already been written.
func (s *Server) currentImage(w http.ResponseWriter, r *http.Request) (*domain.Image, bool) {
	id, selected := s.service.Current()
	if !selected {
		redirect(w, r, "/images")
		return nil, false
	}
	img, err := s.service.GetImage(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		redirect(w, r, "/images")
		return nil, false
	}
	if err != nil {
		http.Error(w, "failed to load image", http.StatusInternalServerError)
		s.logger.Error("get image failed", "image_id", id, "error", err)
		return nil, false
	}
	return img, true
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	img, ok := s.currentImage(w, r)
	if !ok {
		return
	}

	_, form, err := s.service.EditForm(r.Context())
	if errors.Is(err, service.ErrNoSelection) {
		redirect(w, r, "/images")
		return
	}
	if err != nil {
		http.Error(w, "failed to load tags", http.StatusInternalServerError)
		s.logger.Error("edit form failed", "image_id", img.ID, "error", err)
		return
	}

	if err := s.renderPage(w, http.StatusOK, &editView{Image: img, Form: form, ActiveNav: "edit"},
		"base.html", "pages/edit.html", "partials/tag_form.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// handleValidate re-runs every validator against the submitted values and
// returns the form fragment, so the save button tracks overall validity.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	img, ok := s.currentImage(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	form := tagform.New(tagform.ParseForm(r.PostForm))
	if err := s.renderPartial(w, http.StatusOK, "partials/tag_form.html", &editView{Image: img, Form: form}); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleSaveTags(w http.ResponseWriter, r *http.Request) {
	img, ok := s.currentImage(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	form := tagform.New(tagform.ParseForm(r.PostForm))
	saved, err := s.service.SaveTags(r.Context(), img.ID, form)
	switch {
	case errors.Is(err, service.ErrInvalidForm):
		s.renderInvalidForm(w, r, &editView{Image: img, Form: form, ActiveNav: "edit"})
		return
	case err != nil:
		http.Error(w, "failed to save tags", http.StatusInternalServerError)
		s.logger.Error("save tags failed", "image_id", img.ID, "error", err)
		return
	}

	if !saved {
		s.logger.Info("tags not saved, image has no file", "image_id", img.ID)
	}
	redirect(w, r, "/")
}

func (s *Server) renderInvalidForm(w http.ResponseWriter, r *http.Request, view *editView) {
	var err error
	if isHTMX(r) {
		err = s.renderPartial(w, http.StatusUnprocessableEntity, "partials/tag_form.html", view)
	} else {
		err = s.renderPage(w, http.StatusUnprocessableEntity, view,
			"base.html", "pages/edit.html", "partials/tag_form.html")
	}
	if err != nil {
		s.logger.Error("render form failed", "error", err)
	}
}
