package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/pkg/httputil"
	"github.com/stampworks/sigforge/internal/repository/postgres"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context(), orgFromContext(r.Context()))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"rules": rules})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(r.Context(), orgFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, postgres.ErrRuleNotFound) {
			httputil.NotFound(w, "rule not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rule)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.SignatureRule
	if !httputil.Decode(w, r, &rule) {
		return
	}
	rule.OrganizationID = orgFromContext(r.Context())
	if err := rule.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	id, err := s.rules.Create(r.Context(), &rule)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	rule.ID = id
	httputil.Created(w, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.SignatureRule
	if !httputil.Decode(w, r, &rule) {
		return
	}
	rule.ID = chi.URLParam(r, "id")
	rule.OrganizationID = orgFromContext(r.Context())
	if err := rule.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.rules.Update(r.Context(), rule.OrganizationID, &rule); err != nil {
		if errors.Is(err, postgres.ErrRuleNotFound) {
			httputil.NotFound(w, "rule not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	err := s.rules.Delete(r.Context(), orgFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, postgres.ErrRuleNotFound) {
			httputil.NotFound(w, "rule not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
