package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"spycats/internal/core"
)

func (s *Server) handleListCats(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Cats().List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]catResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCatResponse(c))
	}
	p, err := paginate(r, out)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateCat(w http.ResponseWriter, r *http.Request) {
	var req createCatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := s.svc.Cats().Create(r.Context(), core.CreateCatRequest{
		Name:              req.Name,
		YearsOfExperience: *req.YearsOfExperience,
		Breed:             req.Breed,
		Salary:            *req.Salary,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCatResponse(cat))
}

func (s *Server) handleGetCat(w http.ResponseWriter, r *http.Request) {
	cat, err := s.svc.Cats().Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCatResponse(cat))
}

func (s *Server) handleUpdateCat(w http.ResponseWriter, r *http.Request) {
	var req updateCatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := s.svc.Cats().UpdateSalary(r.Context(), mux.Vars(r)["id"], core.CatUpdate{
		Name:              req.Name,
		YearsOfExperience: req.YearsOfExperience,
		Breed:             req.Breed,
		Salary:            req.Salary,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCatResponse(cat))
}

func (s *Server) handleDeleteCat(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Cats().Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// catIndex returns every cat by id for cat_details rendering.
func (s *Server) catIndex(r *http.Request) (map[string]core.Cat, error) {
	cats, err := s.svc.Cats().List(r.Context())
	if err != nil {
		return nil, err
	}
	index := make(map[string]core.Cat, len(cats))
	for _, c := range cats {
		index[c.ID] = c
	}
	return index, nil
}

func (s *Server) renderMission(w http.ResponseWriter, r *http.Request, status int, m core.Mission) {
	cats := map[string]core.Cat{}
	if m.CatID != nil {
		if cat, err := s.svc.Cats().Get(r.Context(), *m.CatID); err == nil {
			cats[cat.ID] = cat
		}
	}
	writeJSON(w, status, newMissionResponse(m, cats))
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.svc.Missions().List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cats, err := s.catIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]missionResponse, 0, len(missions))
	for _, m := range missions {
		out = append(out, newMissionResponse(m, cats))
	}
	p, err := paginate(r, out)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	var req createMissionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	specs := make([]core.TargetSpec, 0, len(req.Targets))
	for _, t := range req.Targets {
		specs = append(specs, core.TargetSpec{Name: t.Name, Country: t.Country, Notes: t.Notes})
	}
	mission, err := s.svc.Missions().CreateMission(r.Context(), core.CreateMissionRequest{CatID: req.Cat, Targets: specs})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderMission(w, r, http.StatusCreated, mission)
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	mission, err := s.svc.Missions().Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderMission(w, r, http.StatusOK, mission)
}

func (s *Server) handleDeleteMission(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Missions().DeleteMission(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignCat(w http.ResponseWriter, r *http.Request) {
	var req assignCatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CatID == "" {
		s.writeError(w, r, badRequest("cat_id is required"))
		return
	}
	mission, err := s.svc.Missions().AssignCat(r.Context(), mux.Vars(r)["id"], req.CatID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderMission(w, r, http.StatusOK, mission)
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	var req updateTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	mission, err := s.svc.Missions().UpdateTarget(r.Context(), vars["id"], vars["target_id"], core.TargetUpdate{
		Notes:    req.Notes,
		Complete: req.Complete,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderMission(w, r, http.StatusOK, mission)
}
