package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/server/authz"
	"github.com/dmitrijs2005/villagekeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/dmitrijs2005/villagekeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) health(c *gin.Context) {
	response.OK(c, http.StatusOK, "ok", nil)
}

func (s *HTTPServer) bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, s.logger, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return req, false
	}
	return req, true
}

func (s *HTTPServer) register(c *gin.Context) {
	req, ok := s.bindCredentials(c)
	if !ok {
		return
	}

	session, err := s.identity.Register(c.Request.Context(), identity.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}

	response.OK(c, http.StatusCreated, "User registered successfully", newSessionResponse(session))
}

func (s *HTTPServer) login(c *gin.Context) {
	req, ok := s.bindCredentials(c)
	if !ok {
		return
	}

	session, err := s.identity.Login(c.Request.Context(), identity.LoginRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}

	response.OK(c, http.StatusOK, "success", newSessionResponse(session))
}

func (s *HTTPServer) logout(lo Logouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := lo.Logout(c.Request.Context(), authz.MustPrincipal(c)); err != nil {
			response.Error(c, s.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *HTTPServer) listUsers(c *gin.Context) {
	accounts, err := s.identity.ListAccounts(c.Request.Context())
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{ID: a.ID, Username: a.Username, Email: a.Email})
	}
	response.OK(c, http.StatusOK, "success", out)
}

// deleteUser lets a subject delete its own account. The account goes first so
// a failed upstream delete leaves the owner's records intact; a failed purge
// afterwards leaves orphaned rows that are logged for cleanup.
func (s *HTTPServer) deleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	principal := authz.MustPrincipal(c)
	id := c.Param("id")

	if id != principal.SubjectID {
		response.Error(c, s.logger, common.ErrForbidden)
		return
	}

	if err := s.identity.DeleteAccount(ctx, id); err != nil {
		response.Error(c, s.logger, err)
		return
	}
	if _, err := s.villages.PurgeOwner(ctx, id); err != nil {
		s.logger.Error(ctx, "owner records not purged", "owner", id, "error", err)
		response.Error(c, s.logger, err)
		return
	}

	response.OK(c, http.StatusOK, fmt.Sprintf("User %s deleted successfully", id), nil)
}

func (s *HTTPServer) listVillages(c *gin.Context) {
	list, err := s.villages.List(c.Request.Context(), authz.MustPrincipal(c).SubjectID)
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}

	out := make([]villageResponse, 0, len(list))
	for _, v := range list {
		out = append(out, newVillageResponse(v))
	}
	response.OK(c, http.StatusOK, "success", out)
}

func (s *HTTPServer) createVillage(c *gin.Context) {
	age, err := strconv.Atoi(c.PostForm("age"))
	if err != nil {
		response.Error(c, s.logger, fmt.Errorf("%w: age must be an integer", common.ErrValidation))
		return
	}

	in := services.CreateVillageInput{
		NameKH: c.PostForm("name_kh"),
		NameEN: c.PostForm("name_en"),
		Age:    age,
		Gender: c.PostForm("gender"),
		DOB:    c.PostForm("dob"),
	}

	var img *services.Image
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			response.Error(c, s.logger, fmt.Errorf("open upload: %w", err))
			return
		}
		defer f.Close()
		img = &services.Image{Filename: fh.Filename, Content: f}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		response.Error(c, s.logger, fmt.Errorf("%w: invalid image upload", common.ErrValidation))
		return
	}

	v, err := s.villages.Create(c.Request.Context(), authz.MustPrincipal(c).SubjectID, in, img)
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}

	response.OK(c, http.StatusCreated, "success", newVillageResponse(v))
}

func (s *HTTPServer) villageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, s.logger, fmt.Errorf("%w: invalid village id", common.ErrValidation))
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) getVillage(c *gin.Context) {
	id, ok := s.villageID(c)
	if !ok {
		return
	}

	v, err := s.villages.Get(c.Request.Context(), authz.MustPrincipal(c).SubjectID, id)
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}
	response.OK(c, http.StatusOK, "success", newVillageResponse(v))
}

func (s *HTTPServer) villageImage(c *gin.Context) {
	id, ok := s.villageID(c)
	if !ok {
		return
	}

	acc, err := s.villages.OpenImage(c.Request.Context(), authz.MustPrincipal(c).SubjectID, id)
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}

	if acc.URL != "" {
		c.Redirect(http.StatusFound, acc.URL)
		return
	}

	defer acc.Body.Close()
	c.Header("Content-Type", acc.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, acc.Body); err != nil {
		s.logger.Warn(c.Request.Context(), "image stream interrupted", "id", id, "error", err)
	}
}

func (s *HTTPServer) deleteVillage(c *gin.Context) {
	id, ok := s.villageID(c)
	if !ok {
		return
	}

	if err := s.villages.Delete(c.Request.Context(), authz.MustPrincipal(c).SubjectID, id); err != nil {
		response.Error(c, s.logger, err)
		return
	}

	response.OK(c, http.StatusOK, fmt.Sprintf("Village with id %d deleted successfully", id), nil)
}
