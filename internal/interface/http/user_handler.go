package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
	"github.com/oksasatya/go-account-service/pkg/apperror"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/response"
	"github.com/oksasatya/go-account-service/pkg/validation"
)

// UserHandler exposes account operations over HTTP. Errors are attached with
// c.Error and rendered by middleware.ErrorHandler.
type UserHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cookies *helpers.AuthCookies
	TmpDir  string
}

func NewUserHandler(svc *application.Service, logger *logrus.Logger, cookies *helpers.AuthCookies, tmpDir string) *UserHandler {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	validation.Init()
	return &UserHandler{Svc: svc, Logger: logger, Cookies: cookies, TmpDir: tmpDir}
}

type loginRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,pwd"`
}

type updateAccountRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type searchQuery struct {
	Q    string `form:"q" binding:"required"`
	Size int    `form:"size" binding:"omitempty,min=1,max=50"`
}

type tokensResponse struct {
	User         *entity.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func invalid(err error) error {
	return apperror.Validation("invalid payload").WithDetails(validation.ToDetails(err))
}

// stage writes the multipart file under field to TmpDir. A missing file
// yields nil; an unreadable multipart body is a validation error.
func (h *UserHandler) stage(c *gin.Context, field string) (*application.StagedFile, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Validation("invalid multipart payload")
	}
	dst := filepath.Join(h.TmpDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return nil, apperror.Internal("failed to stage upload", err)
	}
	return &application.StagedFile{Path: dst, Filename: fh.Filename}, nil
}

// discard removes staged files the uploader never consumed.
func discard(files ...*application.StagedFile) {
	for _, f := range files {
		if f != nil {
			_ = os.Remove(f.Path)
		}
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	avatar, err := h.stage(c, "avatar")
	if err != nil {
		_ = c.Error(err)
		return
	}
	cover, err := h.stage(c, "coverImage")
	if err != nil {
		discard(avatar)
		_ = c.Error(err)
		return
	}
	defer discard(avatar, cover)

	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Fullname:   c.PostForm("fullname"),
		Username:   c.PostForm("username"),
		Email:      c.PostForm("email"),
		Password:   c.PostForm("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, u, "User registered successfully")
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalid(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), application.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	t := res.Tokens
	h.Cookies.SetPair(c, t.AccessToken, t.AccessTokenExpiry, t.RefreshToken, t.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, tokensResponse{User: res.User, AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}, "User logged in successfully")
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.Svc.Logout(c.Request.Context(), middleware.CurrentUser(c)); err != nil {
		_ = c.Error(err)
		return
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{}, "User logged out")
}

// Refresh takes the refresh token from its cookie or, failing that, the JSON body.
func (h *UserHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(helpers.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}
	res, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	t := res.Tokens
	h.Cookies.SetPair(c, t.AccessToken, t.AccessTokenExpiry, t.RefreshToken, t.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, tokensResponse{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}, "Access token refreshed")
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalid(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), middleware.CurrentUser(c), req.OldPassword, req.NewPassword); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

func (h *UserHandler) CurrentUser(c *gin.Context) {
	u := h.Svc.GetCurrentUser(c.Request.Context(), middleware.CurrentUser(c))
	response.Success(c, http.StatusOK, u, "Current user fetched successfully")
}

func (h *UserHandler) UpdateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalid(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c), req.Fullname, req.Email)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, u, "Account details updated successfully")
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	file, err := h.stage(c, "avatar")
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer discard(file)

	u, err := h.Svc.UpdateAvatar(c.Request.Context(), middleware.CurrentUser(c), file)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, u, "Avatar image updated successfully")
}

func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	file, err := h.stage(c, "coverImage")
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer discard(file)

	u, err := h.Svc.UpdateCoverImage(c.Request.Context(), middleware.CurrentUser(c), file)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, u, "Cover image updated successfully")
}

func (h *UserHandler) ChannelProfile(c *gin.Context) {
	p, err := h.Svc.GetChannelProfile(c.Request.Context(), c.Param("username"), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, p, "User channel fetched successfully")
}

func (h *UserHandler) WatchHistory(c *gin.Context) {
	videos, err := h.Svc.GetWatchHistory(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, videos, "Watch history fetched successfully")
}

func (h *UserHandler) Search(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(invalid(err))
		return
	}
	docs, err := h.Svc.SearchUsers(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, docs, "Users fetched successfully")
}
