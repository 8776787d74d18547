package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/validation"
)

// multipart overhead allowed on top of the avatar size limit
const formOverhead = 1 << 20

type UserHandler struct {
	Svc            *userapp.Service
	Avatars        *userapp.AvatarService
	Logger         *logrus.Logger
	Cookies        *helpers.Manager
	MaxAvatarBytes int64
}

func NewUserHandler(svc *userapp.Service, avatars *userapp.AvatarService, logger *logrus.Logger, cookieDomain string, cookieSecure bool, maxAvatarBytes int64) *UserHandler {
	return &UserHandler{
		Svc:            svc,
		Avatars:        avatars,
		Logger:         logger,
		Cookies:        helpers.NewCookie(cookieDomain, cookieSecure),
		MaxAvatarBytes: maxAvatarBytes,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	FullName string `json:"full_name" binding:"max=255"`
}

type updateProfileRequest struct {
	Email    entity.Optional[string] `json:"email"`
	Password entity.Optional[string] `json:"password"`
	FullName entity.Optional[string] `json:"full_name"`
}

func (r updateProfileRequest) validate() map[string]string {
	details := map[string]string{}
	if v, ok := r.Email.Get(); ok {
		if err := validation.Var(v, "required,email"); err != nil {
			details["email"] = "must be a valid email"
		}
	}
	if v, ok := r.Password.Get(); ok {
		if err := validation.Var(v, "required,pwd"); err != nil {
			details["password"] = "must be at least 8 characters"
		}
	}
	return details
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.Logger, err, "login failed")
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, toUserResponse(u), "login successful", map[string]any{
		"access_token":       pair.AccessToken,
		"token_type":         "bearer",
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	})
}

func (h *UserHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(helpers.RefreshCookie)
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		fail(c, h.Logger, err, "invalid refresh token")
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.Svc.Logout(c.Request.Context(), currentUserID(c)); err != nil && h.Logger != nil {
		h.Logger.WithError(err).Warn("logout: session delete failed")
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), entity.UserCreate{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		fail(c, h.Logger, err, "registration failed")
		return
	}
	response.Success(c, http.StatusCreated, toUserResponse(u), "user registered", nil)
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	u, err := h.Svc.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, h.Logger, err, "user not found")
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), "profile", nil)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if details := req.validate(); len(details) > 0 {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", details)
		return
	}
	ctx := c.Request.Context()
	u, err := h.Svc.GetByID(ctx, currentUserID(c))
	if err != nil {
		fail(c, h.Logger, err, "user not found")
		return
	}
	u, err = h.Svc.Update(ctx, u, entity.UserUpdate{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		fail(c, h.Logger, err, "failed to update profile")
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), "profile updated", nil)
}

// UploadAvatar POST /api/profile/avatar (multipart field "file")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	if h.MaxAvatarBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxAvatarBytes+formOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing file", map[string]string{"file": "is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	u, err := h.Avatars.UploadAvatar(c.Request.Context(), currentUserID(c), fh.Filename, f)
	if err != nil {
		fail(c, h.Logger, err, "avatar upload failed")
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), "avatar updated", nil)
}

// Search GET /api/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", map[string]string{"q": "is required"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		fail(c, h.Logger, err, "search failed")
		return
	}
	response.Success(c, http.StatusOK, hits, "users", map[string]any{"count": len(hits)})
}
