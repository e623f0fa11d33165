package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusmart/adapters/auth"
	"campusmart/adapters/session"
	"campusmart/backend"
	"campusmart/market"
)

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	User         backend.User `json:"user"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

func newSessionResponse(user backend.User, s *backend.Session) sessionResponse {
	resp := sessionResponse{User: user}
	if s != nil {
		resp.AccessToken = s.AccessToken
		resp.RefreshToken = s.RefreshToken
		resp.ExpiresAt = &s.ExpiresAt
	}
	return resp
}

func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.writeError(c, errors.Join(auth.ErrInvalidInput, err))
		return false
	}
	return true
}

// storeSession 登入後更換 session ID 並保存 token
func (s *Server) storeSession(c *gin.Context, authSession *backend.Session) error {
	sess, err := session.GetSession(c)
	if err != nil {
		return err
	}
	sess.Regenerate()
	sess.Set(SessionKeyAccessToken, authSession.AccessToken)
	sess.Set(SessionKeyRefreshToken, authSession.RefreshToken)
	return sess.Save()
}

// POST /auth/signup
func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if !s.bind(c, &req) {
		return
	}
	result, err := s.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Nickname)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if result.Session != nil {
		if err := s.storeSession(c, result.Session); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{
		"session":              newSessionResponse(result.User, result.Session),
		"confirmation_pending": result.Session == nil,
	})
}

// POST /auth/login
func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if !s.bind(c, &req) {
		return
	}
	authSession, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.storeSession(c, authSession); err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("Signed in", zap.String("userID", authSession.User.ID))
	c.JSON(http.StatusOK, newSessionResponse(authSession.User, authSession))
}

// POST /auth/refresh，給不使用 cookie 的客戶端
func (s *Server) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	authSession, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(authSession.User, authSession))
}

// POST /auth/logout
func (s *Server) logout(c *gin.Context) {
	sess, err := session.GetSession(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.auth.SignOut(c.Request.Context(), sess.Get(SessionKeyRefreshToken)); err != nil {
		s.logger.Warn("Fail to revoke refresh token", zap.Error(err))
	}
	sess.Clear()
	sess.Regenerate()
	if err := sess.Save(); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /auth/resend
func (s *Server) resendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	if err := s.auth.ResendSignupVerification(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GET /auth/confirm?token=
func (s *Server) confirmEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		s.writeError(c, errors.Join(auth.ErrInvalidInput, errors.New("token is required")))
		return
	}
	authSession, err := s.auth.ConfirmEmail(c.Request.Context(), token)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.storeSession(c, authSession); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(authSession.User, authSession))
}

// GET /auth/session
func (s *Server) currentSession(c *gin.Context) {
	identity := currentIdentity(c)
	resp := gin.H{"authenticated": identity.IsAuthenticated()}
	if identity.Kind == market.KindAuthenticated {
		resp["user"] = backend.User{ID: identity.ID, Email: identity.Email, Nickname: identity.Nickname}
	}
	c.JSON(http.StatusOK, resp)
}
