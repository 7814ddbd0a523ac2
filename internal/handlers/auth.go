package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"markbox/internal/accounts"
	"markbox/internal/notices"
	"markbox/internal/signing"
)

// Общие структуры запросов и ответов для Swagger и тестов

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type EmailChangeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type SetPasswordRequest struct {
	NewPassword        string `json:"new_password" binding:"required"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type ProfileResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Register godoc
// @Summary Регистрация пользователя
// @Description Создаёт неактивного пользователя и отправляет на email ссылку подтверждения. Неподтверждённая регистрация с тем же email заменяется.
// @Tags auth
// @Accept json
// @Produce json
// @Param input body RegisterRequest true "данные регистрации"
// @Success 201 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func Register(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r RegisterRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		if _, err := svc.Register(c.Request.Context(), r.Email, r.Password, r.PasswordConfirm); err != nil {
			fail(c, err)
			return
		}
		respond(c, nil, http.StatusCreated, Outcome{
			Next:   NextDone,
			Notice: notices.Success("A registration email has been sent. Registration is not complete yet.\nOpen the link in the email to finish registering."),
		})
	}
}

// ConfirmRegistration godoc
// @Summary Подтверждение регистрации
// @Description Активирует пользователя по ссылке из письма. Просроченная ссылка даёт 410 и предложение зарегистрироваться заново.
// @Tags auth
// @Produce json
// @Param token path string true "токен из письма"
// @Success 200 {object} Outcome
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} Outcome
// @Router /auth/register/confirm/{token} [get]
func ConfirmRegistration(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := svc.ConfirmRegistration(c.Request.Context(), c.Param("token"))
		if errors.Is(err, signing.ErrExpired) {
			respond(c, nil, http.StatusGone, Outcome{
				Next:   NextUserCreation,
				Notice: notices.Error("The registration link has expired. Please register again."),
			})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, nil, http.StatusOK, Outcome{
			Next:   NextDone,
			Notice: notices.Success("Registration complete.\nSign in with your email address and password."),
		})
	}
}

// Login godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль и выдаёт пару токенов. Неподтверждённые учётные записи не допускаются.
// @Tags auth
// @Accept json
// @Produce json
// @Param input body LoginRequest true "учётные данные"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func Login(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r LoginRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		pair, err := svc.Login(c.Request.Context(), r.Email, r.Password)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	}
}

// Refresh godoc
// @Summary Обновление токенов
// @Tags auth
// @Accept json
// @Produce json
// @Param input body RefreshRequest true "refresh токен"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func Refresh(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r RefreshRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		pair, err := svc.Refresh(c.Request.Context(), r.RefreshToken)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	}
}

// Logout godoc
// @Summary Выход
// @Description Отзывает все токены пользователя.
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} Outcome
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func Logout(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Logout(c.Request.Context(), currentUser(c).ID); err != nil {
			fail(c, err)
			return
		}
		respond(c, nil, http.StatusOK, Outcome{Next: NextLogin})
	}
}

// Profile godoc
// @Summary Текущий пользователь
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/profile [get]
func Profile() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		c.JSON(http.StatusOK, ProfileResponse{
			ID:          user.ID,
			Email:       user.Email,
			Username:    user.Username,
			IsSuperuser: user.IsSuperuser,
		})
	}
}

// RequestEmailChange godoc
// @Summary Запрос смены email
// @Description Отправляет ссылку подтверждения на новый адрес.
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body EmailChangeRequest true "новый email"
// @Success 200 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/email [post]
func RequestEmailChange(svc *accounts.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r EmailChangeRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		if err := svc.RequestEmailChange(c.Request.Context(), currentUser(c), r.Email); err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextDone,
			Notice: notices.Success("An email change link has been sent.\nOpen the link in the email to change your address."),
		})
	}
}

// ConfirmEmailChange godoc
// @Summary Подтверждение смены email
// @Description Ссылка действует только для пользователя, запросившего смену.
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Param token path string true "токен из письма"
// @Success 200 {object} Outcome
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} Outcome
// @Router /auth/email/confirm/{token} [get]
func ConfirmEmailChange(svc *accounts.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := svc.ConfirmEmailChange(c.Request.Context(), currentUser(c), c.Param("token"))
		if errors.Is(err, signing.ErrExpired) {
			respond(c, inbox, http.StatusGone, Outcome{
				Next:   NextEmailChange,
				Notice: notices.Error("The email change link has expired. Please request the change again."),
			})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextDone,
			Notice: notices.Success("Your email address has been changed."),
		})
	}
}

// ChangePassword godoc
// @Summary Смена пароля
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body ChangePasswordRequest true "пароли"
// @Success 200 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/password [post]
func ChangePassword(svc *accounts.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r ChangePasswordRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		err := svc.ChangePassword(c.Request.Context(), currentUser(c), r.OldPassword, r.NewPassword, r.ConfirmPassword)
		if errors.Is(err, accounts.ErrBadCredentials) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid password"})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextDone,
			Notice: notices.Success("Your password has been changed."),
		})
	}
}

// RequestPasswordReset godoc
// @Summary Запрос сброса пароля
// @Description Отправляет ссылку сброса. Ответ не зависит от того, существует ли адрес.
// @Tags auth
// @Accept json
// @Produce json
// @Param input body PasswordResetRequest true "email"
// @Success 200 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Router /auth/password/reset [post]
func RequestPasswordReset(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r PasswordResetRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		if err := svc.RequestPasswordReset(c.Request.Context(), r.Email); err != nil {
			fail(c, err)
			return
		}
		respond(c, nil, http.StatusOK, Outcome{
			Next:   NextDone,
			Notice: notices.Success("A password reset email has been sent.\nOpen the link in the email to choose a new password."),
		})
	}
}

func resetExpired(c *gin.Context) {
	respond(c, nil, http.StatusGone, Outcome{
		Next:   NextPasswordReset,
		Notice: notices.Error("The password reset link has expired. Please request a new one."),
	})
}

// CheckPasswordReset godoc
// @Summary Проверка ссылки сброса пароля
// @Tags auth
// @Produce json
// @Param token path string true "токен из письма"
// @Success 200 {object} StatusResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} Outcome
// @Router /auth/password/reset/{token} [get]
func CheckPasswordReset(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.CheckPasswordReset(c.Request.Context(), c.Param("token"))
		if errors.Is(err, signing.ErrExpired) {
			resetExpired(c)
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, StatusResponse{Status: "valid"})
	}
}

// ConfirmPasswordReset godoc
// @Summary Установка нового пароля по ссылке
// @Description Ссылка одноразовая; все сессии пользователя отзываются.
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "токен из письма"
// @Param input body SetPasswordRequest true "новый пароль"
// @Success 200 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} Outcome
// @Router /auth/password/reset/{token} [post]
func ConfirmPasswordReset(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r SetPasswordRequest
		if err := c.ShouldBindJSON(&r); err != nil {
			invalidJSON(c)
			return
		}
		_, err := svc.ConfirmPasswordReset(c.Request.Context(), c.Param("token"), r.NewPassword, r.NewPasswordConfirm)
		if errors.Is(err, signing.ErrExpired) {
			resetExpired(c)
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, nil, http.StatusOK, Outcome{
			Next:   NextDone,
			Notice: notices.Success("Your password has been reset.\nSign in with your email address and password."),
		})
	}
}
