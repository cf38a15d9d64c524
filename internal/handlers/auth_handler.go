package handlers

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	NPM      string `json:"npm"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	gormDB, ok := getDB(c)
	if !ok {
		return
	}

	var role models.Role
	if err := gormDB.Where("name = ?", models.RoleParticipant).First(&role).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Participant role is missing.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to hash the password.")
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		NPM:      strings.TrimSpace(req.NPM),
		Email:    strings.ToLower(req.Email),
		Password: string(hashedPassword),
		RoleID:   role.ID,
	}

	if err := gormDB.Create(&user).Error; err != nil {
		if helpers.IsUniqueViolation(err) {
			helpers.RespondWithError(c, http.StatusConflict, "User already exists.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create user.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully.",
		"user_id": user.ID,
	})
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	gormDB, ok := getDB(c)
	if !ok {
		return
	}

	var user models.User
	if err := gormDB.Preload("Role").Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	tokenString, err := helpers.GenerateToken(os.Getenv("JWT_SECRET"), user.ID, user.Role.Name, time.Now())
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"npm":   user.NPM,
			"email": user.Email,
			"role":  user.Role.Name,
		},
	})
}
