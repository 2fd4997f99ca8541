package services

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/auth"
	"github.com/hireloop/hireloop/internal/models"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/utils"
)

const tokenTTL = 12 * time.Hour

type AuthService interface {
	// Login verifies credentials and returns a signed bearer token.
	Login(ctx context.Context, email, password string) (token string, i *models.Interviewer, err error)
	// Bootstrap creates the initial admin from ADMIN_EMAIL/ADMIN_PASSWORD
	// when the interviewer table is empty. No-op otherwise.
	Bootstrap(ctx context.Context) error
}

type authService struct {
	interviewers pgrepo.InterviewerRepository
	log          *logrus.Logger
	secret       []byte
}

func NewAuthService(interviewers pgrepo.InterviewerRepository, log *logrus.Logger) AuthService {
	return &authService{
		interviewers: interviewers,
		log:          log,
		secret:       []byte(os.Getenv("JWT_SECRET")),
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *models.Interviewer, error) {
	const op = "AuthService.Login"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}
	if len(s.secret) == 0 {
		return "", nil, utils.E(utils.CodeInternal, op, "JWT_SECRET is not set", nil)
	}

	row, err := s.interviewers.GetByEmail(ctx, email)
	if err != nil {
		if err == utils.ErrNotFound {
			return "", nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
		}
		return "", nil, utils.E(utils.CodeInternal, op, "failed to load interviewer", err)
	}
	if err := utils.CheckPassword(row.PasswordHash, password); err != nil {
		return "", nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}

	now := time.Now().UTC()
	claims := auth.InterviewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   row.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Email: row.Email,
		Role:  string(row.Role),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, utils.E(utils.CodeInternal, op, "failed to sign token", err)
	}
	return token, row, nil
}

func (s *authService) Bootstrap(ctx context.Context) error {
	const op = "AuthService.Bootstrap"

	n, err := s.interviewers.Count(ctx)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to count interviewers", err)
	}
	if n > 0 {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		s.log.Warn("no interviewers exist and ADMIN_EMAIL/ADMIN_PASSWORD are unset, dashboard login is unavailable")
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to hash admin password", err)
	}
	admin := &models.Interviewer{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.interviewers.Insert(ctx, admin); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create admin", err)
	}
	s.log.WithField("email", email).Info("bootstrap admin created")
	return nil
}
