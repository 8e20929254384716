package service

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const (
	RoleSupervisor = "supervisor"
	RoleCandidate  = "candidate"
)

// SupervisorClaims identify a supervising staff member for one exam.
type SupervisorClaims struct {
	SupervisorID   string `json:"supervisorId"`
	ExamID         string `json:"examId"`
	OrganizationID string `json:"organizationId"`
	jwt.RegisteredClaims
}

// CandidateClaims identify an exam-taker for one exam.
type CandidateClaims struct {
	CandidateID    string `json:"candidateId"`
	ExamID         string `json:"examId"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"candidateName"`
	Email          string `json:"candidateEmail"`
	jwt.RegisteredClaims
}

// AuthService issues and validates the tokens presented at the ws and
// REST boundaries. Authorization decisions (who may supervise which
// exam) are made upstream; the token only carries identity and scope.
type AuthService struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthService() *AuthService {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
		log.Println("Warning: JWT_SECRET not set, using insecure default")
	}
	return &AuthService{
		secret: []byte(secret),
		ttl:    12 * time.Hour,
	}
}

func (s *AuthService) GenerateSupervisorToken(supervisorID, examID, orgID string) (string, error) {
	claims := &SupervisorClaims{
		SupervisorID:   supervisorID,
		ExamID:         examID,
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   supervisorID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) GenerateCandidateToken(candidateID, examID, orgID, name, email string) (string, error) {
	claims := &CandidateClaims{
		CandidateID:    candidateID,
		ExamID:         examID,
		OrganizationID: orgID,
		Name:           name,
		Email:          email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   candidateID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) ValidateSupervisorToken(tokenStr string) (*SupervisorClaims, error) {
	claims := &SupervisorClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.SupervisorID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) ValidateCandidateToken(tokenStr string) (*CandidateClaims, error) {
	claims := &CandidateClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.CandidateID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
