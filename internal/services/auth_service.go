package services

import (
	"errors"

	"openmarket/internal/auth"
	"openmarket/internal/domain"
	"openmarket/internal/repos"
	"openmarket/internal/validate"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *auth.Tokens
}

func NewAuthService(users *repos.UserRepo, tokens *auth.Tokens) *AuthService {
	return &AuthService{Users: users, Tokens: tokens}
}

type SignupRequest struct {
	Username           string `json:"username"`
	Password           string `json:"password"`
	Name               string `json:"name"`
	PhoneNumber        string `json:"phone_number"`
	RegistrationNumber string `json:"company_registration_number"`
	StoreName          string `json:"store_name"`
}

type SigninResult struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user"`
}

func (s *AuthService) SignupBuyer(req SignupRequest) (*domain.User, error) {
	return s.signup(req, domain.UserBuyer)
}

func (s *AuthService) SignupSeller(req SignupRequest) (*domain.User, error) {
	return s.signup(req, domain.UserSeller)
}

func (s *AuthService) signup(req SignupRequest, typ domain.UserType) (*domain.User, error) {
	v := &ValidationError{}
	username, ok := validate.Username(req.Username)
	switch {
	case username == "":
		v.add("username", msgRequired)
	case !ok:
		v.add("username", "Use 3-50 letters, digits or ._@+- only.")
	}
	if req.Password == "" {
		v.add("password", msgRequired)
	} else if !validate.Password(req.Password) {
		v.add("password", "Use 8-20 characters with upper and lower case letters, a digit and a symbol.")
	}
	name := req.Name
	if name != "" {
		if name, ok = validate.Name(name); !ok {
			v.add("name", "Ensure this field has no more than 50 characters.")
		}
	}
	phone := req.PhoneNumber
	if phone != "" {
		if phone, ok = validate.Phone(phone); !ok {
			v.add("phone_number", "Enter a valid phone number.")
		}
	}
	if typ == domain.UserSeller {
		if req.RegistrationNumber == "" {
			v.add("company_registration_number", msgRequired)
		} else if _, ok := validate.RegistrationNumber(req.RegistrationNumber); !ok {
			v.add("company_registration_number", "Must be exactly 10 digits.")
		}
		if req.StoreName == "" {
			v.add("store_name", msgRequired)
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if err := s.ValidateUsername(username); err != nil {
		return nil, err
	}
	if typ == domain.UserSeller {
		if err := s.ValidateRegistrationNumber(req.RegistrationNumber); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := domain.User{
		Username:           username,
		Hash:               string(hash),
		Name:               name,
		PhoneNumber:        phone,
		UserType:           typ,
		RegistrationNumber: req.RegistrationNumber,
		StoreName:          req.StoreName,
	}
	if err := s.Users.Create(u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ValidateUsername fails when the username is missing or already taken.
func (s *AuthService) ValidateUsername(username string) error {
	if username == "" {
		return fieldError("username", msgRequired)
	}
	taken, err := s.Users.UsernameExists(username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}
	return nil
}

func (s *AuthService) ValidateRegistrationNumber(num string) error {
	if num == "" {
		return fieldError("company_registration_number", msgRequired)
	}
	if _, ok := validate.RegistrationNumber(num); !ok {
		return fieldError("company_registration_number", "Must be exactly 10 digits.")
	}
	taken, err := s.Users.RegistrationNumberExists(num)
	if err != nil {
		return err
	}
	if taken {
		return ErrRegistrationTaken
	}
	return nil
}

func (s *AuthService) Signin(username, password string) (*SigninResult, error) {
	u, err := s.Users.ByUsername(username)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, ErrBadCreds
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	access, err := s.Tokens.Access(u.Username, u.Name)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.Refresh(u.Username, u.Name)
	if err != nil {
		return nil, err
	}
	return &SigninResult{Access: access, Refresh: refresh, User: u}, nil
}

// Refresh trades a valid refresh token for a new access token.
func (s *AuthService) Refresh(refresh string) (string, error) {
	claims, err := s.Tokens.Parse(refresh, auth.RefreshToken)
	if err != nil {
		return "", err
	}
	return s.Tokens.Access(claims.UserID, claims.Name)
}
