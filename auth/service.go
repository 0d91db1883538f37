package auth

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/config"
	"github.com/user/libcat-go/store"
)

// Service implements registration, login and token management on top of the
// users and tokens collections. Tokens are opaque strings recorded in
// tokens.json; a token is valid exactly as long as it is present there, so
// logout revokes it immediately. Multiple tokens per user may coexist.
type Service struct {
	st     *store.Store
	users  *store.Collection[User]
	tokens *store.TokenStore
	cfg    config.AuthConfig
	log    *logrus.Logger
}

// NewService creates a new auth Service.
func NewService(st *store.Store, cfg config.AuthConfig, log *logrus.Logger) *Service {
	return &Service{
		st:     st,
		users:  store.NewCollection[User](st, "users"),
		tokens: store.NewTokenStore(st),
		cfg:    cfg,
		log:    log,
	}
}

// Register creates a new user. Usernames and emails must be unique
// (compared case-insensitively); the password is stored as a bcrypt hash,
// never as plaintext. The role defaults to MEMBER.
func (s *Service) Register(req RegisterRequest) (User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return User{}, apperror.NewValidationError("username, email, and password are required", nil)
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return User{}, apperror.NewInternalError("failed to hash password", err)
	}

	s.st.Lock()
	defer s.st.Unlock()

	users, err := s.users.Load()
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, req.Username) {
			return User{}, apperror.NewValidationError("username already exists", nil)
		}
		if strings.EqualFold(u.Email, req.Email) {
			return User{}, apperror.NewValidationError("email already exists", nil)
		}
	}

	user := User{
		ID:           s.users.NextID(users),
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Role:         role,
	}
	users = append(users, user)
	if err := s.users.Save(users); err != nil {
		return User{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return user, nil
}

// Login checks the credentials and, on success, mints a fresh opaque token
// and records it in the active token set. The same generic message is
// returned whether the username or the password was wrong.
func (s *Service) Login(req LoginRequest) (TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return TokenResponse{}, apperror.NewValidationError("username and password are required", nil)
	}

	s.st.Lock()
	defer s.st.Unlock()

	users, err := s.users.Load()
	if err != nil {
		return TokenResponse{}, err
	}
	var user *User
	for i := range users {
		if strings.EqualFold(users[i].Username, req.Username) {
			user = &users[i]
			break
		}
	}
	if user == nil {
		return TokenResponse{}, apperror.NewAuthError("invalid username or password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return TokenResponse{}, apperror.NewAuthError("invalid username or password", nil)
	}

	tokens, err := s.tokens.Load()
	if err != nil {
		return TokenResponse{}, err
	}
	// UUIDv4 gives 122 random bits; a collision with an existing token is
	// not a realistic concern, but the check is cheap and keeps the map
	// insert unconditional.
	token := uuid.NewString()
	for {
		if _, taken := tokens[token]; !taken {
			break
		}
		token = uuid.NewString()
	}
	tokens[token] = user.ID
	if err := s.tokens.Save(tokens); err != nil {
		return TokenResponse{}, err
	}

	s.log.WithField("user_id", user.ID).Info("user logged in")
	return TokenResponse{Token: token}, nil
}

// Authenticate resolves a bearer token to its user. It fails with an
// AuthError when the token is missing from the active set or the user it
// pointed at no longer exists.
func (s *Service) Authenticate(token string) (User, error) {
	if token == "" {
		return User{}, apperror.NewAuthError("missing token", nil)
	}

	s.st.RLock()
	defer s.st.RUnlock()

	tokens, err := s.tokens.Load()
	if err != nil {
		return User{}, err
	}
	userID, ok := tokens[token]
	if !ok {
		return User{}, apperror.NewAuthError("invalid token", nil)
	}

	users, err := s.users.Load()
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, apperror.NewAuthError("invalid token", nil)
}

// Logout removes the token from the active set. An unknown token fails with
// the same AuthError kind as any other invalid token, so a double logout
// reports 401 rather than silently succeeding.
func (s *Service) Logout(token string) error {
	s.st.Lock()
	defer s.st.Unlock()

	tokens, err := s.tokens.Load()
	if err != nil {
		return err
	}
	userID, ok := tokens[token]
	if !ok {
		return apperror.NewAuthError("invalid token", nil)
	}
	delete(tokens, token)
	if err := s.tokens.Save(tokens); err != nil {
		return err
	}

	s.log.WithField("user_id", userID).Info("user logged out")
	return nil
}

// Authorize fails with a PermissionError unless the user's role is in the
// allowed set. Permission rules are expressed as explicit role predicates,
// never ad hoc string comparisons at call sites.
func Authorize(user User, allowed ...Role) error {
	if user.Role.In(allowed...) {
		return nil
	}
	return apperror.NewPermissionError("you do not have permission to perform this action", nil)
}
