package support

// AuthenticationError is returned when a login or session check fails.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// Deps describe who the agent is talking to.
type Deps struct {
	CustomerID    int
	Token         string
	Authenticated bool
}

// AuthService ties the directory to sessions.
type AuthService struct {
	dir      *Directory
	sessions *SessionManager
}

// NewAuthService creates an auth service.
func NewAuthService(dir *Directory, sessions *SessionManager) *AuthService {
	return &AuthService{dir: dir, sessions: sessions}
}

// Directory returns the customer directory.
func (a *AuthService) Directory() *Directory { return a.dir }

// Login checks credentials and opens a session.
func (a *AuthService) Login(username, password string) (string, error) {
	id, ok := a.dir.Authenticate(username, password)
	if !ok {
		return "", &AuthenticationError{Message: "Invalid username or password"}
	}
	return a.sessions.Create(id)
}

// Logout ends a session.
func (a *AuthService) Logout(token string) bool { return a.sessions.Invalidate(token) }

// Deps resolves token. An empty token is an anonymous user; a stale or
// unknown one is an error.
func (a *AuthService) Deps(token string) (Deps, error) {
	if token == "" {
		return Deps{}, nil
	}
	id, ok := a.sessions.Validate(token)
	if !ok {
		return Deps{}, &AuthenticationError{Message: "Session validation failed"}
	}
	return Deps{CustomerID: id, Token: token, Authenticated: true}, nil
}
