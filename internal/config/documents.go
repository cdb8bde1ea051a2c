package config

// UserProfile is the operator identity document (user.json). It is always
// replaced wholesale.
type UserProfile struct {
	Callsign      string `json:"callsign"`
	Grid          string `json:"grid"`
	WinlinkPasswd string `json:"winlinkPasswd"`
}

// UserStore reads and writes the user profile.
type UserStore struct {
	path string
}

func NewUserStore(p Paths) *UserStore {
	return &UserStore{path: p.User()}
}

// Load returns the stored profile. A missing document is reported as a
// fault.NotFound error.
func (s *UserStore) Load() (UserProfile, error) {
	return Read[UserProfile](s.path)
}

// Save replaces the stored profile. The file is private to the user since it
// carries the Winlink password.
func (s *UserStore) Save(u UserProfile) error {
	return writeJSON(s.path, u, PrivateFileMode)
}

func (s *UserStore) Path() string { return s.path }

// ModeStore reads and writes the plain-text operating mode (et-mode).
type ModeStore struct {
	path string
}

func NewModeStore(p Paths) *ModeStore {
	return &ModeStore{path: p.Mode()}
}

// Load returns the mode document verbatim.
func (s *ModeStore) Load() (string, error) {
	return ReadText(s.path)
}

func (s *ModeStore) Save(mode string) error {
	return WriteText(s.path, mode)
}

func (s *ModeStore) Path() string { return s.path }
