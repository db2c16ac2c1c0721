package store

// Credentials is the persisted token pair plus the cached user blob.
// CredentialStore mutators are the only writer path: login saves, refresh
// replaces, logout (or an irrecoverable refresh failure) clears. Everything
// else reads.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserJSON     []byte
}

// Device is the generated device identity sent with login OTP verification
// and push-token registration. Created once per session directory.
type Device struct {
	ID   string
	Name string
	Type string
}
