package auth

// Session fields owned by this package.
const (
	keyPendingState    = "pending_state"
	keyPendingVerifier = "pending_verifier"
	keyProvider        = "provider"
	keyUsername        = "username"
	keyName            = "name"
	keyEmail           = "email"
	keyImage           = "image"
	keyAuthenticated   = "authenticated"
)

var identityKeys = []string{
	keyProvider,
	keyUsername,
	keyName,
	keyEmail,
	keyImage,
	keyAuthenticated,
}
