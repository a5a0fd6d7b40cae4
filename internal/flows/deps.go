package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Authenticate AuthenticateDeps
	Hydrate      HydrateDeps
	Revoke       RevokeDeps
	Logout       LogoutDeps
	Login        LoginDeps
}
