package constants

// Static route constants
const (
	UploadsRoute = "/uploads"
	PublicRoute  = "/"
	// Upload path without leading slash for URL construction
	UploadsPath = "uploads"

	LoginRoute   = "/login"
	PricingRoute = "/pricing"
	ProfileRoute = "/profile"
)

// Page sizes of the paginated lists.
const (
	ListingsPerPage      = 20
	MyListingsPerPage    = 20
	FeedSize             = 20
	AdminListingsPerPage = 25
	MatchesShown         = 10
)
