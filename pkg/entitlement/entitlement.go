package entitlement

type Status string

const (
	StatusNone          Status = "none"
	StatusTrial         Status = "trial"
	StatusActive        Status = "active"
	StatusTrialing      Status = "trialing"
	StatusCancelled     Status = "cancelled"
	StatusPaymentFailed Status = "payment_failed"
	StatusExpired       Status = "expired"
	StatusAdmin         Status = "admin"
)

type Feature string

const (
	ClientDownload Feature = "client_download"
	PremiumGuides  Feature = "premium_guides"
	InteractiveMap Feature = "interactive_map"
)

var statusFeatures = map[Status]map[Feature]bool{
	StatusTrial: {
		ClientDownload: true,
		PremiumGuides:  true,
		InteractiveMap: false,
	},
	StatusActive: {
		ClientDownload: true,
		PremiumGuides:  true,
		InteractiveMap: true,
	},
	StatusAdmin: {
		ClientDownload: true,
		PremiumGuides:  true,
		InteractiveMap: true,
	},
}

// CanUseFeature reports whether a subscription status grants a feature.
// Statuses not in the table (none, cancelled, payment_failed, expired,
// trialing-not-yet-confirmed) grant nothing.
func CanUseFeature(status Status, feature Feature) bool {
	features, exists := statusFeatures[status]
	if !exists {
		return false
	}
	return features[feature]
}

// CanDownload is the gate used by the client download endpoint.
func CanDownload(status Status) bool {
	return CanUseFeature(status, ClientDownload)
}
