package ratelimit

import "time"

// Set bundles the limiter instances the API wires per route group. All five
// share one algorithm and differ only in configuration.
type Set struct {
	// Auth guards login and credential endpoints: narrow window, low
	// quota, keyed by caller address, fail closed.
	Auth *Limiter
	// API covers general authenticated traffic.
	API *Limiter
	// Upload guards document upload review endpoints under a distinct
	// key prefix.
	Upload *Limiter
	// Sensitive guards money-moving approvals: tight quota, fail closed.
	Sensitive *Limiter
	// PerUser keys by authenticated subject when available, else address.
	PerUser *Limiter
}

// NewSet constructs the predefined limiter instances on one shared store.
// remote may be nil; when set, every instance prefers the shared backend.
func NewSet(store Store, remote *Manager) (*Set, error) {
	auth, errAuth := New(Options{
		Window:      15 * time.Minute,
		MaxRequests: 10,
		KeyFunc:     PrefixedIPKey("auth"),
		Message:     "too many login attempts, please try again later",
		FailClosed:  true,
		Store:       store,
		Remote:      remote,
	})
	if errAuth != nil {
		return nil, errAuth
	}
	api, errAPI := New(Options{
		Window:      15 * time.Minute,
		MaxRequests: 300,
		KeyFunc:     ClientIPKey,
		Store:       store,
		Remote:      remote,
	})
	if errAPI != nil {
		return nil, errAPI
	}
	upload, errUpload := New(Options{
		Window:      time.Hour,
		MaxRequests: 30,
		KeyFunc:     PrefixedIPKey("upload"),
		Message:     "upload quota exceeded, please try again later",
		Store:       store,
		Remote:      remote,
	})
	if errUpload != nil {
		return nil, errUpload
	}
	sensitive, errSensitive := New(Options{
		Window:      time.Hour,
		MaxRequests: 30,
		KeyFunc:     PrefixedIPKey("sensitive"),
		Message:     "too many sensitive operations, please try again later",
		FailClosed:  true,
		Store:       store,
		Remote:      remote,
	})
	if errSensitive != nil {
		return nil, errSensitive
	}
	perUser, errPerUser := New(Options{
		Window:      15 * time.Minute,
		MaxRequests: 600,
		KeyFunc:     SubjectKey,
		Store:       store,
		Remote:      remote,
	})
	if errPerUser != nil {
		return nil, errPerUser
	}
	return &Set{
		Auth:      auth,
		API:       api,
		Upload:    upload,
		Sensitive: sensitive,
		PerUser:   perUser,
	}, nil
}
