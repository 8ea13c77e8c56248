package models

// Identity is the authenticated caller as reported by the identity provider
type Identity struct {
	// ID of the host account
	HostID string `json:"hostId"`
	// The display name of the host
	Name string `json:"name"`
}

// DisplayName returns the name to store alongside events created by this identity
func (i *Identity) DisplayName() string {
	if i == nil || i.Name == "" {
		return DefaultHostName
	}
	return i.Name
}
