package services

// Gateway abstracts the WhatsApp provider HTTP API. Implementations never
// propagate transport errors to callers; every operation reports its outcome
// in the result struct so webhook and chatbot flows can fail soft.
type Gateway interface {
	CreateInstance(instanceName string) InstanceResult
	ConnectInstance(instanceName string) InstanceResult
	ConnectionState(instanceName string) InstanceResult
	DeleteInstance(instanceName string) InstanceResult
	SendText(instanceName, number, text string) SendResult
	SendMedia(instanceName, number string, media Media) SendResult
	FetchInstances() InstancesResult
	Health() HealthResult
}

// Media describes an outbound media attachment.
type Media struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// SendResult is the outcome of a message send.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InstanceResult is the outcome of an instance lifecycle operation.
type InstanceResult struct {
	Success bool   `json:"success"`
	State   string `json:"state,omitempty"`
	QRCode  string `json:"qr_code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InstanceInfo is one provider-side instance as reported by the manager API.
type InstanceInfo struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Phone string `json:"phone,omitempty"`
}

// InstancesResult is the outcome of listing provider instances.
type InstancesResult struct {
	Success   bool           `json:"success"`
	Instances []InstanceInfo `json:"instances,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// HealthResult reports provider reachability.
type HealthResult struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}
