package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// wahaSession is the only session name WAHA core supports.
const wahaSession = "default"

// WahaService talks to a WAHA server. WAHA core exposes a single shared
// session, so the service tracks which tenant currently owns it and rejects
// lifecycle calls from other tenants.
type WahaService struct {
	client *resty.Client
	log    *logrus.Logger

	mu    sync.Mutex
	owner string
}

// NewWahaService creates a new WAHA API client.
func NewWahaService(baseURL, apiKey string, log *logrus.Logger) *WahaService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("X-Api-Key", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &WahaService{client: client, log: log}
}

// claim reserves the shared session for a tenant. Returns false when another
// tenant already holds it.
func (w *WahaService) claim(instanceName string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.owner != "" && w.owner != instanceName {
		return false
	}
	w.owner = instanceName
	return true
}

func (w *WahaService) owns(instanceName string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.owner == instanceName
}

func (w *WahaService) release(instanceName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.owner == instanceName {
		w.owner = ""
	}
}

func (w *WahaService) CreateInstance(instanceName string) InstanceResult {
	if !w.claim(instanceName) {
		return InstanceResult{Success: false, Error: "WAHA session already in use by another connection"}
	}

	resp, err := w.client.R().
		SetBody(map[string]interface{}{"name": wahaSession}).
		Post("/api/sessions/" + wahaSession + "/start")
	if err != nil {
		w.release(instanceName)
		w.log.Errorf("❌ WAHA session start for %s failed: %v", instanceName, err)
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		w.release(instanceName)
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	w.log.Infof("📱 WAHA session started for %s", instanceName)
	return InstanceResult{Success: true, State: "connecting"}
}

func (w *WahaService) ConnectInstance(instanceName string) InstanceResult {
	if !w.owns(instanceName) {
		return InstanceResult{Success: false, Error: "WAHA session not owned by this connection"}
	}

	var out struct {
		QR string `json:"qr"`
	}
	resp, err := w.client.R().
		SetResult(&out).
		Get("/api/" + wahaSession + "/auth/qr")
	if err != nil {
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	return InstanceResult{Success: true, State: "connecting", QRCode: out.QR}
}

func (w *WahaService) ConnectionState(instanceName string) InstanceResult {
	if !w.owns(instanceName) {
		return InstanceResult{Success: true, State: "close"}
	}

	var out struct {
		Status string `json:"status"`
	}
	resp, err := w.client.R().
		SetResult(&out).
		Get("/api/sessions/" + wahaSession)
	if err != nil {
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	// WAHA statuses differ from Evolution states; fold them down.
	state := "close"
	switch out.Status {
	case "WORKING":
		state = "open"
	case "STARTING", "SCAN_QR_CODE":
		state = "connecting"
	}
	return InstanceResult{Success: true, State: state}
}

func (w *WahaService) DeleteInstance(instanceName string) InstanceResult {
	if !w.owns(instanceName) {
		return InstanceResult{Success: true}
	}

	resp, err := w.client.R().
		Post("/api/sessions/" + wahaSession + "/stop")
	if err != nil {
		w.log.Errorf("❌ WAHA session stop for %s failed: %v", instanceName, err)
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	w.release(instanceName)
	w.log.Infof("🗑️ WAHA session stopped for %s", instanceName)
	return InstanceResult{Success: true}
}

func (w *WahaService) SendText(instanceName, number, text string) SendResult {
	number = NormalizePhone(number)

	var out struct {
		ID string `json:"id"`
	}

	resp, err := w.client.R().
		SetBody(map[string]interface{}{
			"to":      number + "@c.us",
			"text":    text,
			"session": wahaSession,
		}).
		SetResult(&out).
		Post("/api/sendText")
	if err != nil {
		w.log.Errorf("❌ WAHA sendText to %s failed: %v", number, err)
		return SendResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return SendResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	w.log.Infof("✅ Message sent to %s via WAHA", number)
	return SendResult{Success: true, MessageID: out.ID}
}

func (w *WahaService) SendMedia(instanceName, number string, media Media) SendResult {
	number = NormalizePhone(number)

	endpoint := map[string]string{
		"image":    "/api/sendImage",
		"video":    "/api/sendVideo",
		"audio":    "/api/sendVoice",
		"document": "/api/sendFile",
	}[media.Type]
	if endpoint == "" {
		endpoint = "/api/sendFile"
	}

	var out struct {
		ID string `json:"id"`
	}
	resp, err := w.client.R().
		SetBody(map[string]interface{}{
			"to":      number + "@c.us",
			"session": wahaSession,
			"file":    map[string]string{"url": media.URL},
			"caption": media.Caption,
		}).
		SetResult(&out).
		Post(endpoint)
	if err != nil {
		w.log.Errorf("❌ WAHA sendMedia to %s failed: %v", number, err)
		return SendResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return SendResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	return SendResult{Success: true, MessageID: out.ID}
}

func (w *WahaService) FetchInstances() InstancesResult {
	var out []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Me     struct {
			ID string `json:"id"`
		} `json:"me"`
	}

	resp, err := w.client.R().
		SetResult(&out).
		Get("/api/sessions")
	if err != nil {
		return InstancesResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstancesResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	instances := make([]InstanceInfo, 0, len(out))
	for _, item := range out {
		instances = append(instances, InstanceInfo{
			Name:  item.Name,
			State: item.Status,
			Phone: StripJID(item.Me.ID),
		})
	}
	return InstancesResult{Success: true, Instances: instances}
}

func (w *WahaService) Health() HealthResult {
	resp, err := w.client.R().Get("/api/sessions")
	if err != nil {
		return HealthResult{Healthy: false, Error: err.Error()}
	}
	if resp.IsError() {
		return HealthResult{Healthy: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}
	return HealthResult{Healthy: true}
}
