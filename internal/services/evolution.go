package services

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// EvolutionService talks to an Evolution API server. One Evolution instance
// maps to one tenant's WhatsApp connection; the instance name is the tenant id.
type EvolutionService struct {
	client *resty.Client
	log    *logrus.Logger
}

// NewEvolutionService creates a new Evolution API client.
func NewEvolutionService(baseURL, apiKey string, log *logrus.Logger) *EvolutionService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &EvolutionService{client: client, log: log}
}

func (e *EvolutionService) CreateInstance(instanceName string) InstanceResult {
	var out struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
			Status       string `json:"status"`
		} `json:"instance"`
		QRCode struct {
			Base64 string `json:"base64"`
		} `json:"qrcode"`
	}

	resp, err := e.client.R().
		SetBody(map[string]interface{}{
			"instanceName": instanceName,
			"qrcode":       true,
			"integration":  "WHATSAPP-BAILEYS",
		}).
		SetResult(&out).
		Post("/instance/create")
	if err != nil {
		e.log.Errorf("❌ Evolution create instance %s failed: %v", instanceName, err)
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		e.log.Errorf("❌ Evolution create instance %s returned %d", instanceName, resp.StatusCode())
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	e.log.Infof("📱 Evolution instance created: %s", instanceName)
	return InstanceResult{Success: true, State: out.Instance.Status, QRCode: out.QRCode.Base64}
}

func (e *EvolutionService) ConnectInstance(instanceName string) InstanceResult {
	var out struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
	}

	resp, err := e.client.R().
		SetResult(&out).
		Get("/instance/connect/" + instanceName)
	if err != nil {
		e.log.Errorf("❌ Evolution connect %s failed: %v", instanceName, err)
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	return InstanceResult{Success: true, State: "connecting", QRCode: out.Base64}
}

func (e *EvolutionService) ConnectionState(instanceName string) InstanceResult {
	var out struct {
		Instance struct {
			InstanceName    string `json:"instanceName"`
			ConnectionState string `json:"connectionState"`
		} `json:"instance"`
	}

	resp, err := e.client.R().
		SetResult(&out).
		Get("/instance/connectionState/" + instanceName)
	if err != nil {
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	return InstanceResult{Success: true, State: out.Instance.ConnectionState}
}

func (e *EvolutionService) DeleteInstance(instanceName string) InstanceResult {
	resp, err := e.client.R().
		Delete("/instance/delete/" + instanceName)
	if err != nil {
		e.log.Errorf("❌ Evolution delete %s failed: %v", instanceName, err)
		return InstanceResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstanceResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	e.log.Infof("🗑️ Evolution instance deleted: %s", instanceName)
	return InstanceResult{Success: true}
}

func (e *EvolutionService) SendText(instanceName, number, text string) SendResult {
	number = NormalizePhone(number)

	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}

	resp, err := e.client.R().
		SetBody(map[string]interface{}{
			"number": number,
			"text":   text,
		}).
		SetResult(&out).
		Post("/message/sendText/" + instanceName)
	if err != nil {
		e.log.Errorf("❌ Evolution sendText via %s failed: %v", instanceName, err)
		return SendResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		e.log.Errorf("❌ Evolution sendText via %s returned %d: %s", instanceName, resp.StatusCode(), resp.String())
		return SendResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	e.log.Infof("✅ Message sent to %s via %s", number, instanceName)
	return SendResult{Success: true, MessageID: out.Key.ID}
}

func (e *EvolutionService) SendMedia(instanceName, number string, media Media) SendResult {
	number = NormalizePhone(number)

	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}

	body := map[string]interface{}{
		"number": number,
		media.Type: map[string]string{
			"url":     media.URL,
			"caption": media.Caption,
		},
	}

	resp, err := e.client.R().
		SetBody(body).
		SetResult(&out).
		Post("/message/sendMedia/" + instanceName)
	if err != nil {
		e.log.Errorf("❌ Evolution sendMedia via %s failed: %v", instanceName, err)
		return SendResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return SendResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	e.log.Infof("✅ Media (%s) sent to %s via %s", media.Type, number, instanceName)
	return SendResult{Success: true, MessageID: out.Key.ID}
}

func (e *EvolutionService) FetchInstances() InstancesResult {
	var out []struct {
		Instance struct {
			InstanceName    string `json:"instanceName"`
			ConnectionState string `json:"connectionStatus"`
			Owner           string `json:"owner"`
		} `json:"instance"`
	}

	resp, err := e.client.R().
		SetResult(&out).
		Get("/manager/fetchInstances")
	if err != nil {
		return InstancesResult{Success: false, Error: err.Error()}
	}
	if resp.IsError() {
		return InstancesResult{Success: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}

	instances := make([]InstanceInfo, 0, len(out))
	for _, item := range out {
		instances = append(instances, InstanceInfo{
			Name:  item.Instance.InstanceName,
			State: item.Instance.ConnectionState,
			Phone: StripJID(item.Instance.Owner),
		})
	}
	return InstancesResult{Success: true, Instances: instances}
}

func (e *EvolutionService) Health() HealthResult {
	resp, err := e.client.R().Get("/manager/fetchInstances")
	if err != nil {
		return HealthResult{Healthy: false, Error: err.Error()}
	}
	if resp.IsError() {
		return HealthResult{Healthy: false, Error: fmt.Sprintf("provider returned %d", resp.StatusCode())}
	}
	return HealthResult{Healthy: true}
}
