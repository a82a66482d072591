package dto

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status    HealthStatus    `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    float64         `json:"uptime"`
	Services  map[string]bool `json:"services"`
	Version   string          `json:"version"`
}

type PingResponse struct {
	Pong      bool   `json:"pong"`
	Timestamp string `json:"timestamp"`
}

type ServiceInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}
