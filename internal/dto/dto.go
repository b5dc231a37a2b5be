package dto

type WebhookAck struct {
	Received bool `json:"received"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
